package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dargueta-edu/osemu/config"
	diskoerr "github.com/dargueta-edu/osemu/errors"
	"github.com/dargueta-edu/osemu/fsys"
	"github.com/dargueta-edu/osemu/permissions"
)

// runShell drives an interactive command loop over fs, reading lines from
// in and writing output to out.
func runShell(fs *fsys.FileSystem, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	var sess *fsys.Session
	failedAttempts := 0

	first, err := fs.IsFirstRun()
	if err != nil {
		return err
	}
	if first {
		fmt.Fprintln(out, "no root password is set; choose one now (passwd root)")
		sess = &fsys.Session{UID: 0, GID: 0, Login: "root"}
		if err := promptInitialRootPassword(fs, scanner, out); err != nil {
			return err
		}
	}

	for {
		fmt.Fprint(out, "osemu> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		if cmd == "exit" || cmd == "quit" {
			return nil
		}

		if cmd == "login" {
			sess, failedAttempts = doLogin(fs, args, failedAttempts, out)
			continue
		}

		if sess == nil {
			fmt.Fprintln(out, "not logged in; use: login <name> <password>")
			continue
		}

		if cmd == "sudo" {
			sess = doSudo(fs, sess, args, out)
			continue
		}

		if err := dispatch(fs, sess, cmd, args, out); err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
		}
	}
}

func promptInitialRootPassword(fs *fsys.FileSystem, scanner *bufio.Scanner, out io.Writer) error {
	fmt.Fprint(out, "new root password: ")
	if !scanner.Scan() {
		return scanner.Err()
	}
	password := scanner.Text()
	if password == "" {
		return diskoerr.ErrInvalidArgument.WithMessage("password must not be empty")
	}
	return fs.Identity.SetPassword("root", password)
}

func doLogin(fs *fsys.FileSystem, args []string, failedAttempts int, out io.Writer) (*fsys.Session, int) {
	if len(args) != 2 {
		fmt.Fprintln(out, "usage: login <name> <password>")
		return nil, failedAttempts
	}
	sess, attempts, err := fs.Login(args[0], args[1], config.DefaultMaxPasswordAttempts, failedAttempts)
	if err != nil {
		fmt.Fprintf(out, "login failed: %s\n", err)
		return nil, attempts
	}
	fmt.Fprintf(out, "logged in as %s\n", args[0])
	return sess, 0
}

func doSudo(fs *fsys.FileSystem, sess *fsys.Session, args []string, out io.Writer) *fsys.Session {
	if len(args) != 1 {
		fmt.Fprintln(out, "usage: sudo <root-password>")
		return sess
	}
	elevated, err := fs.Sudo(sess, args[0])
	if err != nil {
		fmt.Fprintf(out, "sudo failed: %s\n", err)
		return sess
	}
	fmt.Fprintln(out, "elevated to root for this session")
	return elevated
}

func dispatch(fs *fsys.FileSystem, sess *fsys.Session, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "ls":
		records, err := fs.Ls()
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Fprintf(out, "%s %4d %s\n", permissions.Format(rec.Perms), rec.Size, rec.Name)
		}
		return nil

	case "touch":
		if len(args) != 1 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: touch <name>")
		}
		_, err := fs.Touch(sess, args[0])
		return err

	case "cat":
		if len(args) != 1 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: cat <name>")
		}
		data, err := fs.Cat(sess, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil

	case "echo":
		return dispatchEcho(fs, sess, args)

	case "rm":
		if len(args) != 1 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: rm <name>")
		}
		return fs.Rm(sess, args[0])

	case "chmod":
		if len(args) != 2 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: chmod <mode> <name>")
		}
		return fs.Chmod(sess, args[0], args[1])

	case "chown":
		if len(args) != 2 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: chown <user[:group]> <name>")
		}
		return fs.Chown(sess, args[0], args[1])

	case "df":
		usage, err := fs.Df()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d/%d clusters used (%.1f%%)\n",
			usage.VolumeName, usage.UsedClusters, usage.TotalClusters, usage.PercentUsed)
		return nil

	case "whoami":
		fmt.Fprintln(out, fs.Whoami(sess))
		return nil

	case "passwd":
		if len(args) != 1 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: passwd <new-password>")
		}
		return fs.Passwd(sess, args[0])

	case "useradd":
		if len(args) != 2 {
			return diskoerr.ErrInvalidArgument.WithMessage("usage: useradd <name> <password>")
		}
		_, err := fs.Useradd(sess, args[0], args[1])
		return err

	case "users":
		users, err := fs.Users()
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(out, "%d %s\n", u.UID, u.Login)
		}
		return nil

	default:
		return diskoerr.ErrInvalidArgument.WithMessage(fmt.Sprintf("unknown command %q", cmd))
	}
}

func dispatchEcho(fs *fsys.FileSystem, sess *fsys.Session, args []string) error {
	joined := strings.Join(args, " ")

	if idx := strings.Index(joined, ">>"); idx >= 0 {
		text := strings.TrimSpace(joined[:idx])
		name := strings.TrimSpace(joined[idx+2:])
		return fs.Echo(sess, unquote(text), name, true)
	}
	if idx := strings.Index(joined, ">"); idx >= 0 {
		text := strings.TrimSpace(joined[:idx])
		name := strings.TrimSpace(joined[idx+1:])
		return fs.Echo(sess, unquote(text), name, false)
	}
	return diskoerr.ErrInvalidArgument.WithMessage("usage: echo text > name | echo text >> name")
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}
