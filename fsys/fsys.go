// Package fsys wires blockdevice, volume, fat, directory, file, identity,
// and permissions into the shell-facing operation surface: ls, touch, cat,
// echo, rm, chmod, chown, df, whoami, passwd, useradd, users, login, sudo,
// plus Format and IsFirstRun.
package fsys

import (
	"log"
	"strconv"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/directory"
	diskoerr "github.com/dargueta-edu/osemu/errors"
	"github.com/dargueta-edu/osemu/fat"
	"github.com/dargueta-edu/osemu/file"
	"github.com/dargueta-edu/osemu/identity"
	"github.com/dargueta-edu/osemu/permissions"
	"github.com/dargueta-edu/osemu/volume"
)

// Session tracks the currently authenticated user for the duration of a
// shell invocation.
type Session struct {
	UID            uint8
	GID            uint8
	Login          string
	FailedAttempts int
}

// IsRoot reports whether the session is root.
func (s *Session) IsRoot() bool { return s.UID == identity.RootUID }

// FileSystem is the top-level aggregator a shell drives.
type FileSystem struct {
	Device    *blockdevice.Device
	Volume    *volume.Volume
	Allocator *fat.Allocator
	Directory *directory.Directory
	Files     *file.Files
	Identity  *identity.Store

	Logger *log.Logger
}

// Mount loads an existing, already-formatted volume from dev.
func Mount(dev *blockdevice.Device, logger *log.Logger) (*FileSystem, error) {
	vol, err := volume.ReadSuperblock(dev)
	if err != nil {
		return nil, err
	}
	alloc, err := fat.NewAllocator(dev)
	if err != nil {
		return nil, err
	}
	dir := directory.New(dev)
	files := file.New(dev, dir, alloc, nil)
	store := identity.New(files, vol, nil)

	return &FileSystem{
		Device:    dev,
		Volume:    vol,
		Allocator: alloc,
		Directory: dir,
		Files:     files,
		Identity:  store,
		Logger:    logger,
	}, nil
}

// Format writes a fresh volume to dev and bootstraps the reserved
// users/groups files.
func Format(dev *blockdevice.Device, opts config.VolumeOptions, logger *log.Logger) (*FileSystem, error) {
	vol, err := volume.Format(dev, opts)
	if err != nil {
		return nil, err
	}
	alloc, err := fat.NewAllocator(dev)
	if err != nil {
		return nil, err
	}
	dir := directory.New(dev)
	files := file.New(dev, dir, alloc, nil)

	store, err := identity.Bootstrap(files, vol, nil)
	if err != nil {
		return nil, err
	}

	return &FileSystem{
		Device:    dev,
		Volume:    vol,
		Allocator: alloc,
		Directory: dir,
		Files:     files,
		Identity:  store,
		Logger:    logger,
	}, nil
}

func (fs *FileSystem) logf(format string, args ...any) {
	if fs.Logger != nil {
		fs.Logger.Printf(format, args...)
	}
}

// IsFirstRun reports whether no root password has ever been set. While it
// returns true, Ls, Touch, Cat, Echo, Rm, Chmod, Chown, Df, Passwd, Useradd
// and Users refuse with ErrAuthenticationFailed; Whoami, Login and Sudo do
// not check it.
func (fs *FileSystem) IsFirstRun() (bool, error) {
	return fs.Identity.IsFirstRun()
}

func (fs *FileSystem) requireNotFirstRun() error {
	first, err := fs.IsFirstRun()
	if err != nil {
		return err
	}
	if first {
		return diskoerr.ErrAuthenticationFailed.WithMessage(
			"root password must be set before any command runs")
	}
	return nil
}

// Ls returns the filtered (non-reserved) directory listing.
func (fs *FileSystem) Ls() ([]*directory.Record, error) {
	if err := fs.requireNotFirstRun(); err != nil {
		return nil, err
	}
	return fs.Files.List()
}

// Touch creates an empty file owned by the session's identity.
func (fs *FileSystem) Touch(sess *Session, name string) (*directory.Record, error) {
	if err := fs.requireNotFirstRun(); err != nil {
		return nil, err
	}
	return fs.Files.Create(name, sess.UID, sess.GID, 0)
}

// Cat reads a file's contents after checking read permission.
func (fs *FileSystem) Cat(sess *Session, name string) ([]byte, error) {
	if err := fs.requireNotFirstRun(); err != nil {
		return nil, err
	}
	rec, err := fs.Files.Stat(name)
	if err != nil {
		return nil, err
	}
	allowed, err := permissions.Check(rec, sess.UID, sess.GID, permissions.Read)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, diskoerr.ErrPermissionDenied
	}
	return fs.Files.Read(name)
}

// Echo writes text to name, checking write permission if the file already
// exists and creating it (owned by the session) if it doesn't.
func (fs *FileSystem) Echo(sess *Session, text, name string, appendMode bool) error {
	if err := fs.requireNotFirstRun(); err != nil {
		return err
	}

	rec, err := fs.Files.Stat(name)
	if err != nil && err != diskoerr.ErrNotFound {
		return err
	}
	if rec != nil {
		allowed, permErr := permissions.Check(rec, sess.UID, sess.GID, permissions.Write)
		if permErr != nil {
			return permErr
		}
		if !allowed {
			return diskoerr.ErrPermissionDenied
		}
	}

	mode := file.Replace
	if appendMode {
		mode = file.Append
	}
	if rec == nil {
		if _, err := fs.Files.Create(name, sess.UID, sess.GID, 0); err != nil {
			return err
		}
	}
	return fs.Files.Write(name, []byte(text), mode)
}

// Rm deletes name after checking ownership (owner or root) and write
// permission.
func (fs *FileSystem) Rm(sess *Session, name string) error {
	if err := fs.requireNotFirstRun(); err != nil {
		return err
	}
	rec, err := fs.Files.Stat(name)
	if err != nil {
		return err
	}
	if rec.OwnerUID != sess.UID && !sess.IsRoot() {
		return diskoerr.ErrPermissionDenied
	}
	allowed, err := permissions.Check(rec, sess.UID, sess.GID, permissions.Delete)
	if err != nil {
		return err
	}
	if !allowed {
		return diskoerr.ErrPermissionDenied
	}
	return fs.Files.Delete(name)
}

// Chmod overwrites a file's permission bits after checking ownership.
func (fs *FileSystem) Chmod(sess *Session, modeStr, name string) error {
	if err := fs.requireNotFirstRun(); err != nil {
		return err
	}
	rec, err := fs.Files.Stat(name)
	if err != nil {
		return err
	}
	if rec.OwnerUID != sess.UID && !sess.IsRoot() {
		return diskoerr.ErrPermissionDenied
	}
	mode, err := strconv.ParseUint(modeStr, 8, 16)
	if err != nil {
		return diskoerr.ErrBadMode.WrapError(err)
	}
	return fs.Files.Chmod(name, uint16(mode))
}

// Chown changes a file's owner and/or group. Only root or a sudo-elevated
// session may do this.
func (fs *FileSystem) Chown(sess *Session, spec, name string) error {
	if err := fs.requireNotFirstRun(); err != nil {
		return err
	}
	if !sess.IsRoot() {
		return diskoerr.ErrPermissionDenied
	}

	uid, gid, err := fs.resolveChownSpec(spec)
	if err != nil {
		return err
	}
	return fs.Files.Chown(name, uid, gid)
}

func (fs *FileSystem) resolveChownSpec(spec string) (uid, gid uint8, err error) {
	userPart, groupPart := spec, ""
	for i, c := range spec {
		if c == ':' {
			userPart, groupPart = spec[:i], spec[i+1:]
			break
		}
	}
	if userPart == "" {
		return 0, 0, diskoerr.ErrInvalidArgument.WithMessage("empty chown spec")
	}

	u, uerr := fs.resolveUser(userPart)
	if uerr != nil {
		return 0, 0, uerr
	}
	uid = u.UID
	gid = u.GID

	if groupPart != "" {
		g, gerr := fs.resolveGroup(groupPart)
		if gerr != nil {
			return 0, 0, gerr
		}
		gid = g.GID
	}
	return uid, gid, nil
}

func (fs *FileSystem) resolveUser(spec string) (*identity.User, error) {
	if n, err := strconv.ParseUint(spec, 10, 8); err == nil {
		return fs.Identity.FindUserByUID(uint8(n))
	}
	return fs.Identity.FindUserByLogin(spec)
}

func (fs *FileSystem) resolveGroup(spec string) (*identity.Group, error) {
	if n, err := strconv.ParseUint(spec, 10, 8); err == nil {
		return fs.Identity.FindGroupByGID(uint8(n))
	}
	return fs.Identity.FindGroupByName(spec)
}

// Usage is df's report: usage counts plus the volume name and the
// percentage of data clusters used.
type Usage struct {
	VolumeName   string
	fat.Usage
	PercentUsed float64
}

// Df walks the FAT counting free/used entries.
func (fs *FileSystem) Df() (Usage, error) {
	if err := fs.requireNotFirstRun(); err != nil {
		return Usage{}, err
	}
	u := fs.Allocator.Usage()
	percent := 0.0
	if u.TotalClusters > 0 {
		percent = 100 * float64(u.UsedClusters) / float64(u.TotalClusters)
	}
	return Usage{VolumeName: fs.Volume.Superblock.VolumeName, Usage: u, PercentUsed: percent}, nil
}

// Whoami returns the session's login.
func (fs *FileSystem) Whoami(sess *Session) string {
	return sess.Login
}

// Passwd updates the session's own password.
func (fs *FileSystem) Passwd(sess *Session, newPassword string) error {
	if err := fs.requireNotFirstRun(); err != nil {
		return err
	}
	return fs.Identity.SetPassword(sess.Login, newPassword)
}

// Useradd creates a new regular user, placing it in the default regular-user
// group. Requires root.
func (fs *FileSystem) Useradd(sess *Session, login, password string) (*identity.User, error) {
	if err := fs.requireNotFirstRun(); err != nil {
		return nil, err
	}
	if !sess.IsRoot() {
		return nil, diskoerr.ErrPermissionDenied
	}
	return fs.Identity.AddUser(login, password, nil, identity.DefaultUserGID)
}

// Users returns every regular (non-root) user.
func (fs *FileSystem) Users() ([]*identity.User, error) {
	if err := fs.requireNotFirstRun(); err != nil {
		return nil, err
	}
	return fs.Identity.RegularUsers()
}

// Login authenticates login/password into a fresh Session. After maxAttempts
// consecutive failures for the same attempt counter, AUTH_FAILED escalates
// to AUTH_LOCKED.
func (fs *FileSystem) Login(login, password string, maxAttempts int, attemptsSoFar int) (*Session, int, error) {
	ok, err := fs.Identity.VerifyPassword(login, password)
	if err != nil {
		return nil, attemptsSoFar, err
	}
	if !ok {
		attemptsSoFar++
		if attemptsSoFar >= maxAttempts {
			return nil, attemptsSoFar, diskoerr.ErrAccountLocked
		}
		return nil, attemptsSoFar, diskoerr.ErrAuthenticationFailed
	}

	u, err := fs.Identity.FindUserByLogin(login)
	if err != nil {
		return nil, attemptsSoFar, err
	}
	fs.logf("login succeeded for %s", login)
	return &Session{UID: u.UID, GID: u.GID, Login: u.Login}, 0, nil
}

// Sudo verifies the root password and returns a new root Session. It does
// not limit how long the caller uses that session.
func (fs *FileSystem) Sudo(sess *Session, rootPassword string) (*Session, error) {
	ok, err := fs.Identity.VerifyPassword("root", rootPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, diskoerr.ErrAuthenticationFailed
	}
	return &Session{UID: identity.RootUID, GID: identity.RootGID, Login: "root"}, nil
}
