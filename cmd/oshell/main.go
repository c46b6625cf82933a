package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/fsys"
)

func main() {
	app := &cli.App{
		Name:  "oshell",
		Usage: "single-file block-backed filesystem and MLFQ scheduler emulator",
		Commands: []*cli.Command{
			formatCommand(),
			shellCommand(),
			schedCommand(),
			diskpresetsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err)
	}
}

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "create or wipe a disk image",
		ArgsUsage: "IMAGE_PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "preset", Usage: "named disk-size preset (see diskpresets)"},
			&cli.Int64Flag{Name: "size", Usage: "disk size in bytes", Value: config.DefaultDiskSizeBytes},
			&cli.StringFlag{Name: "label", Usage: "volume label", Value: "OSEMUVOL"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one IMAGE_PATH argument", 1)
			}
			sizeBytes := c.Int64("size")
			if preset := c.String("preset"); preset != "" {
				p, err := getDiskPreset(preset)
				if err != nil {
					return err
				}
				sizeBytes = p.SizeBytes
			}

			dev, _, err := blockdevice.Open(c.Args().Get(0), sizeBytes)
			if err != nil {
				return err
			}
			defer dev.Close()

			opts := config.NewVolumeOptions(
				config.WithDiskSize(sizeBytes),
				config.WithVolumeName(c.String("label")),
			)
			if _, err := fsys.Format(dev, opts, log.Default()); err != nil {
				return err
			}
			log.Printf("formatted %s (%d bytes)", c.Args().Get(0), sizeBytes)
			return nil
		},
	}
}

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:      "shell",
		Usage:     "open an interactive shell against a formatted image",
		ArgsUsage: "IMAGE_PATH",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one IMAGE_PATH argument", 1)
			}
			dev, isNew, err := blockdevice.Open(c.Args().Get(0), config.DefaultDiskSizeBytes)
			if err != nil {
				return err
			}
			defer dev.Close()

			var fs *fsys.FileSystem
			if isNew {
				opts := config.NewVolumeOptions()
				fs, err = fsys.Format(dev, opts, log.Default())
			} else {
				fs, err = fsys.Mount(dev, log.Default())
			}
			if err != nil {
				return err
			}

			return runShell(fs, os.Stdin, os.Stdout)
		},
	}
}

func schedCommand() *cli.Command {
	return &cli.Command{
		Name:  "sched",
		Usage: "drive the MLFQ scheduler simulation",
		Subcommands: []*cli.Command{
			{
				Name:  "demo",
				Usage: "seed the standard demo processes and run the simulation",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 40, Usage: "number of simulation steps"},
				},
				Action: func(c *cli.Context) error {
					runSchedDemo(c.Int("steps"), os.Stdout)
					return nil
				},
			},
		},
	}
}

func diskpresetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "diskpresets",
		Usage: "list named disk-size presets usable with format --preset",
		Action: func(c *cli.Context) error {
			for _, p := range listDiskPresets() {
				log.Printf("%-14s %-20s %12d bytes  %s", p.Slug, p.Name, p.SizeBytes, p.Description)
			}
			return nil
		},
	}
}
