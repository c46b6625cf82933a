// Package testing provides in-memory disk images for unit tests across the
// module: an io.ReadWriteSeeker backed by a plain byte slice via
// github.com/xaionaro-go/bytesextra instead of touching the real filesystem.
package testing

import (
	"io"
	"time"

	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/directory"
	"github.com/dargueta-edu/osemu/fat"
	"github.com/dargueta-edu/osemu/file"
	"github.com/dargueta-edu/osemu/identity"
	"github.com/dargueta-edu/osemu/volume"
)

// NewBlankImage returns an io.ReadWriteSeeker of exactly sizeBytes zero
// bytes, rounded up to a whole number of clusters.
func NewBlankImage(sizeBytes int64) io.ReadWriteSeeker {
	clusters := (sizeBytes + config.ClusterSize - 1) / config.ClusterSize
	buf := make([]byte, clusters*config.ClusterSize)
	return bytesextra.NewReadWriteSeeker(buf)
}

// Mounted bundles every layer a test typically needs against one freshly
// formatted, bootstrapped volume.
type Mounted struct {
	Device    *blockdevice.Device
	Volume    *volume.Volume
	Allocator *fat.Allocator
	Directory *directory.Directory
	Files     *file.Files
	Identity  *identity.Store
}

// NewMounted formats a blank image of sizeBytes, bootstraps the reserved
// users/groups files, and wires every layer together, ready for a test to
// drive through file.Files or identity.Store directly. clock is optional;
// nil uses wall-clock time.
func NewMounted(sizeBytes int64, clock func() time.Time) (*Mounted, error) {
	stream := NewBlankImage(sizeBytes)
	dev := blockdevice.NewInMemory(stream, sizeBytes)

	vol, err := volume.Format(dev, config.NewVolumeOptions(config.WithDiskSize(sizeBytes)))
	if err != nil {
		return nil, err
	}

	alloc, err := fat.NewAllocator(dev)
	if err != nil {
		return nil, err
	}
	dir := directory.New(dev)
	files := file.New(dev, dir, alloc, file.Clock(clock))

	store, err := identity.Bootstrap(files, vol, clock)
	if err != nil {
		return nil, err
	}

	return &Mounted{
		Device:    dev,
		Volume:    vol,
		Allocator: alloc,
		Directory: dir,
		Files:     files,
		Identity:  store,
	}, nil
}
