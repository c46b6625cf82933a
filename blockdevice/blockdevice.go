// Package blockdevice exposes a host-backed disk image as a flat array of
// fixed-size clusters. It knows nothing about volume layout, FAT, or
// directories; it only does cluster-addressed I/O against a single backing
// file.
package blockdevice

import (
	"fmt"
	"io"
	"os"

	"github.com/dargueta-edu/osemu/config"
	diskoerr "github.com/dargueta-edu/osemu/errors"
)

// ClusterID addresses a single fixed-size cluster on the device.
type ClusterID uint32

// Device is a host file (or any io.ReadWriteSeeker) addressed in
// config.ClusterSize-byte clusters.
type Device struct {
	stream       io.ReadWriteSeeker
	totalBytes   int64
	totalCluster uint32
}

// Open opens the backing file at path. If it is absent, it is created and
// zero-filled to sizeBytes, rounded down to a whole number of clusters. An
// existing file is opened as is: its length is not checked or changed, and
// the Device reports sizeBytes/ClusterSize clusters either way. This is the
// only place in the system that decides whether the image is "fresh".
func Open(path string, sizeBytes int64) (*Device, bool, error) {
	totalClusters := uint32(sizeBytes / config.ClusterSize)
	truncatedSize := int64(totalClusters) * config.ClusterSize

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, diskoerr.ErrIOFailed.WrapError(err)
	}

	if isNew {
		if err := f.Truncate(truncatedSize); err != nil {
			f.Close()
			return nil, false, diskoerr.ErrIOFailed.WrapError(err)
		}
		zero := make([]byte, config.ClusterSize)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, false, diskoerr.ErrIOFailed.WrapError(err)
		}
		for c := uint32(0); c < totalClusters; c++ {
			if _, err := f.Write(zero); err != nil {
				f.Close()
				return nil, false, diskoerr.ErrIOFailed.WrapError(err)
			}
		}
	}

	return &Device{
		stream:       f,
		totalBytes:   truncatedSize,
		totalCluster: totalClusters,
	}, isNew, nil
}

// NewInMemory wraps an already-open stream (typically an in-memory
// bytesextra.ReadWriteSeeker in tests) as a Device without touching the
// filesystem.
func NewInMemory(stream io.ReadWriteSeeker, sizeBytes int64) *Device {
	totalClusters := uint32(sizeBytes / config.ClusterSize)
	return &Device{
		stream:       stream,
		totalBytes:   int64(totalClusters) * config.ClusterSize,
		totalCluster: totalClusters,
	}
}

// Close closes the underlying stream if it implements io.Closer.
func (d *Device) Close() error {
	if c, ok := d.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// TotalClusters returns the number of whole clusters available on the device.
func (d *Device) TotalClusters() uint32 { return d.totalCluster }

func (d *Device) checkBounds(cluster ClusterID, off, length int) error {
	if uint32(cluster) >= d.totalCluster {
		return diskoerr.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("cluster %d out of range [0, %d)", cluster, d.totalCluster))
	}
	if off < 0 || length < 0 || off+length > config.ClusterSize {
		return diskoerr.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("offset %d length %d exceeds cluster size %d", off, length, config.ClusterSize))
	}
	return nil
}

func (d *Device) byteOffset(cluster ClusterID, off int) int64 {
	return int64(cluster)*config.ClusterSize + int64(off)
}

// ReadCluster reads the entirety of a cluster's bytes.
func (d *Device) ReadCluster(cluster ClusterID) ([]byte, error) {
	buf := make([]byte, config.ClusterSize)
	if err := d.Read(cluster, 0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteCluster overwrites the entirety of a cluster's bytes. data must be
// exactly config.ClusterSize bytes long.
func (d *Device) WriteCluster(cluster ClusterID, data []byte) error {
	if len(data) != config.ClusterSize {
		return diskoerr.ErrInvalidArgument.WithMessage("WriteCluster requires a full cluster buffer")
	}
	return d.Write(cluster, 0, data)
}

// Read fills buf with len(buf) bytes from cluster starting at byte offset
// off. The read range must not cross into the next cluster.
func (d *Device) Read(cluster ClusterID, off int, buf []byte) error {
	if err := d.checkBounds(cluster, off, len(buf)); err != nil {
		return err
	}
	if _, err := d.stream.Seek(d.byteOffset(cluster, off), io.SeekStart); err != nil {
		return diskoerr.ErrIOFailed.WrapError(err)
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return diskoerr.ErrIOFailed.WrapError(err)
	}
	return nil
}

// Write copies data into cluster starting at byte offset off. The write
// range must not cross into the next cluster.
func (d *Device) Write(cluster ClusterID, off int, data []byte) error {
	if err := d.checkBounds(cluster, off, len(data)); err != nil {
		return err
	}
	if _, err := d.stream.Seek(d.byteOffset(cluster, off), io.SeekStart); err != nil {
		return diskoerr.ErrIOFailed.WrapError(err)
	}
	if _, err := d.stream.Write(data); err != nil {
		return diskoerr.ErrIOFailed.WrapError(err)
	}
	return nil
}
