// Package volume implements the superblock and overall region layout of the
// disk image, including the formatting operation that lays out a blank
// image.
package volume

import (
	"encoding/binary"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/codec"
	"github.com/dargueta-edu/osemu/config"
	diskoerr "github.com/dargueta-edu/osemu/errors"
)

// Superblock is the in-memory form of cluster 0's contents.
type Superblock struct {
	VolumeName          string
	TotalSectors        uint32
	SectorSize          uint16
	SectorsPerCluster   uint8
	FATCount            uint8
	FATSizeClusters     uint16
	FreeClusterCount    uint32
	FirstFreeCluster    uint32
	RootDirFirstCluster uint32
	MaxUID              uint16
	MaxGID              uint16
}

const SuperblockSize = 36

// Encode serializes the superblock into exactly SuperblockSize bytes.
func (sb *Superblock) Encode() ([]byte, error) {
	buf := make([]byte, SuperblockSize)
	if err := codec.PutASCII(buf[0:10], sb.VolumeName); err != nil {
		return nil, err
	}

	w := bytewriter.New(buf[10:SuperblockSize])
	fields := []any{
		sb.TotalSectors,
		sb.SectorSize,
		sb.SectorsPerCluster,
		sb.FATCount,
		sb.FATSizeClusters,
		sb.FreeClusterCount,
		sb.FirstFreeCluster,
		sb.RootDirFirstCluster,
		sb.MaxUID,
		sb.MaxGID,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return nil, diskoerr.ErrIOFailed.WrapError(err)
		}
	}
	return buf, nil
}

// DecodeSuperblock parses SuperblockSize bytes read from cluster 0.
func DecodeSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < SuperblockSize {
		return nil, diskoerr.ErrInvalidArgument.WithMessage("superblock buffer too short")
	}
	sb := &Superblock{
		VolumeName:          codec.ASCII(buf[0:10]),
		TotalSectors:        codec.Uint32(buf[10:14]),
		SectorSize:          codec.Uint16(buf[14:16]),
		SectorsPerCluster:   buf[16],
		FATCount:            buf[17],
		FATSizeClusters:     codec.Uint16(buf[18:20]),
		FreeClusterCount:    codec.Uint32(buf[20:24]),
		FirstFreeCluster:    codec.Uint32(buf[24:28]),
		RootDirFirstCluster: codec.Uint32(buf[28:32]),
		MaxUID:              codec.Uint16(buf[32:34]),
		MaxGID:              codec.Uint16(buf[34:36]),
	}
	return sb, nil
}

// Volume wires a blockdevice.Device to the fixed region layout and caches
// the superblock in memory, writing it back to cluster 0 on every Flush.
type Volume struct {
	Device     *blockdevice.Device
	Superblock *Superblock
}

// TotalClusters returns the total number of clusters on the underlying
// device.
func (v *Volume) TotalClusters() uint32 { return v.Device.TotalClusters() }

// ReadSuperblock loads the superblock from cluster 0 of dev.
func ReadSuperblock(dev *blockdevice.Device) (*Volume, error) {
	raw, err := dev.ReadCluster(blockdevice.ClusterID(config.SuperblockCluster))
	if err != nil {
		return nil, err
	}
	sb, err := DecodeSuperblock(raw)
	if err != nil {
		return nil, err
	}
	return &Volume{Device: dev, Superblock: sb}, nil
}

// Flush writes the in-memory superblock back to cluster 0.
func (v *Volume) Flush() error {
	buf, err := v.Superblock.Encode()
	if err != nil {
		return err
	}
	full := make([]byte, config.ClusterSize)
	copy(full, buf)
	return v.Device.WriteCluster(blockdevice.ClusterID(config.SuperblockCluster), full)
}

// Format zeroes the entire image and writes a fresh superblock, empty FAT,
// and empty root directory region. It does not create the reserved
// `users`/`groups` files; that is the identity store's job, layered on top
// once the volume exists (the file package needs a working directory and
// FAT to create those files in the first place).
func Format(dev *blockdevice.Device, opts config.VolumeOptions) (*Volume, error) {
	totalClusters := dev.TotalClusters()
	if totalClusters <= config.DataStartCluster {
		return nil, diskoerr.ErrArgumentOutOfRange.WithMessage(
			"image too small: must hold the superblock, FAT, and root directory regions plus at least one data cluster")
	}

	zero := make([]byte, config.ClusterSize)
	for c := uint32(0); c < totalClusters; c++ {
		if err := dev.WriteCluster(blockdevice.ClusterID(c), zero); err != nil {
			return nil, err
		}
	}

	freeClusters := totalClusters - config.DataStartCluster

	sb := &Superblock{
		VolumeName:          opts.VolumeName,
		TotalSectors:        uint32(totalClusters) * config.SectorsPerCluster,
		SectorSize:          config.SectorSize,
		SectorsPerCluster:   config.SectorsPerCluster,
		FATCount:            config.FATCount,
		FATSizeClusters:     config.FATClusters,
		FreeClusterCount:    freeClusters,
		FirstFreeCluster:    config.DataStartCluster,
		RootDirFirstCluster: config.RootDirStartCluster,
		MaxUID:              0,
		MaxGID:              0,
	}

	v := &Volume{Device: dev, Superblock: sb}
	if err := v.Flush(); err != nil {
		return nil, err
	}
	return v, nil
}

// Now returns the current wall-clock time in UTC. Nothing in this module
// calls it; directory records are stamped through file.Files.Clock.
var Now = func() time.Time { return time.Now().UTC() }
