// Package fat implements the cluster allocation table: its 4-byte entry
// format and the allocate/chain/free operations over it.
package fat

import (
	"github.com/boljen/go-bitmap"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	diskoerr "github.com/dargueta-edu/osemu/errors"
)

// ClusterID addresses a cluster anywhere on the volume (superblock, FAT,
// root directory, or data region).
type ClusterID = blockdevice.ClusterID

const entrySize = 4

// Allocator interprets the FAT region of the device and allocates/frees
// cluster chains. It keeps an in-memory free-cluster bitmap (via
// github.com/boljen/go-bitmap) as a read cache over the on-disk FAT so
// repeated AllocateFree calls don't rescan the whole table; the FAT on disk
// remains the single source of truth and the bitmap is rebuilt from it on
// every mount.
type Allocator struct {
	dev           *blockdevice.Device
	totalClusters uint32
	freeBitmap    bitmap.Bitmap // bit set => cluster believed free
}

// entryOffset returns which FAT cluster holds entry c, and the byte offset
// within that cluster. Since entrySize (4) evenly divides config.ClusterSize,
// no entry ever straddles a cluster boundary.
func entryOffset(c ClusterID) (fatCluster ClusterID, byteOffset int) {
	absolute := uint32(c) * entrySize
	fatCluster = ClusterID(config.FATStartCluster + absolute/config.ClusterSize)
	byteOffset = int(absolute % config.ClusterSize)
	return
}

func (a *Allocator) readEntry(c ClusterID) (uint32, error) {
	fatCluster, off := entryOffset(c)
	buf := make([]byte, entrySize)
	if err := a.dev.Read(fatCluster, off, buf); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

func (a *Allocator) writeEntry(c ClusterID, value uint32) error {
	fatCluster, off := entryOffset(c)
	buf := []byte{
		byte(value >> 24),
		byte(value >> 16),
		byte(value >> 8),
		byte(value),
	}
	if err := a.dev.Write(fatCluster, off, buf); err != nil {
		return err
	}
	a.freeBitmap.Set(int(c), value == config.FATFree)
	return nil
}

// NewAllocator loads the entire FAT from dev and builds the free-cluster
// bitmap cache.
func NewAllocator(dev *blockdevice.Device) (*Allocator, error) {
	total := dev.TotalClusters()
	a := &Allocator{
		dev:           dev,
		totalClusters: total,
		freeBitmap:    bitmap.New(int(total)),
	}

	for c := uint32(0); c < total; c++ {
		entry, err := a.readEntry(ClusterID(c))
		if err != nil {
			return nil, err
		}
		a.freeBitmap.Set(int(c), entry == config.FATFree)
	}
	return a, nil
}

// IsFree reports whether the FAT entry for c is zero.
func (a *Allocator) IsFree(c ClusterID) bool {
	return a.freeBitmap.Get(int(c))
}

// Next returns the raw FAT entry for cluster c: 0 (free), config.FATEndOfChain
// (end of chain), or the next cluster in the chain.
func (a *Allocator) Next(c ClusterID) (uint32, error) {
	return a.readEntry(c)
}

// AllocateFree finds the first free cluster at or after config.DataStartCluster,
// marks it used with an end-of-chain marker, and returns it. It sweeps the
// entire data region, not just a bounded prefix.
func (a *Allocator) AllocateFree() (ClusterID, error) {
	for c := uint32(config.DataStartCluster); c < a.totalClusters; c++ {
		if a.freeBitmap.Get(int(c)) {
			if err := a.writeEntry(ClusterID(c), config.FATEndOfChain); err != nil {
				return 0, err
			}
			return ClusterID(c), nil
		}
	}
	return 0, diskoerr.ErrNoSpaceOnDevice
}

// Extend links prev to next in the chain: FAT[prev] = next.
func (a *Allocator) Extend(prev, next ClusterID) error {
	return a.writeEntry(prev, uint32(next))
}

// Terminate marks c as the end of a chain: FAT[c] = config.FATEndOfChain.
func (a *Allocator) Terminate(c ClusterID) error {
	return a.writeEntry(c, config.FATEndOfChain)
}

// Chain walks the cluster chain starting at first, returning every cluster
// in order. It stops at config.FATEndOfChain and also bails out (returning
// ErrFileSystemCorrupted) if it detects a cycle or walks more than
// totalClusters steps.
func (a *Allocator) Chain(first ClusterID) ([]ClusterID, error) {
	if first == 0 {
		return nil, nil
	}

	var chain []ClusterID
	seen := make(map[ClusterID]bool)
	current := first

	for {
		if seen[current] {
			return nil, diskoerr.ErrFileSystemCorrupted.WithMessage("cluster chain cycle detected")
		}
		seen[current] = true
		chain = append(chain, current)

		if len(chain) > int(a.totalClusters) {
			return nil, diskoerr.ErrFileSystemCorrupted.WithMessage("cluster chain longer than volume")
		}

		next, err := a.readEntry(current)
		if err != nil {
			return nil, err
		}
		if next == config.FATEndOfChain {
			return chain, nil
		}
		if next == config.FATFree {
			return nil, diskoerr.ErrFileSystemCorrupted.WithMessage("cluster chain references a free cluster")
		}
		current = ClusterID(next)
	}
}

// FreeChain walks the chain starting at first and zeroes every FAT entry in
// it. Stops at end-of-chain or on cycle detection (in which case it still
// frees every cluster it visited before the cycle was detected).
func (a *Allocator) FreeChain(first ClusterID) error {
	if first == 0 {
		return nil
	}

	seen := make(map[ClusterID]bool)
	current := first

	for {
		if seen[current] {
			return nil
		}
		seen[current] = true

		next, err := a.readEntry(current)
		if err != nil {
			return err
		}
		if err := a.writeEntry(current, config.FATFree); err != nil {
			return err
		}
		if next == config.FATEndOfChain || next == config.FATFree {
			return nil
		}
		current = ClusterID(next)
	}
}

// Usage reports cluster accounting for the `df` shell command.
type Usage struct {
	TotalClusters uint32
	FreeClusters  uint32
	UsedClusters  uint32
}

// Usage walks the in-memory bitmap to report free/used cluster counts over
// the data region only; the superblock, FAT, and root directory clusters are
// reserved and never participate in file allocation.
func (a *Allocator) Usage() Usage {
	u := Usage{TotalClusters: a.totalClusters - config.DataStartCluster}
	for c := uint32(config.DataStartCluster); c < a.totalClusters; c++ {
		if a.freeBitmap.Get(int(c)) {
			u.FreeClusters++
		}
	}
	u.UsedClusters = u.TotalClusters - u.FreeClusters
	return u
}
