// Package directory implements the fixed-slot flat root directory: its
// record layout and the find/insert/remove/rename/update operations over
// it.
package directory

import (
	"encoding/binary"
	"time"

	"github.com/noxer/bytewriter"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/codec"
	"github.com/dargueta-edu/osemu/config"
	diskoerr "github.com/dargueta-edu/osemu/errors"
)

const (
	RecordSize = 61

	sentinelUnused    = 0x00
	sentinelTombstone = 0xE5

	// Attribute bits.
	AttrReadOnly = 1 << 0
	AttrHidden   = 1 << 1
	AttrSystem   = 1 << 2
)

// Record is the in-memory form of a 61-byte directory entry.
type Record struct {
	Name string

	Attributes uint8

	// CreatedHour/Min/Sec are the only creation-time fields the on-disk
	// layout carries; it reserves 3 bytes for creation time and none for a
	// creation date.
	CreatedHour, CreatedMin, CreatedSec int

	ModifyTime time.Time

	OwnerUID uint8
	OwnerGID uint8
	Perms    uint16
	Size     uint32

	FirstCluster uint32
}

// Slot identifies a record's location: which cluster, and the byte offset
// within it.
type Slot struct {
	Cluster blockdevice.ClusterID
	Offset  int
}

func slotForIndex(i int) Slot {
	return Slot{
		Cluster: blockdevice.ClusterID(config.RootDirStartCluster + i/config.DirentsPerCluster),
		Offset:  (i % config.DirentsPerCluster) * RecordSize,
	}
}

// Directory wraps cluster-addressed I/O over the fixed root directory
// region.
type Directory struct {
	dev *blockdevice.Device
}

// New wraps dev as a Directory. dev must already have the root directory
// region zeroed (by volume.Format) or populated with valid records.
func New(dev *blockdevice.Device) *Directory {
	return &Directory{dev: dev}
}

func (d *Directory) readSlotBuf(s Slot) ([]byte, error) {
	buf := make([]byte, RecordSize)
	if err := d.dev.Read(s.Cluster, s.Offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Directory) writeSlotBuf(s Slot, buf []byte) error {
	return d.dev.Write(s.Cluster, s.Offset, buf)
}

// encode serializes a Record into exactly RecordSize bytes.
func encode(r *Record) ([]byte, error) {
	buf := make([]byte, RecordSize)
	if err := codec.PutASCII(buf[0:40], r.Name); err != nil {
		return nil, err
	}
	buf[40] = r.Attributes

	created := codec.PackTime(r.CreatedHour, r.CreatedMin, r.CreatedSec)
	copy(buf[41:44], created[:])

	modDate, modTime := codec.PackTimestamp(r.ModifyTime)
	copy(buf[44:47], modTime[:])
	copy(buf[47:49], modDate[:])

	buf[49] = r.OwnerUID
	buf[50] = r.OwnerGID

	w := bytewriter.New(buf[51:61])
	for _, field := range []any{r.Perms, r.Size, r.FirstCluster} {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return nil, diskoerr.ErrIOFailed.WrapError(err)
		}
	}
	return buf, nil
}

// decode parses RecordSize bytes into a Record. The caller is responsible for
// checking the sentinel byte (buf[0]) before calling decode.
func decode(buf []byte) *Record {
	var created [3]byte
	copy(created[:], buf[41:44])
	hour, min, sec := codec.UnpackTime(created)

	var modTime [3]byte
	copy(modTime[:], buf[44:47])
	var modDate [2]byte
	copy(modDate[:], buf[47:49])

	return &Record{
		Name:         codec.ASCII(buf[0:40]),
		Attributes:   buf[40],
		CreatedHour:  hour,
		CreatedMin:   min,
		CreatedSec:   sec,
		ModifyTime:   codec.UnpackTimestamp(modDate, modTime),
		OwnerUID:     buf[49],
		OwnerGID:     buf[50],
		Perms:        codec.Uint16(buf[51:53]),
		Size:         codec.Uint32(buf[53:57]),
		FirstCluster: codec.Uint32(buf[57:61]),
	}
}

// Find scans for a live record named name, honoring the sentinel rule: byte
// 0x00 at the name's first byte means "no more allocated slots follow" and
// ends the scan; 0xE5 is a tombstone and is skipped.
func (d *Directory) Find(name string) (Slot, *Record, bool, error) {
	for i := 0; i < config.MaxRootDirEntries; i++ {
		slot := slotForIndex(i)
		buf, err := d.readSlotBuf(slot)
		if err != nil {
			return Slot{}, nil, false, err
		}
		if buf[0] == sentinelUnused {
			break
		}
		if buf[0] == sentinelTombstone {
			continue
		}
		rec := decode(buf)
		if rec.Name == name {
			return slot, rec, true, nil
		}
	}
	return Slot{}, nil, false, nil
}

// FindFreeSlot returns the first slot whose first byte is 0x00 (never used)
// or 0xE5 (tombstone).
func (d *Directory) FindFreeSlot() (Slot, bool, error) {
	for i := 0; i < config.MaxRootDirEntries; i++ {
		slot := slotForIndex(i)
		buf := make([]byte, 1)
		if err := d.dev.Read(slot.Cluster, slot.Offset, buf); err != nil {
			return Slot{}, false, err
		}
		if buf[0] == sentinelUnused || buf[0] == sentinelTombstone {
			return slot, true, nil
		}
	}
	return Slot{}, false, nil
}

// Insert writes rec into the first free slot. Fails with ErrDirectoryFull if
// there is none.
func (d *Directory) Insert(rec *Record) (Slot, error) {
	slot, ok, err := d.FindFreeSlot()
	if err != nil {
		return Slot{}, err
	}
	if !ok {
		return Slot{}, diskoerr.ErrDirectoryFull
	}

	buf, err := encode(rec)
	if err != nil {
		return Slot{}, err
	}
	if err := d.writeSlotBuf(slot, buf); err != nil {
		return Slot{}, err
	}
	return slot, nil
}

// Remove stamps the tombstone byte (0xE5) over the record's name, freeing
// the slot for reuse. It does not touch the FAT chain; callers are
// responsible for freeing it first.
func (d *Directory) Remove(slot Slot) error {
	return d.dev.Write(slot.Cluster, slot.Offset, []byte{sentinelTombstone})
}

// Rename overwrites the name field of the record at slot. It does not check
// whether newName already exists; callers must check for name collisions
// themselves (file.Files.Rename fails ALREADY_EXISTS in that case).
func (d *Directory) Rename(slot Slot, newName string) error {
	buf := make([]byte, 40)
	if err := codec.PutASCII(buf, newName); err != nil {
		return err
	}
	return d.dev.Write(slot.Cluster, slot.Offset, buf)
}

// Update rewrites the full record at slot and stamps the modify time/date to
// now.
func (d *Directory) Update(slot Slot, rec *Record, now time.Time) error {
	rec.ModifyTime = now
	buf, err := encode(rec)
	if err != nil {
		return err
	}
	return d.writeSlotBuf(slot, buf)
}

// ReadAt loads and decodes the record at slot, for callers that already know
// the slot (e.g. from a previous Find).
func (d *Directory) ReadAt(slot Slot) (*Record, error) {
	buf, err := d.readSlotBuf(slot)
	if err != nil {
		return nil, err
	}
	if buf[0] == sentinelUnused || buf[0] == sentinelTombstone {
		return nil, diskoerr.ErrNotFound
	}
	return decode(buf), nil
}

// List returns every live (non-tombstone) record in the directory, in slot
// order, including reserved files. Callers that need the user-facing view
// filter out "users"/"groups" themselves.
func (d *Directory) List() ([]*Record, error) {
	var out []*Record
	for i := 0; i < config.MaxRootDirEntries; i++ {
		slot := slotForIndex(i)
		buf, err := d.readSlotBuf(slot)
		if err != nil {
			return nil, err
		}
		if buf[0] == sentinelUnused {
			break
		}
		if buf[0] == sentinelTombstone {
			continue
		}
		out = append(out, decode(buf))
	}
	return out, nil
}
