// Package file implements whole-file operations against the directory and
// FAT: create, read, write, rename, chmod, chown, and delete.
package file

import (
	"time"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/directory"
	diskoerr "github.com/dargueta-edu/osemu/errors"
	"github.com/dargueta-edu/osemu/fat"
)

// WriteMode selects how Write combines new data with any existing content.
type WriteMode int

const (
	// Replace overwrites the file's entire contents with the new data.
	Replace WriteMode = iota
	// Append prepends the file's existing contents to the new data.
	Append
	// OverwriteCreate creates the file first if it doesn't exist, then
	// behaves like Replace.
	OverwriteCreate
)

// ReservedNames are always present, owned by root, and hidden from
// user-facing listings.
var ReservedNames = map[string]bool{
	"users":  true,
	"groups": true,
}

// Clock returns the current time used to stamp file records. Overridable for
// deterministic tests.
type Clock func() time.Time

// Files wires the directory and FAT allocator together into whole-file
// create/read/write/rename/delete operations.
type Files struct {
	Dev   *blockdevice.Device
	Dir   *directory.Directory
	Alloc *fat.Allocator
	Clock Clock
}

// New constructs a Files. clock defaults to time.Now if nil.
func New(dev *blockdevice.Device, dir *directory.Directory, alloc *fat.Allocator, clock Clock) *Files {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Files{Dev: dev, Dir: dir, Alloc: alloc, Clock: clock}
}

func validateName(name string) error {
	if len(name) == 0 {
		return diskoerr.ErrInvalidArgument.WithMessage("file name must not be empty")
	}
	if len(name) > config.MaxFileNameLength {
		return diskoerr.ErrNameTooLong
	}
	return nil
}

// Create makes a new, empty file owned by (uid, gid) with the given
// attribute bits. Fails NAME_TOO_LONG, ALREADY_EXISTS, or DIR_FULL.
func (f *Files) Create(name string, uid, gid uint8, attrs uint8) (*directory.Record, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, _, found, err := f.Dir.Find(name); err != nil {
		return nil, err
	} else if found {
		return nil, diskoerr.ErrExists
	}

	now := f.Clock()
	rec := &directory.Record{
		Name:         name,
		Attributes:   attrs,
		CreatedHour:  now.Hour(),
		CreatedMin:   now.Minute(),
		CreatedSec:   now.Second(),
		ModifyTime:   now,
		OwnerUID:     uid,
		OwnerGID:     gid,
		Perms:        config.DefaultFilePerms,
		Size:         0,
		FirstCluster: 0,
	}
	if _, err := f.Dir.Insert(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Read returns the first record.Size bytes of the file's data, following its
// FAT chain. An empty or unallocated file returns an empty slice.
func (f *Files) Read(name string) ([]byte, error) {
	_, rec, found, err := f.Dir.Find(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, diskoerr.ErrNotFound
	}
	return f.readRecord(rec)
}

func (f *Files) readRecord(rec *directory.Record) ([]byte, error) {
	if rec.Size == 0 || rec.FirstCluster == 0 {
		return []byte{}, nil
	}

	chain, err := f.Alloc.Chain(fat.ClusterID(rec.FirstCluster))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, rec.Size)
	remaining := int(rec.Size)
	for _, cluster := range chain {
		if remaining <= 0 {
			break
		}
		take := remaining
		if take > config.ClusterSize {
			take = config.ClusterSize
		}
		buf, err := f.Dev.ReadCluster(cluster)
		if err != nil {
			return nil, err
		}
		out = append(out, buf[:take]...)
		remaining -= take
	}
	return out, nil
}

// writeChain allocates a fresh cluster chain sized for data and writes it,
// returning the first cluster. On any allocation or I/O failure, every
// cluster allocated so far is freed before the error is returned, so a
// failed write never leaks clusters.
func (f *Files) writeChain(data []byte) (fat.ClusterID, error) {
	if len(data) == 0 {
		return 0, nil
	}

	var allocated []fat.ClusterID
	freeAllocated := func() {
		for _, c := range allocated {
			_ = f.Alloc.FreeChain(c)
		}
	}

	numChunks := (len(data) + config.ClusterSize - 1) / config.ClusterSize
	var first fat.ClusterID
	var prev fat.ClusterID

	for i := 0; i < numChunks; i++ {
		cluster, err := f.Alloc.AllocateFree()
		if err != nil {
			freeAllocated()
			return 0, err
		}
		allocated = append(allocated, cluster)

		start := i * config.ClusterSize
		end := start + config.ClusterSize
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, config.ClusterSize)
		copy(chunk, data[start:end])
		if err := f.Dev.WriteCluster(cluster, chunk); err != nil {
			freeAllocated()
			return 0, err
		}

		if i == 0 {
			first = cluster
		} else {
			if err := f.Alloc.Extend(prev, cluster); err != nil {
				freeAllocated()
				return 0, err
			}
		}
		prev = cluster
	}

	if err := f.Alloc.Terminate(prev); err != nil {
		freeAllocated()
		return 0, err
	}
	return first, nil
}

// Write combines data with the file's existing contents according to mode
// and rewrites the file. It always writes the data to a freshly allocated
// chain and only then frees the old chain, rather than trying to reuse
// clusters in place, so a file never ends up with more clusters allocated
// than its size requires.
func (f *Files) Write(name string, data []byte, mode WriteMode) error {
	slot, rec, found, err := f.Dir.Find(name)
	if err != nil {
		return err
	}

	if !found {
		if mode != OverwriteCreate {
			return diskoerr.ErrNotFound
		}
		if _, err := f.Create(name, 0, 0, 0); err != nil {
			return err
		}
		var createErr error
		slot, rec, found, createErr = f.Dir.Find(name)
		if createErr != nil {
			return createErr
		}
		if !found {
			return diskoerr.ErrNotFound
		}
	}

	combined := data
	if mode == Append && rec.Size > 0 {
		old, err := f.readRecord(rec)
		if err != nil {
			return err
		}
		combined = append(old, data...)
	}

	oldFirst := fat.ClusterID(rec.FirstCluster)

	newFirst, err := f.writeChain(combined)
	if err != nil {
		return err
	}

	if oldFirst != 0 {
		if err := f.Alloc.FreeChain(oldFirst); err != nil {
			return err
		}
	}

	rec.Size = uint32(len(combined))
	rec.FirstCluster = uint32(newFirst)
	return f.Dir.Update(slot, rec, f.Clock())
}

// Delete tombstones the directory slot and frees the file's cluster chain.
func (f *Files) Delete(name string) error {
	slot, rec, found, err := f.Dir.Find(name)
	if err != nil {
		return err
	}
	if !found {
		return diskoerr.ErrNotFound
	}
	if rec.FirstCluster != 0 {
		if err := f.Alloc.FreeChain(fat.ClusterID(rec.FirstCluster)); err != nil {
			return err
		}
	}
	return f.Dir.Remove(slot)
}

// Rename changes a file's name in place. Fails NAME_TOO_LONG, NOT_FOUND, or
// ALREADY_EXISTS.
func (f *Files) Rename(oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	slot, _, found, err := f.Dir.Find(oldName)
	if err != nil {
		return err
	}
	if !found {
		return diskoerr.ErrNotFound
	}
	if _, _, exists, err := f.Dir.Find(newName); err != nil {
		return err
	} else if exists {
		return diskoerr.ErrExists
	}
	return f.Dir.Rename(slot, newName)
}

// Chmod overwrites the permissions field. mode must be in [0, 0o777].
func (f *Files) Chmod(name string, mode uint16) error {
	if mode > 0o777 {
		return diskoerr.ErrBadMode
	}
	slot, rec, found, err := f.Dir.Find(name)
	if err != nil {
		return err
	}
	if !found {
		return diskoerr.ErrNotFound
	}
	rec.Perms = mode
	return f.Dir.Update(slot, rec, f.Clock())
}

// Chown updates the owner UID and GID. Authorization is the caller's
// responsibility.
func (f *Files) Chown(name string, uid, gid uint8) error {
	slot, rec, found, err := f.Dir.Find(name)
	if err != nil {
		return err
	}
	if !found {
		return diskoerr.ErrNotFound
	}
	rec.OwnerUID = uid
	rec.OwnerGID = gid
	return f.Dir.Update(slot, rec, f.Clock())
}

// List returns every live, non-reserved directory record.
func (f *Files) List() ([]*directory.Record, error) {
	all, err := f.Dir.List()
	if err != nil {
		return nil, err
	}
	out := make([]*directory.Record, 0, len(all))
	for _, rec := range all {
		if ReservedNames[rec.Name] {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stat returns the record for name without filtering reserved names, so
// callers like the identity store can look up "users"/"groups" directly.
func (f *Files) Stat(name string) (*directory.Record, error) {
	_, rec, found, err := f.Dir.Find(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, diskoerr.ErrNotFound
	}
	return rec, nil
}
