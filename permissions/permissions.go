// Package permissions implements the attribute gate and UNIX rwx access
// check used to authorize file operations.
package permissions

import (
	"github.com/dargueta-edu/osemu/directory"
	diskoerr "github.com/dargueta-edu/osemu/errors"
)

// Op is one of the five operations the checker understands.
type Op int

const (
	Read Op = iota
	Write
	Execute
	Delete
	Rename
)

func (op Op) String() string {
	switch op {
	case Read:
		return "read"
	case Write:
		return "write"
	case Execute:
		return "execute"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Check evaluates the attribute gate, root bypass, and owner/group/other
// rwx triad against rec for a caller identified by (uid, gid). Delete and
// Rename are treated as requiring write access.
func Check(rec *directory.Record, uid, gid uint8, op Op) (bool, error) {
	if rec == nil {
		return false, diskoerr.ErrNotFound
	}

	// Step 1: attribute gate.
	if rec.Attributes&directory.AttrSystem != 0 && uid != 0 {
		return false, nil
	}
	if rec.Attributes&directory.AttrReadOnly != 0 {
		switch op {
		case Read:
			// allowed regardless of UID; falls through to step 2/3 below is
			// unnecessary since read is already decided, but root still
			// needs step 2 for the write-like ops.
			return true, nil
		case Write, Delete, Rename:
			if uid != 0 {
				return false, nil
			}
			// root falls through to step 2.
		}
	}

	// Step 2: root bypass.
	if uid == 0 {
		return true, nil
	}

	// Step 3: UNIX rwx, picking the triad by first-match owner -> group -> other.
	var triad uint16
	switch {
	case uid == rec.OwnerUID:
		triad = (rec.Perms & 0o700) >> 6
	case gid == rec.OwnerGID:
		triad = (rec.Perms & 0o070) >> 3
	default:
		triad = rec.Perms & 0o007
	}

	switch op {
	case Read:
		return triad&0o4 != 0, nil
	case Write, Delete, Rename:
		return triad&0o2 != 0, nil
	case Execute:
		return triad&0o1 != 0, nil
	default:
		return false, diskoerr.ErrInvalidArgument.WithMessage("unknown operation")
	}
}

// Format renders mode as a ls -l-style "rwxr-xr-x" string.
func Format(mode uint16) string {
	out := make([]byte, 9)
	bits := []struct {
		mask uint16
		ch   byte
	}{
		{0o400, 'r'}, {0o200, 'w'}, {0o100, 'x'},
		{0o040, 'r'}, {0o020, 'w'}, {0o010, 'x'},
		{0o004, 'r'}, {0o002, 'w'}, {0o001, 'x'},
	}
	for i, b := range bits {
		if mode&b.mask != 0 {
			out[i] = b.ch
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}
