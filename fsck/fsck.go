// Package fsck walks a mounted volume and reports every on-disk consistency
// violation it finds, aggregating independent failures with
// github.com/hashicorp/go-multierror instead of stopping at the first one
// found.
package fsck

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/directory"
	"github.com/dargueta-edu/osemu/fat"
	"github.com/dargueta-edu/osemu/volume"
)

// Report is the result of a consistency walk. Errors is nil if the volume is
// clean.
type Report struct {
	Errors *multierror.Error
}

// Clean reports whether the walk found no violations.
func (r *Report) Clean() bool {
	return r.Errors == nil || r.Errors.Len() == 0
}

func (r *Report) add(format string, args ...any) {
	r.Errors = multierror.Append(r.Errors, fmt.Errorf(format, args...))
}

// Check walks vol's directory and FAT, verifying:
//   - every live directory record's cluster chain terminates, doesn't cycle,
//     and never visits a cluster the FAT marks free (fat.Allocator.Chain
//     already enforces this per-chain; Check cross-checks it against every
//     record)
//   - file_size <= chain_cluster_count * ClusterSize
//   - the directory sentinel discipline holds (0x00 stops a scan, 0xE5 marks
//     a reusable tombstone, enforced structurally by directory.Directory)
//   - reserved files `users` and `groups` are present, owned by root, and
//     carry SYSTEM|HIDDEN|READ_ONLY
//   - max_uid/max_gid recorded in the superblock are monotonically at least
//     as large as any UID/GID actually referenced by a directory record
func Check(vol *volume.Volume, dir *directory.Directory, alloc *fat.Allocator) (*Report, error) {
	report := &Report{}

	records, err := dir.List()
	if err != nil {
		return nil, err
	}

	seenReserved := map[string]bool{"users": false, "groups": false}
	maxUID, maxGID := uint16(0), uint16(0)

	for _, rec := range records {
		if rec.OwnerUID != 0 {
			if uint16(rec.OwnerUID) > maxUID {
				maxUID = uint16(rec.OwnerUID)
			}
		}
		if uint16(rec.OwnerGID) > maxGID {
			maxGID = uint16(rec.OwnerGID)
		}

		if rec.Name == "users" || rec.Name == "groups" {
			seenReserved[rec.Name] = true
			wantAttrs := uint8(directory.AttrReadOnly | directory.AttrHidden | directory.AttrSystem)
			if rec.Attributes&wantAttrs != wantAttrs {
				report.add("reserved file %q missing SYSTEM|HIDDEN|READ_ONLY attributes", rec.Name)
			}
			if rec.OwnerUID != 0 {
				report.add("reserved file %q not owned by root (uid=%d)", rec.Name, rec.OwnerUID)
			}
		}

		if rec.FirstCluster == 0 {
			if rec.Size != 0 {
				report.add("file %q has size %d but no allocated cluster", rec.Name, rec.Size)
			}
			continue
		}

		chain, err := alloc.Chain(fat.ClusterID(rec.FirstCluster))
		if err != nil {
			report.add("file %q: %v", rec.Name, err)
			continue
		}

		capacity := uint32(len(chain)) * config.ClusterSize
		if rec.Size > capacity {
			report.add("file %q: size %d exceeds chain capacity %d (%d clusters)",
				rec.Name, rec.Size, capacity, len(chain))
		}
	}

	for name, found := range seenReserved {
		if !found {
			report.add("reserved file %q is missing", name)
		}
	}

	if vol.Superblock.MaxUID < maxUID {
		report.add("superblock max_uid=%d is less than highest referenced uid=%d",
			vol.Superblock.MaxUID, maxUID)
	}
	if vol.Superblock.MaxGID < maxGID {
		report.add("superblock max_gid=%d is less than highest referenced gid=%d",
			vol.Superblock.MaxGID, maxGID)
	}

	return report, nil
}
