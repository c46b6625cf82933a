// Package identity implements the embedded user/group database stored as
// the reserved files `users` and `groups`.
package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"github.com/dargueta-edu/osemu/codec"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/directory"
	diskoerr "github.com/dargueta-edu/osemu/errors"
	"github.com/dargueta-edu/osemu/file"
	"github.com/dargueta-edu/osemu/volume"
)

const (
	UserRecordSize  = 65
	GroupRecordSize = 32

	UserFlagLocked = 1 << 0

	// RootUID/RootGID identify the always-present superuser.
	RootUID = 0
	RootGID = 0

	// DefaultUserGID is the group new regular users land in unless the
	// caller specifies otherwise.
	DefaultUserGID = 100

	// firstAutoGID is the base auto-assignment counts up from, chosen so
	// the first auto-assigned group lands on GID 100.
	firstAutoGID = 99
)

// User is the in-memory form of a 65-byte user record.
type User struct {
	Login string
	UID   uint8
	GID   uint8
	Flags uint8
	Hash  [32]byte
}

// Locked reports whether the account is administratively locked.
func (u *User) Locked() bool { return u.Flags&UserFlagLocked != 0 }

// HashIsUnset reports whether no password has ever been set for this user.
func (u *User) HashIsUnset() bool {
	var zero [32]byte
	return u.Hash == zero
}

// Group is the in-memory form of a 32-byte group record.
type Group struct {
	GID  uint8
	Name string
}

func encodeUser(u *User) ([]byte, error) {
	buf := make([]byte, UserRecordSize)
	if err := codec.PutASCII(buf[0:30], u.Login); err != nil {
		return nil, err
	}
	buf[30] = u.UID
	buf[31] = u.GID
	buf[32] = u.Flags
	copy(buf[33:65], u.Hash[:])
	return buf, nil
}

func decodeUser(buf []byte) *User {
	u := &User{
		Login: codec.ASCII(buf[0:30]),
		UID:   buf[30],
		GID:   buf[31],
		Flags: buf[32],
	}
	copy(u.Hash[:], buf[33:65])
	return u
}

func encodeGroup(g *Group) ([]byte, error) {
	buf := make([]byte, GroupRecordSize)
	buf[0] = g.GID
	if err := codec.PutASCII(buf[1:GroupRecordSize], g.Name); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeGroup(buf []byte) *Group {
	return &Group{
		GID:  buf[0],
		Name: codec.ASCII(buf[1:GroupRecordSize]),
	}
}

// Store is the identity store: users/groups persisted as ordinary reserved
// files, always accessed as root.
type Store struct {
	Files *file.Files
	Vol   *volume.Volume
	Clock func() time.Time
}

// New constructs a Store.
func New(files *file.Files, vol *volume.Volume, clock func() time.Time) *Store {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Store{Files: files, Vol: vol, Clock: clock}
}

// ReadUsers splits the `users` file into 65-byte records, stopping at the
// first record whose login is empty.
func (s *Store) ReadUsers() ([]*User, error) {
	data, err := s.Files.Read("users")
	if err != nil {
		return nil, err
	}
	var out []*User
	for off := 0; off+UserRecordSize <= len(data); off += UserRecordSize {
		u := decodeUser(data[off : off+UserRecordSize])
		if u.Login == "" {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

// WriteUsers serializes users contiguously back to the `users` file.
func (s *Store) WriteUsers(users []*User) error {
	buf := make([]byte, 0, len(users)*UserRecordSize)
	for _, u := range users {
		enc, err := encodeUser(u)
		if err != nil {
			return err
		}
		buf = append(buf, enc...)
	}
	return s.Files.Write("users", buf, file.Replace)
}

// ReadGroups splits the `groups` file into 32-byte records, stopping at the
// first record whose name is empty.
func (s *Store) ReadGroups() ([]*Group, error) {
	data, err := s.Files.Read("groups")
	if err != nil {
		return nil, err
	}
	var out []*Group
	for off := 0; off+GroupRecordSize <= len(data); off += GroupRecordSize {
		g := decodeGroup(data[off : off+GroupRecordSize])
		if g.Name == "" {
			break
		}
		out = append(out, g)
	}
	return out, nil
}

// WriteGroups serializes groups contiguously back to the `groups` file.
func (s *Store) WriteGroups(groups []*Group) error {
	buf := make([]byte, 0, len(groups)*GroupRecordSize)
	for _, g := range groups {
		enc, err := encodeGroup(g)
		if err != nil {
			return err
		}
		buf = append(buf, enc...)
	}
	return s.Files.Write("groups", buf, file.Replace)
}

func hashPassword(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}

// AddUser creates a new user. If uid is nil, the next UID is
// max_uid+1 and the superblock's max_uid is advanced to match. Fails
// USER_EXISTS (ErrExists) if login is already taken.
func (s *Store) AddUser(login, password string, uid *uint8, gid uint8) (*User, error) {
	if login == "" {
		return nil, diskoerr.ErrInvalidArgument.WithMessage("login must not be empty")
	}
	if len(login) > config.MaxLoginLength {
		return nil, diskoerr.ErrNameTooLong
	}

	users, err := s.ReadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Login == login {
			return nil, diskoerr.ErrExists
		}
	}

	var assignedUID uint8
	if uid != nil {
		assignedUID = *uid
	} else {
		next := uint32(s.Vol.Superblock.MaxUID) + 1
		if next > 255 {
			return nil, diskoerr.ErrResultOutOfRange.WithMessage("no UIDs remain")
		}
		assignedUID = uint8(next)
		s.Vol.Superblock.MaxUID = uint16(next)
		if err := s.Vol.Flush(); err != nil {
			return nil, err
		}
	}

	u := &User{
		Login: login,
		UID:   assignedUID,
		GID:   gid,
		Hash:  hashPassword(password),
	}
	users = append(users, u)
	if err := s.WriteUsers(users); err != nil {
		return nil, err
	}
	return u, nil
}

// AddGroup creates a new group. If gid is nil, the next GID is assigned so
// that the first auto-assigned group lands on GID 100, and the superblock's
// max_gid is advanced. Fails ErrExists if name is taken.
func (s *Store) AddGroup(name string, gid *uint8) (*Group, error) {
	if name == "" {
		return nil, diskoerr.ErrInvalidArgument.WithMessage("group name must not be empty")
	}
	if len(name) > config.MaxGroupNameLength {
		return nil, diskoerr.ErrNameTooLong
	}

	groups, err := s.ReadGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name == name {
			return nil, diskoerr.ErrExists
		}
	}

	var assignedGID uint8
	if gid != nil {
		assignedGID = *gid
	} else {
		base := firstAutoGID
		if int(s.Vol.Superblock.MaxGID) > base {
			base = int(s.Vol.Superblock.MaxGID)
		}
		next := base + 1
		if next > 255 {
			return nil, diskoerr.ErrResultOutOfRange.WithMessage("no GIDs remain")
		}
		assignedGID = uint8(next)
		s.Vol.Superblock.MaxGID = uint16(next)
		if err := s.Vol.Flush(); err != nil {
			return nil, err
		}
	}

	g := &Group{GID: assignedGID, Name: name}
	groups = append(groups, g)
	if err := s.WriteGroups(groups); err != nil {
		return nil, err
	}
	return g, nil
}

// SetPassword updates login's password hash. Fails ErrNotFound if login
// doesn't exist.
func (s *Store) SetPassword(login, password string) error {
	users, err := s.ReadUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Login == login {
			u.Hash = hashPassword(password)
			return s.WriteUsers(users)
		}
	}
	return diskoerr.ErrNotFound
}

// VerifyPassword reports whether password matches login's stored hash, using
// a constant-time comparison to avoid timing oracles.
func (s *Store) VerifyPassword(login, password string) (bool, error) {
	users, err := s.ReadUsers()
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Login == login {
			candidate := hashPassword(password)
			return subtle.ConstantTimeCompare(candidate[:], u.Hash[:]) == 1, nil
		}
	}
	return false, diskoerr.ErrNotFound
}

// IsFirstRun reports whether root's stored hash is all-zero, i.e. no root
// password has ever been set.
func (s *Store) IsFirstRun() (bool, error) {
	users, err := s.ReadUsers()
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Login == "root" {
			return u.HashIsUnset(), nil
		}
	}
	return false, diskoerr.ErrNotFound
}

// RegularUsers returns every user whose UID is nonzero.
func (s *Store) RegularUsers() ([]*User, error) {
	users, err := s.ReadUsers()
	if err != nil {
		return nil, err
	}
	out := make([]*User, 0, len(users))
	for _, u := range users {
		if u.UID != RootUID {
			out = append(out, u)
		}
	}
	return out, nil
}

// FindUserByLogin returns the user record for login, or ErrNotFound.
func (s *Store) FindUserByLogin(login string) (*User, error) {
	users, err := s.ReadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, diskoerr.ErrNotFound
}

// FindUserByUID returns the user record owning uid, or ErrNotFound.
func (s *Store) FindUserByUID(uid uint8) (*User, error) {
	users, err := s.ReadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.UID == uid {
			return u, nil
		}
	}
	return nil, diskoerr.ErrNotFound
}

// FindGroupByName returns the group record named name, or ErrNotFound.
func (s *Store) FindGroupByName(name string) (*Group, error) {
	groups, err := s.ReadGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, diskoerr.ErrNotFound
}

// FindGroupByGID returns the group record with the given gid, or
// ErrNotFound.
func (s *Store) FindGroupByGID(gid uint8) (*Group, error) {
	groups, err := s.ReadGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.GID == gid {
			return g, nil
		}
	}
	return nil, diskoerr.ErrNotFound
}

// Bootstrap creates the reserved `users`/`groups` files with the initial
// root user and root group. It is idempotent only in the sense that it will
// fail ErrExists if called on a volume that already has these files;
// Format's caller is expected to invoke it exactly once.
func Bootstrap(files *file.Files, vol *volume.Volume, clock func() time.Time) (*Store, error) {
	const reservedAttrs = directory.AttrReadOnly | directory.AttrHidden | directory.AttrSystem

	if _, err := files.Create("users", RootUID, RootGID, reservedAttrs); err != nil {
		return nil, err
	}
	if _, err := files.Create("groups", RootUID, RootGID, reservedAttrs); err != nil {
		return nil, err
	}
	if err := files.Chmod("users", 0o644); err != nil {
		return nil, err
	}
	if err := files.Chmod("groups", 0o644); err != nil {
		return nil, err
	}

	store := New(files, vol, clock)

	root := &User{Login: "root", UID: RootUID, GID: RootGID}
	if err := store.WriteUsers([]*User{root}); err != nil {
		return nil, err
	}
	rootGroup := &Group{GID: RootGID, Name: "root"}
	if err := store.WriteGroups([]*Group{rootGroup}); err != nil {
		return nil, err
	}

	return store, nil
}
