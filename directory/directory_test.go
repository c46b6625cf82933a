package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/volume"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	clusters := config.DataStartCluster + 2
	size := int64(clusters) * config.ClusterSize
	buf := make([]byte, size)
	dev := blockdevice.NewInMemory(bytesextra.NewReadWriteSeeker(buf), size)

	_, err := volume.Format(dev, config.NewVolumeOptions())
	require.NoError(t, err)
	return New(dev)
}

func sampleRecord(name string) *Record {
	return &Record{
		Name:       name,
		Attributes: 0,
		ModifyTime: time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC),
		OwnerUID:   1,
		OwnerGID:   1,
		Perms:      0o644,
		Size:       0,
	}
}

func TestInsertThenFind(t *testing.T) {
	dir := newTestDirectory(t)
	rec := sampleRecord("hello.txt")

	_, err := dir.Insert(rec)
	require.NoError(t, err)

	_, found, ok, err := dir.Find("hello.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello.txt", found.Name)
	assert.Equal(t, uint8(1), found.OwnerUID)
}

func TestFindMissingReturnsNotFound(t *testing.T) {
	dir := newTestDirectory(t)
	_, _, ok, err := dir.Find("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveFreesSlotForReuse(t *testing.T) {
	dir := newTestDirectory(t)
	slot, err := dir.Insert(sampleRecord("a"))
	require.NoError(t, err)

	require.NoError(t, dir.Remove(slot))

	_, _, ok, err := dir.Find("a")
	require.NoError(t, err)
	assert.False(t, ok)

	reused, err := dir.Insert(sampleRecord("b"))
	require.NoError(t, err)
	assert.Equal(t, slot, reused)
}

func TestRenameChangesName(t *testing.T) {
	dir := newTestDirectory(t)
	slot, err := dir.Insert(sampleRecord("old"))
	require.NoError(t, err)

	require.NoError(t, dir.Rename(slot, "new"))

	_, _, ok, err := dir.Find("old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, rec, ok, err := dir.Find("new")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", rec.Name)
}

func TestUpdateStampsModifyTime(t *testing.T) {
	dir := newTestDirectory(t)
	slot, err := dir.Insert(sampleRecord("stampme"))
	require.NoError(t, err)

	_, rec, _, err := dir.Find("stampme")
	require.NoError(t, err)
	rec.Perms = 0o600
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, dir.Update(slot, rec, now))

	got, err := dir.ReadAt(slot)
	require.NoError(t, err)
	assert.Equal(t, uint16(0o600), got.Perms)
	assert.True(t, now.Equal(got.ModifyTime))
}

func TestListSkipsTombstonesAndStopsAtUnused(t *testing.T) {
	dir := newTestDirectory(t)
	s1, err := dir.Insert(sampleRecord("one"))
	require.NoError(t, err)
	_, err = dir.Insert(sampleRecord("two"))
	require.NoError(t, err)

	require.NoError(t, dir.Remove(s1))

	records, err := dir.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "two", records[0].Name)
}

func TestInsertFailsWhenDirectoryFull(t *testing.T) {
	dir := newTestDirectory(t)

	// Stamp a non-sentinel byte into every slot directly, rather than
	// inserting config.MaxRootDirEntries real records through Insert's
	// linear scan, which would take far too long for no extra coverage.
	for i := 0; i < config.MaxRootDirEntries; i++ {
		slot := slotForIndex(i)
		require.NoError(t, dir.dev.Write(slot.Cluster, slot.Offset, []byte{'x'}))
	}

	_, err := dir.Insert(sampleRecord("overflow"))
	assert.Error(t, err)
}
