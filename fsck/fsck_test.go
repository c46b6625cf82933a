package fsck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/directory"
	"github.com/dargueta-edu/osemu/fat"
	"github.com/dargueta-edu/osemu/file"
	"github.com/dargueta-edu/osemu/identity"
	"github.com/dargueta-edu/osemu/volume"
)

func fixedClock() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }

func newMountedVolume(t *testing.T, extraClusters int) (*volume.Volume, *directory.Directory, *fat.Allocator, *file.Files) {
	t.Helper()
	clusters := config.DataStartCluster + extraClusters
	size := int64(clusters) * config.ClusterSize
	buf := make([]byte, size)
	dev := blockdevice.NewInMemory(bytesextra.NewReadWriteSeeker(buf), size)

	vol, err := volume.Format(dev, config.NewVolumeOptions())
	require.NoError(t, err)

	alloc, err := fat.NewAllocator(dev)
	require.NoError(t, err)
	dir := directory.New(dev)
	files := file.New(dev, dir, alloc, fixedClock)

	_, err = identity.Bootstrap(files, vol, fixedClock)
	require.NoError(t, err)

	return vol, dir, alloc, files
}

func TestCheckCleanOnFreshlyBootstrappedVolume(t *testing.T) {
	vol, dir, alloc, _ := newMountedVolume(t, 10)

	report, err := Check(vol, dir, alloc)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestCheckCatchesSizeExceedingChainCapacity(t *testing.T) {
	vol, dir, alloc, files := newMountedVolume(t, 10)

	_, err := files.Create("bad.bin", 1, 1, 0)
	require.NoError(t, err)
	require.NoError(t, files.Write("bad.bin", make([]byte, 10), file.Replace))

	slot, rec, found, err := dir.Find("bad.bin")
	require.NoError(t, err)
	require.True(t, found)
	rec.Size = config.ClusterSize * 5
	require.NoError(t, dir.Update(slot, rec, fixedClock()))

	report, err := Check(vol, dir, alloc)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Contains(t, report.Errors.Error(), "exceeds chain capacity")
}

func TestCheckCatchesStaleMaxUID(t *testing.T) {
	vol, dir, alloc, files := newMountedVolume(t, 10)

	_, err := files.Create("owned.txt", 9, 9, 0)
	require.NoError(t, err)
	vol.Superblock.MaxUID = 0

	report, err := Check(vol, dir, alloc)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Contains(t, report.Errors.Error(), "max_uid")
}

func TestCheckDetectsMissingReservedFile(t *testing.T) {
	vol, dir, alloc, files := newMountedVolume(t, 10)
	require.NoError(t, files.Delete("groups"))

	report, err := Check(vol, dir, alloc)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Contains(t, report.Errors.Error(), `reserved file "groups" is missing`)
}
