package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
)

func newTestDevice(t *testing.T, clusters int) *blockdevice.Device {
	t.Helper()
	size := int64(clusters) * config.ClusterSize
	buf := make([]byte, size)
	stream := bytesextra.NewReadWriteSeeker(buf)
	return blockdevice.NewInMemory(stream, size)
}

func TestFormatRejectsImageWithNoDataClusters(t *testing.T) {
	dev := newTestDevice(t, config.DataStartCluster)
	_, err := Format(dev, config.NewVolumeOptions())
	assert.Error(t, err)
}

func TestFormatPopulatesSuperblock(t *testing.T) {
	dev := newTestDevice(t, config.DataStartCluster+10)
	opts := config.NewVolumeOptions(config.WithVolumeName("TESTVOL"))

	vol, err := Format(dev, opts)
	require.NoError(t, err)

	assert.Equal(t, "TESTVOL", vol.Superblock.VolumeName)
	assert.Equal(t, uint32(10), vol.Superblock.FreeClusterCount)
	assert.Equal(t, uint32(config.DataStartCluster), vol.Superblock.FirstFreeCluster)
	assert.Equal(t, uint32(config.RootDirStartCluster), vol.Superblock.RootDirFirstCluster)
}

func TestEncodeDecodeSuperblockRoundTrip(t *testing.T) {
	sb := &Superblock{
		VolumeName:          "ROUNDTRIP",
		TotalSectors:        4096,
		SectorSize:          config.SectorSize,
		SectorsPerCluster:   config.SectorsPerCluster,
		FATCount:            1,
		FATSizeClusters:     config.FATClusters,
		FreeClusterCount:    123,
		FirstFreeCluster:    447,
		RootDirFirstCluster: 257,
		MaxUID:              5,
		MaxGID:              3,
	}

	buf, err := sb.Encode()
	require.NoError(t, err)
	require.Len(t, buf, SuperblockSize)

	got, err := DecodeSuperblock(buf)
	require.NoError(t, err)
	assert.Equal(t, sb, got)
}

func TestFlushThenReadSuperblockRoundTrip(t *testing.T) {
	dev := newTestDevice(t, config.DataStartCluster+5)
	vol, err := Format(dev, config.NewVolumeOptions(config.WithVolumeName("FLUSHME")))
	require.NoError(t, err)

	vol.Superblock.MaxUID = 7
	require.NoError(t, vol.Flush())

	reloaded, err := ReadSuperblock(dev)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), reloaded.Superblock.MaxUID)
	assert.Equal(t, "FLUSHME", reloaded.Superblock.VolumeName)
}

func TestDecodeSuperblockRejectsShortBuffer(t *testing.T) {
	_, err := DecodeSuperblock(make([]byte, 4))
	assert.Error(t, err)
}
