package fat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta-edu/osemu/blockdevice"
	"github.com/dargueta-edu/osemu/config"
	"github.com/dargueta-edu/osemu/volume"
)

func newFormattedDevice(t *testing.T, extraClusters int) *blockdevice.Device {
	t.Helper()
	clusters := config.DataStartCluster + extraClusters
	size := int64(clusters) * config.ClusterSize
	buf := make([]byte, size)
	dev := blockdevice.NewInMemory(bytesextra.NewReadWriteSeeker(buf), size)

	_, err := volume.Format(dev, config.NewVolumeOptions())
	require.NoError(t, err)
	return dev
}

func TestAllocateFreeReturnsClustersFromDataRegion(t *testing.T) {
	dev := newFormattedDevice(t, 5)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	c, err := alloc.AllocateFree()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, uint32(c), uint32(config.DataStartCluster))
	assert.False(t, alloc.IsFree(c))
}

func TestAllocateFreeExhaustion(t *testing.T) {
	dev := newFormattedDevice(t, 2)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	_, err = alloc.AllocateFree()
	require.NoError(t, err)
	_, err = alloc.AllocateFree()
	require.NoError(t, err)

	_, err = alloc.AllocateFree()
	assert.Error(t, err)
}

func TestChainFollowsExtendedLinks(t *testing.T) {
	dev := newFormattedDevice(t, 5)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	first, err := alloc.AllocateFree()
	require.NoError(t, err)
	second, err := alloc.AllocateFree()
	require.NoError(t, err)
	require.NoError(t, alloc.Extend(first, second))
	require.NoError(t, alloc.Terminate(second))

	chain, err := alloc.Chain(first)
	require.NoError(t, err)
	assert.Equal(t, []ClusterID{first, second}, chain)
}

func TestChainOfUnallocatedClusterIsEmpty(t *testing.T) {
	dev := newFormattedDevice(t, 5)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	chain, err := alloc.Chain(0)
	require.NoError(t, err)
	assert.Nil(t, chain)
}

func TestChainDetectsCycle(t *testing.T) {
	dev := newFormattedDevice(t, 5)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	a, err := alloc.AllocateFree()
	require.NoError(t, err)
	b, err := alloc.AllocateFree()
	require.NoError(t, err)
	require.NoError(t, alloc.Extend(a, b))
	require.NoError(t, alloc.Extend(b, a)) // cycle

	_, err = alloc.Chain(a)
	assert.Error(t, err)
}

func TestFreeChainReturnsClustersToPool(t *testing.T) {
	dev := newFormattedDevice(t, 5)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	first, err := alloc.AllocateFree()
	require.NoError(t, err)
	second, err := alloc.AllocateFree()
	require.NoError(t, err)
	require.NoError(t, alloc.Extend(first, second))
	require.NoError(t, alloc.Terminate(second))

	require.NoError(t, alloc.FreeChain(first))
	assert.True(t, alloc.IsFree(first))
	assert.True(t, alloc.IsFree(second))
}

func TestUsageCountsOnlyDataRegion(t *testing.T) {
	dev := newFormattedDevice(t, 10)
	alloc, err := NewAllocator(dev)
	require.NoError(t, err)

	usage := alloc.Usage()
	assert.Equal(t, uint32(10), usage.TotalClusters)
	assert.Equal(t, uint32(10), usage.FreeClusters)
	assert.Equal(t, uint32(0), usage.UsedClusters)

	_, err = alloc.AllocateFree()
	require.NoError(t, err)
	usage = alloc.Usage()
	assert.Equal(t, uint32(1), usage.UsedClusters)
	assert.Equal(t, uint32(9), usage.FreeClusters)
}
