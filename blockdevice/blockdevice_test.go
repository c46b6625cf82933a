package blockdevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dargueta-edu/osemu/config"
)

func newTestDevice(t *testing.T, clusters int) *Device {
	t.Helper()
	buf := make([]byte, clusters*config.ClusterSize)
	stream := bytesextra.NewReadWriteSeeker(buf)
	return NewInMemory(stream, int64(len(buf)))
}

func TestNewInMemoryTotalClusters(t *testing.T) {
	dev := newTestDevice(t, 10)
	assert.Equal(t, uint32(10), dev.TotalClusters())
}

func TestWriteReadClusterRoundTrip(t *testing.T) {
	dev := newTestDevice(t, 4)
	data := make([]byte, config.ClusterSize)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, dev.WriteCluster(ClusterID(2), data))

	got, err := dev.ReadCluster(ClusterID(2))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteClusterRejectsShortBuffer(t *testing.T) {
	dev := newTestDevice(t, 2)
	err := dev.WriteCluster(ClusterID(0), make([]byte, 10))
	assert.Error(t, err)
}

func TestReadWritePartialOffset(t *testing.T) {
	dev := newTestDevice(t, 2)
	require.NoError(t, dev.Write(ClusterID(1), 100, []byte("hello")))

	buf := make([]byte, 5)
	require.NoError(t, dev.Read(ClusterID(1), 100, buf))
	assert.Equal(t, "hello", string(buf))
}

func TestOutOfRangeClusterErrors(t *testing.T) {
	dev := newTestDevice(t, 2)
	err := dev.Read(ClusterID(5), 0, make([]byte, 1))
	assert.Error(t, err)
}

func TestOffsetCrossingClusterBoundaryErrors(t *testing.T) {
	dev := newTestDevice(t, 2)
	err := dev.Read(ClusterID(0), config.ClusterSize-1, make([]byte, 2))
	assert.Error(t, err)
}
