package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutASCIIPadsWithNulBytes(t *testing.T) {
	buf := make([]byte, 8)
	require.NoError(t, PutASCII(buf, "hi"))
	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0, 0, 0}, buf)
}

func TestPutASCIITooLong(t *testing.T) {
	buf := make([]byte, 4)
	err := PutASCII(buf, "toolong")
	assert.Error(t, err)
}

func TestPutASCIIExactFit(t *testing.T) {
	buf := make([]byte, 4)
	require.NoError(t, PutASCII(buf, "abcd"))
	assert.Equal(t, "abcd", ASCII(buf))
}

func TestASCIIStopsAtFirstNul(t *testing.T) {
	buf := []byte{'a', 'b', 0, 'c', 'd'}
	assert.Equal(t, "ab", ASCII(buf))
}

func TestUint16RoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	PutUint16(buf, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), Uint16(buf))
}

func TestUint32RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32(buf, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), Uint32(buf))
}

func TestPackUnpackTime(t *testing.T) {
	packed := PackTime(23, 59, 58)
	hour, min, sec := UnpackTime(packed)
	assert.Equal(t, 23, hour)
	assert.Equal(t, 59, min)
	assert.Equal(t, 58, sec)
}

func TestPackUnpackDate(t *testing.T) {
	packed := PackDate(2026, 7, 30)
	year, month, day := UnpackDate(packed)
	assert.Equal(t, 2026, year)
	assert.Equal(t, 7, month)
	assert.Equal(t, 30, day)
}

func TestPackUnpackTimestampRoundTrip(t *testing.T) {
	original := time.Date(2024, time.March, 5, 14, 22, 9, 0, time.UTC)
	date, clock := PackTimestamp(original)
	got := UnpackTimestamp(date, clock)
	assert.True(t, original.Equal(got), "expected %s, got %s", original, got)
}

func TestUnpackTimestampDropsSubsecondResolution(t *testing.T) {
	original := time.Date(2024, time.March, 5, 14, 22, 9, 999_000_000, time.UTC)
	date, clock := PackTimestamp(original)
	got := UnpackTimestamp(date, clock)
	assert.Equal(t, 0, got.Nanosecond())
}
