// Package codec packs and unpacks the fixed-width, big-endian primitives used
// by every on-disk structure in this file system: integers, DOS-style packed
// dates and times, and NUL-padded ASCII strings.
package codec

import (
	"encoding/binary"
	"time"

	diskoerr "github.com/dargueta-edu/osemu/errors"
)

// PutUint16 writes v into buf[0:2], big-endian.
func PutUint16(buf []byte, v uint16) { binary.BigEndian.PutUint16(buf, v) }

// PutUint32 writes v into buf[0:4], big-endian.
func PutUint32(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }

// Uint16 reads a big-endian uint16 from buf[0:2].
func Uint16(buf []byte) uint16 { return binary.BigEndian.Uint16(buf) }

// Uint32 reads a big-endian uint32 from buf[0:4].
func Uint32(buf []byte) uint32 { return binary.BigEndian.Uint32(buf) }

// PutASCII writes s into buf, NUL-padded to exactly len(buf) bytes. It never
// truncates: it returns ErrNameTooLong if s does not fit.
func PutASCII(buf []byte, s string) error {
	if len(s) > len(buf) {
		return diskoerr.ErrNameTooLong
	}
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// ASCII reads a NUL-padded ASCII string out of buf, stopping at the first NUL
// byte (or the end of buf if there is none).
func ASCII(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// PackTime packs an hour/minute/second triple into the 3-byte big-endian DOS
// time representation: (hour<<12)|(min<<6)|sec, stored in the low 24 bits of
// a 32-bit big-endian integer, written as 3 bytes.
func PackTime(hour, min, sec int) [3]byte {
	v := uint32(hour)<<12 | uint32(min)<<6 | uint32(sec)
	var out [3]byte
	out[0] = byte(v >> 16)
	out[1] = byte(v >> 8)
	out[2] = byte(v)
	return out
}

// UnpackTime reverses PackTime, returning (hour, min, sec).
func UnpackTime(b [3]byte) (hour, min, sec int) {
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	sec = int(v & 0x3f)
	min = int((v >> 6) & 0x3f)
	hour = int(v >> 12)
	return
}

// PackDate packs a year/month/day triple into the 2-byte big-endian DOS date
// representation: ((year-1980)<<9)|(month<<5)|day.
func PackDate(year, month, day int) [2]byte {
	v := uint16((year-1980)<<9) | uint16(month)<<5 | uint16(day)
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], v)
	return out
}

// UnpackDate reverses PackDate, returning (year, month, day).
func UnpackDate(b [2]byte) (year, month, day int) {
	v := binary.BigEndian.Uint16(b[:])
	day = int(v & 0x1f)
	month = int((v >> 5) & 0x0f)
	year = 1980 + int(v>>9)
	return
}

// PackTimestamp packs a time.Time into its DOS time and date parts.
func PackTimestamp(t time.Time) (date [2]byte, clock [3]byte) {
	date = PackDate(t.Year(), int(t.Month()), t.Day())
	clock = PackTime(t.Hour(), t.Minute(), t.Second())
	return
}

// UnpackTimestamp reverses PackTimestamp, reconstructing a time.Time in UTC.
// Fractional seconds are always zero; DOS timestamps have no sub-second
// resolution in this format.
func UnpackTimestamp(date [2]byte, clock [3]byte) time.Time {
	year, month, day := UnpackDate(date)
	hour, min, sec := UnpackTime(clock)
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
}
