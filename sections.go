package grib2grid

import (
	"encoding/binary"
	"fmt"
)

// Section0 is the GRIB2 Indicator Section (16 bytes).
type Section0 struct {
	Discipline  byte
	Edition     byte
	TotalLength uint64
}

// Input sanity limits. Real grids are far below these.
const (
	// maxGridDim caps Ni/Nj. The largest operational global grids are ~10k wide.
	maxGridDim = 100000

	// maxGridPoints caps Ni*Nj. Coordinates are allocated per point with no
	// data section to bound them; NCEP grid 173 has 9.3M points.
	maxGridPoints = 1 << 25

	// sec3HeaderLen is the fixed part of Section 3 before the template data.
	sec3HeaderLen = 14
)

// parseSection0 decodes the 16-byte indicator section.
func parseSection0(b []byte) (Section0, error) {
	if len(b) < 16 {
		return Section0{}, fmt.Errorf("section 0: need 16 bytes, got %d", len(b))
	}
	if string(b[0:4]) != "GRIB" {
		return Section0{}, fmt.Errorf("section 0: missing GRIB magic: %q", b[0:4])
	}
	if b[7] != 2 {
		return Section0{}, fmt.Errorf("section 0: unsupported edition %d", b[7])
	}
	return Section0{
		Discipline:  b[6],
		Edition:     b[7],
		TotalLength: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// sectionAt finds a section starting at byte offset off in buf.
// Returns (sectionLen, sectionNum, sectionData, nextOffset).
// The "7777" end marker is only 4 bytes, so it is checked before the 5-byte header guard.
func sectionAt(buf []byte, off int) (uint32, byte, []byte, int, error) {
	if off+4 <= len(buf) && string(buf[off:off+4]) == "7777" {
		return 4, 8, buf[off : off+4], off + 4, nil
	}
	if off+5 > len(buf) {
		return 0, 0, nil, 0, fmt.Errorf("section header at %d: out of bounds (buf=%d)", off, len(buf))
	}
	sLen := binary.BigEndian.Uint32(buf[off : off+4])
	sNum := buf[off+4]
	if sLen < 5 {
		return 0, 0, nil, 0, fmt.Errorf("section %d at %d: length %d shorter than header", sNum, off, sLen)
	}
	// uint64 arithmetic avoids int overflow on 32-bit platforms.
	end64 := uint64(off) + uint64(sLen)
	if end64 > uint64(len(buf)) {
		return 0, 0, nil, 0, fmt.Errorf("section %d at %d: length %d overflows buffer %d",
			sNum, off, sLen, len(buf))
	}
	end := int(end64)
	return sLen, sNum, buf[off:end], end, nil
}

// decodeSignMag32 decodes a GRIB2 sign-magnitude 4-byte integer
// (latitudes, longitudes and other signed template values).
func decodeSignMag32(raw uint32) int64 {
	magnitude := int64(raw & 0x7FFFFFFF)
	if raw&0x80000000 != 0 {
		return -magnitude
	}
	return magnitude
}

// encodeSignMag32 is the inverse of decodeSignMag32.
func encodeSignMag32(v int64) uint32 {
	if v < 0 {
		return 0x80000000 | uint32(-v)
	}
	return uint32(v)
}

// missing32 is the GRIB2 "all bits set" missing value for 4-octet fields.
const missing32 = 0xFFFFFFFF
