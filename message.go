package grib2grid

import (
	"bytes"
	"fmt"
)

// SplitMessages splits a buffer holding one or more concatenated GRIB2
// messages. Each returned message aliases buf. Bytes between messages that
// do not start with "GRIB" are skipped, as wgrib2 does for padded files.
func SplitMessages(buf []byte) ([][]byte, error) {
	var msgs [][]byte
	off := 0
	for off < len(buf) {
		k := bytes.Index(buf[off:], gribMagic)
		if k < 0 {
			break
		}
		off += k
		s0, err := parseSection0(buf[off:])
		if err != nil {
			return msgs, fmt.Errorf("message %d at %d: %w", len(msgs), off, err)
		}
		// uint64 arithmetic avoids int overflow on 32-bit platforms.
		end64 := uint64(off) + s0.TotalLength
		if s0.TotalLength < 16+4 || end64 > uint64(len(buf)) {
			return msgs, fmt.Errorf("message %d at %d: total length %d overflows buffer %d",
				len(msgs), off, s0.TotalLength, len(buf))
		}
		end := int(end64)
		msgs = append(msgs, buf[off:end])
		off = end
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no GRIB2 message found in %d bytes", len(buf))
	}
	return msgs, nil
}

var gribMagic = []byte("GRIB")

// GridSection returns the Section 3 bytes of a single GRIB2 message.
// When a message repeats sections (several fields), the first grid wins.
func GridSection(msg []byte) ([]byte, error) {
	if _, err := parseSection0(msg); err != nil {
		return nil, err
	}
	// Walk sections; Section 0 is 16 bytes, Section 1 follows.
	off := 16
	for off < len(msg) {
		_, sNum, sec, next, err := sectionAt(msg, off)
		if err != nil {
			return nil, err
		}
		switch sNum {
		case 3:
			return sec, nil
		case 8:
			// End marker "7777"
			return nil, fmt.Errorf("no Section 3 found in message")
		}
		off = next
	}
	return nil, fmt.Errorf("no Section 3 found in message")
}

// DecodeGrid returns the grid definition of a single GRIB2 message.
func DecodeGrid(msg []byte) (*GridDefinition, error) {
	sec, err := GridSection(msg)
	if err != nil {
		return nil, err
	}
	return ParseGridDefinition(sec)
}
