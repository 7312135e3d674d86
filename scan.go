package grib2grid

import (
	"fmt"
	"strings"
)

// ScanMode holds the GRIB2 scanning mode flags (Flag Table 3.4).
type ScanMode byte

const (
	ScanIWestward     ScanMode = 0x80 // points of the first row scan in the -i (westward) direction
	ScanJNorthward    ScanMode = 0x40 // rows scan in the +j (northward) direction
	ScanJConsecutive  ScanMode = 0x20 // adjacent points are consecutive in j
	ScanBoustrophedon ScanMode = 0x10 // every other row scans in the opposite direction
)

// Order selects how grid points are laid out in coordinate arrays.
type Order int

const (
	// OrderWESN lays points out west to east, then south to north, row-major.
	OrderWESN Order = iota
	// OrderRaw keeps the scanning order of the GRIB2 message.
	OrderRaw
)

func (o Order) String() string {
	switch o {
	case OrderWESN:
		return "wesn"
	case OrderRaw:
		return "raw"
	}
	return fmt.Sprintf("order(%d)", int(o))
}

// ParseOrder parses "wesn" or "raw".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wesn", "":
		return OrderWESN, nil
	case "raw":
		return OrderRaw, nil
	}
	return 0, fmt.Errorf("unknown point order %q (want wesn or raw)", s)
}

// rawIndex returns the position in scan order of the point at WESN
// column i and row j.
func (s ScanMode) rawIndex(i, j, ni, nj int) int {
	c := i
	if s&ScanIWestward != 0 {
		c = ni - 1 - i
	}
	r := j
	if s&ScanJNorthward == 0 {
		r = nj - 1 - j
	}
	if s&ScanJConsecutive != 0 {
		return c*nj + r
	}
	if s&ScanBoustrophedon != 0 && r%2 == 1 {
		c = ni - 1 - c
	}
	return r*ni + c
}

// firstPoint returns the WESN (i, j) of the first point in scan order,
// i.e. the point described by La1/Lo1.
func (s ScanMode) firstPoint(ni, nj int) (i, j int) {
	if s&ScanIWestward != 0 {
		i = ni - 1
	}
	if s&ScanJNorthward == 0 {
		j = nj - 1
	}
	return i, j
}

// axisSigns returns the direction of the x and y axes for order, relative to
// the WESN axes.
func (s ScanMode) axisSigns(order Order) (sx, sy float64) {
	sx, sy = 1, 1
	if order != OrderRaw {
		return
	}
	if s&ScanIWestward != 0 {
		sx = -1
	}
	if s&ScanJNorthward == 0 {
		sy = -1
	}
	return
}

// reorder lays out WESN row-major values in the requested order.
// wesn is reused for OrderWESN.
func reorder(wesn []float64, ni, nj int, scan ScanMode, order Order) []float64 {
	if order == OrderWESN {
		return wesn
	}
	out := make([]float64, len(wesn))
	for j := 0; j < nj; j++ {
		for i := 0; i < ni; i++ {
			out[scan.rawIndex(i, j, ni, nj)] = wesn[j*ni+i]
		}
	}
	return out
}
