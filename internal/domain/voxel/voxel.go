// Package voxel converts physical coordinates into the integer grid of a
// volume's native sampling units.
package voxel

import (
	"math"
	"strconv"
)

// Point is an integer coordinate on the voxel grid.
type Point [3]int64

// String renders the point in the service's comma-joined wire form.
func (p Point) String() string {
	return strconv.FormatInt(p[0], 10) + "," +
		strconv.FormatInt(p[1], 10) + "," +
		strconv.FormatInt(p[2], 10)
}

// Float returns the point as float64 components, for clustering math.
func (p Point) Float() [3]float64 {
	return [3]float64{float64(p[0]), float64(p[1]), float64(p[2])}
}

// FromPhysical converts a physical-unit coordinate to voxel units by
// elementwise division. Rounding happens after the division; truncating
// first would bias every coordinate toward the origin.
func FromPhysical(c [3]float64, size [3]float64) Point {
	return Point{
		int64(math.Round(c[0] / size[0])),
		int64(math.Round(c[1] / size[1])),
		int64(math.Round(c[2] / size[2])),
	}
}

// FromRaw rounds a coordinate that is already in voxel units.
func FromRaw(c [3]float64) Point {
	return Point{
		int64(math.Round(c[0])),
		int64(math.Round(c[1])),
		int64(math.Round(c[2])),
	}
}

// Convert maps all coordinates to the voxel grid. A nil size means the
// input is already voxel-native.
func Convert(coords [][3]float64, size *[3]float64) []Point {
	pts := make([]Point, len(coords))
	for i, c := range coords {
		if size == nil {
			pts[i] = FromRaw(c)
		} else {
			pts[i] = FromPhysical(c, *size)
		}
	}
	return pts
}
