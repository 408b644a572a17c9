package graph

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// SectionSize is the edge of a section, in blocks.
	SectionSize = 16

	// TileSize is the edge of a result tile, in sections.
	TileSize = 8

	tileWords = TileSize

	// MinHorizontalCoord and MaxHorizontalCoord bound the x and z of the
	// sections of a graph, so that every coordinate survives Pack.
	MinHorizontalCoord = -1 << 21
	MaxHorizontalCoord = 1<<21 - 1
)

// SectionCoord identifies a section of the world.
type SectionCoord struct {
	X int32 `json:"x" yaml:"x"`
	Y int32 `json:"y" yaml:"y"`
	Z int32 `json:"z" yaml:"z"`
}

// SectionCoordAt returns the section containing the given block position.
// Positions beyond the int32 range saturate.
func SectionCoordAt(pos mgl64.Vec3) SectionCoord {
	return SectionCoord{
		X: saturateInt32(sectionIndex(pos.X())),
		Y: saturateInt32(sectionIndex(pos.Y())),
		Z: saturateInt32(sectionIndex(pos.Z())),
	}
}

func sectionIndex(v float64) float64 {
	return math.Floor(v / SectionSize)
}

func saturateInt32(v float64) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

// Neighbor returns the section next to c in the given direction.
func (c SectionCoord) Neighbor(d Direction) SectionCoord {
	dx, dy, dz := d.Offset()
	return SectionCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Compare orders coordinates lexicographically on x, then y, then z.
func (c SectionCoord) Compare(o SectionCoord) int {
	switch {
	case c.X != o.X:
		return cmpInt32(c.X, o.X)
	case c.Y != o.Y:
		return cmpInt32(c.Y, o.Y)
	default:
		return cmpInt32(c.Z, o.Z)
	}
}

func cmpInt32(a, b int32) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// ManhattanDistance returns the number of face steps between c and o.
func (c SectionCoord) ManhattanDistance(o SectionCoord) int32 {
	return absInt32(c.X-o.X) + absInt32(c.Y-o.Y) + absInt32(c.Z-o.Z)
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// TileOrigin returns the minimum corner of the tile holding c.
func (c SectionCoord) TileOrigin() SectionCoord {
	return SectionCoord{
		X: c.X &^ (TileSize - 1),
		Y: c.Y &^ (TileSize - 1),
		Z: c.Z &^ (TileSize - 1),
	}
}

// TileBit returns the word and the bit of c within its tile.
func (c SectionCoord) TileBit() (word int, bit uint) {
	dx := c.X & (TileSize - 1)
	dy := c.Y & (TileSize - 1)
	dz := c.Z & (TileSize - 1)
	return int(dz), uint(dx + dy*TileSize)
}

// Pack returns c as a 64-bit key: 22 bits of x, 22 bits of z and 20 bits of
// y.
func (c SectionCoord) Pack() int64 {
	return (int64(c.X)&0x3FFFFF)<<42 |
		(int64(c.Z)&0x3FFFFF)<<20 |
		int64(c.Y)&0xFFFFF
}

// UnpackSectionCoord reverses Pack.
func UnpackSectionCoord(key int64) SectionCoord {
	return SectionCoord{
		X: int32(key >> 42),
		Y: int32(key << 44 >> 44),
		Z: int32(key << 22 >> 42),
	}
}

// Box returns the block-space box of c relative to the camera offset.
func (c SectionCoord) Box(offset mgl64.Vec3) (min, max mgl64.Vec3) {
	min = mgl64.Vec3{
		float64(c.X)*SectionSize - offset.X(),
		float64(c.Y)*SectionSize - offset.Y(),
		float64(c.Z)*SectionSize - offset.Z(),
	}
	max = min.Add(mgl64.Vec3{SectionSize, SectionSize, SectionSize})
	return min, max
}

func (c SectionCoord) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.Z)
}

// Bounds is an inclusive box of section coordinates.
type Bounds struct {
	Min SectionCoord `json:"min"`
	Max SectionCoord `json:"max"`
}

func (b Bounds) Contains(c SectionCoord) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// Clamp returns the coordinate of b closest to c.
func (b Bounds) Clamp(c SectionCoord) SectionCoord {
	return SectionCoord{
		X: min(max(c.X, b.Min.X), b.Max.X),
		Y: min(max(c.Y, b.Min.Y), b.Max.Y),
		Z: min(max(c.Z, b.Min.Z), b.Max.Z),
	}
}

// ClampAt returns the coordinate of b closest to the section containing the
// given block position.
func (b Bounds) ClampAt(pos mgl64.Vec3) SectionCoord {
	clamp := func(v float64, lo, hi int32) int32 {
		return int32(min(max(sectionIndex(v), float64(lo)), float64(hi)))
	}

	return SectionCoord{
		X: clamp(pos.X(), b.Min.X, b.Max.X),
		Y: clamp(pos.Y(), b.Min.Y, b.Max.Y),
		Z: clamp(pos.Z(), b.Min.Z, b.Max.Z),
	}
}

// closestDistanceSquared returns the squared distance from the origin to the
// closest point of the box.
func closestDistanceSquared(min, max mgl64.Vec3) float64 {
	var d2 float64
	for i := range 3 {
		switch {
		case min[i] > 0:
			d2 += min[i] * min[i]
		case max[i] < 0:
			d2 += max[i] * max[i]
		}
	}
	return d2
}
