package graph

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestSectionCoordAt(t *testing.T) {
	require.Equal(t, SectionCoord{0, 0, 0}, SectionCoordAt(mgl64.Vec3{0, 15.9, 8}))
	require.Equal(t, SectionCoord{-1, 1, -2}, SectionCoordAt(mgl64.Vec3{-0.5, 16, -17}))

	t.Run("saturates", func(t *testing.T) {
		c := SectionCoordAt(mgl64.Vec3{1e11, -1e11, 0})
		require.Equal(t, SectionCoord{math.MaxInt32, math.MinInt32, 0}, c)
	})

	t.Run("clamped to bounds", func(t *testing.T) {
		b := Bounds{Min: SectionCoord{-2, 0, -2}, Max: SectionCoord{2, 0, 2}}
		require.Equal(t, SectionCoord{2, 0, -2}, b.ClampAt(mgl64.Vec3{1e11, 8, -1e20}))
		require.Equal(t, SectionCoord{1, 0, 0}, b.ClampAt(mgl64.Vec3{20, 8, 8}))
	})
}

func TestSectionCoordTile(t *testing.T) {
	t.Run("origin", func(t *testing.T) {
		require.Equal(t, SectionCoord{0, 0, 0}, SectionCoord{7, 3, 0}.TileOrigin())
		require.Equal(t, SectionCoord{-8, 8, -16}, SectionCoord{-1, 15, -9}.TileOrigin())
	})

	t.Run("bit index", func(t *testing.T) {
		for dx := range TileSize {
			for dy := range TileSize {
				for dz := range TileSize {
					c := SectionCoord{X: int32(-24 + dx), Y: int32(8 + dy), Z: int32(dz)}
					word, bit := c.TileBit()
					require.Equal(t, dz, word)
					require.Equal(t, uint(dx+dy*8), bit)
					require.Equal(t, TileBitIndex(dx, dy), bit)
				}
			}
		}
	})
}

func TestSectionCoordPack(t *testing.T) {
	coords := []SectionCoord{
		{0, 0, 0},
		{1, -1, 1},
		{-2097152, -524288, 2097151},
		{123, 45, -678},
	}

	for _, c := range coords {
		require.Equal(t, c, UnpackSectionCoord(c.Pack()))
	}
}

func TestSectionCoordCompare(t *testing.T) {
	require.Equal(t, -1, SectionCoord{0, 5, 5}.Compare(SectionCoord{1, 0, 0}))
	require.Equal(t, 1, SectionCoord{0, 1, 0}.Compare(SectionCoord{0, 0, 9}))
	require.Equal(t, -1, SectionCoord{0, 0, -1}.Compare(SectionCoord{0, 0, 0}))
	require.Equal(t, 0, SectionCoord{3, 2, 1}.Compare(SectionCoord{3, 2, 1}))
	require.Equal(t, int32(6), SectionCoord{1, -2, 3}.ManhattanDistance(SectionCoord{}))
}

func TestBounds(t *testing.T) {
	b := Bounds{
		Min: SectionCoord{-2, -4, -2},
		Max: SectionCoord{2, 4, 2},
	}

	require.True(t, b.Contains(SectionCoord{2, -4, 0}))
	require.False(t, b.Contains(SectionCoord{3, 0, 0}))
	require.False(t, b.Contains(SectionCoord{0, 5, 0}))
	require.Equal(t, SectionCoord{2, -4, 0}, b.Clamp(SectionCoord{10, -20, 0}))
}

func TestClosestDistanceSquared(t *testing.T) {
	min, max := SectionCoord{0, 0, 0}.Box(mgl64.Vec3{8, 8, 8})
	require.Equal(t, float64(0), closestDistanceSquared(min, max))

	min, max = SectionCoord{1, 0, 0}.Box(mgl64.Vec3{8, 8, 8})
	require.Equal(t, float64(64), closestDistanceSquared(min, max))

	min, max = SectionCoord{-1, -1, 0}.Box(mgl64.Vec3{8, 8, 8})
	require.Equal(t, float64(128), closestDistanceSquared(min, max))
}
