package graph

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T, renderDistance uint8, minY, maxY int8, opts ...Option) *Graph {
	g, err := New(Config{
		RenderDistance: renderDistance,
		MinSectionY:    minY,
		MaxSectionY:    maxY,
	}, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		g.Close()
	})
	return g
}

func TestNewGraph(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		g := newTestGraph(t, 8, -4, 20)
		require.Equal(t, 0, g.Len())
		require.NotEmpty(t, g.UUID)
		require.Equal(t, Bounds{
			Min: SectionCoord{-8, -4, -8},
			Max: SectionCoord{8, 20, 8},
		}, g.Bounds())
	})

	t.Run("min y greater than max y", func(t *testing.T) {
		_, err := New(Config{RenderDistance: 8, MinSectionY: 2, MaxSectionY: 1})
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})

	t.Run("render distance too large", func(t *testing.T) {
		_, err := New(Config{RenderDistance: MaxRenderDistance + 1})
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})

	t.Run("incomplete allocator", func(t *testing.T) {
		alloc := DefaultAllocator
		alloc.Calloc = nil

		_, err := New(Config{RenderDistance: 2}, WithAllocator(alloc))
		require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
	})
}

func TestGraphSetSection(t *testing.T) {
	t.Run("insert", func(t *testing.T) {
		g := newTestGraph(t, 2, -1, 1)

		err := g.SetSection(1, -1, 2, Transparent, HasBlockGeometry)
		require.NoError(t, err)
		require.Equal(t, 1, g.Len())

		v, flags, ok := g.Section(1, -1, 2)
		require.True(t, ok)
		require.Equal(t, Transparent, v)
		require.Equal(t, HasBlockGeometry, flags)
	})

	t.Run("overwrite", func(t *testing.T) {
		g := newTestGraph(t, 2, -1, 1)

		require.NoError(t, g.SetSection(0, 0, 0, Opaque, HasBlockEntities))
		require.NoError(t, g.SetSection(0, 0, 0, OpaqueFaces(DirectionSetOf(PosY)), HasAnimatedSprites))
		require.Equal(t, 1, g.Len())

		v, flags, ok := g.Section(0, 0, 0)
		require.True(t, ok)
		require.Equal(t, OpaqueFaces(DirectionSetOf(PosY)), v)
		require.Equal(t, HasAnimatedSprites, flags)
	})

	t.Run("out of bounds", func(t *testing.T) {
		g := newTestGraph(t, 2, -1, 1)

		coords := []SectionCoord{
			{3, 0, 0},
			{-3, 0, 0},
			{0, 2, 0},
			{0, -2, 0},
			{0, 0, 3},
			{0, 0, -3},
		}

		for _, c := range coords {
			err := g.SetSection(c.X, c.Y, c.Z, Transparent, 0)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeOutOfBounds))
		}
		require.Equal(t, 0, g.Len())
	})
}

func TestGraphRemoveSection(t *testing.T) {
	g := newTestGraph(t, 2, -1, 1)

	require.NoError(t, g.SetSection(1, 0, 1, Transparent, 0))
	require.NoError(t, g.RemoveSection(1, 0, 1))
	require.Equal(t, 0, g.Len())

	_, _, ok := g.Section(1, 0, 1)
	require.False(t, ok)

	require.NoError(t, g.RemoveSection(1, 0, 1))
	require.NoError(t, g.RemoveSection(100, 0, 1))
}

func TestGraphSetCenter(t *testing.T) {
	g := newTestGraph(t, 2, 0, 0)

	require.NoError(t, g.SetSection(-2, 0, 0, Transparent, 0))
	require.NoError(t, g.SetSection(2, 0, 2, Transparent, 0))

	require.NoError(t, g.SetCenter(3, 1))
	require.Equal(t, 1, g.Len())

	_, _, ok := g.Section(2, 0, 2)
	require.True(t, ok)

	require.NoError(t, g.SetSection(5, 0, 3, Transparent, 0))
	require.Error(t, g.SetSection(-2, 0, 0, Transparent, 0))
}

func TestGraphSetCenterRange(t *testing.T) {
	g := newTestGraph(t, 4, 0, 0)
	require.NoError(t, g.SetSection(0, 0, 0, Transparent, 0))
	before := g.Bounds()

	for _, center := range [][2]int32{
		{math.MaxInt32 - 2, 0},
		{0, math.MinInt32 + 1},
		{MaxHorizontalCoord - 3, 0},
		{0, MinHorizontalCoord + 3},
	} {
		err := g.SetCenter(center[0], center[1])
		require.True(t, errors.IsType(err, ErrTypeOutOfBounds), "center %v", center)
		require.Equal(t, before, g.Bounds())
		require.Equal(t, 1, g.Len())
	}

	require.NoError(t, g.SetCenter(MaxHorizontalCoord-4, MinHorizontalCoord+4))
	b := g.Bounds()
	require.Equal(t, int32(MaxHorizontalCoord), b.Max.X)
	require.Equal(t, int32(MinHorizontalCoord), b.Min.Z)

	require.NoError(t, g.SetSection(MaxHorizontalCoord, 0, MinHorizontalCoord, Transparent, 0))
	c := SectionCoord{MaxHorizontalCoord, 0, MinHorizontalCoord}
	require.Equal(t, c, UnpackSectionCoord(c.Pack()))
}

func TestGraphClose(t *testing.T) {
	g, err := New(Config{RenderDistance: 2})
	require.NoError(t, err)

	require.NoError(t, g.SetSection(0, 0, 0, Transparent, 0))
	rs, err := g.Search(SphereFrustum(mgl64.Vec3{8, 8, 8}), 64, true)
	require.NoError(t, err)
	require.False(t, rs.Stale())

	require.NoError(t, g.Close())
	require.True(t, rs.Stale())
	require.Equal(t, 0, g.Len())

	err = g.SetSection(0, 0, 0, Transparent, 0)
	require.True(t, errors.IsType(err, ErrTypeGraphClosed))

	err = g.RemoveSection(0, 0, 0)
	require.True(t, errors.IsType(err, ErrTypeGraphClosed))

	err = g.SetCenter(0, 0)
	require.True(t, errors.IsType(err, ErrTypeGraphClosed))

	_, err = g.Search(SphereFrustum(mgl64.Vec3{}), 64, true)
	require.True(t, errors.IsType(err, ErrTypeGraphClosed))

	err = g.Close()
	require.True(t, errors.IsType(err, ErrTypeGraphClosed))
	require.True(t, g.DebugInfo().Closed)

	t.Run("read accessors report an empty graph", func(t *testing.T) {
		_, _, ok := g.Section(0, 0, 0)
		require.False(t, ok)
		require.Equal(t, 0, g.Len())
		require.Equal(t, Bounds{Min: SectionCoord{-2, 0, -2}, Max: SectionCoord{2, 0, 2}}, g.Bounds())

		info := g.DebugInfo()
		require.True(t, info.Closed)
		require.Equal(t, 0, info.Sections)
	})
}

func TestGraphDebugInfo(t *testing.T) {
	g := newTestGraph(t, 4, -2, 2)

	require.NoError(t, g.SetSection(0, 0, 0, Transparent, 0))
	require.NoError(t, g.SetSection(1, 0, 0, Transparent, 0))

	_, err := g.Search(SphereFrustum(mgl64.Vec3{8, 8, 8}), 256, true)
	require.NoError(t, err)

	info := g.DebugInfo()
	require.Equal(t, g.UUID, info.UUID)
	require.Equal(t, 2, info.Sections)
	require.Equal(t, 2, info.LastSearch.Visible)
	require.Equal(t, 1, info.LastSearch.Tiles)
	require.NotZero(t, info.LastSearch.Visited)
	require.Equal(t, uint64(3), info.Epoch)
}
