package models

import (
	"testing"

	"github.com/aukilabs/voxcull/graph"
	"github.com/stretchr/testify/require"
)

func TestSectionStore(t *testing.T) {
	t.Run("add and get", func(t *testing.T) {
		s := NewSectionStore(t.Name())
		section := NewRenderSection(graph.SectionCoord{X: -3, Y: 2, Z: 100}, graph.HasBlockGeometry)
		s.Add(section)

		got, ok := s.SectionByCoord(graph.SectionCoord{X: -3, Y: 2, Z: 100})
		require.True(t, ok)
		require.Same(t, section, got)
		require.Equal(t, 1, s.Len())

		_, ok = s.SectionByCoord(graph.SectionCoord{X: 3, Y: 2, Z: 100})
		require.False(t, ok)
	})

	t.Run("replace", func(t *testing.T) {
		s := NewSectionStore(t.Name())
		s.Add(NewRenderSection(graph.SectionCoord{}, 0))
		replacement := NewRenderSection(graph.SectionCoord{}, graph.HasBlockEntities)
		s.Add(replacement)

		got, ok := s.SectionByCoord(graph.SectionCoord{})
		require.True(t, ok)
		require.Same(t, replacement, got)
		require.Equal(t, 1, s.Len())
	})

	t.Run("remove", func(t *testing.T) {
		s := NewSectionStore(t.Name())
		s.Add(NewRenderSection(graph.SectionCoord{X: 1}, 0))
		s.Add(NewRenderSection(graph.SectionCoord{X: 2}, 0))

		s.Remove(graph.SectionCoord{X: 1})
		s.Remove(graph.SectionCoord{X: 5})
		require.Equal(t, 1, s.Len())
		require.Len(t, s.Sections(), 1)

		s.Clear()
		require.Equal(t, 0, s.Len())
	})
}

func TestRenderSectionFrame(t *testing.T) {
	s := NewRenderSection(graph.SectionCoord{}, 0)
	require.Zero(t, s.LastVisibleFrame())

	s.SetLastVisibleFrame(42)
	require.Equal(t, uint64(42), s.LastVisibleFrame())
	require.True(t, s.IsVisibleIn(42))
	require.False(t, s.IsVisibleIn(43))
}
