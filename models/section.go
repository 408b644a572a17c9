package models

import (
	"sync/atomic"

	"github.com/aukilabs/voxcull/graph"
)

// RenderSection is the renderer side of a section: what it holds and the last
// frame it was found visible in.
type RenderSection struct {
	Coord graph.SectionCoord
	Flags graph.SectionFlags

	lastVisibleFrame atomic.Uint64
}

func NewRenderSection(c graph.SectionCoord, flags graph.SectionFlags) *RenderSection {
	return &RenderSection{
		Coord: c,
		Flags: flags,
	}
}

// LastVisibleFrame returns the last frame the section was visible in.
func (s *RenderSection) LastVisibleFrame() uint64 {
	return s.lastVisibleFrame.Load()
}

func (s *RenderSection) SetLastVisibleFrame(frame uint64) {
	s.lastVisibleFrame.Store(frame)
}

// IsVisibleIn reports whether the section was visible in the given frame.
func (s *RenderSection) IsVisibleIn(frame uint64) bool {
	return s.LastVisibleFrame() == frame
}
