// Package render turns search results into the render sections a frame
// draws.
package render

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/models"
)

// SectionIndex looks up the render section of a coordinate.
type SectionIndex interface {
	SectionByCoord(c graph.SectionCoord) (*models.RenderSection, bool)
}

// Visitor is called for each visible render section.
type Visitor func(s *models.RenderSection)

// Decoder walks the tiles of a result set.
type Decoder struct {
	// StampFrames sets the last visible frame of every visited section.
	StampFrames bool

	// Flags restricts the visited sections to the ones carrying at least one
	// of the flags, read from the render lists of the result set. Zero visits
	// every visible section.
	Flags graph.SectionFlags
}

// Decode visits the render section of every visible coordinate, stamping
// it with the given frame. Coordinates without a render section are skipped.
// It returns the number of visited sections.
func Decode(rs *graph.ResultSet, index SectionIndex, frame uint64, visit Visitor) (int, error) {
	return Decoder{StampFrames: true}.Decode(rs, index, frame, visit)
}

func (d Decoder) Decode(rs *graph.ResultSet, index SectionIndex, frame uint64, visit Visitor) (int, error) {
	if rs.Stale() {
		return 0, errors.New("result set is stale").
			WithType(graph.ErrTypeStaleResult).
			WithTag("frame", frame)
	}

	count := 0
	decode := func(c graph.SectionCoord) {
		s, ok := index.SectionByCoord(c)
		if !ok {
			return
		}

		if d.StampFrames {
			s.SetLastVisibleFrame(frame)
		}
		visit(s)
		count++
	}

	if d.Flags == 0 {
		for _, tile := range rs.Tiles {
			for c := range tile.All() {
				decode(c)
			}
		}
	} else {
		// A section with several flags is in several lists.
		seen := make(map[graph.SectionCoord]struct{})
		for i := range graph.SectionFlagCount {
			flag := graph.SectionFlags(1 << i)
			if d.Flags&flag == 0 {
				continue
			}

			for _, c := range rs.Lists.List(flag) {
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				decode(c)
			}
		}
	}

	instrumentDecode(count)
	return count, nil
}
