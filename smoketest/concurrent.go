package smoketest

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

const ErrTypeCheckFailed = "check_failed"

var concurrentGraphConfig = graph.Config{
	RenderDistance: 6,
	MinSectionY:    -3,
	MaxSectionY:    3,
}

// ConcurrentReport is the outcome of the phase where a graph is mutated and
// searched at the same time.
type ConcurrentReport struct {
	Mutations  int64         `json:"mutations"`
	Searches   int64         `json:"searches"`
	MaxVisible int           `json:"max_visible"`
	Duration   time.Duration `json:"duration"`
}

func runConcurrentPhase(ctx context.Context, opts Options) (ConcurrentReport, error) {
	start := time.Now()
	e := opts.Engine

	h, err := e.Create(
		concurrentGraphConfig.RenderDistance,
		concurrentGraphConfig.MinSectionY,
		concurrentGraphConfig.MaxSectionY,
	)
	if err != nil {
		return ConcurrentReport{}, errors.New("creating concurrent phase graph failed").Wrap(err)
	}
	defer e.Destroy(h)

	info, err := e.DebugInfo(h)
	if err != nil {
		return ConcurrentReport{}, err
	}
	bounds := info.Bounds

	var mutations, searches atomic.Int64
	var maxVisible atomic.Int64

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r := rand.New(rand.NewPCG(opts.Seed, 1))

		for range opts.Iterations {
			if err := ctx.Err(); err != nil {
				return err
			}

			c := randomCoord(r, bounds)

			var err error
			if r.IntN(4) == 0 {
				err = e.RemoveSection(h, c.X, c.Y, c.Z)
			} else {
				visibility := graph.VisibilityData(r.Uint64()) & graph.Transparent
				err = e.SetSection(h, c.X, c.Y, c.Z, visibility, graph.HasBlockGeometry)
			}
			if err != nil {
				return errors.New("mutating graph failed").
					WithTag("section", c).
					Wrap(err)
			}
			mutations.Add(1)
		}
		return nil
	})

	g.Go(func() error {
		frustum := graph.SphereFrustum(mgl64.Vec3{8, 8, 8})
		capacity := cellCount(bounds)

		for i := range opts.Iterations {
			if err := ctx.Err(); err != nil {
				return err
			}

			rs, err := e.Search(h, frustum, 96, i%2 == 0)
			if err != nil {
				return errors.New("searching graph failed").Wrap(err)
			}

			// The mutator does not touch the tiles of a result, but the
			// epoch moves on with each of its mutations.
			result := rs.Clone()
			visible := 0
			for c := range result.All() {
				if !bounds.Contains(c) {
					return errors.New("visible section out of bounds").
						WithType(ErrTypeCheckFailed).
						WithTag("section", c).
						WithTag("bounds", bounds)
				}
				visible++
			}
			if visible > capacity {
				return errors.New("more visible sections than cells").
					WithType(ErrTypeCheckFailed).
					WithTag("visible", visible)
			}

			for {
				m := maxVisible.Load()
				if int64(visible) <= m || maxVisible.CompareAndSwap(m, int64(visible)) {
					break
				}
			}
			searches.Add(1)
		}
		return nil
	})

	err = g.Wait()
	return ConcurrentReport{
		Mutations:  mutations.Load(),
		Searches:   searches.Load(),
		MaxVisible: int(maxVisible.Load()),
		Duration:   time.Since(start),
	}, err
}

func randomCoord(r *rand.Rand, b graph.Bounds) graph.SectionCoord {
	return graph.SectionCoord{
		X: b.Min.X + r.Int32N(b.Max.X-b.Min.X+1),
		Y: b.Min.Y + r.Int32N(b.Max.Y-b.Min.Y+1),
		Z: b.Min.Z + r.Int32N(b.Max.Z-b.Min.Z+1),
	}
}

func cellCount(b graph.Bounds) int {
	return int(b.Max.X-b.Min.X+1) *
		int(b.Max.Y-b.Min.Y+1) *
		int(b.Max.Z-b.Min.Z+1)
}
