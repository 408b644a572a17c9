package graph

import (
	"math"
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

type searchContext struct {
	frustum          Frustum
	seed             SectionCoord
	bounds           Bounds
	distanceSquared  float64
	occlusionCulling bool
	visited          int
	visible          int
}

// Search returns the sections visible from the camera of the given frustum.
//
// The search floods the graph from the section holding the camera, one layer
// of equal face distance at a time, never stepping back toward the camera.
// A section is reached when its box is not outside the frustum and the
// closest point of its box is within searchDistance of the camera. With
// occlusion culling, visibility only leaves a section through the faces its
// VisibilityData connects to the faces it was entered through.
//
// The result shares storage with the graph. See ResultSet.
func (g *Graph) Search(f Frustum, searchDistance float32, useOcclusionCulling bool) (*ResultSet, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return nil, instrumentError("search", err)
	}
	if err := f.Validate(); err != nil {
		return nil, instrumentError("search", err)
	}
	if math.IsNaN(float64(searchDistance)) || searchDistance < 0 {
		return nil, instrumentError("search", errors.New("invalid search distance").
			WithType(ErrTypeInvalidArgument).
			WithTag("search_distance", searchDistance))
	}

	start := time.Now()
	epoch := g.epoch.Add(1)

	bounds := g.bounds()
	ctx := searchContext{
		frustum:          f,
		seed:             bounds.ClampAt(f.Offset),
		bounds:           bounds,
		distanceSquared:  float64(searchDistance) * float64(searchDistance),
		occlusionCulling: useOcclusionCulling,
	}

	g.reset()
	if len(g.nodes) != 0 {
		g.search(&ctx)
	}

	g.lastSearch = SearchStats{
		Seed:     ctx.seed,
		Visited:  ctx.visited,
		Visible:  ctx.visible,
		Tiles:    len(g.tiles),
		Duration: time.Since(start),
	}
	instrumentSearch(g.lastSearch, useOcclusionCulling)

	return &ResultSet{
		Tiles: g.tiles,
		Lists: g.renderLists,
		graph: g,
		epoch: epoch,
	}, nil
}

func (g *Graph) reset() {
	clear(g.incoming)
	clear(g.tileIndex)
	g.tiles = g.tiles[:0]
	g.layer = g.layer[:0]
	g.renderLists.reset()
	g.frontier.Clear()
}

func (g *Graph) search(ctx *searchContext) {
	g.incoming[ctx.seed] = AllDirections
	g.frontier.PushBack(ctx.seed)

	for g.frontier.Len() != 0 {
		// Every coordinate of a layer is one face step further from the seed
		// than the previous layer, so all its incoming directions are known.
		g.layer = g.layer[:0]
		for g.frontier.Len() != 0 {
			g.layer = append(g.layer, g.frontier.PopFront())
		}
		slices.SortFunc(g.layer, SectionCoord.Compare)

		for _, c := range g.layer {
			g.visit(ctx, c)
		}
	}
}

func (g *Graph) visit(ctx *searchContext, c SectionCoord) {
	ctx.visited++

	min, max := c.Box(ctx.frustum.Offset)
	if !ctx.inRange(c, closestDistanceSquared(min, max)) {
		return
	}
	if ctx.frustum.TestBox(toVec3(min), toVec3(max)) == Outside {
		return
	}

	n, ok := g.nodes[c]
	if ok {
		g.emit(c, n.flags)
		ctx.visible++
	}

	outgoing := AllDirections
	if ok && ctx.occlusionCulling {
		outgoing = n.visibility.Outgoing(g.incoming[c])
	}
	outgoing &= ctx.awayFromSeed(c)

	for d := range outgoing.All() {
		neighbor := c.Neighbor(d)
		if !ctx.bounds.Contains(neighbor) {
			continue
		}

		nmin, nmax := neighbor.Box(ctx.frustum.Offset)
		if !ctx.inRange(neighbor, closestDistanceSquared(nmin, nmax)) {
			continue
		}

		incoming, queued := g.incoming[neighbor]
		g.incoming[neighbor] = incoming.With(d.Opposite())
		if !queued {
			g.frontier.PushBack(neighbor)
		}
	}
}

func (g *Graph) emit(c SectionCoord, flags SectionFlags) {
	origin := c.TileOrigin()

	i, ok := g.tileIndex[origin]
	if !ok {
		if len(g.tiles) == cap(g.tiles) {
			g.tiles = g.alloc.Realloc(g.tiles, 2*cap(g.tiles)+1)
		}
		g.tiles = append(g.tiles, Tile{Origin: origin})
		i = len(g.tiles) - 1
		g.tileIndex[origin] = i
	}

	if !g.tiles[i].set(c) {
		panic("section " + c.String() + " emitted twice")
	}
	g.renderLists.add(c, flags)
}

// inRange reports whether a box at the given squared distance is within the
// search distance. The box holding the camera always is.
func (ctx *searchContext) inRange(c SectionCoord, d2 float64) bool {
	return d2 < ctx.distanceSquared || (d2 == 0 && c == ctx.seed)
}

// awayFromSeed returns the directions that do not lead back toward the seed.
func (ctx *searchContext) awayFromSeed(c SectionCoord) DirectionSet {
	var s DirectionSet
	if c.X <= ctx.seed.X {
		s = s.With(NegX)
	}
	if c.X >= ctx.seed.X {
		s = s.With(PosX)
	}
	if c.Y <= ctx.seed.Y {
		s = s.With(NegY)
	}
	if c.Y >= ctx.seed.Y {
		s = s.With(PosY)
	}
	if c.Z <= ctx.seed.Z {
		s = s.With(NegZ)
	}
	if c.Z >= ctx.seed.Z {
		s = s.With(PosZ)
	}
	return s
}

func toVec3(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}
