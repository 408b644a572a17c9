package graph

import (
	"sync"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/gammazero/deque"
	"github.com/google/uuid"
)

// MaxRenderDistance is the largest supported render distance, in sections.
const MaxRenderDistance = 127

const initialTileCapacity = 64

// Config is the immutable configuration of a graph.
type Config struct {
	RenderDistance uint8 `json:"render_distance" yaml:"render_distance"`
	MinSectionY    int8  `json:"min_section_y"   yaml:"min_section_y"`
	MaxSectionY    int8  `json:"max_section_y"   yaml:"max_section_y"`
}

func (c Config) Validate() error {
	if c.RenderDistance > MaxRenderDistance {
		return errors.New("render distance too large").
			WithType(ErrTypeInvalidConfig).
			WithTag("render_distance", c.RenderDistance).
			WithTag("max", MaxRenderDistance)
	}

	if c.MinSectionY > c.MaxSectionY {
		return errors.New("min section y greater than max section y").
			WithType(ErrTypeInvalidConfig).
			WithTag("min_section_y", c.MinSectionY).
			WithTag("max_section_y", c.MaxSectionY)
	}

	return nil
}

// Option customizes a graph.
type Option func(*Graph)

// WithAllocator sets the allocator backing search results.
func WithAllocator(a Allocator) Option {
	return func(g *Graph) {
		g.alloc = a
	}
}

type node struct {
	visibility VisibilityData
	flags      SectionFlags
}

// Graph is a sparse set of sections within a window of the world, searched
// once per frame to find the sections visible from a camera.
//
// The window spans RenderDistance sections around a horizontal center on x
// and z, and MinSectionY to MaxSectionY on y. Coordinates without a section
// are unknown: they never block visibility and are never reported visible.
//
// A graph is safe for concurrent use; every operation holds its lock.
type Graph struct {
	UUID string

	config Config
	alloc  Allocator
	epoch  atomic.Uint64

	mutex      sync.Mutex
	closed     bool
	centerX    int32
	centerZ    int32
	nodes      map[SectionCoord]node
	lastSearch SearchStats

	// Search scratch, reused from one search to the next.
	incoming    map[SectionCoord]DirectionSet
	tileIndex   map[SectionCoord]int
	tiles       []Tile
	frontier    deque.Deque[SectionCoord]
	layer       []SectionCoord
	renderLists RenderLists
}

// New creates an empty graph centered on (0, 0).
func New(cfg Config, opts ...Option) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		UUID:      uuid.NewString(),
		config:    cfg,
		alloc:     DefaultAllocator,
		nodes:     make(map[SectionCoord]node),
		incoming:  make(map[SectionCoord]DirectionSet),
		tileIndex: make(map[SectionCoord]int),
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.alloc.Validate(); err != nil {
		return nil, err
	}
	g.tiles = g.alloc.AlignedAlloc(initialTileCapacity)

	graphCount.Inc()
	return g, nil
}

// Config returns the configuration of the graph.
func (g *Graph) Config() Config {
	return g.config
}

// SetSection inserts a section, replacing the one at the same coordinate.
func (g *Graph) SetSection(x, y, z int32, visibility VisibilityData, flags SectionFlags) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return instrumentError("set_section", err)
	}

	c := SectionCoord{X: x, Y: y, Z: z}
	if b := g.bounds(); !b.Contains(c) {
		return instrumentError("set_section", errors.New("section out of bounds").
			WithType(ErrTypeOutOfBounds).
			WithTag("section", c).
			WithTag("bounds", b))
	}

	if _, ok := g.nodes[c]; !ok {
		instrumentSectionCount(1)
	}
	g.nodes[c] = node{
		visibility: visibility,
		flags:      flags,
	}

	g.epoch.Add(1)
	instrumentMutation("set_section")
	return nil
}

// RemoveSection removes the section at the given coordinate. Removing a
// missing section does nothing.
func (g *Graph) RemoveSection(x, y, z int32) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return instrumentError("remove_section", err)
	}

	c := SectionCoord{X: x, Y: y, Z: z}
	if _, ok := g.nodes[c]; ok {
		delete(g.nodes, c)
		instrumentSectionCount(-1)
	}

	g.epoch.Add(1)
	instrumentMutation("remove_section")
	return nil
}

// SetCenter moves the horizontal center of the graph and evicts the sections
// that end up out of bounds. A center whose window would leave the range of
// MinHorizontalCoord to MaxHorizontalCoord is rejected and the graph is left
// unchanged.
func (g *Graph) SetCenter(x, z int32) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return instrumentError("set_center", err)
	}

	rd := int64(g.config.RenderDistance)
	if int64(x)-rd < MinHorizontalCoord || int64(x)+rd > MaxHorizontalCoord ||
		int64(z)-rd < MinHorizontalCoord || int64(z)+rd > MaxHorizontalCoord {
		return instrumentError("set_center", errors.New("center out of bounds").
			WithType(ErrTypeOutOfBounds).
			WithTag("center_x", x).
			WithTag("center_z", z).
			WithTag("render_distance", rd))
	}

	g.centerX = x
	g.centerZ = z

	b := g.bounds()
	evicted := 0
	for c := range g.nodes {
		if !b.Contains(c) {
			delete(g.nodes, c)
			evicted++
		}
	}
	instrumentSectionCount(-evicted)

	g.epoch.Add(1)
	instrumentMutation("set_center")
	return nil
}

// Section returns the section at the given coordinate. A closed graph has no
// sections.
func (g *Graph) Section(x, y, z int32) (VisibilityData, SectionFlags, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes[SectionCoord{X: x, Y: y, Z: z}]
	return n.visibility, n.flags, ok
}

// Len returns the number of sections in the graph, 0 once closed.
func (g *Graph) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return len(g.nodes)
}

// Bounds returns the coordinates the graph accepts.
func (g *Graph) Bounds() Bounds {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.bounds()
}

// DebugInfo describes the state of a graph.
type DebugInfo struct {
	UUID       string      `json:"uuid"`
	Config     Config      `json:"config"`
	Bounds     Bounds      `json:"bounds"`
	Sections   int         `json:"sections"`
	Epoch      uint64      `json:"epoch"`
	Closed     bool        `json:"closed"`
	LastSearch SearchStats `json:"last_search"`
}

func (g *Graph) DebugInfo() DebugInfo {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return DebugInfo{
		UUID:       g.UUID,
		Config:     g.config,
		Bounds:     g.bounds(),
		Sections:   len(g.nodes),
		Epoch:      g.epoch.Load(),
		Closed:     g.closed,
		LastSearch: g.lastSearch,
	}
}

// Close releases the graph. Result sets it produced become stale and any
// later operation returns an error.
func (g *Graph) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if err := g.checkOpen(); err != nil {
		return err
	}

	g.closed = true
	instrumentSectionCount(-len(g.nodes))
	graphCount.Dec()

	g.alloc.AlignedFree(g.tiles)
	g.tiles = nil
	g.nodes = nil
	g.incoming = nil
	g.tileIndex = nil
	g.layer = nil
	g.renderLists = RenderLists{}
	g.frontier.Clear()

	g.epoch.Add(1)
	return nil
}

func (g *Graph) checkOpen() error {
	if g.closed {
		return errors.New("graph closed").
			WithType(ErrTypeGraphClosed).
			WithTag("graph_uuid", g.UUID)
	}
	return nil
}

func (g *Graph) bounds() Bounds {
	rd := int32(g.config.RenderDistance)
	return Bounds{
		Min: SectionCoord{
			X: g.centerX - rd,
			Y: int32(g.config.MinSectionY),
			Z: g.centerZ - rd,
		},
		Max: SectionCoord{
			X: g.centerX + rd,
			Y: int32(g.config.MaxSectionY),
			Z: g.centerZ + rd,
		},
	}
}
