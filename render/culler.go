package render

import (
	"sync"
	"time"

	"github.com/aukilabs/voxcull/engine"
	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/models"
)

// OcclusionCuller keeps a graph and the render sections of a world in sync and
// finds the sections visible in a frame.
type OcclusionCuller struct {
	// Decoder is used to visit visible sections.
	Decoder Decoder

	engine *engine.Engine
	handle engine.Handle
	store  *models.SectionStore

	mutex sync.Mutex
}

// NewOcclusionCuller creates a graph on the given engine. Render sections are
// indexed in store.
func NewOcclusionCuller(e *engine.Engine, cfg graph.Config, store *models.SectionStore) (*OcclusionCuller, error) {
	h, err := e.Create(cfg.RenderDistance, cfg.MinSectionY, cfg.MaxSectionY)
	if err != nil {
		return nil, err
	}

	return &OcclusionCuller{
		Decoder: Decoder{StampFrames: true},
		engine:  e,
		handle:  h,
		store:   store,
	}, nil
}

// Handle returns the handle of the graph of the culler.
func (c *OcclusionCuller) Handle() engine.Handle {
	return c.handle
}

// SetSection adds or replaces a section.
func (c *OcclusionCuller) SetSection(s *models.RenderSection, visibility graph.VisibilityData) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := c.engine.SetSection(c.handle, s.Coord.X, s.Coord.Y, s.Coord.Z, visibility, s.Flags)
	if err != nil {
		return err
	}

	c.store.Add(s)
	return nil
}

// RemoveSection removes a section.
func (c *OcclusionCuller) RemoveSection(coord graph.SectionCoord) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.engine.RemoveSection(c.handle, coord.X, coord.Y, coord.Z); err != nil {
		return err
	}

	c.store.Remove(coord)
	return nil
}

// SetCenter moves the horizontal center of the graph. Render sections that end
// up out of bounds are removed.
func (c *OcclusionCuller) SetCenter(x, z int32) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.engine.SetCenter(c.handle, x, z); err != nil {
		return err
	}

	info, err := c.engine.DebugInfo(c.handle)
	if err != nil {
		return err
	}

	for _, s := range c.store.Sections() {
		if !info.Bounds.Contains(s.Coord) {
			c.store.Remove(s.Coord)
		}
	}
	return nil
}

// FindVisible searches the graph with the given viewport and visits the
// render sections found visible, stamping them with frame. No mutation of the
// culler happens in between.
func (c *OcclusionCuller) FindVisible(visit Visitor, viewport graph.Frustum, searchDistance float32, useOcclusionCulling bool, frame uint64) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	defer instrumentFindVisibleLatency(time.Now())

	rs, err := c.engine.Search(c.handle, viewport, searchDistance, useOcclusionCulling)
	if err != nil {
		return 0, err
	}
	return c.Decoder.Decode(rs, c.store, frame, visit)
}

// Close destroys the graph of the culler and clears its render sections.
func (c *OcclusionCuller) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store.Clear()
	return c.engine.Destroy(c.handle)
}
