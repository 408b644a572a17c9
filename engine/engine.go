// Package engine exposes visibility graphs behind opaque handles, with the
// process-wide setup a host installs once: a panic handler and the allocator
// backing search results.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/models"
)

const (
	ErrTypeInvalidHandle      = "invalid_handle"
	ErrTypeAlreadyInitialized = "already_initialized"
	ErrTypeUnsupported        = "engine_unsupported"
	ErrTypeInternal           = "internal"
)

// Handle identifies a graph created by an engine.
type Handle uint32

// PanicHandler receives the description of an internal fault. It is called
// instead of letting the fault crash the host.
type PanicHandler func(msg string)

// Options are the process-wide settings of an engine.
type Options struct {
	PanicHandler PanicHandler
	Allocator    graph.Allocator
}

type entry struct {
	graph   *graph.Graph
	faulted atomic.Bool
}

// Engine manages graphs behind handles. An engine must be initialized once
// before use.
type Engine struct {
	supported atomic.Bool

	mutex        sync.RWMutex
	initialized  bool
	panicHandler PanicHandler
	allocator    graph.Allocator
	ids          models.SequentialIDGenerator
	graphs       map[Handle]*entry
}

// Default is the engine of the process.
var Default = &Engine{}

// Init initializes the default engine.
func Init(opts Options) error {
	return Default.Init(opts)
}

// Supported reports whether the default engine is usable.
func Supported() bool {
	return Default.Supported()
}

// Shutdown releases the default engine.
func Shutdown() {
	Default.Shutdown()
}

// Init installs the panic handler and the allocator. It fails when one of them
// is missing, leaving the engine unsupported, and when the engine was already
// initialized.
func (e *Engine) Init(opts Options) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.initialized {
		return errors.New("engine already initialized").
			WithType(ErrTypeAlreadyInitialized)
	}

	if opts.PanicHandler == nil {
		return errors.New("missing panic handler").
			WithType(ErrTypeUnsupported)
	}

	if err := opts.Allocator.Validate(); err != nil {
		return errors.New("invalid allocator").
			WithType(ErrTypeUnsupported).
			Wrap(err)
	}

	e.initialized = true
	e.panicHandler = opts.PanicHandler
	e.allocator = opts.Allocator
	e.graphs = make(map[Handle]*entry)
	e.supported.Store(true)
	return nil
}

// Supported reports whether the engine is initialized and usable.
func (e *Engine) Supported() bool {
	return e.supported.Load()
}

// Shutdown closes every graph and resets the engine to its uninitialized
// state.
func (e *Engine) Shutdown() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for h, ent := range e.graphs {
		ent.graph.Close()
		delete(e.graphs, h)
		instrumentHandleCount(-1)
	}

	e.supported.Store(false)
	e.initialized = false
	e.panicHandler = nil
	e.allocator = graph.Allocator{}
}

// Create creates a graph and returns its handle.
func (e *Engine) Create(renderDistance uint8, minSectionY, maxSectionY int8) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = e.report("create", 0, r)
		}
	}()

	// Held until the graph is registered so that a concurrent Shutdown
	// cannot leave it behind.
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if err := e.checkSupported(); err != nil {
		return 0, err
	}

	g, err := graph.New(graph.Config{
		RenderDistance: renderDistance,
		MinSectionY:    minSectionY,
		MaxSectionY:    maxSectionY,
	}, graph.WithAllocator(e.allocator))
	if err != nil {
		return 0, err
	}

	h = Handle(e.ids.New())
	e.graphs[h] = &entry{graph: g}
	instrumentHandleCount(1)
	return h, nil
}

func (e *Engine) SetSection(h Handle, x, y, z int32, visibility graph.VisibilityData, flags graph.SectionFlags) error {
	return e.call(h, "set_section", func(g *graph.Graph) error {
		return g.SetSection(x, y, z, visibility, flags)
	})
}

func (e *Engine) RemoveSection(h Handle, x, y, z int32) error {
	return e.call(h, "remove_section", func(g *graph.Graph) error {
		return g.RemoveSection(x, y, z)
	})
}

func (e *Engine) SetCenter(h Handle, x, z int32) error {
	return e.call(h, "set_center", func(g *graph.Graph) error {
		return g.SetCenter(x, z)
	})
}

// Search searches the graph of the given handle. See graph.Graph.Search.
func (e *Engine) Search(h Handle, f graph.Frustum, searchDistance float32, useOcclusionCulling bool) (*graph.ResultSet, error) {
	var rs *graph.ResultSet
	err := e.call(h, "search", func(g *graph.Graph) error {
		var err error
		rs, err = g.Search(f, searchDistance, useOcclusionCulling)
		return err
	})
	return rs, err
}

// SearchBinary is Search with a frustum in its binary encoding.
func (e *Engine) SearchBinary(h Handle, frustum []byte, searchDistance float32, useOcclusionCulling bool) (*graph.ResultSet, error) {
	f, err := graph.UnmarshalFrustum(frustum)
	if err != nil {
		return nil, err
	}
	return e.Search(h, f, searchDistance, useOcclusionCulling)
}

// DebugInfo returns the debug info of the graph of the given handle.
func (e *Engine) DebugInfo(h Handle) (graph.DebugInfo, error) {
	var info graph.DebugInfo
	err := e.call(h, "debug_info", func(g *graph.Graph) error {
		info = g.DebugInfo()
		return nil
	})
	return info, err
}

// Destroy closes the graph of the given handle. The handle is invalid
// afterward, including when it was faulted.
func (e *Engine) Destroy(h Handle) error {
	if err := e.checkSupported(); err != nil {
		return err
	}

	e.mutex.Lock()
	ent, ok := e.graphs[h]
	delete(e.graphs, h)
	e.mutex.Unlock()

	if !ok {
		return invalidHandle(h)
	}

	instrumentHandleCount(-1)
	return ent.graph.Close()
}

// Handles returns the live handles, in ascending order.
func (e *Engine) Handles() []Handle {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	handles := make([]Handle, 0, len(e.graphs))
	for h := range e.graphs {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i] < handles[j]
	})
	return handles
}

func (e *Engine) call(h Handle, op string, f func(g *graph.Graph) error) (err error) {
	if err := e.checkSupported(); err != nil {
		return err
	}

	e.mutex.RLock()
	ent, ok := e.graphs[h]
	e.mutex.RUnlock()

	if !ok {
		return invalidHandle(h)
	}
	if ent.faulted.Load() {
		return errors.New("handle faulted").
			WithType(ErrTypeInvalidHandle).
			WithTag("handle", h)
	}

	defer func() {
		if r := recover(); r != nil {
			ent.faulted.Store(true)
			err = e.report(op, h, r)
		}
	}()

	err = f(ent.graph)
	instrumentCall(op, err)
	return err
}

func (e *Engine) report(op string, h Handle, r any) error {
	msg := fmt.Sprintf("%s: %v", op, r)

	e.mutex.RLock()
	handler := e.panicHandler
	e.mutex.RUnlock()

	if handler != nil {
		handler(msg)
	}

	err := errors.New("internal error").
		WithType(ErrTypeInternal).
		WithTag("op", op).
		WithTag("handle", h).
		WithTag("panic", fmt.Sprint(r))
	instrumentCall(op, err)
	return err
}

func (e *Engine) checkSupported() error {
	if !e.supported.Load() {
		return errors.New("engine not supported").
			WithType(ErrTypeUnsupported)
	}
	return nil
}

func invalidHandle(h Handle) error {
	return errors.New("invalid handle").
		WithType(ErrTypeInvalidHandle).
		WithTag("handle", h)
}
