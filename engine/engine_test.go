package engine

import (
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/graph"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

type panicRecorder struct {
	mutex sync.Mutex
	msgs  []string
}

func (r *panicRecorder) handle(msg string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *panicRecorder) messages() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.msgs...)
}

func newTestEngine(t *testing.T, alloc graph.Allocator) (*Engine, *panicRecorder) {
	var recorder panicRecorder
	e := &Engine{}

	err := e.Init(Options{
		PanicHandler: recorder.handle,
		Allocator:    alloc,
	})
	require.NoError(t, err)
	require.True(t, e.Supported())

	t.Cleanup(e.Shutdown)
	return e, &recorder
}

func TestEngineInit(t *testing.T) {
	t.Run("missing panic handler", func(t *testing.T) {
		var e Engine
		err := e.Init(Options{Allocator: graph.DefaultAllocator})
		require.True(t, errors.IsType(err, ErrTypeUnsupported))
		require.False(t, e.Supported())

		_, err = e.Create(8, 0, 4)
		require.True(t, errors.IsType(err, ErrTypeUnsupported))
	})

	t.Run("incomplete allocator", func(t *testing.T) {
		alloc := graph.DefaultAllocator
		alloc.Realloc = nil

		var e Engine
		err := e.Init(Options{
			PanicHandler: func(string) {},
			Allocator:    alloc,
		})
		require.True(t, errors.IsType(err, ErrTypeUnsupported))
		require.False(t, e.Supported())
	})

	t.Run("initialized twice", func(t *testing.T) {
		e, _ := newTestEngine(t, graph.DefaultAllocator)

		err := e.Init(Options{
			PanicHandler: func(string) {},
			Allocator:    graph.DefaultAllocator,
		})
		require.True(t, errors.IsType(err, ErrTypeAlreadyInitialized))
		require.True(t, e.Supported())
	})

	t.Run("shutdown", func(t *testing.T) {
		var e Engine
		require.NoError(t, e.Init(Options{
			PanicHandler: func(string) {},
			Allocator:    graph.DefaultAllocator,
		}))

		h, err := e.Create(4, 0, 0)
		require.NoError(t, err)

		e.Shutdown()
		require.False(t, e.Supported())
		require.Empty(t, e.Handles())

		err = e.RemoveSection(h, 0, 0, 0)
		require.True(t, errors.IsType(err, ErrTypeUnsupported))

		require.NoError(t, e.Init(Options{
			PanicHandler: func(string) {},
			Allocator:    graph.DefaultAllocator,
		}))
		e.Shutdown()
	})
}

func TestEngineHandles(t *testing.T) {
	e, _ := newTestEngine(t, graph.DefaultAllocator)

	h1, err := e.Create(4, -2, 2)
	require.NoError(t, err)
	h2, err := e.Create(8, 0, 16)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
	require.Equal(t, []Handle{h1, h2}, e.Handles())

	_, err = e.Create(4, 3, 2)
	require.True(t, errors.IsType(err, graph.ErrTypeInvalidConfig))

	require.NoError(t, e.SetSection(h1, 0, 0, 0, graph.Transparent, graph.HasBlockGeometry))
	require.NoError(t, e.SetSection(h1, 1, 0, 0, graph.Transparent, 0))
	require.NoError(t, e.RemoveSection(h1, 1, 0, 0))
	require.NoError(t, e.SetCenter(h1, 0, 0))

	err = e.SetSection(h1, 5, 0, 0, graph.Transparent, 0)
	require.True(t, errors.IsType(err, graph.ErrTypeOutOfBounds))

	rs, err := e.Search(h1, graph.SphereFrustum(mgl64.Vec3{8, 8, 8}), 100, true)
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())

	info, err := e.DebugInfo(h1)
	require.NoError(t, err)
	require.Equal(t, 1, info.Sections)

	require.NoError(t, e.Destroy(h1))
	require.Equal(t, []Handle{h2}, e.Handles())

	err = e.SetSection(h1, 0, 0, 0, graph.Transparent, 0)
	require.True(t, errors.IsType(err, ErrTypeInvalidHandle))

	_, err = e.Search(h1, graph.SphereFrustum(mgl64.Vec3{}), 100, true)
	require.True(t, errors.IsType(err, ErrTypeInvalidHandle))

	err = e.Destroy(h1)
	require.True(t, errors.IsType(err, ErrTypeInvalidHandle))

	err = e.RemoveSection(Handle(999), 0, 0, 0)
	require.True(t, errors.IsType(err, ErrTypeInvalidHandle))
}

func TestEngineSearchBinary(t *testing.T) {
	e, _ := newTestEngine(t, graph.DefaultAllocator)

	h, err := e.Create(4, -2, 2)
	require.NoError(t, err)
	require.NoError(t, e.SetSection(h, 0, 0, 0, graph.Opaque, 0))
	require.NoError(t, e.SetSection(h, 0, 1, 0, graph.Transparent, 0))

	b, err := graph.SphereFrustum(mgl64.Vec3{8, 8, 8}).MarshalBinary()
	require.NoError(t, err)

	rs, err := e.SearchBinary(h, b, 100, true)
	require.NoError(t, err)
	require.True(t, rs.Contains(graph.SectionCoord{}))
	require.False(t, rs.Contains(graph.SectionCoord{Y: 1}))

	_, err = e.SearchBinary(h, b[:100], 100, true)
	require.True(t, errors.IsType(err, graph.ErrTypeMalformedFrustum))
}

func TestEnginePanicRecovery(t *testing.T) {
	alloc := graph.DefaultAllocator
	alloc.Realloc = func(tiles []graph.Tile, n int) []graph.Tile {
		panic("out of memory")
	}
	alloc.AlignedAlloc = func(n int) []graph.Tile {
		return nil
	}

	e, recorder := newTestEngine(t, alloc)

	h, err := e.Create(4, -2, 2)
	require.NoError(t, err)
	require.NoError(t, e.SetSection(h, 0, 0, 0, graph.Transparent, 0))

	_, err = e.Search(h, graph.SphereFrustum(mgl64.Vec3{8, 8, 8}), 100, true)
	require.True(t, errors.IsType(err, ErrTypeInternal))
	require.Equal(t, []string{"search: out of memory"}, recorder.messages())

	err = e.SetSection(h, 1, 0, 0, graph.Transparent, 0)
	require.True(t, errors.IsType(err, ErrTypeInvalidHandle))

	require.NoError(t, e.Destroy(h))
	require.True(t, e.Supported())

	other, err := e.Create(4, -2, 2)
	require.NoError(t, err)
	require.NoError(t, e.SetSection(other, 0, 0, 0, graph.Transparent, 0))
}

func TestDefaultEngine(t *testing.T) {
	require.NoError(t, Init(Options{
		PanicHandler: func(string) {},
		Allocator:    graph.DefaultAllocator,
	}))
	defer Shutdown()

	require.True(t, Supported())

	h, err := Default.Create(2, 0, 0)
	require.NoError(t, err)
	require.NoError(t, Default.Destroy(h))
}

func TestEngineCreateDuringShutdown(t *testing.T) {
	for range 50 {
		e, _ := newTestEngine(t, graph.DefaultAllocator)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := e.Create(2, 0, 0); err != nil {
					require.True(t, errors.IsType(err, ErrTypeUnsupported))
					return
				}
			}
		}()

		e.Shutdown()
		wg.Wait()

		require.False(t, e.Supported())
		require.Empty(t, e.Handles())
	}
}
