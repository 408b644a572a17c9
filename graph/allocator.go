package graph

import "github.com/aukilabs/go-tooling/pkg/errors"

// Allocator provides the memory backing search results. The host can set it
// to pool or observe result storage.
type Allocator struct {
	// AlignedAlloc returns an empty slice with a capacity of at least n.
	AlignedAlloc func(n int) []Tile

	// AlignedFree releases a slice returned by the allocator.
	AlignedFree func(tiles []Tile)

	// Realloc returns a slice with the content of tiles and a capacity of at
	// least n.
	Realloc func(tiles []Tile, n int) []Tile

	// Calloc returns a zeroed slice of length n.
	Calloc func(n int) []Tile
}

// DefaultAllocator allocates on the Go heap.
var DefaultAllocator = Allocator{
	AlignedAlloc: func(n int) []Tile {
		return make([]Tile, 0, n)
	},
	AlignedFree: func(tiles []Tile) {},
	Realloc: func(tiles []Tile, n int) []Tile {
		if cap(tiles) >= n {
			return tiles
		}
		grown := make([]Tile, len(tiles), n)
		copy(grown, tiles)
		return grown
	},
	Calloc: func(n int) []Tile {
		return make([]Tile, n)
	},
}

// Validate returns an error when a function of the allocator is missing.
func (a Allocator) Validate() error {
	missing := ""
	switch {
	case a.AlignedAlloc == nil:
		missing = "aligned_alloc"
	case a.AlignedFree == nil:
		missing = "aligned_free"
	case a.Realloc == nil:
		missing = "realloc"
	case a.Calloc == nil:
		missing = "calloc"
	default:
		return nil
	}

	return errors.New("incomplete allocator").
		WithType(ErrTypeInvalidConfig).
		WithTag("missing", missing)
}
