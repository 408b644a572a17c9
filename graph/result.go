package graph

import (
	"iter"
	"math/bits"
	"slices"
)

// Tile is an 8x8x8 block of sections. Word z holds the sections of layer z,
// with bit x + y*8.
type Tile struct {
	Origin SectionCoord
	Words  [tileWords]uint64
}

// TileBitIndex returns the bit of a section within its tile word.
func TileBitIndex(dx, dy int) uint {
	return uint(dx + dy*TileSize)
}

func (t *Tile) set(c SectionCoord) bool {
	word, bit := c.TileBit()
	if t.Words[word]&(1<<bit) != 0 {
		return false
	}
	t.Words[word] |= 1 << bit
	return true
}

// Contains reports whether the bit of c is set.
func (t Tile) Contains(c SectionCoord) bool {
	if c.TileOrigin() != t.Origin {
		return false
	}
	word, bit := c.TileBit()
	return t.Words[word]&(1<<bit) != 0
}

// Count returns the number of sections set in the tile.
func (t Tile) Count() int {
	n := 0
	for _, w := range t.Words {
		n += bits.OnesCount64(w)
	}
	return n
}

// All iterates the sections of the tile, word by word.
func (t Tile) All() iter.Seq[SectionCoord] {
	return func(yield func(SectionCoord) bool) {
		for z, w := range t.Words {
			for ; w != 0; w &= w - 1 {
				bit := int32(bits.TrailingZeros64(w))
				c := SectionCoord{
					X: t.Origin.X + bit&(TileSize-1),
					Y: t.Origin.Y + (bit>>3)&(TileSize-1),
					Z: t.Origin.Z + int32(z),
				}
				if !yield(c) {
					return
				}
			}
		}
	}
}

// ResultSet is the output of a graph search: the visible sections grouped by
// tile, in the order the search first reached each tile.
//
// Tiles share storage with the graph that produced them. They are valid until
// the next mutation, search or close of that graph; Stale reports when that
// happened. Use Clone to keep a result around.
type ResultSet struct {
	Tiles []Tile
	Lists RenderLists

	graph *Graph
	epoch uint64
}

// Stale reports whether the graph changed since the result was produced.
func (r *ResultSet) Stale() bool {
	return r.graph != nil && r.graph.epoch.Load() != r.epoch
}

// Len returns the number of visible sections.
func (r *ResultSet) Len() int {
	n := 0
	for _, t := range r.Tiles {
		n += t.Count()
	}
	return n
}

// All iterates the visible sections, tile by tile.
func (r *ResultSet) All() iter.Seq[SectionCoord] {
	return func(yield func(SectionCoord) bool) {
		for _, t := range r.Tiles {
			for c := range t.All() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Contains reports whether c is visible.
func (r *ResultSet) Contains(c SectionCoord) bool {
	origin := c.TileOrigin()
	for _, t := range r.Tiles {
		if t.Origin == origin {
			return t.Contains(c)
		}
	}
	return false
}

// Clone returns a copy of the result that does not share storage with the
// graph.
func (r *ResultSet) Clone() *ResultSet {
	alloc := DefaultAllocator
	if r.graph != nil {
		alloc = r.graph.alloc
	}

	tiles := alloc.Calloc(len(r.Tiles))
	copy(tiles, r.Tiles)

	var lists RenderLists
	for i, l := range r.Lists {
		lists[i] = slices.Clone(l)
	}
	return &ResultSet{Tiles: tiles, Lists: lists}
}

// ContainsWith reports whether c is visible and carries flag.
func (r *ResultSet) ContainsWith(c SectionCoord, flag SectionFlags) bool {
	return slices.Contains(r.Lists.List(flag), c)
}

// RenderLists sorts visible sections by what they hold, in the order the
// search reached them. A section is in the list of each of its flags, so a
// section without flags is in none.
type RenderLists [SectionFlagCount][]SectionCoord

// List returns the visible sections carrying the given flag. It returns nil
// unless flag is exactly one flag.
func (l *RenderLists) List(flag SectionFlags) []SectionCoord {
	if flag == 0 || flag&(flag-1) != 0 {
		return nil
	}
	i := bits.TrailingZeros8(uint8(flag))
	if i >= SectionFlagCount {
		return nil
	}
	return l[i]
}

func (l *RenderLists) add(c SectionCoord, flags SectionFlags) {
	for i := range l {
		if flags&(1<<i) != 0 {
			l[i] = append(l[i], c)
		}
	}
}

func (l *RenderLists) reset() {
	for i := range l {
		l[i] = l[i][:0]
	}
}
