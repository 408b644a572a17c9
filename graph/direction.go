package graph

import (
	"iter"
	"math/bits"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Direction is one of the six axis-aligned faces of a section.
type Direction uint8

const (
	NegX Direction = iota
	NegY
	NegZ
	PosX
	PosY
	PosZ
)

const directionCount = 6

// Directions lists every direction in bit order.
var Directions = [directionCount]Direction{NegX, NegY, NegZ, PosX, PosY, PosZ}

var directionNames = [directionCount]string{"neg_x", "neg_y", "neg_z", "pos_x", "pos_y", "pos_z"}

// Opposite returns the direction pointing the other way on the same axis.
func (d Direction) Opposite() Direction {
	if d < PosX {
		return d + 3
	}
	return d - 3
}

// Offset returns the unit step of the direction.
func (d Direction) Offset() (dx, dy, dz int32) {
	switch d {
	case NegX:
		return -1, 0, 0
	case NegY:
		return 0, -1, 0
	case NegZ:
		return 0, 0, -1
	case PosX:
		return 1, 0, 0
	case PosY:
		return 0, 1, 0
	default:
		return 0, 0, 1
	}
}

func (d Direction) String() string {
	if int(d) < directionCount {
		return directionNames[d]
	}
	return "invalid"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range directionNames {
		if n == name {
			*d = Direction(i)
			return nil
		}
	}

	return errors.New("unknown direction").
		WithType(ErrTypeInvalidArgument).
		WithTag("direction", string(text))
}

// DirectionSet is a bitset of directions, bit i standing for Direction(i).
type DirectionSet uint8

const (
	NoDirections  DirectionSet = 0
	AllDirections DirectionSet = 1<<directionCount - 1
)

// DirectionSetOf returns the set holding the given directions.
func DirectionSetOf(dirs ...Direction) DirectionSet {
	var s DirectionSet
	for _, d := range dirs {
		s = s.With(d)
	}
	return s
}

func (s DirectionSet) Contains(d Direction) bool {
	return s&(1<<d) != 0
}

func (s DirectionSet) With(d Direction) DirectionSet {
	return s | 1<<d
}

func (s DirectionSet) Without(d Direction) DirectionSet {
	return s &^ (1 << d)
}

func (s DirectionSet) IsEmpty() bool {
	return s&AllDirections == 0
}

func (s DirectionSet) Len() int {
	return bits.OnesCount8(uint8(s & AllDirections))
}

// All iterates the directions of the set in bit order.
func (s DirectionSet) All() iter.Seq[Direction] {
	return func(yield func(Direction) bool) {
		// https://lemire.me/blog/2018/02/21/iterating-over-set-bits-quickly/
		for b := uint8(s & AllDirections); b != 0; b &= b - 1 {
			if !yield(Direction(bits.TrailingZeros8(b))) {
				return
			}
		}
	}
}

func (s DirectionSet) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for d := range s.All() {
		if b.Len() > 1 {
			b.WriteByte(' ')
		}
		b.WriteString(d.String())
	}
	b.WriteByte(']')
	return b.String()
}
