package graph

// VisibilityData describes how visibility passes through a section. It is a
// 6x6 bit matrix: bit (from*6 + to) is set when a line of sight entering the
// section through face `from` can leave it through face `to`.
//
// The mesh layer computes it from the blocks of the section. Sections that
// only know which of their faces are fully opaque use OpaqueFaces.
type VisibilityData uint64

const (
	// Opaque blocks visibility through every face.
	Opaque VisibilityData = 0

	// Transparent lets visibility through from any face to any face.
	Transparent VisibilityData = 1<<(directionCount*directionCount) - 1
)

const rowMask = uint64(AllDirections)

// OpaqueFaces returns the visibility data of a section whose given faces are
// fully opaque: visibility leaves through every other face, whichever face it
// came in from.
func OpaqueFaces(opaque DirectionSet) VisibilityData {
	open := uint64(AllDirections &^ opaque)

	var v uint64
	for from := range directionCount {
		v |= open << (from * directionCount)
	}
	return VisibilityData(v)
}

// Connect returns a copy of v where faces a and b see each other.
func (v VisibilityData) Connect(a, b Direction) VisibilityData {
	v |= 1 << (uint(a)*directionCount + uint(b))
	v |= 1 << (uint(b)*directionCount + uint(a))
	return v
}

// CanSee reports whether visibility entering through `from` leaves through
// `to`.
func (v VisibilityData) CanSee(from, to Direction) bool {
	return v.Row(from).Contains(to)
}

// Row returns the faces reachable when entering through `from`.
func (v VisibilityData) Row(from Direction) DirectionSet {
	return DirectionSet((uint64(v) >> (uint(from) * directionCount)) & rowMask)
}

// Outgoing returns the faces visibility leaves through, given the faces it
// entered through.
func (v VisibilityData) Outgoing(incoming DirectionSet) DirectionSet {
	var out DirectionSet
	for from := range incoming.All() {
		out |= v.Row(from)
	}
	return out
}

// OpenFaces returns the faces visibility can leave through from anywhere.
func (v VisibilityData) OpenFaces() DirectionSet {
	return v.Outgoing(AllDirections)
}

// Pack folds v into the 15-bit triangle of face pairs. A pair is kept when
// visibility passes between the two faces in either direction, so unpacking
// yields a symmetric matrix with an empty diagonal.
func (v VisibilityData) Pack() uint16 {
	var packed uint16
	bit := 0
	for a := range directionCount {
		for b := a + 1; b < directionCount; b++ {
			if v.CanSee(Direction(a), Direction(b)) || v.CanSee(Direction(b), Direction(a)) {
				packed |= 1 << bit
			}
			bit++
		}
	}
	return packed
}

// UnpackVisibility expands the 15-bit triangle produced by Pack.
func UnpackVisibility(packed uint16) VisibilityData {
	var v VisibilityData
	bit := 0
	for a := range directionCount {
		for b := a + 1; b < directionCount; b++ {
			if packed&(1<<bit) != 0 {
				v = v.Connect(Direction(a), Direction(b))
			}
			bit++
		}
	}
	return v
}

// SectionFlags carries what a section holds, for the renderer.
type SectionFlags uint8

const (
	HasBlockGeometry SectionFlags = 1 << iota
	HasBlockEntities
	HasAnimatedSprites

	// AllSectionFlags holds every flag.
	AllSectionFlags = HasBlockGeometry | HasBlockEntities | HasAnimatedSprites
)

// SectionFlagCount is the number of distinct section flags.
const SectionFlagCount = 3

func (f SectionFlags) Has(flag SectionFlags) bool {
	return f&flag == flag
}
