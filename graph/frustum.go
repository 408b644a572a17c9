package graph

import (
	"encoding/binary"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// FrustumEncodedSize is the size of a binary encoded frustum.
const FrustumEncodedSize = 6*4*4 + 3*8

const planeCount = 6

// BoundsCheck is the result of testing a box against a frustum.
type BoundsCheck uint8

const (
	Outside BoundsCheck = iota
	Partial
	Inside
)

func (b BoundsCheck) String() string {
	switch b {
	case Outside:
		return "outside"
	case Partial:
		return "partial"
	default:
		return "inside"
	}
}

// Frustum is a convex view volume made of six planes, relative to the camera
// offset. A point p is inside a plane (a, b, c, d) when
// a*p.x + b*p.y + c*p.z + d >= 0.
//
// Coefficients are stored per component so the box test walks contiguous
// arrays.
type Frustum struct {
	A      [planeCount]float32
	B      [planeCount]float32
	C      [planeCount]float32
	D      [planeCount]float32
	Offset mgl64.Vec3
}

// NewFrustum creates a frustum from six (a, b, c, d) planes and the world
// position of the camera.
func NewFrustum(planes [planeCount]mgl32.Vec4, offset mgl64.Vec3) Frustum {
	f := Frustum{Offset: offset}
	for i, p := range planes {
		f.A[i] = p[0]
		f.B[i] = p[1]
		f.C[i] = p[2]
		f.D[i] = p[3]
	}
	return f
}

// FrustumFromMatrix extracts the planes of a camera-relative view-projection
// matrix, in left, right, bottom, top, near, far order.
func FrustumFromMatrix(viewProjection mgl32.Mat4, offset mgl64.Vec3) Frustum {
	r0 := viewProjection.Row(0)
	r1 := viewProjection.Row(1)
	r2 := viewProjection.Row(2)
	r3 := viewProjection.Row(3)

	planes := [planeCount]mgl32.Vec4{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2),
		r3.Sub(r2),
	}

	for i, p := range planes {
		if l := p.Vec3().Len(); l > 0 {
			planes[i] = p.Mul(1 / l)
		}
	}
	return NewFrustum(planes, offset)
}

// SphereFrustum returns a frustum that accepts everything, leaving the search
// distance as the only limit.
func SphereFrustum(offset mgl64.Vec3) Frustum {
	var planes [planeCount]mgl32.Vec4
	for i := range planes {
		planes[i] = mgl32.Vec4{0, 0, 0, 1}
	}
	return NewFrustum(planes, offset)
}

// Plane returns the i-th plane as (a, b, c, d).
func (f Frustum) Plane(i int) mgl32.Vec4 {
	return mgl32.Vec4{f.A[i], f.B[i], f.C[i], f.D[i]}
}

// TestBox tests a camera-relative box against the frustum.
func (f Frustum) TestBox(min, max mgl32.Vec3) BoundsCheck {
	res := Inside

	for i := range planeCount {
		a, b, c, d := f.A[i], f.B[i], f.C[i], f.D[i]

		// Corner furthest along the plane normal, and the one opposite to it.
		px, nx := min[0], max[0]
		if a >= 0 {
			px, nx = nx, px
		}
		py, ny := min[1], max[1]
		if b >= 0 {
			py, ny = ny, py
		}
		pz, nz := min[2], max[2]
		if c >= 0 {
			pz, nz = nz, pz
		}

		if a*px+b*py+c*pz+d < 0 {
			return Outside
		}
		if a*nx+b*ny+c*nz+d < 0 {
			res = Partial
		}
	}

	return res
}

// MarshalBinary encodes the frustum in little endian: the six a, b, c and d
// coefficients as float32, followed by the offset as three float64.
func (f Frustum) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, FrustumEncodedSize))
}

func (f Frustum) AppendBinary(b []byte) ([]byte, error) {
	for _, coeffs := range [...]*[planeCount]float32{&f.A, &f.B, &f.C, &f.D} {
		for _, v := range coeffs {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
		}
	}
	for _, v := range f.Offset {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	}
	return b, nil
}

// UnmarshalFrustum decodes a frustum encoded with MarshalBinary.
func UnmarshalFrustum(b []byte) (Frustum, error) {
	var f Frustum

	if len(b) != FrustumEncodedSize {
		return f, errors.New("invalid frustum size").
			WithType(ErrTypeMalformedFrustum).
			WithTag("expected", FrustumEncodedSize).
			WithTag("size", len(b))
	}

	for _, coeffs := range [...]*[planeCount]float32{&f.A, &f.B, &f.C, &f.D} {
		for i := range coeffs {
			coeffs[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
			b = b[4:]
		}
	}
	for i := range f.Offset {
		f.Offset[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		b = b[8:]
	}

	return f, f.Validate()
}

// Validate returns an error when a coefficient is NaN or the offset is not a
// finite number.
func (f Frustum) Validate() error {
	for i := range planeCount {
		for _, v := range f.Plane(i) {
			if math.IsNaN(float64(v)) {
				return errors.New("invalid frustum plane").
					WithType(ErrTypeMalformedFrustum).
					WithTag("plane", i)
			}
		}
	}

	for _, v := range f.Offset {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("invalid frustum offset").
				WithType(ErrTypeMalformedFrustum)
		}
	}

	return nil
}
