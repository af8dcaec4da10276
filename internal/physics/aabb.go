package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned bounding box in world space.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewAABBFromCenter creates an AABB from a center point and full size dimensions.
func NewAABBFromCenter(center, size mgl64.Vec3) AABB {
	half := size.Mul(0.5)
	return AABB{
		Min: center.Sub(half),
		Max: center.Add(half),
	}
}

func (a AABB) Intersects(b AABB) bool {
	return a.Min.X() <= b.Max.X() && a.Max.X() >= b.Min.X() &&
		a.Min.Y() <= b.Max.Y() && a.Max.Y() >= b.Min.Y() &&
		a.Min.Z() <= b.Max.Z() && a.Max.Z() >= b.Min.Z()
}

func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

func (a AABB) Extent() mgl64.Vec3 {
	return a.Max.Sub(a.Min)
}

// Union returns the smallest AABB containing both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{
			math.Min(a.Min.X(), b.Min.X()),
			math.Min(a.Min.Y(), b.Min.Y()),
			math.Min(a.Min.Z(), b.Min.Z()),
		},
		Max: mgl64.Vec3{
			math.Max(a.Max.X(), b.Max.X()),
			math.Max(a.Max.Y(), b.Max.Y()),
			math.Max(a.Max.Z(), b.Max.Z()),
		},
	}
}

// Expanded grows the box by margin on every side.
func (a AABB) Expanded(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// ClampDegenerate enforces a minimum extent on each axis so that
// near-zero boxes still hash into at least one grid cell.
func (a AABB) ClampDegenerate(minExtent float64) AABB {
	out := a
	for i := 0; i < 3; i++ {
		if out.Max[i]-out.Min[i] < minExtent {
			c := (out.Max[i] + out.Min[i]) * 0.5
			out.Min[i] = c - minExtent*0.5
			out.Max[i] = c + minExtent*0.5
		}
	}
	return out
}

// IsFinite reports whether all six bounds are finite numbers.
func (a AABB) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(a.Min[i]) || math.IsInf(a.Min[i], 0) ||
			math.IsNaN(a.Max[i]) || math.IsInf(a.Max[i], 0) {
			return false
		}
	}
	return true
}
