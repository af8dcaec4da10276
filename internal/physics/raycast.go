package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a raycast query: origin, unit direction and maximum distance.
type Ray struct {
	Origin  mgl64.Vec3
	Dir     mgl64.Vec3
	MaxDist float64
}

// RaycastHit describes the closest intersection found by a raycast.
type RaycastHit struct {
	Collider *Collider
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
}

// raycastCollider tests a ray against one collider, decomposing compounds.
// Returns the nearest hit and whether anything was hit within MaxDist.
func raycastCollider(ray Ray, c *Collider) (RaycastHit, bool) {
	best := RaycastHit{Distance: math.Inf(1)}
	hit := false
	for _, p := range pieces(c) {
		if t, n, ok := raycastPiece(ray, p); ok && t < best.Distance {
			best = RaycastHit{
				Collider: c,
				Point:    ray.Origin.Add(ray.Dir.Mul(t)),
				Normal:   n,
				Distance: t,
			}
			hit = true
		}
	}
	return best, hit
}

func raycastPiece(ray Ray, p convexPiece) (float64, mgl64.Vec3, bool) {
	switch s := p.shape.(type) {
	case Sphere:
		return raySphere(ray, p.pos, s.Radius)
	case Capsule:
		return rayCapsule(ray, p, s)
	case Box:
		return rayBox(ray, p, s.HalfExtents)
	case Plane:
		return rayPlane(ray, s)
	case ConvexHull:
		return rayHull(ray, p)
	default:
		return 0, mgl64.Vec3{}, false
	}
}

func raySphere(ray Ray, center mgl64.Vec3, radius float64) (float64, mgl64.Vec3, bool) {
	m := ray.Origin.Sub(center)
	b := m.Dot(ray.Dir)
	c := m.LenSqr() - radius*radius
	if c > 0 && b > 0 {
		return 0, mgl64.Vec3{}, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, mgl64.Vec3{}, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		t = 0 // started inside
	}
	if t > ray.MaxDist {
		return 0, mgl64.Vec3{}, false
	}
	point := ray.Origin.Add(ray.Dir.Mul(t))
	n := point.Sub(center)
	if n.LenSqr() > 1e-16 {
		n = n.Normalize()
	} else {
		n = ray.Dir.Mul(-1)
	}
	return t, n, true
}

// rayBox runs the slab test in the box's local frame.
func rayBox(ray Ray, p convexPiece, h mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	invRot := p.rot.Conjugate()
	o := invRot.Rotate(ray.Origin.Sub(p.pos))
	d := invRot.Rotate(ray.Dir)

	tmin, tmax := 0.0, ray.MaxDist
	axis := -1
	sign := 0.0
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < -h[i] || o[i] > h[i] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (-h[i] - o[i]) * inv
		t2 := (h[i] - o[i]) * inv
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > tmin {
			tmin = t1
			axis = i
			sign = s
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, mgl64.Vec3{}, false
		}
	}
	if axis < 0 {
		// Started inside the box.
		return 0, ray.Dir.Mul(-1), true
	}
	var localN mgl64.Vec3
	localN[axis] = sign
	return tmin, p.rot.Rotate(localN), true
}

func rayCapsule(ray Ray, p convexPiece, s Capsule) (float64, mgl64.Vec3, bool) {
	axis := p.rot.Rotate(mgl64.Vec3{0, s.HalfHeight, 0})
	pa := p.pos.Sub(axis)
	pb := p.pos.Add(axis)

	best := math.Inf(1)
	var bestN mgl64.Vec3
	found := false

	// Cylinder wall: solve |(o + t·d) projected off the axis| = r.
	ba := pb.Sub(pa)
	oa := ray.Origin.Sub(pa)
	baba := ba.LenSqr()
	if baba > 1e-16 {
		bard := ba.Dot(ray.Dir)
		baoa := ba.Dot(oa)
		a := baba - bard*bard
		b := baba*oa.Dot(ray.Dir) - baoa*bard
		c := baba*oa.LenSqr() - baoa*baoa - s.Radius*s.Radius*baba
		if math.Abs(a) > 1e-12 {
			disc := b*b - a*c
			if disc >= 0 {
				t := (-b - math.Sqrt(disc)) / a
				y := baoa + t*bard
				if t >= 0 && t <= ray.MaxDist && y >= 0 && y <= baba {
					point := ray.Origin.Add(ray.Dir.Mul(t))
					onAxis := pa.Add(ba.Mul(y / baba))
					best = t
					bestN = point.Sub(onAxis).Normalize()
					found = true
				}
			}
		}
	}

	// Hemispherical caps.
	for _, capCenter := range [2]mgl64.Vec3{pa, pb} {
		if t, n, ok := raySphere(ray, capCenter, s.Radius); ok && t < best {
			best, bestN, found = t, n, true
		}
	}

	if !found {
		return 0, mgl64.Vec3{}, false
	}
	return best, bestN, true
}

func rayPlane(ray Ray, s Plane) (float64, mgl64.Vec3, bool) {
	denom := ray.Dir.Dot(s.Normal)
	if math.Abs(denom) < 1e-12 {
		return 0, mgl64.Vec3{}, false
	}
	t := (s.Offset - ray.Origin.Dot(s.Normal)) / denom
	if t < 0 || t > ray.MaxDist {
		return 0, mgl64.Vec3{}, false
	}
	n := s.Normal
	if denom > 0 {
		n = n.Mul(-1)
	}
	return t, n, true
}

// rayHull finds the entry point by bisecting on containment. The hull has
// no face list, so containment is tested with GJK against a degenerate
// sphere; the surface normal comes from EPA at the entry point.
func rayHull(ray Ray, p convexPiece) (float64, mgl64.Vec3, bool) {
	return rayHullInflated(ray, p, 0)
}

// rayHullInflated casts against the hull grown by inflate; a zero inflate
// is a plain hull cast. There is no closed-form hull intersection, so march
// the ray to bracket the surface and bisect, using a GJK probe.
func rayHullInflated(ray Ray, p convexPiece, inflate float64) (float64, mgl64.Vec3, bool) {
	// Bound the search with the hull's AABB.
	aabb := p.shape.AABB(p.pos, p.rot).Expanded(inflate)
	t0, t1, ok := rayAABB(ray, aabb)
	if !ok {
		return 0, mgl64.Vec3{}, false
	}

	inside := func(t float64) bool {
		pt := convexPiece{shape: Sphere{Radius: inflate}, pos: ray.Origin.Add(ray.Dir.Mul(t)), rot: mgl64.QuatIdent()}
		var s simplex
		return gjkOverlap(pt, p, &s)
	}

	if inside(t0) {
		return t0, ray.Dir.Mul(-1), true
	}

	const samples = 64
	step := (t1 - t0) / samples
	lo, hi := t0, -1.0
	for i := 1; i <= samples; i++ {
		t := t0 + float64(i)*step
		if inside(t) {
			hi = t
			break
		}
		lo = t
	}
	if hi < 0 {
		return 0, mgl64.Vec3{}, false
	}
	for i := 0; i < 32; i++ {
		mid := (lo + hi) * 0.5
		if inside(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}

	t := hi
	probe := convexPiece{shape: Sphere{Radius: inflate + 1e-4}, pos: ray.Origin.Add(ray.Dir.Mul(t)), rot: mgl64.QuatIdent()}
	n := ray.Dir.Mul(-1)
	var s simplex
	if gjkOverlap(probe, p, &s) {
		if res, err := runEPA(probe, p, &s); err == nil {
			// EPA normal points from the probe into the hull.
			n = res.Normal.Mul(-1)
		}
	}
	return t, n, true
}

// rayAABB returns the parametric overlap of the ray with a box, clamped to
// [0, MaxDist].
func rayAABB(ray Ray, box AABB) (float64, float64, bool) {
	tmin, tmax := 0.0, ray.MaxDist
	for i := 0; i < 3; i++ {
		if math.Abs(ray.Dir[i]) < 1e-12 {
			if ray.Origin[i] < box.Min[i] || ray.Origin[i] > box.Max[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / ray.Dir[i]
		t1 := (box.Min[i] - ray.Origin[i]) * inv
		t2 := (box.Max[i] - ray.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}
