package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ccdCandidate reports whether a body moved far enough this substep that it
// could have tunneled through another object. Slow movers are handled fine
// by the discrete pass.
func ccdCandidate(b *RigidBody) bool {
	if b.CCD != CCDSwept || b.Kind != BodyDynamic || b.Collider == nil {
		return false
	}
	if b.Sleeping {
		return false
	}
	travel := b.Position.Sub(b.motionStart()).Len()
	return travel > b.Collider.Shape.BoundingRadius()
}

// sweptSphereTOI returns the earliest time in [0,1] at which two spheres
// moving linearly from their start positions come into contact.
func sweptSphereTOI(pA0, pA1, pB0, pB1 mgl64.Vec3, rA, rB float64) (float64, bool) {
	// Work in A-relative terms: one moving point against a static sphere.
	s := pA0.Sub(pB0)
	v := pA1.Sub(pA0).Sub(pB1.Sub(pB0))
	r := rA + rB

	c := s.LenSqr() - r*r
	if c < 0 {
		return 0, true // already overlapping at the start
	}
	a := v.LenSqr()
	if a < 1e-16 {
		return 0, false
	}
	b := s.Dot(v)
	if b >= 0 {
		return 0, false // moving apart
	}
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

// resolveCCD rolls fast bodies back to their earliest time of impact so the
// next discrete narrowphase sees a small overlap and the solver resolves
// the hit with impulses and events, instead of the obstacle being skipped.
// The sweep casts the body's motion ray against each obstacle inflated by
// the body's bounding radius, the Minkowski sum of the two shapes; exact
// for sphere movers, conservative for the rest. Obstacles are tested at
// their end-of-substep pose.
func resolveCCD(bodies []*RigidBody, colliders []*Collider, slop float64) {
	for _, b := range bodies {
		if !ccdCandidate(b) {
			continue
		}

		start := b.motionStart()
		motion := b.Position.Sub(start)
		dist := motion.Len()
		if dist < 1e-9 {
			continue
		}
		dir := motion.Mul(1 / dist)
		rA := b.Collider.Shape.BoundingRadius()
		ray := Ray{Origin: start, Dir: dir, MaxDist: dist}

		minHit := math.Inf(1)
		for _, c := range colliders {
			if c.Body == b || c.IsTrigger {
				continue
			}
			rB := c.Shape.BoundingRadius()
			if !math.IsInf(rB, 0) {
				// Cheap swept bounding-sphere reject before the exact cast.
				if _, ok := sweptSphereTOI(start, b.Position, c.Body.motionStart(), c.Body.Position, rA, rB); !ok {
					continue
				}
			}
			if t, ok := raycastColliderInflated(ray, c, rA); ok && t < minHit {
				minHit = t
			}
		}

		if minHit < dist {
			// Park the body half a slop past first touch: overlapping
			// enough for narrowphase to pick it up, shallow enough that
			// Baumgarte recovery stays quiet.
			travel := math.Min(dist, minHit+0.5*slop)
			b.Position = start.Add(dir.Mul(travel))
			b.Collider.updateAABB()
		}
	}
}

// raycastColliderInflated casts against the collider's shapes grown by r.
// The hit distance is how far the swept body's center travels before the
// two first touch.
func raycastColliderInflated(ray Ray, c *Collider, r float64) (float64, bool) {
	best := math.Inf(1)
	hit := false
	for _, p := range pieces(c) {
		var t float64
		var ok bool
		switch s := p.shape.(type) {
		case Sphere:
			t, _, ok = raySphere(ray, p.pos, s.Radius+r)
		case Capsule:
			t, _, ok = rayCapsule(ray, p, Capsule{Radius: s.Radius + r, HalfHeight: s.HalfHeight})
		case Box:
			t, _, ok = rayBox(ray, p, s.HalfExtents.Add(mgl64.Vec3{r, r, r}))
		case Plane:
			t, _, ok = rayPlane(ray, Plane{Normal: s.Normal, Offset: s.Offset + r})
		case ConvexHull:
			t, _, ok = rayHullInflated(ray, p, r)
		}
		if ok && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}
