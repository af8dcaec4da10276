package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// maxManifoldPoints caps persistent contact points per colliding pair.
const maxManifoldPoints = 4

// ContactPoint is one persistent point of a manifold. Accumulated impulses
// survive across steps for warm-starting as long as the point matches a
// point from the previous frame.
type ContactPoint struct {
	Position   mgl64.Vec3
	Separation float64 // signed distance, negative = overlap

	NormalImpulse  float64
	TangentImpulse [2]float64

	// Solver scratch, valid during one substep.
	rA, rB       mgl64.Vec3
	normalMass   float64
	tangentMass  [2]float64
	velocityBias float64
}

// featureKey identifies a manifold across frames: the ordered collider pair
// plus the compound sub-shape indices that produced it.
type featureKey struct {
	a, b       ColliderID
	subA, subB int32
}

// Manifold is the contact set of one colliding pair: a shared normal
// (pointing from A toward B), two friction tangents and up to four points.
type Manifold struct {
	A, B     *Collider
	Normal   mgl64.Vec3
	Tangents [2]mgl64.Vec3
	Points   []ContactPoint

	key featureKey
}

func (m *Manifold) computeTangents() {
	m.Tangents[0], m.Tangents[1] = planeBasis(m.Normal)
}

// convexPiece is a single convex participant of a narrowphase test: a
// collider's shape, or one child of a compound, resolved to a world pose.
type convexPiece struct {
	collider *Collider
	shape    Shape
	pos      mgl64.Vec3
	rot      mgl64.Quat
	sub      int32
}

func (p convexPiece) support(dir mgl64.Vec3) mgl64.Vec3 {
	local := p.rot.Conjugate().Rotate(dir)
	return p.pos.Add(p.rot.Rotate(p.shape.Support(local)))
}

// pieces decomposes a collider into convex pieces; compounds yield one piece
// per child, everything else yields itself.
func pieces(c *Collider) []convexPiece {
	origin := c.Body.colliderOrigin()
	rot := c.Body.Orientation
	if comp, ok := c.Shape.(Compound); ok {
		out := make([]convexPiece, 0, len(comp.Children))
		for i, ch := range comp.Children {
			out = append(out, convexPiece{
				collider: c,
				shape:    ch.Shape,
				pos:      origin.Add(rot.Rotate(ch.Offset)),
				rot:      rot.Mul(ch.Rotation),
				sub:      int32(i),
			})
		}
		return out
	}
	return []convexPiece{{collider: c, shape: c.Shape, pos: origin, rot: rot}}
}

// collideColliders runs narrowphase for one candidate pair, returning zero
// or more manifolds (compounds can touch on several sub-shapes). Inputs are
// reordered so the stored A always has the smaller collider id, keeping
// feature keys stable across frames.
func collideColliders(a, b *Collider) []*Manifold {
	if a.ID > b.ID {
		a, b = b, a
	}

	var out []*Manifold
	for _, pa := range pieces(a) {
		for _, pb := range pieces(b) {
			m := collidePieces(pa, pb)
			if m != nil && len(m.Points) > 0 {
				m.key = featureKey{a: a.ID, b: b.ID, subA: pa.sub, subB: pb.sub}
				m.computeTangents()
				out = append(out, m)
			}
		}
	}
	return out
}

// collidePieces dispatches on the pair of shape kinds. Analytic fast paths
// cover the sphere, capsule and plane cases; everything else goes through
// GJK and EPA followed by reference-face clipping.
func collidePieces(a, b convexPiece) *Manifold {
	// Canonical order so each combination appears once; remember to flip
	// the normal if the inputs were swapped.
	flipped := false
	if a.shape.Kind() > b.shape.Kind() {
		a, b = b, a
		flipped = true
	}

	var m *Manifold
	switch {
	case a.shape.Kind() == ShapeSphere && b.shape.Kind() == ShapeSphere:
		m = collideSphereSphere(a, b)
	case a.shape.Kind() == ShapeSphere && b.shape.Kind() == ShapeCapsule:
		m = collideSphereCapsule(a, b)
	case a.shape.Kind() == ShapeSphere && b.shape.Kind() == ShapeBox:
		m = collideSphereBox(a, b)
	case a.shape.Kind() == ShapeCapsule && b.shape.Kind() == ShapeCapsule:
		m = collideCapsuleCapsule(a, b)
	case b.shape.Kind() == ShapePlane:
		m = collideConvexPlane(a, b)
	default:
		m = collideConvexConvex(a, b)
	}

	if m == nil {
		return nil
	}
	if flipped {
		m.A, m.B = m.B, m.A
		m.Normal = m.Normal.Mul(-1)
	}
	return m
}

func singlePointManifold(a, b convexPiece, normal mgl64.Vec3, point mgl64.Vec3, separation float64) *Manifold {
	return &Manifold{
		A:      a.collider,
		B:      b.collider,
		Normal: normal,
		Points: []ContactPoint{{Position: point, Separation: separation}},
	}
}

func collideSphereSphere(a, b convexPiece) *Manifold {
	ra := a.shape.(Sphere).Radius
	rb := b.shape.(Sphere).Radius

	d := b.pos.Sub(a.pos)
	dist := d.Len()
	sep := dist - (ra + rb)
	if sep >= 0 {
		return nil
	}

	var n mgl64.Vec3
	if dist > 1e-9 {
		n = d.Mul(1 / dist)
	} else {
		n = mgl64.Vec3{0, 1, 0}
	}
	point := a.pos.Add(n.Mul(ra + sep*0.5))
	return singlePointManifold(a, b, n, point, sep)
}

func collideSphereCapsule(a, b convexPiece) *Manifold {
	sphere := a.shape.(Sphere)
	capsule := b.shape.(Capsule)

	axis := b.rot.Rotate(mgl64.Vec3{0, capsule.HalfHeight, 0})
	p0 := b.pos.Sub(axis)
	p1 := b.pos.Add(axis)
	closest := closestPointOnSegment(a.pos, p0, p1)

	d := closest.Sub(a.pos)
	dist := d.Len()
	sep := dist - (sphere.Radius + capsule.Radius)
	if sep >= 0 {
		return nil
	}

	var n mgl64.Vec3
	if dist > 1e-9 {
		n = d.Mul(1 / dist)
	} else {
		n = mgl64.Vec3{0, 1, 0}
	}
	point := a.pos.Add(n.Mul(sphere.Radius + sep*0.5))
	return singlePointManifold(a, b, n, point, sep)
}

func collideSphereBox(a, b convexPiece) *Manifold {
	sphere := a.shape.(Sphere)
	box := b.shape.(Box)

	closest := closestPointOnBox(a.pos, b.pos, b.rot, box.HalfExtents)
	d := a.pos.Sub(closest)
	dist := d.Len()

	if dist > 1e-9 {
		sep := dist - sphere.Radius
		if sep >= 0 {
			return nil
		}
		n := d.Mul(-1 / dist) // from sphere toward box
		return singlePointManifold(a, b, n, closest, sep)
	}

	// Sphere center inside the box: push out along the face of least
	// penetration in box-local space.
	local := b.rot.Conjugate().Rotate(a.pos.Sub(b.pos))
	h := box.HalfExtents
	best := 0
	bestDepth := h[0] - math.Abs(local[0])
	for i := 1; i < 3; i++ {
		if depth := h[i] - math.Abs(local[i]); depth < bestDepth {
			best, bestDepth = i, depth
		}
	}
	var localN mgl64.Vec3
	localN[best] = -math.Copysign(1, local[best])
	n := b.rot.Rotate(localN)
	return singlePointManifold(a, b, n, a.pos, -(bestDepth + sphere.Radius))
}

func collideCapsuleCapsule(a, b convexPiece) *Manifold {
	ca := a.shape.(Capsule)
	cb := b.shape.(Capsule)

	axisA := a.rot.Rotate(mgl64.Vec3{0, ca.HalfHeight, 0})
	axisB := b.rot.Rotate(mgl64.Vec3{0, cb.HalfHeight, 0})
	pa, pb := closestPointsSegments(
		a.pos.Sub(axisA), a.pos.Add(axisA),
		b.pos.Sub(axisB), b.pos.Add(axisB),
	)

	d := pb.Sub(pa)
	dist := d.Len()
	sep := dist - (ca.Radius + cb.Radius)
	if sep >= 0 {
		return nil
	}

	var n mgl64.Vec3
	if dist > 1e-9 {
		n = d.Mul(1 / dist)
	} else {
		n = mgl64.Vec3{0, 1, 0}
	}
	point := pa.Add(n.Mul(ca.Radius + sep*0.5))
	return singlePointManifold(a, b, n, point, sep)
}

// collideConvexPlane handles any convex piece against an infinite plane by
// collecting the support vertices that sit below the surface.
func collideConvexPlane(a, b convexPiece) *Manifold {
	plane := b.shape.(Plane)
	n := plane.Normal // plane surface normal, pointing out of the half-space

	verts := contactFeature(a, n.Mul(-1))

	var pts []ContactPoint
	for _, v := range verts {
		sep := v.Dot(n) - plane.Offset
		if sep < 0 {
			pts = append(pts, ContactPoint{Position: v, Separation: sep})
		}
	}
	if len(pts) == 0 {
		return nil
	}
	if len(pts) > maxManifoldPoints {
		pts = reducePoints(pts, n)
	}

	// Manifold normal runs from A toward B (into the plane).
	return &Manifold{A: a.collider, B: b.collider, Normal: n.Mul(-1), Points: pts}
}

// collideConvexConvex is the general path: GJK for the overlap test, EPA for
// penetration normal and depth, then reference-face clipping for the points.
func collideConvexConvex(a, b convexPiece) *Manifold {
	var s simplex
	if !gjkOverlap(a, b, &s) {
		return nil
	}

	res, err := runEPA(a, b, &s)
	if err != nil {
		// Divergence is rare and usually transient; skip the pair this
		// step rather than feeding the solver a bad normal.
		return nil
	}
	res.Normal = snapNormal(res.Normal)

	pts := clipFeatures(a, b, res.Normal, res.Depth)
	if len(pts) == 0 {
		deepest := b.support(res.Normal.Mul(-1))
		pts = []ContactPoint{{Position: deepest, Separation: -res.Depth}}
	}
	if len(pts) > maxManifoldPoints {
		pts = reducePoints(pts, res.Normal)
	}

	return &Manifold{A: a.collider, B: b.collider, Normal: res.Normal, Points: pts}
}

// contactFeature returns the world-space vertices of the piece's face, edge
// or vertex most anti-parallel to the given world direction.
func contactFeature(p convexPiece, worldDir mgl64.Vec3) []mgl64.Vec3 {
	localDir := p.rot.Conjugate().Rotate(worldDir)

	var local []mgl64.Vec3
	switch s := p.shape.(type) {
	case Sphere:
		return []mgl64.Vec3{p.support(worldDir)}
	case Capsule:
		// A capsule's feature is its segment when the direction is roughly
		// perpendicular to the axis, otherwise the nearer cap point.
		if math.Abs(localDir.Y()) < 0.95 {
			r := s.Radius
			side := mgl64.Vec3{localDir.X(), 0, localDir.Z()}
			if side.LenSqr() > 1e-12 {
				side = side.Normalize().Mul(r)
			}
			local = []mgl64.Vec3{
				side.Add(mgl64.Vec3{0, s.HalfHeight, 0}),
				side.Add(mgl64.Vec3{0, -s.HalfHeight, 0}),
			}
		} else {
			return []mgl64.Vec3{p.support(worldDir)}
		}
	case Box:
		h := s.HalfExtents
		// Face whose normal best matches the direction.
		axis := 0
		bestDot := math.Abs(localDir[0])
		for i := 1; i < 3; i++ {
			if math.Abs(localDir[i]) > bestDot {
				axis, bestDot = i, math.Abs(localDir[i])
			}
		}
		sign := math.Copysign(1, localDir[axis])
		u := (axis + 1) % 3
		v := (axis + 2) % 3
		for _, su := range []float64{-1, 1} {
			for _, sv := range []float64{-1, 1} {
				var c mgl64.Vec3
				c[axis] = sign * h[axis]
				c[u] = su * h[u]
				c[v] = sv * h[v]
				local = append(local, c)
			}
		}
		// Order the 4 corners as a convex loop.
		local[2], local[3] = local[3], local[2]
	case ConvexHull:
		// Vertices within tolerance of the extreme dot form the feature.
		const tol = 1e-3
		best := math.Inf(-1)
		for _, v := range s.Points {
			if d := v.Dot(localDir); d > best {
				best = d
			}
		}
		for _, v := range s.Points {
			if v.Dot(localDir) > best-tol {
				local = append(local, v)
			}
		}
	default:
		return []mgl64.Vec3{p.support(worldDir)}
	}

	out := make([]mgl64.Vec3, len(local))
	for i, v := range local {
		out[i] = p.pos.Add(p.rot.Rotate(v))
	}
	return out
}

// clipFeatures builds manifold points by clipping the incident feature
// against the reference feature's side planes (Sutherland-Hodgman), keeping
// points behind the reference plane.
func clipFeatures(a, b convexPiece, normal mgl64.Vec3, depth float64) []ContactPoint {
	featA := contactFeature(a, normal)
	featB := contactFeature(b, normal.Mul(-1))

	// Reference is the larger feature, incident the smaller. The reference
	// face's outward direction always points at the incident body.
	reference, incident := featA, featB
	outward := normal
	if len(featB) > len(featA) {
		reference, incident = featB, featA
		outward = normal.Mul(-1)
	}

	if len(incident) == 1 {
		return []ContactPoint{{Position: incident[0], Separation: -depth}}
	}
	if len(reference) < 3 {
		// Edge-edge: closest points between the two segments.
		if len(reference) == 2 && len(incident) >= 2 {
			pa, pb := closestPointsSegments(reference[0], reference[1], incident[0], incident[1])
			mid := pa.Add(pb).Mul(0.5)
			return []ContactPoint{{Position: mid, Separation: -depth}}
		}
		return nil
	}

	clipped := clipPolygon(incident, reference, outward)
	if len(clipped) == 0 {
		return nil
	}

	// Keep points behind the reference face plane; their plane distance is
	// a better per-point separation than the uniform EPA depth.
	refNormal := reference[1].Sub(reference[0]).Cross(reference[2].Sub(reference[0]))
	if refNormal.LenSqr() < 1e-16 {
		return nil
	}
	refNormal = refNormal.Normalize()
	if refNormal.Dot(outward) < 0 {
		refNormal = refNormal.Mul(-1)
	}
	offset := reference[0].Dot(refNormal)

	var pts []ContactPoint
	for _, p := range clipped {
		d := p.Dot(refNormal) - offset
		if d <= 0 {
			sep := d
			if sep > -depth {
				sep = -depth
			}
			pts = append(pts, ContactPoint{Position: p, Separation: sep})
		}
	}
	return pts
}

// clipPolygon clips the incident polygon against the side planes of the
// reference polygon.
func clipPolygon(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	center := polygonCenter(reference)
	current := incident

	for i := 0; i < len(reference) && len(current) > 0; i++ {
		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		edge := v2.Sub(v1)
		clipNormal := edge.Cross(normal)
		if clipNormal.LenSqr() < 1e-16 {
			continue
		}
		clipNormal = clipNormal.Normalize()
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		current = clipAgainstPlane(current, v1, clipNormal)
	}
	return current
}

func clipAgainstPlane(poly []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	const tol = 1e-6
	if len(poly) == 0 {
		return poly
	}

	out := make([]mgl64.Vec3, 0, len(poly)*2)
	prev := poly[len(poly)-1]
	prevInside := prev.Sub(planePoint).Dot(planeNormal) >= -tol

	for _, cur := range poly {
		curInside := cur.Sub(planePoint).Dot(planeNormal) >= -tol
		if curInside {
			if !prevInside {
				out = append(out, segmentPlaneIntersect(prev, cur, planePoint, planeNormal))
			}
			out = append(out, cur)
		} else if prevInside {
			out = append(out, segmentPlaneIntersect(prev, cur, planePoint, planeNormal))
		}
		prev, prevInside = cur, curInside
	}
	return out
}

func segmentPlaneIntersect(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	denom := dir.Dot(planeNormal)
	if math.Abs(denom) < 1e-10 {
		return p1
	}
	t := -p1.Sub(planePoint).Dot(planeNormal) / denom
	t = math.Max(0, math.Min(1, t))
	return p1.Add(dir.Mul(t))
}

func polygonCenter(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	if len(points) == 0 {
		return sum
	}
	return sum.Mul(1.0 / float64(len(points)))
}

// reducePoints keeps the 4 extreme points in the contact plane, which
// preserves the manifold's support area.
func reducePoints(points []ContactPoint, normal mgl64.Vec3) []ContactPoint {
	t1, t2 := planeBasis(normal)

	minX, maxX, minY, maxY := 0, 0, 0, 0
	minXv, maxXv := math.Inf(1), math.Inf(-1)
	minYv, maxYv := math.Inf(1), math.Inf(-1)

	for i, p := range points {
		x := p.Position.Dot(t1)
		y := p.Position.Dot(t2)
		if x < minXv {
			minXv, minX = x, i
		}
		if x > maxXv {
			maxXv, maxX = x, i
		}
		if y < minYv {
			minYv, minY = y, i
		}
		if y > maxYv {
			maxYv, maxY = y, i
		}
	}

	picked := map[int]bool{minX: true, maxX: true, minY: true, maxY: true}
	out := make([]ContactPoint, 0, maxManifoldPoints)
	for idx := range picked {
		out = append(out, points[idx])
	}
	return out
}

// Geometry helpers shared by the analytic fast paths.

func closestPointOnSegment(p, a, b mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	denom := ab.LenSqr()
	if denom < 1e-16 {
		return a
	}
	t := p.Sub(a).Dot(ab) / denom
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Mul(t))
}

// closestPointsSegments returns the closest points between segments
// [p1,q1] and [p2,q2].
func closestPointsSegments(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)

	a := d1.LenSqr()
	e := d2.LenSqr()
	f := d2.Dot(r)

	var s, t float64
	if a < 1e-16 && e < 1e-16 {
		return p1, p2
	}
	if a < 1e-16 {
		t = math.Max(0, math.Min(1, f/e))
	} else {
		c := d1.Dot(r)
		if e < 1e-16 {
			s = math.Max(0, math.Min(1, -c/a))
		} else {
			bb := d1.Dot(d2)
			denom := a*e - bb*bb
			if denom > 1e-16 {
				s = math.Max(0, math.Min(1, (bb*f-c*e)/denom))
			}
			t = (bb*s + f) / e
			if t < 0 {
				t = 0
				s = math.Max(0, math.Min(1, -c/a))
			} else if t > 1 {
				t = 1
				s = math.Max(0, math.Min(1, (bb-c)/a))
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

// closestPointOnBox returns the point on an oriented box closest to p.
func closestPointOnBox(p, center mgl64.Vec3, rot mgl64.Quat, halfExtents mgl64.Vec3) mgl64.Vec3 {
	local := rot.Conjugate().Rotate(p.Sub(center))
	for i := 0; i < 3; i++ {
		local[i] = math.Max(-halfExtents[i], math.Min(halfExtents[i], local[i]))
	}
	return center.Add(rot.Rotate(local))
}
