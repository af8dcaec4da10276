package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind tags the concrete shape variant. Narrowphase dispatches on the
// pair of kinds, so every combination is handled by an exhaustive switch.
type ShapeKind int

const (
	ShapeSphere ShapeKind = iota
	ShapeCapsule
	ShapeBox
	ShapeConvexHull
	ShapeCompound
	ShapePlane
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeSphere:
		return "sphere"
	case ShapeCapsule:
		return "capsule"
	case ShapeBox:
		return "box"
	case ShapeConvexHull:
		return "convexhull"
	case ShapeCompound:
		return "compound"
	case ShapePlane:
		return "plane"
	}
	return "unknown"
}

// Shape is a collision shape in its local frame. Orientation comes from the
// owning body, so shapes themselves stay immutable and shareable.
type Shape interface {
	Kind() ShapeKind
	// Support returns the farthest local-space point in the given direction.
	Support(dir mgl64.Vec3) mgl64.Vec3
	// Inertia returns the local inertia tensor for the given mass.
	Inertia(mass float64) mgl64.Mat3
	// AABB returns the world-space bounds for the given pose.
	AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB
	// BoundingRadius is the radius of the smallest origin-centered sphere
	// enclosing the shape. Used by CCD sweeps.
	BoundingRadius() float64
	// Degenerate reports a zero-extent shape that narrowphase must skip.
	Degenerate() bool
}

const minShapeExtent = 1e-6

// Sphere is a sphere centered on the local origin.
type Sphere struct {
	Radius float64
}

func (s Sphere) Kind() ShapeKind { return ShapeSphere }

func (s Sphere) Support(dir mgl64.Vec3) mgl64.Vec3 {
	if dir.LenSqr() < 1e-16 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return dir.Normalize().Mul(s.Radius)
}

func (s Sphere) Inertia(mass float64) mgl64.Mat3 {
	i := 2.0 / 5.0 * mass * s.Radius * s.Radius
	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s Sphere) AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{Min: pos.Sub(r), Max: pos.Add(r)}
}

func (s Sphere) BoundingRadius() float64 { return s.Radius }

func (s Sphere) Degenerate() bool { return s.Radius < minShapeExtent }

// Capsule is a capsule along the local Y axis: a segment from
// (0,-HalfHeight,0) to (0,+HalfHeight,0) swept by Radius.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

func (c Capsule) Kind() ShapeKind { return ShapeCapsule }

func (c Capsule) Support(dir mgl64.Vec3) mgl64.Vec3 {
	var p mgl64.Vec3
	if dir.Y() >= 0 {
		p = mgl64.Vec3{0, c.HalfHeight, 0}
	} else {
		p = mgl64.Vec3{0, -c.HalfHeight, 0}
	}
	if dir.LenSqr() < 1e-16 {
		return p.Add(mgl64.Vec3{c.Radius, 0, 0})
	}
	return p.Add(dir.Normalize().Mul(c.Radius))
}

func (c Capsule) Inertia(mass float64) mgl64.Mat3 {
	// Cylinder plus two hemispherical caps, masses split by volume.
	h := c.HalfHeight * 2
	r := c.Radius
	cylVol := math.Pi * r * r * h
	capVol := 4.0 / 3.0 * math.Pi * r * r * r
	total := cylVol + capVol
	mCyl := mass * cylVol / total
	mCap := mass * capVol / total

	iy := mCyl*r*r/2 + mCap*2*r*r/5
	ix := mCyl*(3*r*r+h*h)/12 +
		mCap*(2*r*r/5+h*h/2+3*h*r/8)
	return mgl64.Diag3(mgl64.Vec3{ix, iy, ix})
}

func (c Capsule) AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	axis := rot.Rotate(mgl64.Vec3{0, c.HalfHeight, 0})
	ext := mgl64.Vec3{
		math.Abs(axis.X()) + c.Radius,
		math.Abs(axis.Y()) + c.Radius,
		math.Abs(axis.Z()) + c.Radius,
	}
	return AABB{Min: pos.Sub(ext), Max: pos.Add(ext)}
}

func (c Capsule) BoundingRadius() float64 { return c.HalfHeight + c.Radius }

func (c Capsule) Degenerate() bool { return c.Radius < minShapeExtent }

// Box is an oriented box given by half extents; orientation comes from the
// owning body, so in local space it is axis aligned.
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b Box) Kind() ShapeKind { return ShapeBox }

func (b Box) Support(dir mgl64.Vec3) mgl64.Vec3 {
	p := b.HalfExtents
	if dir.X() < 0 {
		p[0] = -p[0]
	}
	if dir.Y() < 0 {
		p[1] = -p[1]
	}
	if dir.Z() < 0 {
		p[2] = -p[2]
	}
	return p
}

func (b Box) Inertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2
	k := mass / 12.0
	return mgl64.Diag3(mgl64.Vec3{
		k * (y*y + z*z),
		k * (x*x + z*z),
		k * (x*x + y*y),
	})
}

func (b Box) AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	r := rot.Mat4().Mat3()
	// World extent on axis i is sum_j |R[i][j]| * h[j].
	var ext mgl64.Vec3
	for i := 0; i < 3; i++ {
		ext[i] = math.Abs(r.At(i, 0))*b.HalfExtents[0] +
			math.Abs(r.At(i, 1))*b.HalfExtents[1] +
			math.Abs(r.At(i, 2))*b.HalfExtents[2]
	}
	return AABB{Min: pos.Sub(ext), Max: pos.Add(ext)}
}

func (b Box) BoundingRadius() float64 { return b.HalfExtents.Len() }

func (b Box) Degenerate() bool {
	return b.HalfExtents.X() < minShapeExtent ||
		b.HalfExtents.Y() < minShapeExtent ||
		b.HalfExtents.Z() < minShapeExtent
}

// ConvexHull is a convex point cloud. Only the vertices are stored; support
// mapping makes faces unnecessary for GJK/EPA.
type ConvexHull struct {
	Points []mgl64.Vec3
}

func (h ConvexHull) Kind() ShapeKind { return ShapeConvexHull }

func (h ConvexHull) Support(dir mgl64.Vec3) mgl64.Vec3 {
	if len(h.Points) == 0 {
		return mgl64.Vec3{}
	}
	best := h.Points[0]
	bestDot := best.Dot(dir)
	for _, p := range h.Points[1:] {
		if d := p.Dot(dir); d > bestDot {
			best, bestDot = p, d
		}
	}
	return best
}

func (h ConvexHull) Inertia(mass float64) mgl64.Mat3 {
	// Approximated by the inertia of the hull's local bounding box. Exact
	// polyhedral inertia needs a face decomposition the hull does not keep.
	var min, max mgl64.Vec3
	if len(h.Points) > 0 {
		min, max = h.Points[0], h.Points[0]
	}
	for _, p := range h.Points[1:] {
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], p[i])
			max[i] = math.Max(max[i], p[i])
		}
	}
	return Box{HalfExtents: max.Sub(min).Mul(0.5)}.Inertia(mass)
}

func (h ConvexHull) AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	if len(h.Points) == 0 {
		return AABB{Min: pos, Max: pos}
	}
	first := pos.Add(rot.Rotate(h.Points[0]))
	out := AABB{Min: first, Max: first}
	for _, p := range h.Points[1:] {
		w := pos.Add(rot.Rotate(p))
		for i := 0; i < 3; i++ {
			out.Min[i] = math.Min(out.Min[i], w[i])
			out.Max[i] = math.Max(out.Max[i], w[i])
		}
	}
	return out
}

func (h ConvexHull) BoundingRadius() float64 {
	best := 0.0
	for _, p := range h.Points {
		if l := p.Len(); l > best {
			best = l
		}
	}
	return best
}

func (h ConvexHull) Degenerate() bool { return len(h.Points) < 4 }

// CompoundChild is one sub-shape of a compound with its own local transform.
type CompoundChild struct {
	Shape    Shape
	Offset   mgl64.Vec3
	Rotation mgl64.Quat
}

// Compound aggregates convex sub-shapes. Narrowphase decomposes compound
// pairs into sub-shape pairs and re-runs.
type Compound struct {
	Children []CompoundChild
}

func (c Compound) Kind() ShapeKind { return ShapeCompound }

func (c Compound) Support(dir mgl64.Vec3) mgl64.Vec3 {
	// Support over the union: best support among children. Only used as a
	// fallback; compound pairs are normally decomposed before GJK runs.
	var best mgl64.Vec3
	bestDot := math.Inf(-1)
	for _, ch := range c.Children {
		localDir := ch.Rotation.Conjugate().Rotate(dir)
		p := ch.Offset.Add(ch.Rotation.Rotate(ch.Shape.Support(localDir)))
		if d := p.Dot(dir); d > bestDot {
			best, bestDot = p, d
		}
	}
	return best
}

func (c Compound) Inertia(mass float64) mgl64.Mat3 {
	if len(c.Children) == 0 {
		return mgl64.Ident3()
	}
	// Split mass evenly, then parallel-axis each child onto the origin.
	m := mass / float64(len(c.Children))
	total := mgl64.Mat3{}
	for _, ch := range c.Children {
		r := ch.Rotation.Mat4().Mat3()
		ci := r.Mul3(ch.Shape.Inertia(m)).Mul3(r.Transpose())
		d := ch.Offset
		d2 := d.Dot(d)
		// I += m * (|d|^2 * E - d d^T)
		shift := mgl64.Mat3{
			m * (d2 - d[0]*d[0]), -m * d[0] * d[1], -m * d[0] * d[2],
			-m * d[1] * d[0], m * (d2 - d[1]*d[1]), -m * d[1] * d[2],
			-m * d[2] * d[0], -m * d[2] * d[1], m * (d2 - d[2]*d[2]),
		}
		total = total.Add(ci).Add(shift)
	}
	return total
}

func (c Compound) AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	if len(c.Children) == 0 {
		return AABB{Min: pos, Max: pos}
	}
	var out AABB
	for i, ch := range c.Children {
		childPos := pos.Add(rot.Rotate(ch.Offset))
		childRot := rot.Mul(ch.Rotation)
		box := ch.Shape.AABB(childPos, childRot)
		if i == 0 {
			out = box
		} else {
			out = out.Union(box)
		}
	}
	return out
}

func (c Compound) BoundingRadius() float64 {
	best := 0.0
	for _, ch := range c.Children {
		if r := ch.Offset.Len() + ch.Shape.BoundingRadius(); r > best {
			best = r
		}
	}
	return best
}

func (c Compound) Degenerate() bool { return len(c.Children) == 0 }

// Plane is an infinite static half-space: points p with dot(p, Normal) <=
// Offset are inside. Planes only make sense on static bodies.
type Plane struct {
	Normal mgl64.Vec3
	Offset float64
}

func (p Plane) Kind() ShapeKind { return ShapePlane }

func (p Plane) Support(dir mgl64.Vec3) mgl64.Vec3 {
	// Planes never go through GJK; narrowphase uses the analytic path.
	// Return a far point on the surface so a stray call stays bounded.
	const far = 1e6
	t1, t2 := planeBasis(p.Normal)
	center := p.Normal.Mul(p.Offset)
	d := t1.Mul(dir.Dot(t1)).Add(t2.Mul(dir.Dot(t2)))
	if d.LenSqr() < 1e-16 {
		return center
	}
	return center.Add(d.Normalize().Mul(far))
}

func (p Plane) Inertia(mass float64) mgl64.Mat3 { return mgl64.Ident3() }

func (p Plane) AABB(pos mgl64.Vec3, rot mgl64.Quat) AABB {
	const far = 1e9
	f := mgl64.Vec3{far, far, far}
	return AABB{Min: pos.Sub(f), Max: pos.Add(f)}
}

func (p Plane) BoundingRadius() float64 { return math.Inf(1) }

func (p Plane) Degenerate() bool { return p.Normal.LenSqr() < 1e-12 }

// planeBasis returns two unit tangents orthogonal to n.
func planeBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.X()) > 0.9 {
		t1 = mgl64.Vec3{0, 1, 0}
	}
	t1 = t1.Sub(n.Mul(t1.Dot(n))).Normalize()
	t2 := n.Cross(t1).Normalize()
	return t1, t2
}
