package physics

import "github.com/go-gl/mathgl/mgl64"

// simplex holds 1-4 points in Minkowski difference space. GJK grows it
// toward the origin; on overlap the final tetrahedron seeds EPA.
type simplex struct {
	points [4]mgl64.Vec3
	count  int
}

// minkowskiSupport returns the support point of A-B in the given direction.
func minkowskiSupport(a, b convexPiece, dir mgl64.Vec3) mgl64.Vec3 {
	return a.support(dir).Sub(b.support(dir.Mul(-1)))
}

const gjkMaxIterations = 32

// gjkOverlap reports whether two convex pieces overlap. The simplex is left
// holding the final points; when overlap is reported it is a tetrahedron
// containing the origin (or a degenerate touching case).
func gjkOverlap(a, b convexPiece, s *simplex) bool {
	dir := b.pos.Sub(a.pos)
	if dir.LenSqr() < 1e-8 {
		dir = mgl64.Vec3{1, 0, 0}
	}

	s.points[0] = minkowskiSupport(a, b, dir)
	s.count = 1
	dir = s.points[0].Mul(-1)

	if dir.LenSqr() < 1e-16 {
		// First support is at the origin: exactly touching.
		return true
	}

	for i := 0; i < gjkMaxIterations; i++ {
		p := minkowskiSupport(a, b, dir)

		// The new point never passed the origin: separation proven, the
		// shapes are at least p.Dot(dir)/|dir| apart along dir.
		if p.Dot(dir) <= 0 {
			return false
		}

		s.points[s.count] = p
		s.count++

		if s.containsOrigin(&dir) {
			return true
		}
	}

	return false
}

// containsOrigin reduces the simplex to its feature closest to the origin
// and redirects the search. Only a tetrahedron can contain the origin.
func (s *simplex) containsOrigin(dir *mgl64.Vec3) bool {
	switch s.count {
	case 2:
		return s.line(dir)
	case 3:
		return s.triangle(dir)
	case 4:
		return s.tetrahedron(dir)
	}
	return false
}

func (s *simplex) line(dir *mgl64.Vec3) bool {
	a := s.points[1]
	b := s.points[0]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < 1e-8 {
		if ao.LenSqr() < 1e-8 {
			return true
		}
		s.points[0] = a
		s.count = 1
		*dir = ao
		return false
	}

	if ab.Dot(ao) <= 0 {
		// Voronoi region of A alone.
		s.points[0] = a
		s.count = 1
		*dir = ao
		return false
	}

	perp := ab.Cross(ao).Cross(ab)
	if perp.LenSqr() < 1e-8 {
		// Origin sits on the segment.
		return true
	}
	*dir = perp
	return false
}

func (s *simplex) triangle(dir *mgl64.Vec3) bool {
	a := s.points[2]
	b := s.points[1]
	c := s.points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	abc := ab.Cross(ac)

	if abc.LenSqr() < 1e-10 {
		// Collinear points, fall back to the line case.
		s.points[0] = b
		s.points[1] = a
		s.count = 2
		return s.line(dir)
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		s.points[0] = b
		s.points[1] = a
		s.count = 2
		*dir = ab.Cross(ao).Cross(ab)
		return false
	}

	if abc.Cross(ac).Dot(ao) > 0 {
		s.points[0] = c
		s.points[1] = a
		s.count = 2
		*dir = ac.Cross(ao).Cross(ac)
		return false
	}

	if abc.Dot(ao) > 0 {
		*dir = abc
	} else {
		// Below the triangle: flip winding so the next point keeps the
		// tetrahedron oriented consistently.
		s.points[0] = a
		s.points[1] = c
		s.points[2] = b
		s.count = 3
		*dir = abc.Mul(-1)
	}
	return false
}

func (s *simplex) tetrahedron(dir *mgl64.Vec3) bool {
	a := s.points[3]
	b := s.points[2]
	c := s.points[1]
	d := s.points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	// Face normals oriented away from the opposite vertex.
	abc := ab.Cross(ac)
	if abc.Dot(ad) > 0 {
		abc = abc.Mul(-1)
	}
	acd := ac.Cross(ad)
	if acd.Dot(ab) > 0 {
		acd = acd.Mul(-1)
	}
	adb := ad.Cross(ab)
	if adb.Dot(ac) > 0 {
		adb = adb.Mul(-1)
	}

	if abc.LenSqr() < 1e-10 || acd.LenSqr() < 1e-10 || adb.LenSqr() < 1e-10 {
		s.points[0] = c
		s.points[1] = b
		s.points[2] = a
		s.count = 3
		return s.triangle(dir)
	}

	if abc.Dot(ao) > 0 {
		s.points[0] = c
		s.points[1] = b
		s.points[2] = a
		s.count = 3
		return s.triangle(dir)
	}
	if acd.Dot(ao) > 0 {
		s.points[0] = d
		s.points[1] = c
		s.points[2] = a
		s.count = 3
		return s.triangle(dir)
	}
	if adb.Dot(ao) > 0 {
		s.points[0] = b
		s.points[1] = d
		s.points[2] = a
		s.count = 3
		return s.triangle(dir)
	}

	return true
}
