package physics

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	epaMaxIterations = 32
	// epaTolerance: expansion stops once a new support point improves the
	// closest face distance by less than this.
	epaTolerance      = 1e-3
	epaMinFaceDist    = 1e-4
	degeneratePenetra = 0.01
)

var errEPADiverged = errors.New("epa failed to converge")

// epaFace is one triangle of the expanding polytope.
type epaFace struct {
	points   [3]mgl64.Vec3
	normal   mgl64.Vec3
	distance float64 // from origin to the face plane
}

type epaEdge struct {
	a, b mgl64.Vec3
}

// epaResult is the penetration the polytope converged to.
type epaResult struct {
	Normal mgl64.Vec3 // from A toward B
	Depth  float64    // positive
}

// runEPA expands the GJK simplex into the Minkowski hull face closest to
// the origin, yielding penetration normal and depth.
func runEPA(a, b convexPiece, s *simplex) (epaResult, error) {
	if s.count < 4 {
		return degenerateEPA(a, b, s), nil
	}

	faces := buildInitialFaces(s)

	for i := 0; i < epaMaxIterations; i++ {
		if len(faces) == 0 {
			break
		}

		ci := closestFaceIndex(faces)
		closest := faces[ci]

		if closest.distance < epaMinFaceDist {
			faces = append(faces[:ci], faces[ci+1:]...)
			continue
		}

		support := minkowskiSupport(a, b, closest.normal)
		d := support.Dot(closest.normal)

		if d-closest.distance < epaTolerance {
			return epaResult{Normal: closest.normal, Depth: closest.distance}, nil
		}

		expandPolytope(&faces, support, ci)
	}

	return epaResult{}, errEPADiverged
}

// degenerateEPA estimates penetration when GJK terminated with fewer than
// four simplex points (touching contacts).
func degenerateEPA(a, b convexPiece, s *simplex) epaResult {
	if s.count >= 2 {
		n := s.points[0]
		if s.points[1].Len() < n.Len() {
			n = s.points[1]
		}
		if n.LenSqr() > 1e-16 {
			return epaResult{Normal: n.Normalize(), Depth: n.Len()}
		}
	}
	n := b.pos.Sub(a.pos)
	if n.LenSqr() < 1e-16 {
		n = mgl64.Vec3{0, 1, 0}
	} else {
		n = n.Normalize()
	}
	return epaResult{Normal: n, Depth: degeneratePenetra}
}

// newFaceOutward builds a face whose normal points away from opposite.
func newFaceOutward(a, b, c, opposite mgl64.Vec3) epaFace {
	f := epaFace{points: [3]mgl64.Vec3{a, b, c}}

	n := b.Sub(a).Cross(c.Sub(a))
	if n.LenSqr() < 1e-16 {
		f.normal = mgl64.Vec3{0, 1, 0}
		f.distance = epaMinFaceDist
		return f
	}
	n = n.Normalize()

	if n.Dot(opposite.Sub(a)) > 0 {
		n = n.Mul(-1)
	}

	dist := a.Dot(n)
	if dist < 0 {
		n = n.Mul(-1)
		dist = -dist
	}
	if dist < epaMinFaceDist {
		dist = epaMinFaceDist
	}

	f.normal = n
	f.distance = dist
	return f
}

func buildInitialFaces(s *simplex) []epaFace {
	a, b, c, d := s.points[0], s.points[1], s.points[2], s.points[3]
	candidates := []epaFace{
		newFaceOutward(a, b, c, d),
		newFaceOutward(a, c, d, b),
		newFaceOutward(a, d, b, c),
		newFaceOutward(b, d, c, a),
	}

	faces := candidates[:0:0]
	for _, f := range candidates {
		if f.distance >= epaMinFaceDist {
			faces = append(faces, f)
		}
	}
	if len(faces) < 3 {
		return candidates
	}
	return faces
}

func closestFaceIndex(faces []epaFace) int {
	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].distance < faces[best].distance {
			best = i
		}
	}
	return best
}

// expandPolytope removes faces visible from the support point and stitches
// new faces across the resulting boundary edges.
func expandPolytope(faces *[]epaFace, support mgl64.Vec3, closestIndex int) {
	centroid := polytopeCentroid(*faces)

	var visible []int
	for i, f := range *faces {
		if support.Sub(f.points[0]).Dot(f.normal) > 0 {
			visible = append(visible, i)
		}
	}
	// Never remove every face; keep the polytope a closed surface.
	if len(visible) >= len(*faces) {
		visible = []int{closestIndex}
	}

	edges := boundaryEdges(*faces, visible)

	for i := len(visible) - 1; i >= 0; i-- {
		idx := visible[i]
		*faces = append((*faces)[:idx], (*faces)[idx+1:]...)
	}

	for _, e := range edges {
		*faces = append(*faces, newFaceOutward(e.a, e.b, support, centroid))
	}

	if len(*faces) == 0 {
		*faces = []epaFace{{
			points:   [3]mgl64.Vec3{support, support, support},
			normal:   mgl64.Vec3{0, 1, 0},
			distance: epaMinFaceDist,
		}}
	}
}

func polytopeCentroid(faces []epaFace) mgl64.Vec3 {
	set := make(map[mgl64.Vec3]bool)
	for _, f := range faces {
		for _, p := range f.points {
			set[p] = true
		}
	}
	var c mgl64.Vec3
	for p := range set {
		c = c.Add(p)
	}
	if len(set) > 0 {
		c = c.Mul(1.0 / float64(len(set)))
	}
	return c
}

// boundaryEdges returns edges that belong to exactly one visible face; these
// form the horizon the new faces attach to.
func boundaryEdges(faces []epaFace, visible []int) []epaEdge {
	count := make(map[epaEdge]int)
	for _, idx := range visible {
		f := faces[idx]
		es := [3]epaEdge{
			{f.points[0], f.points[1]},
			{f.points[1], f.points[2]},
			{f.points[2], f.points[0]},
		}
		for _, e := range es {
			count[orderedEdge(e)]++
		}
	}

	var out []epaEdge
	for e, n := range count {
		if n == 1 {
			out = append(out, e)
		}
	}
	return out
}

func orderedEdge(e epaEdge) epaEdge {
	if lessVec3(e.b, e.a) {
		return epaEdge{e.b, e.a}
	}
	return e
}

func lessVec3(a, b mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// snapNormal clamps near-zero normal components to exactly zero, which keeps
// axis-aligned stacks from jittering in the tangent directions.
func snapNormal(n mgl64.Vec3) mgl64.Vec3 {
	const threshold = 1e-8
	for i := 0; i < 3; i++ {
		if math.Abs(n[i]) < threshold {
			n[i] = 0
		}
	}
	if n.LenSqr() < 1e-16 {
		return mgl64.Vec3{0, 1, 0}
	}
	return n.Normalize()
}
