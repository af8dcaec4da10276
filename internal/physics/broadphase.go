package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultCellSize is the spatial hash cell edge length. Tunable per world;
// bodies in the same or neighboring cells become candidate pairs.
const DefaultCellSize = 5.0

// cellKey addresses one cell of the uniform spatial hash.
type cellKey struct {
	X, Y, Z int
}

// colliderPair is an unordered candidate pair, stored with the smaller
// collider id first so map lookups are order independent.
type colliderPair struct {
	A, B ColliderID
}

func makeColliderPair(a, b ColliderID) colliderPair {
	if a > b {
		a, b = b, a
	}
	return colliderPair{A: a, B: b}
}

// broadphase is a uniform spatial hash over collider world AABBs.
type broadphase struct {
	cellSize float64
	grid     map[cellKey][]*Collider
}

func newBroadphase(cellSize float64) *broadphase {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &broadphase{
		cellSize: cellSize,
		grid:     make(map[cellKey][]*Collider),
	}
}

func (bp *broadphase) cellOf(p mgl64.Vec3) cellKey {
	return cellKey{
		X: int(math.Floor(p.X() / bp.cellSize)),
		Y: int(math.Floor(p.Y() / bp.cellSize)),
		Z: int(math.Floor(p.Z() / bp.cellSize)),
	}
}

// insert adds a collider to every cell its AABB overlaps. Degenerate AABBs
// are clamped to a minimum extent so they still land in one cell. Plane
// colliders are unbounded and kept aside; they pair with everything.
func (bp *broadphase) insert(c *Collider) {
	box := c.aabb.ClampDegenerate(minShapeExtent * 10)
	min := bp.cellOf(box.Min)
	max := bp.cellOf(box.Max)
	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				key := cellKey{x, y, z}
				bp.grid[key] = append(bp.grid[key], c)
			}
		}
	}
}

func (bp *broadphase) clear() {
	for k := range bp.grid {
		delete(bp.grid, k)
	}
}

// pairable applies the standing exclusions: no self pairs, no pairs where
// both bodies are immovable, no pairs where both bodies are asleep.
func pairable(a, b *Collider) bool {
	if a.Body == b.Body {
		return false
	}
	if a.Body.Kind != BodyDynamic && b.Body.Kind != BodyDynamic {
		return false
	}
	if a.Body.Sleeping && b.Body.Sleeping {
		return false
	}
	return true
}

// computePairs rebuilds the grid from the given colliders and returns the
// de-duplicated set of candidate pairs whose AABBs overlap. Unbounded plane
// colliders are tested against every other collider directly.
func (bp *broadphase) computePairs(colliders []*Collider) []colliderPair {
	bp.clear()

	var planes []*Collider
	for _, c := range colliders {
		if c.Shape.Kind() == ShapePlane {
			planes = append(planes, c)
			continue
		}
		bp.insert(c)
	}

	seen := make(map[colliderPair]bool)
	var pairs []colliderPair

	for _, cell := range bp.grid {
		for i := 0; i < len(cell); i++ {
			for j := i + 1; j < len(cell); j++ {
				a, b := cell[i], cell[j]
				if !pairable(a, b) {
					continue
				}
				key := makeColliderPair(a.ID, b.ID)
				if seen[key] {
					continue
				}
				seen[key] = true
				if a.aabb.Intersects(b.aabb) {
					pairs = append(pairs, key)
				}
			}
		}
	}

	for _, p := range planes {
		for _, c := range colliders {
			if c == p || c.Shape.Kind() == ShapePlane {
				continue
			}
			if !pairable(p, c) {
				continue
			}
			key := makeColliderPair(p.ID, c.ID)
			if !seen[key] {
				seen[key] = true
				pairs = append(pairs, key)
			}
		}
	}

	return pairs
}
