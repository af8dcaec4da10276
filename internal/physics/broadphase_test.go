package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func makeTestCollider(id ColliderID, kind BodyKind, pos mgl64.Vec3, shape Shape) *Collider {
	b := NewRigidBody(kind, pos, mgl64.QuatIdent())
	c := &Collider{ID: id, Body: b, Shape: shape}
	b.Collider = c
	c.updateAABB()
	return c
}

func TestBroadphaseFindsOverlappingPair(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{1.5, 0, 0}, Sphere{Radius: 1})

	bp := newBroadphase(DefaultCellSize)
	pairs := bp.computePairs([]*Collider{a, b})

	if len(pairs) != 1 {
		t.Fatalf("Expected 1 pair, got %d", len(pairs))
	}
	if pairs[0] != makeColliderPair(0, 1) {
		t.Errorf("Expected pair (0,1), got %v", pairs[0])
	}
}

func TestBroadphaseSkipsDistantPair(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{100, 0, 0}, Sphere{Radius: 1})

	bp := newBroadphase(DefaultCellSize)
	if pairs := bp.computePairs([]*Collider{a, b}); len(pairs) != 0 {
		t.Errorf("Expected no pairs for distant colliders, got %d", len(pairs))
	}
}

func TestBroadphaseExcludesStaticStatic(t *testing.T) {
	a := makeTestCollider(0, BodyStatic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyStatic, mgl64.Vec3{0.5, 0, 0}, Sphere{Radius: 1})

	bp := newBroadphase(DefaultCellSize)
	if pairs := bp.computePairs([]*Collider{a, b}); len(pairs) != 0 {
		t.Errorf("Two immovable bodies should never pair, got %d pairs", len(pairs))
	}
}

func TestBroadphaseExcludesBothAsleep(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{0.5, 0, 0}, Sphere{Radius: 1})
	a.Body.Sleeping = true
	b.Body.Sleeping = true

	bp := newBroadphase(DefaultCellSize)
	if pairs := bp.computePairs([]*Collider{a, b}); len(pairs) != 0 {
		t.Errorf("Two sleeping bodies should never pair, got %d pairs", len(pairs))
	}
}

func TestBroadphaseDeduplicatesAcrossCells(t *testing.T) {
	// Large AABBs span many cells; the pair must still appear once.
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Box{HalfExtents: mgl64.Vec3{8, 8, 8}})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{3, 0, 0}, Box{HalfExtents: mgl64.Vec3{8, 8, 8}})

	bp := newBroadphase(DefaultCellSize)
	pairs := bp.computePairs([]*Collider{a, b})
	if len(pairs) != 1 {
		t.Errorf("Expected exactly 1 deduplicated pair, got %d", len(pairs))
	}
}

func TestBroadphasePlanePairsWithEverything(t *testing.T) {
	plane := makeTestCollider(0, BodyStatic, mgl64.Vec3{}, Plane{Normal: mgl64.Vec3{0, 1, 0}})
	far := makeTestCollider(1, BodyDynamic, mgl64.Vec3{500, 500, 500}, Sphere{Radius: 1})

	bp := newBroadphase(DefaultCellSize)
	pairs := bp.computePairs([]*Collider{plane, far})
	if len(pairs) != 1 {
		t.Errorf("Plane should pair with any dynamic collider, got %d pairs", len(pairs))
	}
}
