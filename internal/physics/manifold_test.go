package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSphereSphereManifold(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{1.5, 0, 0}, Sphere{Radius: 1})

	ms := collideColliders(a, b)
	if len(ms) != 1 {
		t.Fatalf("Expected 1 manifold, got %d", len(ms))
	}
	m := ms[0]
	if len(m.Points) != 1 {
		t.Fatalf("Expected 1 contact point, got %d", len(m.Points))
	}
	if m.Normal.X() < 0.99 {
		t.Errorf("Expected normal from A toward B, got %v", m.Normal)
	}
	if math.Abs(m.Points[0].Separation+0.5) > 1e-6 {
		t.Errorf("Expected separation -0.5, got %v", m.Points[0].Separation)
	}
}

func TestSeparatedSpheresNoManifold(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{5, 0, 0}, Sphere{Radius: 1})

	if ms := collideColliders(a, b); len(ms) != 0 {
		t.Errorf("Expected no manifolds for separated spheres, got %d", len(ms))
	}
}

func TestBoxOnPlaneManifoldHasFourPoints(t *testing.T) {
	box := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0.95, 0}, Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	plane := makeTestCollider(1, BodyStatic, mgl64.Vec3{}, Plane{Normal: mgl64.Vec3{0, 1, 0}})

	ms := collideColliders(box, plane)
	if len(ms) != 1 {
		t.Fatalf("Expected 1 manifold, got %d", len(ms))
	}
	m := ms[0]
	if len(m.Points) != 4 {
		t.Errorf("Flat box face on plane should give 4 points, got %d", len(m.Points))
	}
	if m.Normal.Y() > -0.99 {
		t.Errorf("Expected normal (0,-1,0) from box toward plane, got %v", m.Normal)
	}
	for _, p := range m.Points {
		if p.Separation > 0 || p.Separation < -0.1 {
			t.Errorf("Expected separation in [-0.1, 0], got %v", p.Separation)
		}
	}
}

func TestManifoldPointCap(t *testing.T) {
	pts := make([]ContactPoint, 0, 8)
	for i := 0; i < 8; i++ {
		angle := float64(i) * math.Pi / 4
		pts = append(pts, ContactPoint{Position: mgl64.Vec3{math.Cos(angle), 0, math.Sin(angle)}})
	}
	reduced := reducePoints(pts, mgl64.Vec3{0, 1, 0})
	if len(reduced) > maxManifoldPoints {
		t.Errorf("Expected at most %d points after reduction, got %d", maxManifoldPoints, len(reduced))
	}
	if len(reduced) < 3 {
		t.Errorf("Reduction should keep the extremes, got only %d points", len(reduced))
	}
}

func TestSphereBoxDeepContact(t *testing.T) {
	sphere := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 1.3, 0}, Sphere{Radius: 0.5})
	box := makeTestCollider(1, BodyStatic, mgl64.Vec3{0, 0, 0}, Box{HalfExtents: mgl64.Vec3{2, 1, 2}})

	ms := collideColliders(sphere, box)
	if len(ms) != 1 {
		t.Fatalf("Expected 1 manifold, got %d", len(ms))
	}
	m := ms[0]
	// Sphere above the box, normal points from sphere down into the box.
	if m.Normal.Y() > -0.99 {
		t.Errorf("Expected normal (0,-1,0), got %v", m.Normal)
	}
	if m.Points[0].Separation >= 0 {
		t.Errorf("Expected negative separation, got %v", m.Points[0].Separation)
	}
}

func TestCapsuleCapsuleParallel(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Capsule{Radius: 0.5, HalfHeight: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{0.8, 0, 0}, Capsule{Radius: 0.5, HalfHeight: 1})

	ms := collideColliders(a, b)
	if len(ms) != 1 {
		t.Fatalf("Expected 1 manifold, got %d", len(ms))
	}
	if math.Abs(ms[0].Points[0].Separation+0.2) > 1e-6 {
		t.Errorf("Expected separation -0.2, got %v", ms[0].Points[0].Separation)
	}
}

func TestCompoundProducesPerChildManifolds(t *testing.T) {
	dumbbell := Compound{Children: []CompoundChild{
		{Shape: Sphere{Radius: 0.5}, Offset: mgl64.Vec3{-2, 0, 0}, Rotation: mgl64.QuatIdent()},
		{Shape: Sphere{Radius: 0.5}, Offset: mgl64.Vec3{2, 0, 0}, Rotation: mgl64.QuatIdent()},
	}}
	comp := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0.45, 0}, dumbbell)
	plane := makeTestCollider(1, BodyStatic, mgl64.Vec3{}, Plane{Normal: mgl64.Vec3{0, 1, 0}})

	ms := collideColliders(comp, plane)
	if len(ms) != 2 {
		t.Fatalf("Expected 2 manifolds (one per child), got %d", len(ms))
	}
	if ms[0].key.subA == ms[1].key.subA {
		t.Error("Each manifold should carry a distinct sub-shape index")
	}
}

func TestWarmStartTransfersImpulses(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{1.5, 0, 0}, Sphere{Radius: 1})

	prev := collideColliders(a, b)[0]
	prev.Points[0].NormalImpulse = 3.5
	prev.Points[0].TangentImpulse = [2]float64{0.5, -0.25}

	// Tiny movement: the new point must match and inherit the impulses.
	b.Body.Position = mgl64.Vec3{1.501, 0, 0}
	b.updateAABB()
	cur := collideColliders(a, b)

	warmStartManifolds(cur, map[featureKey]*Manifold{prev.key: prev}, 0.02)

	if cur[0].Points[0].NormalImpulse != 3.5 {
		t.Errorf("Expected transferred normal impulse 3.5, got %v", cur[0].Points[0].NormalImpulse)
	}
	if cur[0].Points[0].TangentImpulse[1] != -0.25 {
		t.Errorf("Expected transferred tangent impulse, got %v", cur[0].Points[0].TangentImpulse)
	}
}

func TestWarmStartIgnoresFarPoints(t *testing.T) {
	a := makeTestCollider(0, BodyDynamic, mgl64.Vec3{0, 0, 0}, Sphere{Radius: 1})
	b := makeTestCollider(1, BodyDynamic, mgl64.Vec3{1.5, 0, 0}, Sphere{Radius: 1})

	prev := collideColliders(a, b)[0]
	prev.Points[0].NormalImpulse = 3.5

	// Large jump: same feature key but the point moved too far to match.
	b.Body.Position = mgl64.Vec3{0, 1.5, 0}
	b.updateAABB()
	cur := collideColliders(a, b)

	warmStartManifolds(cur, map[featureKey]*Manifold{prev.key: prev}, 0.02)

	if cur[0].Points[0].NormalImpulse != 0 {
		t.Errorf("Expected no impulse transfer across a large move, got %v", cur[0].Points[0].NormalImpulse)
	}
}
