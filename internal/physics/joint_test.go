package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func jointWorld(t *testing.T) *World {
	t.Helper()
	cfg := DefaultConfig()
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	return w
}

func TestBallSocketHoldsAnchor(t *testing.T) {
	w := jointWorld(t)

	anchor := w.AddBody(BodyStatic, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(anchor, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)

	bob := addSphere(w, mgl64.Vec3{2, 5, 0}, 0.25, 1)
	bob.CanSleep = false
	w.AddJoint(NewBallSocketJoint(anchor, bob, mgl64.Vec3{0, 5, 0}))

	for i := 0; i < 300; i++ {
		w.Step(w.Config().FixedTimestep)
	}

	// The bob swings but must stay on the 2-unit sphere around the anchor.
	dist := bob.Position.Sub(mgl64.Vec3{0, 5, 0}).Len()
	if math.Abs(dist-2) > 0.15 {
		t.Errorf("Expected bob to stay ~2 from the anchor, got %v", dist)
	}
}

func TestDistanceJointKeepsLength(t *testing.T) {
	w := jointWorld(t)

	anchor := w.AddBody(BodyStatic, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(anchor, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)

	bob := addSphere(w, mgl64.Vec3{0, 3, 0}, 0.25, 1)
	bob.CanSleep = false
	bob.Velocity = mgl64.Vec3{1, 0, 0}
	w.AddJoint(NewDistanceJoint(anchor, bob, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, 3, 0}))

	for i := 0; i < 300; i++ {
		w.Step(w.Config().FixedTimestep)
	}

	dist := bob.Position.Sub(mgl64.Vec3{0, 5, 0}).Len()
	if math.Abs(dist-2) > 0.1 {
		t.Errorf("Expected rod length ~2, got %v", dist)
	}
}

func TestFixedJointMovesAsOne(t *testing.T) {
	w := jointWorld(t)
	cfg := w.Config()

	a := addSphere(w, mgl64.Vec3{0, 10, 0}, 0.5, 1)
	b := addSphere(w, mgl64.Vec3{1.5, 10, 0}, 0.5, 1)
	a.CanSleep, b.CanSleep = false, false
	w.AddJoint(NewFixedJoint(a, b, mgl64.Vec3{0.75, 10, 0}))

	a.ApplyImpulse(mgl64.Vec3{0, 0, 3}, a.Position)

	for i := 0; i < 120; i++ {
		w.Step(cfg.FixedTimestep)
	}

	// Relative pose must be preserved while both free-fall and drift.
	rel := b.Position.Sub(a.Position)
	if math.Abs(rel.Len()-1.5) > 0.1 {
		t.Errorf("Expected weld to keep bodies 1.5 apart, got %v", rel.Len())
	}
}

func TestHingeRestrictsRotationAxis(t *testing.T) {
	w := jointWorld(t)

	base := w.AddBody(BodyStatic, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(base, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)

	door := w.AddBody(BodyDynamic, mgl64.Vec3{1, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(door, Box{HalfExtents: mgl64.Vec3{1, 0.5, 0.1}}, mgl64.Vec3{}, false)
	door.SetMass(1)
	door.CanSleep = false

	// Hinge about Y at the base: gravity pulls but the door may only yaw.
	h := NewHingeJoint(base, door, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, 1, 0})
	w.AddJoint(h)
	door.AngularVelocity = mgl64.Vec3{0, 2, 0}

	for i := 0; i < 120; i++ {
		w.Step(w.Config().FixedTimestep)
	}

	// Off-axis angular velocity must stay suppressed.
	off := math.Hypot(door.AngularVelocity.X(), door.AngularVelocity.Z())
	if off > 0.2 {
		t.Errorf("Hinge should kill off-axis rotation, got %v", off)
	}
}

func TestHingeLimitsClampAngle(t *testing.T) {
	w := jointWorld(t)

	base := w.AddBody(BodyStatic, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(base, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)

	door := w.AddBody(BodyDynamic, mgl64.Vec3{1, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(door, Box{HalfExtents: mgl64.Vec3{1, 0.5, 0.1}}, mgl64.Vec3{}, false)
	door.SetMass(1)
	door.CanSleep = false

	h := NewHingeJoint(base, door, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, 1, 0})
	h.SetLimits(-0.5, 0.5)
	w.AddJoint(h)
	door.AngularVelocity = mgl64.Vec3{0, 5, 0}

	for i := 0; i < 300; i++ {
		w.Step(w.Config().FixedTimestep)
	}

	if angle := h.angle(); angle > 0.7 || angle < -0.7 {
		t.Errorf("Expected hinge angle within limits (plus tolerance), got %v", angle)
	}
}

func TestSliderTravelsAlongAxisOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GravityY = 0
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}

	rail := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(rail, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)

	carriage := addSphere(w, mgl64.Vec3{0, 0, 0}, 0.25, 1)
	carriage.CanSleep = false
	carriage.LinearDamping = 0

	s := NewSliderJoint(rail, carriage, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	w.AddJoint(s)

	// Push diagonally: only the X component should survive.
	carriage.SetVelocity(mgl64.Vec3{2, 2, 0})
	for i := 0; i < 60; i++ {
		w.Step(cfg.FixedTimestep)
	}

	if carriage.Position.X() < 1 {
		t.Errorf("Carriage should slide along the axis, got x=%v", carriage.Position.X())
	}
	if math.Abs(carriage.Position.Y()) > 0.1 {
		t.Errorf("Carriage should not leave the rail, got y=%v", carriage.Position.Y())
	}
}

func TestSliderLimitsStopTravel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GravityY = 0
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}

	rail := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(rail, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)

	carriage := addSphere(w, mgl64.Vec3{0, 0, 0}, 0.25, 1)
	carriage.CanSleep = false
	carriage.LinearDamping = 0

	s := NewSliderJoint(rail, carriage, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	s.SetLimits(-1, 1)
	w.AddJoint(s)

	carriage.SetVelocity(mgl64.Vec3{5, 0, 0})
	for i := 0; i < 120; i++ {
		w.Step(cfg.FixedTimestep)
	}

	if carriage.Position.X() > 1.2 {
		t.Errorf("Expected travel clamped near the upper limit 1, got x=%v", carriage.Position.X())
	}
}

func TestRemoveJointFreesBody(t *testing.T) {
	w := jointWorld(t)

	anchor := w.AddBody(BodyStatic, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent())
	w.AttachCollider(anchor, Sphere{Radius: 0.1}, mgl64.Vec3{}, false)
	bob := addSphere(w, mgl64.Vec3{0, 3, 0}, 0.25, 1)
	bob.CanSleep = false

	j := NewDistanceJoint(anchor, bob, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, 3, 0})
	w.AddJoint(j)
	w.RemoveJoint(j)

	for i := 0; i < 60; i++ {
		w.Step(w.Config().FixedTimestep)
	}

	if bob.Position.Y() > 1 {
		t.Errorf("Without the joint the bob should fall freely, got y=%v", bob.Position.Y())
	}
}
