package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// noGravityWorld builds a world with gravity disabled so solver behavior can
// be observed in isolation.
func noGravityWorld(t *testing.T) *World {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GravityY = 0
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}
	return w
}

func addSphere(w *World, pos mgl64.Vec3, radius, mass float64) *RigidBody {
	b := w.AddBody(BodyDynamic, pos, mgl64.QuatIdent())
	w.AttachCollider(b, Sphere{Radius: radius}, mgl64.Vec3{}, false)
	b.SetMass(mass)
	return b
}

func TestRestitutionFullBounce(t *testing.T) {
	w := noGravityWorld(t)

	ground := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(ground, Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)

	// Slightly overlapping the plane, moving straight down.
	b := addSphere(w, mgl64.Vec3{0, 0.49, 0}, 0.5, 1)
	b.Restitution = 1.0
	b.LinearDamping = 0
	b.Velocity = mgl64.Vec3{0, -5, 0}

	w.Step(w.Config().FixedTimestep)

	// Elastic bounce: outgoing speed close to incoming.
	if b.Velocity.Y() < 4.5 || b.Velocity.Y() > 5.7 {
		t.Errorf("Expected bounce velocity ~+5, got %v", b.Velocity.Y())
	}
}

func TestRestitutionZeroNoBounce(t *testing.T) {
	w := noGravityWorld(t)

	ground := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(ground, Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)

	b := addSphere(w, mgl64.Vec3{0, 0.49, 0}, 0.5, 1)
	b.Restitution = 0
	b.LinearDamping = 0
	b.Velocity = mgl64.Vec3{0, -5, 0}

	w.Step(w.Config().FixedTimestep)

	// Inelastic: the approach is cancelled, only the small Baumgarte
	// recovery velocity may remain.
	if b.Velocity.Y() < -0.01 || b.Velocity.Y() > 0.5 {
		t.Errorf("Expected near-zero velocity after inelastic contact, got %v", b.Velocity.Y())
	}
}

func TestEqualMassHeadOnExchange(t *testing.T) {
	w := noGravityWorld(t)

	// Surfaces just overlapping so the single step includes the contact.
	a := addSphere(w, mgl64.Vec3{-0.49, 0, 0}, 0.5, 1)
	b := addSphere(w, mgl64.Vec3{0.49, 0, 0}, 0.5, 1)
	a.Restitution, b.Restitution = 1, 1
	a.LinearDamping, b.LinearDamping = 0, 0
	a.Velocity = mgl64.Vec3{2, 0, 0}
	b.Velocity = mgl64.Vec3{-2, 0, 0}

	w.Step(w.Config().FixedTimestep)

	// Equal masses, elastic head-on: velocities swap sign.
	if a.Velocity.X() > -1.5 {
		t.Errorf("Expected body A to rebound, got vx=%v", a.Velocity.X())
	}
	if b.Velocity.X() < 1.5 {
		t.Errorf("Expected body B to rebound, got vx=%v", b.Velocity.X())
	}
}

func TestFrictionStopsSliding(t *testing.T) {
	cfg := DefaultConfig()
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}

	ground := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(ground, Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)
	ground.Friction = 0.8

	box := w.AddBody(BodyDynamic, mgl64.Vec3{0, 0.499, 0}, mgl64.QuatIdent())
	w.AttachCollider(box, Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, mgl64.Vec3{}, false)
	box.SetMass(1)
	box.Friction = 0.8
	box.Velocity = mgl64.Vec3{3, 0, 0}

	for i := 0; i < 180; i++ {
		w.Step(cfg.FixedTimestep)
	}

	if speed := box.Velocity.Len(); speed > 0.2 {
		t.Errorf("Expected friction to stop the sliding box within 3s, still moving at %v", speed)
	}
	if box.Position.Y() < 0.3 || box.Position.Y() > 0.7 {
		t.Errorf("Box should rest on the plane, got y=%v", box.Position.Y())
	}
}

func TestFrictionlessKeepsSliding(t *testing.T) {
	cfg := DefaultConfig()
	w, err := NewWorld(cfg)
	if err != nil {
		t.Fatalf("NewWorld failed: %v", err)
	}

	ground := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(ground, Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)
	ground.Friction = 0

	box := w.AddBody(BodyDynamic, mgl64.Vec3{0, 0.499, 0}, mgl64.QuatIdent())
	w.AttachCollider(box, Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, mgl64.Vec3{}, false)
	box.SetMass(1)
	box.Friction = 0
	box.LinearDamping = 0
	box.CanSleep = false
	box.Velocity = mgl64.Vec3{3, 0, 0}

	for i := 0; i < 60; i++ {
		w.Step(cfg.FixedTimestep)
	}

	if box.Velocity.X() < 2.5 {
		t.Errorf("Frictionless box should keep sliding, got vx=%v", box.Velocity.X())
	}
}

func TestAccumulatedImpulseStaysNonNegative(t *testing.T) {
	w := noGravityWorld(t)

	ground := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(ground, Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)

	b := addSphere(w, mgl64.Vec3{0, 0.49, 0}, 0.5, 1)
	b.Velocity = mgl64.Vec3{0, -1, 0}

	pairs := w.bp.computePairs(w.colliders)
	manifolds, _, _ := w.narrowphase(pairs)
	if len(manifolds) == 0 {
		t.Fatal("Expected a contact manifold")
	}

	cfg := w.Config()
	cs := newContactSolver(manifolds, cfg.FixedTimestep, &cfg)
	cs.initConstraints()
	for i := 0; i < 20; i++ {
		cs.solveVelocity()
	}

	for _, m := range manifolds {
		for _, p := range m.Points {
			if p.NormalImpulse < 0 {
				t.Errorf("Accumulated normal impulse must stay non-negative, got %v", p.NormalImpulse)
			}
		}
	}
}

func TestMixingRules(t *testing.T) {
	if got := mixFriction(0.4, 0.9); math.Abs(got-math.Sqrt(0.36)) > 1e-9 {
		t.Errorf("Expected sqrt mixing for friction, got %v", got)
	}
	if got := mixRestitution(0.2, 0.8); got != 0.8 {
		t.Errorf("Expected max mixing for restitution, got %v", got)
	}
}

func TestWarmStartSpeedsConvergence(t *testing.T) {
	cfg := DefaultConfig()
	h := cfg.FixedTimestep

	// A box settling into the plane with downward and angular motion: four
	// coupled contact points that a single Gauss-Seidel pass cannot fully
	// reconcile from a cold start.
	scene := func() []*Manifold {
		w, err := NewWorld(cfg)
		if err != nil {
			t.Fatalf("NewWorld failed: %v", err)
		}
		ground := w.AddBody(BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
		w.AttachCollider(ground, Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)

		box := w.AddBody(BodyDynamic, mgl64.Vec3{0, 0.49, 0}, mgl64.QuatIdent())
		w.AttachCollider(box, Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, mgl64.Vec3{}, false)
		box.SetMass(1)
		box.Velocity = mgl64.Vec3{0, -1, 0}
		box.AngularVelocity = mgl64.Vec3{0.4, 0, -0.3}

		ms := collideColliders(ground.Collider, box.Collider)
		if len(ms) == 0 {
			t.Fatal("Expected the box to contact the plane")
		}
		return ms
	}

	// Worst remaining approach velocity across all contact points.
	residual := func(ms []*Manifold) float64 {
		worst := 0.0
		for _, m := range ms {
			for i := range m.Points {
				p := &m.Points[i]
				rA := p.Position.Sub(m.A.Body.Position)
				rB := p.Position.Sub(m.B.Body.Position)
				if vn := relativeVelocity(m.A.Body, m.B.Body, rA, rB).Dot(m.Normal); -vn > worst {
					worst = -vn
				}
			}
		}
		return worst
	}

	run := func(ms []*Manifold, prev map[featureKey]*Manifold, iterations int) {
		if prev != nil {
			warmStartManifolds(ms, prev, 4*cfg.PenetrationSlop)
		}
		cs := newContactSolver(ms, h, &cfg)
		cs.initConstraints()
		cs.warmStart()
		for i := 0; i < iterations; i++ {
			cs.solveVelocity()
		}
	}

	// Fully converge one solve; its accumulated impulses seed the warm run.
	converged := scene()
	run(converged, nil, 20)
	prev := make(map[featureKey]*Manifold, len(converged))
	for _, m := range converged {
		prev[m.key] = m
	}

	cold := scene()
	run(cold, nil, 1)

	warm := scene()
	run(warm, prev, 1)

	if rw, rc := residual(warm), residual(cold); rw > rc+1e-9 {
		t.Errorf("Expected warm start to converge at least as fast, warm residual %v vs cold %v", rw, rc)
	}
}
