package physics

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// World owns all bodies, colliders and joints and advances them on a fixed
// timestep. Step may be called with any frame delta; simulation time is
// accumulated and consumed in FixedTimestep slices.
//
// World is not safe for concurrent use. Parallel island solving stays
// internal to Step.
type World struct {
	cfg     Config
	gravity mgl64.Vec3

	bodies    []*RigidBody
	colliders []*Collider
	joints    []Joint

	bp      *broadphase
	tracker *eventTracker

	// Manifolds from the previous substep, kept for warm starting.
	prevManifolds map[featureKey]*Manifold

	accumulator float64
	stepCount   uint64

	lastDropWarn       time.Time
	lastDegenerateWarn time.Time

	nextBodyID     BodyID
	nextColliderID ColliderID
	nextJointID    JointID

	// Events holds the user's callback hooks.
	Events Events
}

// NewWorld creates a world from a validated config.
func NewWorld(cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &World{
		cfg:           cfg,
		gravity:       mgl64.Vec3{cfg.GravityX, cfg.GravityY, cfg.GravityZ},
		bp:            newBroadphase(cfg.CellSize),
		tracker:       newEventTracker(),
		prevManifolds: make(map[featureKey]*Manifold),
	}, nil
}

// Config returns a copy of the world's configuration.
func (w *World) Config() Config { return w.cfg }

// SetGravity overrides the config gravity at runtime and wakes all dynamic
// bodies so they respond to it.
func (w *World) SetGravity(g mgl64.Vec3) {
	w.gravity = g
	for _, b := range w.bodies {
		if b.Kind == BodyDynamic {
			b.Wake()
		}
	}
}

// AddBody creates and registers a body. Attach a collider with
// AttachCollider before stepping, or the body is a ghost point mass.
func (w *World) AddBody(kind BodyKind, pos mgl64.Vec3, rot mgl64.Quat) *RigidBody {
	b := NewRigidBody(kind, pos, rot)
	b.ID = w.nextBodyID
	w.nextBodyID++
	w.bodies = append(w.bodies, b)
	return b
}

// AttachCollider gives a body its collision shape. A body has at most one
// collider; attaching again replaces it. Mass must be set (or reset) with
// SetMass afterwards since inertia depends on the shape.
func (w *World) AttachCollider(b *RigidBody, shape Shape, offset mgl64.Vec3, isTrigger bool) *Collider {
	if shape.Degenerate() {
		log.Printf("Physics: collider on body %d has degenerate %s shape, narrowphase will skip it", b.ID, shape.Kind())
	}
	if b.Collider != nil {
		w.detachCollider(b.Collider)
	}
	c := &Collider{
		ID:        w.nextColliderID,
		Body:      b,
		Shape:     shape,
		Offset:    offset,
		IsTrigger: isTrigger,
	}
	w.nextColliderID++
	b.Collider = c
	c.updateAABB()
	w.colliders = append(w.colliders, c)
	return c
}

func (w *World) detachCollider(c *Collider) {
	for i, other := range w.colliders {
		if other == c {
			w.colliders = append(w.colliders[:i], w.colliders[i+1:]...)
			break
		}
	}
	c.Body.Collider = nil
}

// RemoveBody unregisters a body, its collider and any joints attached to it.
func (w *World) RemoveBody(b *RigidBody) {
	if b.Collider != nil {
		w.detachCollider(b.Collider)
	}
	for i := len(w.joints) - 1; i >= 0; i-- {
		ja, jb := w.joints[i].Bodies()
		if ja == b || jb == b {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
		}
	}
	for i, other := range w.bodies {
		if other == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
}

// AddJoint registers a joint and wakes both bodies.
func (w *World) AddJoint(j Joint) {
	if base, ok := j.(interface{ setID(JointID) }); ok {
		base.setID(w.nextJointID)
	}
	w.nextJointID++
	a, b := j.Bodies()
	a.Wake()
	b.Wake()
	w.joints = append(w.joints, j)
}

// RemoveJoint unregisters a joint and wakes both bodies so the constraint
// graph re-settles.
func (w *World) RemoveJoint(j Joint) {
	for i, other := range w.joints {
		if other == j {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			a, b := j.Bodies()
			a.Wake()
			b.Wake()
			return
		}
	}
}

// Bodies returns the live body list. Callers must not mutate the slice.
func (w *World) Bodies() []*RigidBody { return w.bodies }

// Raycast returns the closest hit along the ray, skipping trigger colliders.
func (w *World) Raycast(ray Ray) (RaycastHit, bool) {
	if ray.Dir.LenSqr() < 1e-16 {
		return RaycastHit{}, false
	}
	ray.Dir = ray.Dir.Normalize()
	if ray.MaxDist <= 0 {
		ray.MaxDist = math.Inf(1)
	}

	best := RaycastHit{Distance: math.Inf(1)}
	found := false
	for _, c := range w.colliders {
		if c.IsTrigger {
			continue
		}
		if c.Shape.Kind() != ShapePlane {
			if _, _, ok := rayAABB(ray, c.aabb); !ok {
				continue
			}
		}
		if hit, ok := raycastCollider(ray, c); ok && hit.Distance < best.Distance {
			best = hit
			found = true
		}
	}
	return best, found
}

// BodyState is a read-only copy of a body's dynamic state.
type BodyState struct {
	ID              BodyID
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Sleeping        bool
}

// Snapshot copies the dynamic state of every body, in registration order.
func (w *World) Snapshot() []BodyState {
	out := make([]BodyState, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = BodyState{
			ID:              b.ID,
			Position:        b.Position,
			Orientation:     b.Orientation,
			Velocity:        b.Velocity,
			AngularVelocity: b.AngularVelocity,
			Sleeping:        b.Sleeping,
		}
	}
	return out
}

// Step advances simulation time by dt. Time is consumed in fixed substeps;
// if more than MaxSubsteps worth has accumulated, the excess is dropped so a
// slow frame cannot trigger a death spiral.
func (w *World) Step(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	w.accumulator += dt

	h := w.cfg.FixedTimestep
	limit := float64(w.cfg.MaxSubsteps) * h
	if w.accumulator > limit {
		w.warnThrottled(&w.lastDropWarn, "Physics: dropping %.4fs of accumulated time (max %d substeps)", w.accumulator-limit, w.cfg.MaxSubsteps)
		w.accumulator = limit
	}

	// The epsilon keeps a slice built up over several calls from being
	// lost to floating-point residue just under h.
	for w.accumulator >= h*(1-1e-9) {
		w.substep(h)
		w.accumulator -= h
		w.stepCount++
	}
	if w.accumulator < 0 {
		w.accumulator = 0
	}
}

// warnThrottled logs at most once per second per counter, keeping per-step
// warnings from flooding the log on every overloaded frame.
func (w *World) warnThrottled(last *time.Time, format string, args ...any) {
	if time.Since(*last) < time.Second {
		return
	}
	*last = time.Now()
	log.Printf(format, args...)
}

// StepCount reports how many fixed substeps have run since creation.
func (w *World) StepCount() uint64 { return w.stepCount }

func (w *World) substep(h float64) {
	// 1. Velocities.
	for _, b := range w.bodies {
		b.integrateVelocities(h, w.gravity)
		b.updateWorldInertia()
	}
	for _, c := range w.colliders {
		c.updateAABB()
	}

	// 2-3. Broadphase, then narrowphase with trigger split.
	pairs := w.bp.computePairs(w.colliders)
	manifolds, contacts, triggers := w.narrowphase(pairs)

	// Contact from an awake moving body wakes the sleeping side's island.
	// Resting on static geometry does not count.
	for _, m := range manifolds {
		a, b := m.A.Body, m.B.Body
		if a.Sleeping != b.Sleeping {
			sleeper, other := a, b
			if b.Sleeping {
				sleeper, other = b, a
			}
			if other.Kind != BodyStatic {
				wakeIsland(sleeper, manifolds, w.joints)
			}
		}
	}

	w.updateGrounded(manifolds)

	// 4. Islands.
	islands := buildIslands(w.bodies, manifolds, w.joints)

	// 5. Warm start matching against last substep's manifolds.
	warmStartManifolds(manifolds, w.prevManifolds, 4*w.cfg.PenetrationSlop)

	// 6+8. Solve velocity constraints per island; Baumgarte position
	// recovery rides on the contact bias.
	w.solveIslands(islands, h)

	// 7. Positions.
	for _, b := range w.bodies {
		b.integratePositions(h)
	}

	// 9. CCD rollback for flagged fast movers.
	resolveCCD(w.bodies, w.colliders, w.cfg.PenetrationSlop)

	// 10. Guard against non-finite state.
	for _, b := range w.bodies {
		if !b.finiteGuard() {
			log.Printf("Physics: body %d produced non-finite state, restored last valid pose", b.ID)
		}
		b.updateWorldInertia()
	}

	// 11. Sleep per island.
	for _, isl := range islands {
		isl.updateSleep(h, &w.cfg)
	}

	// 12. Events. Pairs between two sleeping bodies were excluded in
	// broadphase but are still touching; keep their state alive so sleep
	// does not fire a phantom exit.
	carrySleepingPairs(contacts, w.tracker.prevContacts)
	carrySleepingPairs(triggers, w.tracker.prevTriggers)
	w.tracker.dispatch(&w.Events, contacts, triggers)

	w.prevManifolds = make(map[featureKey]*Manifold, len(manifolds))
	for _, m := range manifolds {
		w.prevManifolds[m.key] = m
	}
}

// updateGrounded marks bodies supported against gravity. The manifold
// normal points from A toward B, so a supporting contact points up at B
// and down at A.
func (w *World) updateGrounded(manifolds []*Manifold) {
	up := mgl64.Vec3{0, 1, 0}
	if g := w.gravity.Len(); g > 1e-9 {
		up = w.gravity.Mul(-1 / g)
	}
	for _, b := range w.bodies {
		b.Grounded = false
	}
	const supportCos = 0.7
	for _, m := range manifolds {
		d := m.Normal.Dot(up)
		if d > supportCos {
			m.B.Body.Grounded = true
		} else if d < -supportCos {
			m.A.Body.Grounded = true
		}
	}
}

// narrowphase resolves candidate pairs into solver manifolds and event sets.
// Pairs involving a trigger collider only get an overlap test.
func (w *World) narrowphase(pairs []colliderPair) ([]*Manifold, map[colliderPair]CollisionEvent, map[colliderPair]CollisionEvent) {
	var manifolds []*Manifold
	contacts := make(map[colliderPair]CollisionEvent)
	triggers := make(map[colliderPair]CollisionEvent)

	byID := make(map[ColliderID]*Collider, len(w.colliders))
	for _, c := range w.colliders {
		byID[c.ID] = c
	}

	for _, pair := range pairs {
		a, b := byID[pair.A], byID[pair.B]
		if a == nil || b == nil {
			continue
		}

		if a.Shape.Degenerate() || b.Shape.Degenerate() {
			w.warnThrottled(&w.lastDegenerateWarn, "Physics: skipping collider pair %d-%d, degenerate shape", a.ID, b.ID)
			continue
		}

		if a.IsTrigger || b.IsTrigger {
			if overlapOnly(a, b) {
				triggers[pair] = CollisionEvent{A: a, B: b}
			}
			continue
		}

		ms := collideColliders(a, b)
		if len(ms) == 0 {
			continue
		}
		manifolds = append(manifolds, ms...)
		contacts[pair] = CollisionEvent{A: a, B: b, Normal: ms[0].Normal}
	}
	return manifolds, contacts, triggers
}

// overlapOnly is the trigger test: any piece-piece overlap counts, no
// manifold is built.
func overlapOnly(a, b *Collider) bool {
	for _, pa := range pieces(a) {
		for _, pb := range pieces(b) {
			if pa.shape.Kind() == ShapePlane || pb.shape.Kind() == ShapePlane {
				if planeOverlap(pa, pb) {
					return true
				}
				continue
			}
			var s simplex
			if gjkOverlap(pa, pb, &s) {
				return true
			}
		}
	}
	return false
}

func planeOverlap(a, b convexPiece) bool {
	plane, ok := a.shape.(Plane)
	other := b
	if !ok {
		plane = b.shape.(Plane)
		other = a
	}
	deepest := other.support(plane.Normal.Mul(-1))
	return deepest.Dot(plane.Normal)-plane.Offset < 0
}

// solveIslands runs the sequential-impulse solve for each island, optionally
// fanning islands out to workers. Islands share no bodies so they can be
// solved concurrently without locks.
func (w *World) solveIslands(islands []*island, h float64) {
	if !w.cfg.ParallelIslands || w.cfg.WorkerCount <= 1 || len(islands) < 2 {
		for _, isl := range islands {
			w.solveIsland(isl, h)
		}
		return
	}

	work := make(chan *island, len(islands))
	for _, isl := range islands {
		work <- isl
	}
	close(work)

	var wg sync.WaitGroup
	workers := w.cfg.WorkerCount
	if workers > len(islands) {
		workers = len(islands)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for isl := range work {
				w.solveIsland(isl, h)
			}
		}()
	}
	wg.Wait()
}

func (w *World) solveIsland(isl *island, h float64) {
	// Skip fully sleeping islands; their constraints hold by definition.
	awake := false
	for _, b := range isl.bodies {
		if !b.Sleeping {
			awake = true
			break
		}
	}
	if !awake {
		return
	}

	cs := newContactSolver(isl.manifolds, h, &w.cfg)
	cs.initConstraints()
	for _, j := range isl.joints {
		j.initConstraints(h, &w.cfg)
	}

	cs.warmStart()
	for _, j := range isl.joints {
		j.warmStart()
	}

	for it := 0; it < w.cfg.VelocityIterations; it++ {
		for _, j := range isl.joints {
			j.solveVelocity()
		}
		cs.solveVelocity()
	}
}
