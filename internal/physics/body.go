package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyKind classifies how a body participates in simulation.
type BodyKind int

const (
	// BodyStatic never moves and has infinite mass.
	BodyStatic BodyKind = iota
	// BodyKinematic moves under user control; infinite mass to the solver.
	BodyKinematic
	// BodyDynamic moves under forces, gravity and impulses.
	BodyDynamic
)

func (k BodyKind) String() string {
	switch k {
	case BodyStatic:
		return "static"
	case BodyKinematic:
		return "kinematic"
	case BodyDynamic:
		return "dynamic"
	}
	return "unknown"
}

// CCDMode selects continuous collision detection for fast movers.
type CCDMode int

const (
	CCDOff CCDMode = iota
	// CCDSwept sweeps the body's bounding sphere along its per-step motion
	// and rolls back to the time of impact.
	CCDSwept
)

// BodyID identifies a body inside one world. The ECS layer keeps only this id.
type BodyID int32

// ColliderID identifies a collider inside one world.
type ColliderID int32

// RigidBody is owned exclusively by the PhysicsWorld. External code reads
// and writes it only between Step calls.
type RigidBody struct {
	ID   BodyID
	Kind BodyKind

	Position    mgl64.Vec3
	Orientation mgl64.Quat

	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3

	Mass    float64
	InvMass float64

	inertiaLocal    mgl64.Mat3
	invInertiaLocal mgl64.Mat3
	invInertiaWorld mgl64.Mat3

	Restitution    float64
	Friction       float64
	LinearDamping  float64
	AngularDamping float64

	// Grounded is refreshed each substep: true while the body has a
	// contact whose normal opposes gravity, i.e. something supports it.
	Grounded bool

	CCD CCDMode

	// Sleep state. Sleeping bodies skip integration and solving but stay in
	// broadphase so new contacts wake them.
	Sleeping   bool
	CanSleep   bool
	sleepTimer float64

	// Members of the island this body fell asleep with; shared by all of
	// them so the whole island wakes as a unit.
	sleepGroup []*RigidBody

	// Collider may be nil: the body integrates but never collides.
	Collider *Collider

	// Last known finite pose, restored when integration produces NaN/Inf.
	lastValidPosition    mgl64.Vec3
	lastValidOrientation mgl64.Quat

	// Position at the start of the current substep, used by CCD sweeps.
	prevPosition mgl64.Vec3

	// Accumulated force and torque, consumed and cleared each substep.
	force  mgl64.Vec3
	torque mgl64.Vec3

	island int32 // scratch index for the per-step island build
}

// Collider attaches a shape to a body. Exactly one collider per body;
// compound shapes aggregate sub-shapes.
type Collider struct {
	ID        ColliderID
	Body      *RigidBody
	Shape     Shape
	Offset    mgl64.Vec3
	IsTrigger bool

	aabb AABB // world bounds, refreshed each substep
}

// NewRigidBody creates a body of the given kind at a pose. Mass properties
// are zeroed until a collider with mass is attached via SetMass.
func NewRigidBody(kind BodyKind, pos mgl64.Vec3, rot mgl64.Quat) *RigidBody {
	b := &RigidBody{
		Kind:                 kind,
		Position:             pos,
		Orientation:          rot.Normalize(),
		Friction:             0.5,
		Restitution:          0.0,
		LinearDamping:        0.01,
		AngularDamping:       0.05,
		CanSleep:             true,
		lastValidPosition:    pos,
		lastValidOrientation: rot.Normalize(),
	}
	b.invInertiaLocal = mgl64.Mat3{}
	b.inertiaLocal = mgl64.Mat3{}
	return b
}

// SetMass assigns mass and recomputes inertia from the attached collider
// shape. Static and kinematic bodies always end up with zero inverse mass
// and zero inverse inertia regardless of the requested mass.
func (b *RigidBody) SetMass(mass float64) {
	if b.Kind != BodyDynamic || mass <= 0 {
		b.Mass = 0
		b.InvMass = 0
		b.inertiaLocal = mgl64.Mat3{}
		b.invInertiaLocal = mgl64.Mat3{}
		b.invInertiaWorld = mgl64.Mat3{}
		return
	}
	b.Mass = mass
	b.InvMass = 1.0 / mass
	if b.Collider != nil {
		b.inertiaLocal = b.Collider.Shape.Inertia(mass)
		b.invInertiaLocal = b.inertiaLocal.Inv()
	} else {
		// No collider: point mass, no rotational response.
		b.inertiaLocal = mgl64.Mat3{}
		b.invInertiaLocal = mgl64.Mat3{}
	}
	b.updateWorldInertia()
}

// updateWorldInertia recomputes I_world^-1 = R * I_local^-1 * R^T for the
// current orientation. Called once per substep before solving.
func (b *RigidBody) updateWorldInertia() {
	if b.InvMass == 0 {
		b.invInertiaWorld = mgl64.Mat3{}
		return
	}
	r := b.Orientation.Mat4().Mat3()
	b.invInertiaWorld = r.Mul3(b.invInertiaLocal).Mul3(r.Transpose())
}

// InvInertiaWorld returns the world-space inverse inertia tensor. Zero for
// static and kinematic bodies.
func (b *RigidBody) InvInertiaWorld() mgl64.Mat3 {
	return b.invInertiaWorld
}

// SupportWorld returns the world-space support point of the collider shape
// in the given world direction.
func (b *RigidBody) SupportWorld(dir mgl64.Vec3) mgl64.Vec3 {
	localDir := b.Orientation.Conjugate().Rotate(dir)
	local := b.Collider.Shape.Support(localDir)
	return b.colliderOrigin().Add(b.Orientation.Rotate(local))
}

// colliderOrigin is the collider's world position including its local offset.
func (b *RigidBody) colliderOrigin() mgl64.Vec3 {
	if b.Collider == nil || b.Collider.Offset.LenSqr() == 0 {
		return b.Position
	}
	return b.Position.Add(b.Orientation.Rotate(b.Collider.Offset))
}

// Wake clears sleep state and the sleep timer. A body that went to sleep
// as part of an island drags the rest of that island awake with it, even
// though the contacts between sleeping members are no longer tracked.
func (b *RigidBody) Wake() {
	b.Sleeping = false
	b.sleepTimer = 0
	if b.sleepGroup != nil {
		group := b.sleepGroup
		b.sleepGroup = nil
		for _, other := range group {
			if other != b {
				other.Wake()
			}
		}
	}
}

// Sleep puts the body to sleep and zeroes its velocities.
func (b *RigidBody) Sleep() {
	b.Sleeping = true
	b.sleepTimer = 0
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
}

// ApplyImpulse applies a world-space impulse at a world-space point,
// waking the body.
func (b *RigidBody) ApplyImpulse(impulse, point mgl64.Vec3) {
	if b.Kind != BodyDynamic {
		return
	}
	b.Wake()
	b.Velocity = b.Velocity.Add(impulse.Mul(b.InvMass))
	r := point.Sub(b.Position)
	b.AngularVelocity = b.AngularVelocity.Add(b.invInertiaWorld.Mul3x1(r.Cross(impulse)))
}

// ApplyForce accumulates a world-space force at a world-space point. The
// force acts over the next substep and is cleared afterwards; call it every
// frame for a continuous push.
func (b *RigidBody) ApplyForce(force, point mgl64.Vec3) {
	if b.Kind != BodyDynamic {
		return
	}
	b.Wake()
	b.force = b.force.Add(force)
	b.torque = b.torque.Add(point.Sub(b.Position).Cross(force))
}

// SetVelocity overrides linear velocity and wakes the body.
func (b *RigidBody) SetVelocity(v mgl64.Vec3) {
	if b.Kind == BodyStatic {
		return
	}
	b.Wake()
	b.Velocity = v
}

// velocityAt returns the velocity of a world-space point on the body.
func (b *RigidBody) velocityAt(point mgl64.Vec3) mgl64.Vec3 {
	return b.Velocity.Add(b.AngularVelocity.Cross(point.Sub(b.Position)))
}

// integrateVelocities applies gravity, accumulated forces and damping for
// one substep, then clears the force accumulators.
func (b *RigidBody) integrateVelocities(dt float64, gravity mgl64.Vec3) {
	if b.Kind != BodyDynamic || b.Sleeping {
		b.force = mgl64.Vec3{}
		b.torque = mgl64.Vec3{}
		return
	}
	b.Velocity = b.Velocity.Add(gravity.Add(b.force.Mul(b.InvMass)).Mul(dt))
	b.AngularVelocity = b.AngularVelocity.Add(b.invInertiaWorld.Mul3x1(b.torque).Mul(dt))
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
	b.Velocity = b.Velocity.Mul(math.Exp(-b.LinearDamping * dt))
	b.AngularVelocity = b.AngularVelocity.Mul(math.Exp(-b.AngularDamping * dt))
}

// integratePositions advances the pose for one substep. Kinematic bodies
// move here too; static bodies never move.
func (b *RigidBody) integratePositions(dt float64) {
	if b.Kind == BodyStatic || b.Sleeping {
		return
	}
	b.prevPosition = b.Position
	b.Position = b.Position.Add(b.Velocity.Mul(dt))

	// q' = q + dt/2 * (omega_quat * q), then renormalize.
	w := b.AngularVelocity
	if w.LenSqr() > 0 {
		omega := mgl64.Quat{W: 0, V: w}
		dq := omega.Mul(b.Orientation).Scale(0.5 * dt)
		b.Orientation = b.Orientation.Add(dq).Normalize()
	}
}

// motionStart is where the body was at the start of the current substep.
// Bodies that did not integrate this substep report their current position.
func (b *RigidBody) motionStart() mgl64.Vec3 {
	if b.Kind == BodyStatic || b.Sleeping {
		return b.Position
	}
	return b.prevPosition
}

// finiteGuard detects NaN/Inf poses or velocities after integration. The
// body's velocity is zeroed and the pose restored to the last valid one so
// corruption does not spread through the contact graph.
func (b *RigidBody) finiteGuard() bool {
	if vecFinite(b.Position) && vecFinite(b.Velocity) &&
		vecFinite(b.AngularVelocity) && quatFinite(b.Orientation) {
		b.lastValidPosition = b.Position
		b.lastValidOrientation = b.Orientation
		return true
	}
	b.Position = b.lastValidPosition
	b.Orientation = b.lastValidOrientation
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	return false
}

func vecFinite(v mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

func quatFinite(q mgl64.Quat) bool {
	if math.IsNaN(q.W) || math.IsInf(q.W, 0) {
		return false
	}
	return vecFinite(q.V)
}

// updateAABB refreshes the collider's world bounds for the current pose.
func (c *Collider) updateAABB() {
	c.aabb = c.Shape.AABB(c.Body.colliderOrigin(), c.Body.Orientation)
}

// WorldAABB returns the collider's last computed world bounds.
func (c *Collider) WorldAABB() AABB { return c.aabb }
