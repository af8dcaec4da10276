package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// JointID identifies a joint within a world.
type JointID int32

// Joint is a velocity-level constraint between two bodies, solved with the
// same sequential-impulse scheme as contacts. Bias terms pull position and
// orientation drift back over several steps.
type Joint interface {
	Bodies() (*RigidBody, *RigidBody)
	initConstraints(dt float64, cfg *Config)
	warmStart()
	solveVelocity()
	jointID() JointID
}

type jointBase struct {
	id   JointID
	A, B *RigidBody

	beta float64 // position bias factor / dt, set per step
}

func (j *jointBase) Bodies() (*RigidBody, *RigidBody) { return j.A, j.B }
func (j *jointBase) jointID() JointID                 { return j.id }
func (j *jointBase) setID(id JointID)                 { j.id = id }

func (j *jointBase) setBias(dt float64, cfg *Config) {
	j.beta = cfg.Baumgarte / dt
}

// skewMat returns the cross-product matrix S with S·x = v × x.
func skewMat(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		0, v.Z(), -v.Y(),
		-v.Z(), 0, v.X(),
		v.Y(), -v.X(), 0,
	}
}

// pointMassMatrix is the 3x3 effective-mass denominator of a point-to-point
// constraint with arms rA, rB.
func pointMassMatrix(a, b *RigidBody, rA, rB mgl64.Vec3) mgl64.Mat3 {
	k := mgl64.Diag3(mgl64.Vec3{
		a.InvMass + b.InvMass,
		a.InvMass + b.InvMass,
		a.InvMass + b.InvMass,
	})
	sA := skewMat(rA)
	sB := skewMat(rB)
	k = k.Sub(sA.Mul3(a.InvInertiaWorld()).Mul3(sA))
	k = k.Sub(sB.Mul3(b.InvInertiaWorld()).Mul3(sB))
	return k
}

func angularMassMatrix(a, b *RigidBody) mgl64.Mat3 {
	return a.InvInertiaWorld().Add(b.InvInertiaWorld())
}

func applyAngularImpulsePair(a, b *RigidBody, impulse mgl64.Vec3) {
	a.AngularVelocity = a.AngularVelocity.Sub(a.InvInertiaWorld().Mul3x1(impulse))
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld().Mul3x1(impulse))
}

// BallSocketJoint pins a point of body A to a point of body B while leaving
// all rotation free.
type BallSocketJoint struct {
	jointBase
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	rA, rB  mgl64.Vec3
	mass    mgl64.Mat3
	bias    mgl64.Vec3
	impulse mgl64.Vec3
}

// NewBallSocketJoint anchors the joint at a world-space point shared by
// both bodies at creation time.
func NewBallSocketJoint(a, b *RigidBody, worldAnchor mgl64.Vec3) *BallSocketJoint {
	return &BallSocketJoint{
		jointBase:    jointBase{A: a, B: b},
		LocalAnchorA: a.Orientation.Conjugate().Rotate(worldAnchor.Sub(a.Position)),
		LocalAnchorB: b.Orientation.Conjugate().Rotate(worldAnchor.Sub(b.Position)),
	}
}

func (j *BallSocketJoint) initConstraints(dt float64, cfg *Config) {
	j.setBias(dt, cfg)
	j.rA = j.A.Orientation.Rotate(j.LocalAnchorA)
	j.rB = j.B.Orientation.Rotate(j.LocalAnchorB)
	j.mass = pointMassMatrix(j.A, j.B, j.rA, j.rB).Inv()

	err := j.B.Position.Add(j.rB).Sub(j.A.Position.Add(j.rA))
	j.bias = err.Mul(j.beta)
}

func (j *BallSocketJoint) warmStart() {
	applyImpulsePair(j.A, j.B, j.rA, j.rB, j.impulse)
}

func (j *BallSocketJoint) solveVelocity() {
	vRel := relativeVelocity(j.A, j.B, j.rA, j.rB)
	lambda := j.mass.Mul3x1(vRel.Add(j.bias)).Mul(-1)
	j.impulse = j.impulse.Add(lambda)
	applyImpulsePair(j.A, j.B, j.rA, j.rB, lambda)
}

// DistanceJoint keeps two anchor points at a fixed distance, like a rigid
// massless rod.
type DistanceJoint struct {
	jointBase
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	Length       float64

	rA, rB  mgl64.Vec3
	axis    mgl64.Vec3
	mass    float64
	bias    float64
	impulse float64
}

// NewDistanceJoint connects two world-space anchor points; the rest length
// is their current separation.
func NewDistanceJoint(a, b *RigidBody, anchorA, anchorB mgl64.Vec3) *DistanceJoint {
	return &DistanceJoint{
		jointBase:    jointBase{A: a, B: b},
		LocalAnchorA: a.Orientation.Conjugate().Rotate(anchorA.Sub(a.Position)),
		LocalAnchorB: b.Orientation.Conjugate().Rotate(anchorB.Sub(b.Position)),
		Length:       anchorB.Sub(anchorA).Len(),
	}
}

func (j *DistanceJoint) initConstraints(dt float64, cfg *Config) {
	j.setBias(dt, cfg)
	j.rA = j.A.Orientation.Rotate(j.LocalAnchorA)
	j.rB = j.B.Orientation.Rotate(j.LocalAnchorB)

	d := j.B.Position.Add(j.rB).Sub(j.A.Position.Add(j.rA))
	dist := d.Len()
	if dist > 1e-9 {
		j.axis = d.Mul(1 / dist)
	} else {
		j.axis = mgl64.Vec3{0, 1, 0}
	}
	j.mass = effectiveMass(j.A, j.B, j.rA, j.rB, j.axis)
	j.bias = j.beta * (dist - j.Length)
}

func (j *DistanceJoint) warmStart() {
	applyImpulsePair(j.A, j.B, j.rA, j.rB, j.axis.Mul(j.impulse))
}

func (j *DistanceJoint) solveVelocity() {
	vRel := relativeVelocity(j.A, j.B, j.rA, j.rB).Dot(j.axis)
	lambda := -j.mass * (vRel + j.bias)
	j.impulse += lambda
	applyImpulsePair(j.A, j.B, j.rA, j.rB, j.axis.Mul(lambda))
}

// HingeJoint pins an anchor point and restricts rotation to a single axis.
// Optional angle limits clamp the swing around that axis.
type HingeJoint struct {
	jointBase
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3
	LocalAxisB   mgl64.Vec3

	HasLimits  bool
	LowerLimit float64
	UpperLimit float64

	rA, rB    mgl64.Vec3
	pointMass mgl64.Mat3
	pointBias mgl64.Vec3
	perp1     mgl64.Vec3 // world axes perpendicular to the hinge axis
	perp2     mgl64.Vec3
	angMass   [2]float64
	angBias   [2]float64
	axis      mgl64.Vec3
	limitMass float64
	limitBias float64
	limitSign float64 // +1 at lower limit, -1 at upper, 0 inactive
	refAngle  float64 // raw angle at creation, zero reference for limits

	pointImpulse mgl64.Vec3
	angImpulse   [2]float64
	limitImpulse float64
}

// NewHingeJoint creates a hinge at a world anchor rotating about a world
// axis. The current relative angle becomes the zero reference for limits.
func NewHingeJoint(a, b *RigidBody, worldAnchor, worldAxis mgl64.Vec3) *HingeJoint {
	axis := worldAxis.Normalize()
	j := &HingeJoint{
		jointBase:    jointBase{A: a, B: b},
		LocalAnchorA: a.Orientation.Conjugate().Rotate(worldAnchor.Sub(a.Position)),
		LocalAnchorB: b.Orientation.Conjugate().Rotate(worldAnchor.Sub(b.Position)),
		LocalAxisA:   a.Orientation.Conjugate().Rotate(axis),
		LocalAxisB:   b.Orientation.Conjugate().Rotate(axis),
	}
	j.refAngle = j.rawAngle()
	return j
}

// SetLimits enables angle limits in radians relative to the creation pose.
func (j *HingeJoint) SetLimits(lower, upper float64) {
	j.HasLimits = true
	j.LowerLimit = lower
	j.UpperLimit = upper
}

// rawAngle measures the twist between the two bodies' reference tangents
// about the hinge axis.
func (j *HingeJoint) rawAngle() float64 {
	axisA := j.A.Orientation.Rotate(j.LocalAxisA)
	refA := j.A.Orientation.Rotate(perpTo(j.LocalAxisA))
	refB := j.B.Orientation.Rotate(perpTo(j.LocalAxisB))
	cos := refA.Dot(refB)
	sin := refA.Cross(refB).Dot(axisA)
	return math.Atan2(sin, cos)
}

// angle returns the relative rotation around the hinge axis since creation,
// wrapped to (-pi, pi].
func (j *HingeJoint) angle() float64 {
	a := j.rawAngle() - j.refAngle
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func perpTo(axis mgl64.Vec3) mgl64.Vec3 {
	t, _ := planeBasis(axis)
	return t
}

func (j *HingeJoint) initConstraints(dt float64, cfg *Config) {
	j.setBias(dt, cfg)
	j.rA = j.A.Orientation.Rotate(j.LocalAnchorA)
	j.rB = j.B.Orientation.Rotate(j.LocalAnchorB)
	j.pointMass = pointMassMatrix(j.A, j.B, j.rA, j.rB).Inv()
	j.pointBias = j.B.Position.Add(j.rB).Sub(j.A.Position.Add(j.rA)).Mul(j.beta)

	j.axis = j.A.Orientation.Rotate(j.LocalAxisA)
	j.perp1, j.perp2 = planeBasis(j.axis)

	angK := angularMassMatrix(j.A, j.B)
	for i, p := range [2]mgl64.Vec3{j.perp1, j.perp2} {
		k := p.Dot(angK.Mul3x1(p))
		if k > 0 {
			j.angMass[i] = 1 / k
		} else {
			j.angMass[i] = 0
		}
	}

	// Axis misalignment between the two bodies, projected onto the
	// perpendicular plane, becomes the angular position bias.
	axisB := j.B.Orientation.Rotate(j.LocalAxisB)
	angErr := j.axis.Cross(axisB)
	j.angBias[0] = j.beta * angErr.Dot(j.perp1)
	j.angBias[1] = j.beta * angErr.Dot(j.perp2)

	j.limitSign = 0
	if j.HasLimits {
		angle := j.angle()
		k := j.axis.Dot(angK.Mul3x1(j.axis))
		if k > 0 {
			j.limitMass = 1 / k
		}
		switch {
		case angle <= j.LowerLimit:
			j.limitSign = 1
			j.limitBias = j.beta * (j.LowerLimit - angle)
		case angle >= j.UpperLimit:
			j.limitSign = -1
			j.limitBias = j.beta * (angle - j.UpperLimit)
		default:
			j.limitImpulse = 0
		}
	}
}

func (j *HingeJoint) warmStart() {
	applyImpulsePair(j.A, j.B, j.rA, j.rB, j.pointImpulse)
	ang := j.perp1.Mul(j.angImpulse[0]).
		Add(j.perp2.Mul(j.angImpulse[1])).
		Add(j.axis.Mul(j.limitSign * j.limitImpulse))
	applyAngularImpulsePair(j.A, j.B, ang)
}

func (j *HingeJoint) solveVelocity() {
	// Angular rows keep rotation on the hinge axis.
	wRel := j.B.AngularVelocity.Sub(j.A.AngularVelocity)
	for i, p := range [2]mgl64.Vec3{j.perp1, j.perp2} {
		lambda := -j.angMass[i] * (wRel.Dot(p) + j.angBias[i])
		j.angImpulse[i] += lambda
		applyAngularImpulsePair(j.A, j.B, p.Mul(lambda))
	}

	// One-sided limit row: the accumulated impulse can only push away
	// from the violated limit.
	if j.limitSign != 0 {
		wRel = j.B.AngularVelocity.Sub(j.A.AngularVelocity)
		cdot := j.limitSign * wRel.Dot(j.axis)
		lambda := -j.limitMass * (cdot - j.limitBias)
		newImpulse := math.Max(j.limitImpulse+lambda, 0)
		lambda = newImpulse - j.limitImpulse
		j.limitImpulse = newImpulse
		applyAngularImpulsePair(j.A, j.B, j.axis.Mul(j.limitSign*lambda))
	}

	vRel := relativeVelocity(j.A, j.B, j.rA, j.rB)
	lambda := j.pointMass.Mul3x1(vRel.Add(j.pointBias)).Mul(-1)
	j.pointImpulse = j.pointImpulse.Add(lambda)
	applyImpulsePair(j.A, j.B, j.rA, j.rB, lambda)
}

// FixedJoint welds two bodies together, removing all six relative degrees
// of freedom.
type FixedJoint struct {
	jointBase
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	RelOrient    mgl64.Quat // B's orientation in A's frame at creation

	rA, rB    mgl64.Vec3
	pointMass mgl64.Mat3
	pointBias mgl64.Vec3
	angMass   mgl64.Mat3
	angBias   mgl64.Vec3

	pointImpulse mgl64.Vec3
	angImpulse   mgl64.Vec3
}

// NewFixedJoint welds the bodies in their current relative pose, anchored
// at a world-space point.
func NewFixedJoint(a, b *RigidBody, worldAnchor mgl64.Vec3) *FixedJoint {
	return &FixedJoint{
		jointBase:    jointBase{A: a, B: b},
		LocalAnchorA: a.Orientation.Conjugate().Rotate(worldAnchor.Sub(a.Position)),
		LocalAnchorB: b.Orientation.Conjugate().Rotate(worldAnchor.Sub(b.Position)),
		RelOrient:    a.Orientation.Conjugate().Mul(b.Orientation),
	}
}

func (j *FixedJoint) initConstraints(dt float64, cfg *Config) {
	j.setBias(dt, cfg)
	j.rA = j.A.Orientation.Rotate(j.LocalAnchorA)
	j.rB = j.B.Orientation.Rotate(j.LocalAnchorB)
	j.pointMass = pointMassMatrix(j.A, j.B, j.rA, j.rB).Inv()
	j.pointBias = j.B.Position.Add(j.rB).Sub(j.A.Position.Add(j.rA)).Mul(j.beta)

	j.angMass = angularMassMatrix(j.A, j.B).Inv()

	// Small-angle orientation error: twice the vector part of the relative
	// rotation away from the weld pose.
	target := j.A.Orientation.Mul(j.RelOrient)
	errQ := j.B.Orientation.Mul(target.Inverse())
	if errQ.W < 0 {
		errQ = errQ.Scale(-1)
	}
	j.angBias = errQ.V.Mul(2 * j.beta)
}

func (j *FixedJoint) warmStart() {
	applyImpulsePair(j.A, j.B, j.rA, j.rB, j.pointImpulse)
	applyAngularImpulsePair(j.A, j.B, j.angImpulse)
}

func (j *FixedJoint) solveVelocity() {
	wRel := j.B.AngularVelocity.Sub(j.A.AngularVelocity)
	angLambda := j.angMass.Mul3x1(wRel.Add(j.angBias)).Mul(-1)
	j.angImpulse = j.angImpulse.Add(angLambda)
	applyAngularImpulsePair(j.A, j.B, angLambda)

	vRel := relativeVelocity(j.A, j.B, j.rA, j.rB)
	lambda := j.pointMass.Mul3x1(vRel.Add(j.pointBias)).Mul(-1)
	j.pointImpulse = j.pointImpulse.Add(lambda)
	applyImpulsePair(j.A, j.B, j.rA, j.rB, lambda)
}

// SliderJoint allows translation along a single axis, locking the other two
// translations and all relative rotation. Optional travel limits.
type SliderJoint struct {
	jointBase
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3
	LocalAxisA   mgl64.Vec3
	RelOrient    mgl64.Quat

	HasLimits  bool
	LowerLimit float64
	UpperLimit float64

	rA, rB    mgl64.Vec3
	axis      mgl64.Vec3
	perp1     mgl64.Vec3
	perp2     mgl64.Vec3
	perpMass  [2]float64
	perpBias  [2]float64
	angMass   mgl64.Mat3
	angBias   mgl64.Vec3
	limitMass float64
	limitBias float64
	limitSign float64

	perpImpulse  [2]float64
	angImpulse   mgl64.Vec3
	limitImpulse float64
}

// NewSliderJoint creates a prismatic joint sliding along a world axis
// through a world anchor. Zero travel is the creation pose.
func NewSliderJoint(a, b *RigidBody, worldAnchor, worldAxis mgl64.Vec3) *SliderJoint {
	return &SliderJoint{
		jointBase:    jointBase{A: a, B: b},
		LocalAnchorA: a.Orientation.Conjugate().Rotate(worldAnchor.Sub(a.Position)),
		LocalAnchorB: b.Orientation.Conjugate().Rotate(worldAnchor.Sub(b.Position)),
		LocalAxisA:   a.Orientation.Conjugate().Rotate(worldAxis.Normalize()),
		RelOrient:    a.Orientation.Conjugate().Mul(b.Orientation),
	}
}

// SetLimits bounds the travel along the axis, in world units relative to
// the creation pose.
func (j *SliderJoint) SetLimits(lower, upper float64) {
	j.HasLimits = true
	j.LowerLimit = lower
	j.UpperLimit = upper
}

func (j *SliderJoint) initConstraints(dt float64, cfg *Config) {
	j.setBias(dt, cfg)
	j.rA = j.A.Orientation.Rotate(j.LocalAnchorA)
	j.rB = j.B.Orientation.Rotate(j.LocalAnchorB)
	j.axis = j.A.Orientation.Rotate(j.LocalAxisA)
	j.perp1, j.perp2 = planeBasis(j.axis)

	d := j.B.Position.Add(j.rB).Sub(j.A.Position.Add(j.rA))
	for i, p := range [2]mgl64.Vec3{j.perp1, j.perp2} {
		j.perpMass[i] = effectiveMass(j.A, j.B, j.rA, j.rB, p)
		j.perpBias[i] = j.beta * d.Dot(p)
	}

	j.angMass = angularMassMatrix(j.A, j.B).Inv()
	target := j.A.Orientation.Mul(j.RelOrient)
	errQ := j.B.Orientation.Mul(target.Inverse())
	if errQ.W < 0 {
		errQ = errQ.Scale(-1)
	}
	j.angBias = errQ.V.Mul(2 * j.beta)

	j.limitSign = 0
	if j.HasLimits {
		travel := d.Dot(j.axis)
		j.limitMass = effectiveMass(j.A, j.B, j.rA, j.rB, j.axis)
		switch {
		case travel <= j.LowerLimit:
			j.limitSign = 1
			j.limitBias = j.beta * (j.LowerLimit - travel)
		case travel >= j.UpperLimit:
			j.limitSign = -1
			j.limitBias = j.beta * (travel - j.UpperLimit)
		default:
			j.limitImpulse = 0
		}
	}
}

func (j *SliderJoint) warmStart() {
	linear := j.perp1.Mul(j.perpImpulse[0]).
		Add(j.perp2.Mul(j.perpImpulse[1])).
		Add(j.axis.Mul(j.limitSign * j.limitImpulse))
	applyImpulsePair(j.A, j.B, j.rA, j.rB, linear)
	applyAngularImpulsePair(j.A, j.B, j.angImpulse)
}

func (j *SliderJoint) solveVelocity() {
	wRel := j.B.AngularVelocity.Sub(j.A.AngularVelocity)
	angLambda := j.angMass.Mul3x1(wRel.Add(j.angBias)).Mul(-1)
	j.angImpulse = j.angImpulse.Add(angLambda)
	applyAngularImpulsePair(j.A, j.B, angLambda)

	for i, p := range [2]mgl64.Vec3{j.perp1, j.perp2} {
		vRel := relativeVelocity(j.A, j.B, j.rA, j.rB).Dot(p)
		lambda := -j.perpMass[i] * (vRel + j.perpBias[i])
		j.perpImpulse[i] += lambda
		applyImpulsePair(j.A, j.B, j.rA, j.rB, p.Mul(lambda))
	}

	if j.limitSign != 0 {
		vRel := relativeVelocity(j.A, j.B, j.rA, j.rB).Dot(j.axis)
		cdot := j.limitSign * vRel
		lambda := -j.limitMass * (cdot - j.limitBias)
		newImpulse := math.Max(j.limitImpulse+lambda, 0)
		lambda = newImpulse - j.limitImpulse
		j.limitImpulse = newImpulse
		applyImpulsePair(j.A, j.B, j.rA, j.rB, j.axis.Mul(j.limitSign*lambda))
	}
}
