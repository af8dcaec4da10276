package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// mixFriction and mixRestitution combine the two bodies' surface properties
// the way most engines do: geometric mean for friction, max for restitution.
func mixFriction(a, b float64) float64 {
	return math.Sqrt(a * b)
}

func mixRestitution(a, b float64) float64 {
	return math.Max(a, b)
}

// contactSolver runs sequential impulses over a set of manifolds. Normal
// impulses are accumulated and clamped to stay non-negative, tangent
// impulses to the friction cone, so individual iterations may apply
// negative corrections while the total stays physical.
type contactSolver struct {
	manifolds []*Manifold
	dt        float64

	baumgarte            float64
	slop                 float64
	restitutionThreshold float64
}

func newContactSolver(manifolds []*Manifold, dt float64, cfg *Config) *contactSolver {
	return &contactSolver{
		manifolds:            manifolds,
		dt:                   dt,
		baumgarte:            cfg.Baumgarte,
		slop:                 cfg.PenetrationSlop,
		restitutionThreshold: cfg.RestitutionThreshold,
	}
}

// initConstraints precomputes effective masses and bias velocities for each
// contact point. Must run after broadphase poses are final for the substep.
func (s *contactSolver) initConstraints() {
	for _, m := range s.manifolds {
		bodyA := m.A.Body
		bodyB := m.B.Body
		restitution := mixRestitution(bodyA.Restitution, bodyB.Restitution)

		for i := range m.Points {
			p := &m.Points[i]
			p.rA = p.Position.Sub(bodyA.Position)
			p.rB = p.Position.Sub(bodyB.Position)

			p.normalMass = effectiveMass(bodyA, bodyB, p.rA, p.rB, m.Normal)
			for t := 0; t < 2; t++ {
				p.tangentMass[t] = effectiveMass(bodyA, bodyB, p.rA, p.rB, m.Tangents[t])
			}

			// Restitution bias for fast approaches; slow contacts come to
			// rest without bounce. Baumgarte recovers overlap beyond the
			// slop as a velocity bias.
			p.velocityBias = 0
			vn := relativeVelocity(bodyA, bodyB, p.rA, p.rB).Dot(m.Normal)
			if vn < -s.restitutionThreshold {
				p.velocityBias = -restitution * vn
			}
			if pen := -(p.Separation + s.slop); pen > 0 {
				bias := s.baumgarte / s.dt * pen
				if bias > p.velocityBias {
					p.velocityBias = bias
				}
			}
		}
	}
}

// warmStart reapplies last step's accumulated impulses so the iterative
// solve starts near the converged solution.
func (s *contactSolver) warmStart() {
	for _, m := range s.manifolds {
		bodyA := m.A.Body
		bodyB := m.B.Body
		for i := range m.Points {
			p := &m.Points[i]
			impulse := m.Normal.Mul(p.NormalImpulse).
				Add(m.Tangents[0].Mul(p.TangentImpulse[0])).
				Add(m.Tangents[1].Mul(p.TangentImpulse[1]))
			applyImpulsePair(bodyA, bodyB, p.rA, p.rB, impulse)
		}
	}
}

// solveVelocity runs one Gauss-Seidel iteration over all contact points,
// friction rows first so the final normal impulse wins when they conflict.
func (s *contactSolver) solveVelocity() {
	for _, m := range s.manifolds {
		bodyA := m.A.Body
		bodyB := m.B.Body
		friction := mixFriction(bodyA.Friction, bodyB.Friction)

		for i := range m.Points {
			p := &m.Points[i]

			for t := 0; t < 2; t++ {
				vt := relativeVelocity(bodyA, bodyB, p.rA, p.rB).Dot(m.Tangents[t])
				lambda := -p.tangentMass[t] * vt

				maxFriction := friction * p.NormalImpulse
				newImpulse := clamp(p.TangentImpulse[t]+lambda, -maxFriction, maxFriction)
				lambda = newImpulse - p.TangentImpulse[t]
				p.TangentImpulse[t] = newImpulse

				applyImpulsePair(bodyA, bodyB, p.rA, p.rB, m.Tangents[t].Mul(lambda))
			}

			vn := relativeVelocity(bodyA, bodyB, p.rA, p.rB).Dot(m.Normal)
			lambda := -p.normalMass * (vn - p.velocityBias)

			newImpulse := math.Max(p.NormalImpulse+lambda, 0)
			lambda = newImpulse - p.NormalImpulse
			p.NormalImpulse = newImpulse

			applyImpulsePair(bodyA, bodyB, p.rA, p.rB, m.Normal.Mul(lambda))
		}
	}
}

// relativeVelocity is the contact-point velocity of B relative to A.
func relativeVelocity(a, b *RigidBody, rA, rB mgl64.Vec3) mgl64.Vec3 {
	vA := a.Velocity.Add(a.AngularVelocity.Cross(rA))
	vB := b.Velocity.Add(b.AngularVelocity.Cross(rB))
	return vB.Sub(vA)
}

// effectiveMass computes the scalar mass seen by an impulse along dir at the
// given contact arms. Returns the inverse of the denominator, zero when both
// bodies are immovable.
func effectiveMass(a, b *RigidBody, rA, rB, dir mgl64.Vec3) float64 {
	raCross := rA.Cross(dir)
	rbCross := rB.Cross(dir)
	k := a.InvMass + b.InvMass +
		raCross.Dot(a.InvInertiaWorld().Mul3x1(raCross)) +
		rbCross.Dot(b.InvInertiaWorld().Mul3x1(rbCross))
	if k <= 0 {
		return 0
	}
	return 1 / k
}

// applyImpulsePair applies +impulse at rB on body B and -impulse at rA on
// body A, the convention matching a normal that points from A toward B.
func applyImpulsePair(a, b *RigidBody, rA, rB, impulse mgl64.Vec3) {
	a.Velocity = a.Velocity.Sub(impulse.Mul(a.InvMass))
	a.AngularVelocity = a.AngularVelocity.Sub(a.InvInertiaWorld().Mul3x1(rA.Cross(impulse)))
	b.Velocity = b.Velocity.Add(impulse.Mul(b.InvMass))
	b.AngularVelocity = b.AngularVelocity.Add(b.InvInertiaWorld().Mul3x1(rB.Cross(impulse)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// warmStartManifolds transfers accumulated impulses from last frame's
// manifolds to this frame's, matching by feature key and then by nearest
// contact point within a small distance.
func warmStartManifolds(current []*Manifold, previous map[featureKey]*Manifold, matchDist float64) {
	maxDistSq := matchDist * matchDist
	for _, m := range current {
		old, ok := previous[m.key]
		if !ok {
			continue
		}
		for i := range m.Points {
			p := &m.Points[i]
			bestDist := maxDistSq
			bestIdx := -1
			for j := range old.Points {
				if d := old.Points[j].Position.Sub(p.Position).LenSqr(); d < bestDist {
					bestDist, bestIdx = d, j
				}
			}
			if bestIdx >= 0 {
				p.NormalImpulse = old.Points[bestIdx].NormalImpulse
				p.TangentImpulse = old.Points[bestIdx].TangentImpulse
			}
		}
	}
}
