package physics

import "github.com/go-gl/mathgl/mgl64"

// islandBuilder groups awake dynamic bodies into islands with union-find.
// Contacts and joints merge islands; static and kinematic bodies never do,
// so two stacks resting on the same floor stay independent.
type islandBuilder struct {
	parent []int32
	rank   []int32
}

func newIslandBuilder(n int) *islandBuilder {
	b := &islandBuilder{
		parent: make([]int32, n),
		rank:   make([]int32, n),
	}
	for i := range b.parent {
		b.parent[i] = int32(i)
	}
	return b
}

func (b *islandBuilder) find(i int32) int32 {
	for b.parent[i] != i {
		b.parent[i] = b.parent[b.parent[i]] // path halving
		i = b.parent[i]
	}
	return i
}

func (b *islandBuilder) union(i, j int32) {
	ri, rj := b.find(i), b.find(j)
	if ri == rj {
		return
	}
	if b.rank[ri] < b.rank[rj] {
		ri, rj = rj, ri
	}
	b.parent[rj] = ri
	if b.rank[ri] == b.rank[rj] {
		b.rank[ri]++
	}
}

// island is one connected component of the constraint graph plus the
// manifolds and joints internal to it.
type island struct {
	bodies    []*RigidBody
	manifolds []*Manifold
	joints    []Joint
}

// buildIslands partitions the world's dynamic bodies and their constraints.
// Bodies are expected to carry a fresh index in their island field.
func buildIslands(bodies []*RigidBody, manifolds []*Manifold, joints []Joint) []*island {
	for i, b := range bodies {
		b.island = int32(i)
	}

	uf := newIslandBuilder(len(bodies))
	link := func(a, b *RigidBody) {
		if a.Kind == BodyDynamic && b.Kind == BodyDynamic {
			uf.union(a.island, b.island)
		}
	}
	for _, m := range manifolds {
		link(m.A.Body, m.B.Body)
	}
	for _, j := range joints {
		a, b := j.Bodies()
		link(a, b)
	}

	byRoot := make(map[int32]*island)
	islandFor := func(b *RigidBody) *island {
		root := uf.find(b.island)
		isl, ok := byRoot[root]
		if !ok {
			isl = &island{}
			byRoot[root] = isl
		}
		return isl
	}

	for _, b := range bodies {
		if b.Kind != BodyDynamic {
			continue
		}
		isl := islandFor(b)
		isl.bodies = append(isl.bodies, b)
	}

	// A constraint belongs to the island of its dynamic body; one with two
	// dynamic bodies lands in their shared island.
	for _, m := range manifolds {
		if b := dynamicOf(m.A.Body, m.B.Body); b != nil {
			isl := islandFor(b)
			isl.manifolds = append(isl.manifolds, m)
		}
	}
	for _, j := range joints {
		a, b := j.Bodies()
		if d := dynamicOf(a, b); d != nil {
			isl := islandFor(d)
			isl.joints = append(isl.joints, j)
		}
	}

	out := make([]*island, 0, len(byRoot))
	for _, isl := range byRoot {
		if len(isl.bodies) > 0 {
			out = append(out, isl)
		}
	}
	return out
}

func dynamicOf(a, b *RigidBody) *RigidBody {
	if a.Kind == BodyDynamic {
		return a
	}
	if b.Kind == BodyDynamic {
		return b
	}
	return nil
}

// updateSleep advances per-body sleep timers and puts a whole island to
// sleep only when every body in it has been slow long enough. A single fast
// body keeps its entire island awake.
func (isl *island) updateSleep(dt float64, cfg *Config) {
	linTolSq := cfg.SleepLinearVelocity * cfg.SleepLinearVelocity
	angTolSq := cfg.SleepAngularVelocity * cfg.SleepAngularVelocity

	minTimer := cfg.SleepTime
	for _, b := range isl.bodies {
		if !b.CanSleep {
			minTimer = 0
			b.sleepTimer = 0
			continue
		}
		if b.Velocity.LenSqr() > linTolSq || b.AngularVelocity.LenSqr() > angTolSq {
			b.sleepTimer = 0
		} else {
			b.sleepTimer += dt
		}
		if b.sleepTimer < minTimer {
			minTimer = b.sleepTimer
		}
	}

	if minTimer >= cfg.SleepTime {
		fresh := false
		for _, b := range isl.bodies {
			if !b.Sleeping {
				fresh = true
				break
			}
		}
		if !fresh {
			// Already-sleeping bodies re-island every step through their
			// contacts with static geometry; keep the group they fell
			// asleep with instead of splintering it.
			return
		}
		group := append([]*RigidBody(nil), isl.bodies...)
		for _, b := range isl.bodies {
			b.Sleeping = true
			b.Velocity = mgl64.Vec3{}
			b.AngularVelocity = mgl64.Vec3{}
			b.sleepGroup = group
		}
	}
}

// wakeIsland wakes every body reachable from b through the given manifolds
// and joints, so a sleeping stack reacts as a unit when disturbed.
func wakeIsland(b *RigidBody, manifolds []*Manifold, joints []Joint) {
	queue := []*RigidBody{b}
	seen := map[BodyID]bool{b.ID: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		cur.Wake()

		visit := func(other *RigidBody) {
			if other.Kind == BodyDynamic && !seen[other.ID] {
				seen[other.ID] = true
				queue = append(queue, other)
			}
		}
		for _, m := range manifolds {
			if m.A.Body == cur {
				visit(m.B.Body)
			} else if m.B.Body == cur {
				visit(m.A.Body)
			}
		}
		for _, j := range joints {
			ja, jb := j.Bodies()
			if ja == cur {
				visit(jb)
			} else if jb == cur {
				visit(ja)
			}
		}
	}
}
