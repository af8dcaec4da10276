package physics

import "github.com/go-gl/mathgl/mgl64"

// CollisionEvent is delivered to collision callbacks. Normal points from A
// toward B; triggers carry no contact geometry.
type CollisionEvent struct {
	A, B   *Collider
	Normal mgl64.Vec3
}

// Events holds the world's callback hooks. Nil callbacks are skipped.
// Callbacks run synchronously at the end of each substep; mutating the
// world from inside them is allowed.
type Events struct {
	OnCollisionEnter func(CollisionEvent)
	OnCollisionStay  func(CollisionEvent)
	OnCollisionExit  func(CollisionEvent)

	OnTriggerEnter func(CollisionEvent)
	OnTriggerStay  func(CollisionEvent)
	OnTriggerExit  func(CollisionEvent)
}

// eventTracker compares this substep's overlap set against the previous one
// to classify each pair as enter, stay or exit.
type eventTracker struct {
	prevContacts map[colliderPair]CollisionEvent
	prevTriggers map[colliderPair]CollisionEvent
}

func newEventTracker() *eventTracker {
	return &eventTracker{
		prevContacts: make(map[colliderPair]CollisionEvent),
		prevTriggers: make(map[colliderPair]CollisionEvent),
	}
}

func (t *eventTracker) dispatch(ev *Events, contacts, triggers map[colliderPair]CollisionEvent) {
	dispatchSet(t.prevContacts, contacts, ev.OnCollisionEnter, ev.OnCollisionStay, ev.OnCollisionExit)
	dispatchSet(t.prevTriggers, triggers, ev.OnTriggerEnter, ev.OnTriggerStay, ev.OnTriggerExit)
	t.prevContacts = contacts
	t.prevTriggers = triggers
}

// carrySleepingPairs copies pairs whose bodies are both asleep from the
// previous overlap set into the current one. Broadphase skips both-asleep
// pairs, so without the carry a pair still in contact would report an exit
// the moment its island sleeps and a fresh enter on wake.
func carrySleepingPairs(cur, prev map[colliderPair]CollisionEvent) {
	for pair, e := range prev {
		if _, ok := cur[pair]; ok {
			continue
		}
		if !e.A.Body.Sleeping || !e.B.Body.Sleeping {
			continue
		}
		// Dropped colliders do exit, asleep or not.
		if e.A.Body.Collider != e.A || e.B.Body.Collider != e.B {
			continue
		}
		cur[pair] = e
	}
}

func dispatchSet(prev, cur map[colliderPair]CollisionEvent, enter, stay, exit func(CollisionEvent)) {
	for key, e := range cur {
		if _, existed := prev[key]; existed {
			if stay != nil {
				stay(e)
			}
		} else if enter != nil {
			enter(e)
		}
	}
	for key, e := range prev {
		if _, still := cur[key]; !still {
			if exit != nil {
				exit(e)
			}
		}
	}
}
