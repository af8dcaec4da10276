// Headless stress benchmark: drops piles of mixed bodies and times the
// fixed-step pipeline at increasing scene sizes.
package main

import (
	"fmt"
	"math/rand"
	"time"

	"phys3d/internal/physics"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	simSeconds = 5.0
	seed       = 42 // consistent results
)

func main() {
	testCounts := []int{100, 250, 500, 1000, 2000}

	fmt.Printf("%6s | %10s | %10s | %8s | %8s\n",
		"bodies", "total", "per step", "steps/s", "asleep")
	fmt.Println("-------+------------+------------+----------+---------")

	for _, count := range testCounts {
		runPile(count)
	}
}

func runPile(count int) {
	cfg := physics.DefaultConfig()
	cfg.ParallelIslands = true

	w, err := physics.NewWorld(cfg)
	if err != nil {
		panic(fmt.Sprintf("world init failed: %v", err))
	}

	ground := w.AddBody(physics.BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	w.AttachCollider(ground, physics.Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)

	// Spawn in a column above the ground; footprint scales with count to
	// keep the pile density reasonable.
	rng := rand.New(rand.NewSource(seed))
	spawnSize := 10.0 + float64(count)/50.0

	for i := 0; i < count; i++ {
		pos := mgl64.Vec3{
			rng.Float64()*spawnSize - spawnSize/2,
			2 + rng.Float64()*spawnSize,
			rng.Float64()*spawnSize - spawnSize/2,
		}
		b := w.AddBody(physics.BodyDynamic, pos, mgl64.QuatIdent())

		var shape physics.Shape
		switch i % 3 {
		case 0:
			shape = physics.Sphere{Radius: 0.4 + rng.Float64()*0.3}
		case 1:
			shape = physics.Box{HalfExtents: mgl64.Vec3{0.4, 0.4, 0.4}}
		default:
			shape = physics.Capsule{Radius: 0.3, HalfHeight: 0.4}
		}
		w.AttachCollider(b, shape, mgl64.Vec3{}, false)
		b.SetMass(1.0)
	}

	steps := int(simSeconds / cfg.FixedTimestep)
	start := time.Now()
	for i := 0; i < steps; i++ {
		w.Step(cfg.FixedTimestep)
	}
	total := time.Since(start)
	perStep := total / time.Duration(steps)

	asleep := 0
	for _, s := range w.Snapshot() {
		if s.Sleeping {
			asleep++
		}
	}

	fmt.Printf("%6d | %10v | %10v | %8.0f | %8d\n",
		count,
		total.Round(time.Millisecond),
		perStep.Round(time.Microsecond),
		float64(time.Second)/float64(perStep),
		asleep)
}
