package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func pieceAt(shape Shape, pos mgl64.Vec3) convexPiece {
	return convexPiece{shape: shape, pos: pos, rot: mgl64.QuatIdent()}
}

func TestGJKOverlappingSpheres(t *testing.T) {
	a := pieceAt(Sphere{Radius: 1}, mgl64.Vec3{0, 0, 0})
	b := pieceAt(Sphere{Radius: 1}, mgl64.Vec3{1.5, 0, 0})

	var s simplex
	if !gjkOverlap(a, b, &s) {
		t.Error("Spheres 1.5 apart with radius 1 each should overlap")
	}
}

func TestGJKSeparatedSpheres(t *testing.T) {
	a := pieceAt(Sphere{Radius: 1}, mgl64.Vec3{0, 0, 0})
	b := pieceAt(Sphere{Radius: 1}, mgl64.Vec3{3, 0, 0})

	var s simplex
	if gjkOverlap(a, b, &s) {
		t.Error("Spheres 3 apart with radius 1 each should not overlap")
	}
}

func TestGJKTouchingBoxes(t *testing.T) {
	a := pieceAt(Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{0, 0, 0})
	b := pieceAt(Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{1.9, 0, 0})

	var s simplex
	if !gjkOverlap(a, b, &s) {
		t.Error("Boxes overlapping by 0.1 should be detected")
	}

	c := pieceAt(Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{2.5, 0, 0})
	var s2 simplex
	if gjkOverlap(a, c, &s2) {
		t.Error("Boxes 0.5 apart should not overlap")
	}
}

func TestGJKRotatedBox(t *testing.T) {
	// A box rotated 45 degrees reaches sqrt(2) along X.
	rot := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})
	a := convexPiece{shape: Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, pos: mgl64.Vec3{}, rot: rot}
	b := pieceAt(Sphere{Radius: 0.2}, mgl64.Vec3{1.3, 0, 0})

	var s simplex
	if !gjkOverlap(a, b, &s) {
		t.Error("Sphere should overlap the rotated box corner region")
	}
}

func TestEPADepthAndNormal(t *testing.T) {
	a := pieceAt(Sphere{Radius: 1}, mgl64.Vec3{0, 0, 0})
	b := pieceAt(Sphere{Radius: 1}, mgl64.Vec3{1.5, 0, 0})

	var s simplex
	if !gjkOverlap(a, b, &s) {
		t.Fatal("Expected overlap")
	}
	res, err := runEPA(a, b, &s)
	if err != nil {
		t.Fatalf("EPA failed: %v", err)
	}

	if math.Abs(res.Depth-0.5) > 0.05 {
		t.Errorf("Expected penetration depth ~0.5, got %v", res.Depth)
	}
	if res.Normal.X() < 0.95 {
		t.Errorf("Expected normal ~(1,0,0) from A toward B, got %v", res.Normal)
	}
}

func TestEPABoxOnBox(t *testing.T) {
	a := pieceAt(Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{0, 0, 0})
	b := pieceAt(Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{0, 1.8, 0})

	var s simplex
	if !gjkOverlap(a, b, &s) {
		t.Fatal("Expected overlap")
	}
	res, err := runEPA(a, b, &s)
	if err != nil {
		t.Fatalf("EPA failed: %v", err)
	}

	if math.Abs(res.Depth-0.2) > 0.02 {
		t.Errorf("Expected penetration depth ~0.2, got %v", res.Depth)
	}
	if res.Normal.Y() < 0.99 {
		t.Errorf("Expected face normal (0,1,0), got %v", res.Normal)
	}
}
