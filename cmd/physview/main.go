// Interactive viewer: a box stack and sphere rain over a ground plane,
// with live solver tuning and click-to-shoot projectiles.
package main

import (
	"fmt"
	"math"

	"phys3d/internal/physics"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl64"
)

type viewer struct {
	world  *physics.World
	cfg    physics.Config
	camera rl.Camera3D

	cubeModel   rl.Model
	sphereModel rl.Model

	gravityY   float32
	shootSpeed float32
	paused     bool

	lastHit    physics.RaycastHit
	hasHit     bool
	contactMsg string
}

func main() {
	rl.SetConfigFlags(rl.FlagWindowHighdpi | rl.FlagMsaa4xHint)
	rl.InitWindow(1280, 720, "phys3d viewer")
	defer rl.CloseWindow()
	rl.SetTargetFPS(120)

	v := newViewer()
	defer v.unload()

	for !rl.WindowShouldClose() {
		v.update()
		v.draw()
	}
}

func newViewer() *viewer {
	cfg := physics.DefaultConfig()
	w, err := physics.NewWorld(cfg)
	if err != nil {
		panic(fmt.Sprintf("world init failed: %v", err))
	}

	v := &viewer{
		world:      w,
		cfg:        cfg,
		gravityY:   float32(cfg.GravityY),
		shootSpeed: 40,
		camera: rl.Camera3D{
			Position:   rl.Vector3{X: 12, Y: 8, Z: 12},
			Target:     rl.Vector3{Y: 2},
			Up:         rl.Vector3{Y: 1},
			Fovy:       60,
			Projection: rl.CameraPerspective,
		},
		cubeModel:   rl.LoadModelFromMesh(rl.GenMeshCube(1, 1, 1)),
		sphereModel: rl.LoadModelFromMesh(rl.GenMeshSphere(1, 16, 16)),
	}

	w.Events.OnCollisionEnter = func(e physics.CollisionEvent) {
		v.contactMsg = fmt.Sprintf("contact: body %d and body %d", e.A.Body.ID, e.B.Body.ID)
	}

	v.buildScene()
	return v
}

func (v *viewer) unload() {
	rl.UnloadModel(v.cubeModel)
	rl.UnloadModel(v.sphereModel)
}

func (v *viewer) buildScene() {
	ground := v.world.AddBody(physics.BodyStatic, mgl64.Vec3{}, mgl64.QuatIdent())
	v.world.AttachCollider(ground, physics.Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{}, false)

	// A small stack to show warm starting keeping things stable.
	for level := 0; level < 5; level++ {
		for i := 0; i <= level; i++ {
			x := float64(i) - float64(level)/2
			y := float64(5-level)*1.05 - 0.5
			b := v.world.AddBody(physics.BodyDynamic, mgl64.Vec3{x, y, 0}, mgl64.QuatIdent())
			v.world.AttachCollider(b, physics.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, mgl64.Vec3{}, false)
			b.SetMass(1)
		}
	}

	// A pendulum on a ball-socket joint.
	anchor := v.world.AddBody(physics.BodyStatic, mgl64.Vec3{-4, 6, 0}, mgl64.QuatIdent())
	v.world.AttachCollider(anchor, physics.Sphere{Radius: 0.1}, mgl64.Vec3{}, false)
	bob := v.world.AddBody(physics.BodyDynamic, mgl64.Vec3{-2, 6, 0}, mgl64.QuatIdent())
	v.world.AttachCollider(bob, physics.Sphere{Radius: 0.5}, mgl64.Vec3{}, false)
	bob.SetMass(2)
	v.world.AddJoint(physics.NewBallSocketJoint(anchor, bob, mgl64.Vec3{-4, 6, 0}))
}

func (v *viewer) shoot() {
	dir := rl.Vector3Normalize(rl.Vector3Subtract(v.camera.Target, v.camera.Position))
	pos := mgl64.Vec3{float64(v.camera.Position.X), float64(v.camera.Position.Y), float64(v.camera.Position.Z)}
	vel := mgl64.Vec3{float64(dir.X), float64(dir.Y), float64(dir.Z)}.Mul(float64(v.shootSpeed))

	b := v.world.AddBody(physics.BodyDynamic, pos, mgl64.QuatIdent())
	b.CCD = physics.CCDSwept
	v.world.AttachCollider(b, physics.Sphere{Radius: 0.25}, mgl64.Vec3{}, false)
	b.SetMass(0.5)
	b.SetVelocity(vel)
}

func (v *viewer) update() {
	rl.UpdateCamera(&v.camera, rl.CameraFree)

	if rl.IsKeyPressed(rl.KeySpace) {
		v.paused = !v.paused
	}
	if rl.IsMouseButtonPressed(rl.MouseLeftButton) && !mouseOverPanel() {
		v.shoot()
	}

	if float64(v.gravityY) != v.cfg.GravityY {
		v.cfg.GravityY = float64(v.gravityY)
		v.world.SetGravity(mgl64.Vec3{0, v.cfg.GravityY, 0})
	}

	if !v.paused {
		v.world.Step(float64(rl.GetFrameTime()))
	}

	// Raycast from the camera through the crosshair.
	dir := rl.Vector3Normalize(rl.Vector3Subtract(v.camera.Target, v.camera.Position))
	ray := physics.Ray{
		Origin:  mgl64.Vec3{float64(v.camera.Position.X), float64(v.camera.Position.Y), float64(v.camera.Position.Z)},
		Dir:     mgl64.Vec3{float64(dir.X), float64(dir.Y), float64(dir.Z)},
		MaxDist: 100,
	}
	v.lastHit, v.hasHit = v.world.Raycast(ray)
}

func (v *viewer) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(18, 18, 24, 255))

	rl.BeginMode3D(v.camera)
	rl.DrawGrid(40, 1)

	for _, b := range v.world.Bodies() {
		if b.Collider == nil {
			continue
		}
		v.drawBody(b)
	}

	if v.hasHit {
		p := toRl(v.lastHit.Point)
		n := toRl(v.lastHit.Normal)
		rl.DrawSphere(p, 0.06, rl.Yellow)
		rl.DrawLine3D(p, rl.Vector3Add(p, rl.Vector3Scale(n, 0.75)), rl.Yellow)
	}
	rl.EndMode3D()

	v.drawPanel()
	rl.DrawFPS(10, 10)
	rl.EndDrawing()
}

func (v *viewer) drawBody(b *physics.RigidBody) {
	color := rl.SkyBlue
	if b.Kind == physics.BodyStatic {
		color = rl.Gray
	} else if b.Sleeping {
		color = rl.DarkGreen
	}

	pos := toRl(b.Position)
	axis, angle := quatAxisAngle(b.Orientation)

	switch s := b.Collider.Shape.(type) {
	case physics.Sphere:
		r := float32(s.Radius)
		rl.DrawModelEx(v.sphereModel, pos, axis, angle, rl.Vector3{X: r, Y: r, Z: r}, color)
	case physics.Box:
		scale := rl.Vector3{
			X: float32(s.HalfExtents.X() * 2),
			Y: float32(s.HalfExtents.Y() * 2),
			Z: float32(s.HalfExtents.Z() * 2),
		}
		rl.DrawModelEx(v.cubeModel, pos, axis, angle, scale, color)
	case physics.Capsule:
		top := b.Orientation.Rotate(mgl64.Vec3{0, s.HalfHeight, 0})
		rl.DrawCapsule(toRl(b.Position.Sub(top)), toRl(b.Position.Add(top)), float32(s.Radius), 12, 6, color)
	case physics.Plane:
		// Grid already marks the ground.
	default:
		rl.DrawModelEx(v.cubeModel, pos, axis, angle, rl.Vector3{X: 0.5, Y: 0.5, Z: 0.5}, color)
	}
}

func (v *viewer) drawPanel() {
	panel := rl.NewRectangle(10, 40, 260, 150)
	gui.Panel(panel, "simulation")

	v.gravityY = gui.Slider(rl.NewRectangle(90, 75, 150, 20), "gravity", fmt.Sprintf("%.1f", v.gravityY), v.gravityY, -25, 0)
	v.shootSpeed = gui.Slider(rl.NewRectangle(90, 105, 150, 20), "speed", fmt.Sprintf("%.0f", v.shootSpeed), v.shootSpeed, 5, 120)
	v.paused = gui.CheckBox(rl.NewRectangle(90, 135, 20, 20), "paused", v.paused)

	if v.contactMsg != "" {
		rl.DrawText(v.contactMsg, 14, 166, 10, rl.LightGray)
	}
	rl.DrawText("LMB shoot  SPACE pause", 14, 200, 10, rl.LightGray)

	// Crosshair.
	cx := int32(rl.GetScreenWidth() / 2)
	cy := int32(rl.GetScreenHeight() / 2)
	rl.DrawLine(cx-6, cy, cx+6, cy, rl.White)
	rl.DrawLine(cx, cy-6, cx, cy+6, rl.White)
}

func mouseOverPanel() bool {
	return rl.CheckCollisionPointRec(rl.GetMousePosition(), rl.NewRectangle(10, 40, 260, 150))
}

func toRl(v mgl64.Vec3) rl.Vector3 {
	return rl.Vector3{X: float32(v.X()), Y: float32(v.Y()), Z: float32(v.Z())}
}

func quatAxisAngle(q mgl64.Quat) (rl.Vector3, float32) {
	q = q.Normalize()
	w := q.W
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	angle := 2 * math.Acos(w)
	s := math.Sqrt(1 - w*w)
	if s < 1e-6 {
		return rl.Vector3{Y: 1}, 0
	}
	axis := q.V.Mul(1 / s)
	return toRl(axis), float32(angle * 180 / math.Pi)
}
