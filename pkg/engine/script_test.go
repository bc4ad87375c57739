package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/chazu/sdfworld/pkg/kernel/headless"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf2d"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zaptest"
)

func newLibrary(t *testing.T, names ...string) *sdf.Library {
	t.Helper()
	lib := sdf.NewLibrary()
	for _, name := range names {
		r := sdf.NewResource(name)
		r.Material = name
		if err := lib.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	return lib
}

func newVolume(t *testing.T, lib *sdf.Library) *sdf3d.World {
	t.Helper()
	w := sdf3d.NewWorld(headless.New(nil).Kernel(), sdf3d.Options{
		Options: world.Options{Logger: zaptest.NewLogger(t), Library: lib},
	})
	t.Cleanup(func() { _ = w.Destroy(context.Background()) })
	return w
}

func newPlanar(t *testing.T, lib *sdf.Library) *sdf2d.World {
	t.Helper()
	w := sdf2d.NewWorld(headless.New(nil).Kernel(), sdf2d.Options{
		Options: world.Options{Logger: zaptest.NewLogger(t), Library: lib},
	})
	t.Cleanup(func() { _ = w.Destroy(context.Background()) })
	return w
}

func evalScript(t *testing.T, src string) *Script {
	t.Helper()
	s, evalErrs, err := NewEngine().Evaluate(src)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate = %v, %v", evalErrs, err)
	}
	return s
}

func TestApplyVolume(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, "rock")
	rock, _ := lib.ByName("rock")

	got := newVolume(t, lib)
	s := evalScript(t, `
(add (sphere :center (vec3 128 128 128) :radius 50) :resource "rock")
(subtract (translate (box :min (vec3 0 0 0) :max (vec3 40 40 40)) :by (vec3 100 100 100))
          :resource "rock")
(add (expand (capsule :a (vec3 200 40 40) :b (vec3 300 40 40) :radius 10) :margin 5) :resource "rock")
`)
	if err := s.Apply(ctx, Volume(got), lib); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := newVolume(t, lib)
	for _, step := range []func() error{
		func() error { return want.Add(ctx, sdf3d.Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 50}, rock) },
		func() error {
			box := sdf3d.NewBox(mgl32.Vec3{}, mgl32.Vec3{40, 40, 40}, 0)
			return want.Subtract(ctx, sdf3d.Translate(box, mgl32.Vec3{100, 100, 100}), rock)
		},
		func() error {
			c := sdf3d.Capsule{A: mgl32.Vec3{200, 40, 40}, B: mgl32.Vec3{300, 40, 40}, Radius: 10}
			return want.Add(ctx, sdf3d.Expand(c, 5), rock)
		},
	} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}

	if got.ModificationCount() != 3 {
		t.Fatalf("%d modifications, want 3", got.ModificationCount())
	}
	keys := want.Keys(rock)
	if len(got.Keys(rock)) != len(keys) {
		t.Fatalf("%d chunks, want %d", len(got.Keys(rock)), len(keys))
	}
	for _, key := range keys {
		gc, ok := got.Chunk(rock, key)
		if !ok {
			t.Fatalf("missing chunk %v", key)
		}
		wc, _ := want.Chunk(rock, key)
		if !bytes.Equal(gc.(*sdf3d.Chunk).Array().CopyFront(nil), wc.(*sdf3d.Chunk).Array().CopyFront(nil)) {
			t.Errorf("chunk %v differs from direct edits", key)
		}
	}
}

func TestApplyVolumeTransform(t *testing.T) {
	lib := newLibrary(t, "rock")
	w := newVolume(t, lib)
	s := evalScript(t, `
(add (transform (box :min (vec3 -50 -5 -5) :max (vec3 50 5 5))
                :position (vec3 128 128 128) :rotate (vec3 0 0 90) :scale 2)
     :resource "rock")
`)
	if err := s.Apply(context.Background(), Volume(w), lib); err != nil {
		t.Fatal(err)
	}
	mods := w.Modifications()
	xf, ok := mods[0].Shape.(sdf3d.Transformed)
	if !ok {
		t.Fatalf("shape is %T", mods[0].Shape)
	}
	if xf.Transform.Scale != 2 || xf.Transform.Position != (mgl32.Vec3{128, 128, 128}) {
		t.Errorf("transform = %+v", xf.Transform)
	}
	// Rotated a quarter turn, the long axis runs along Y.
	if d := xf.Distance(mgl32.Vec3{128, 128 + 90, 128}); d >= 0 {
		t.Errorf("distance along rotated axis = %g, want inside", d)
	}
	if d := xf.Distance(mgl32.Vec3{128 + 90, 128, 128}); d <= 0 {
		t.Errorf("distance along original axis = %g, want outside", d)
	}
}

func TestApplyPlanar(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, "plate")
	plate, _ := lib.ByName("plate")

	got := newPlanar(t, lib)
	s := evalScript(t, `
(add (circle :center (vec2 128 128) :radius 60) :resource "plate")
(subtract (transform (rect :min (vec2 -10 -40) :max (vec2 10 40)) :position (vec2 128 128) :rotate 45)
          :resource "plate")
(subtract-all (line :a (vec2 0 0) :b (vec2 256 256) :radius 4))
`)
	if err := s.Apply(ctx, Planar(got), lib); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := newPlanar(t, lib)
	if err := want.Add(ctx, sdf2d.Circle{Center: mgl32.Vec2{128, 128}, Radius: 60}, plate); err != nil {
		t.Fatal(err)
	}
	slot := sdf2d.TransformShape(sdf2d.NewRect(mgl32.Vec2{-10, -40}, mgl32.Vec2{10, 40}, 0), sdf2d.Transform{
		Position: mgl32.Vec2{128, 128},
		Rotation: sdf2d.NewRotation(mgl32.DegToRad(45)),
		Scale:    1,
	})
	if err := want.Subtract(ctx, slot, plate); err != nil {
		t.Fatal(err)
	}
	if err := want.SubtractAll(ctx, sdf2d.Line{A: mgl32.Vec2{0, 0}, B: mgl32.Vec2{256, 256}, Radius: 4}); err != nil {
		t.Fatal(err)
	}

	if got.ModificationCount() != want.ModificationCount() {
		t.Fatalf("%d modifications, want %d", got.ModificationCount(), want.ModificationCount())
	}
	for _, key := range want.Keys(plate) {
		gc, ok := got.Chunk(plate, key)
		if !ok {
			t.Fatalf("missing chunk %v", key)
		}
		wc, _ := want.Chunk(plate, key)
		if !bytes.Equal(gc.(*sdf2d.Chunk).Array().CopyFront(nil), wc.(*sdf2d.Chunk).Array().CopyFront(nil)) {
			t.Errorf("chunk %v differs from direct edits", key)
		}
	}
}

func TestApplyRejectsBeforeEditing(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"planar shape", `(add (sphere :center (vec3 0 0 0) :radius 5) :resource "rock")
(add (circle :center (vec2 0 0) :radius 5) :resource "rock")`, "planar"},
		{"unknown resource", `(add (sphere :center (vec3 0 0 0) :radius 5) :resource "rock")
(add (sphere :center (vec3 0 0 0) :radius 5) :resource "lava")`, `"lava"`},
		{"vector arity", `(add (sphere :center (vec2 0 0) :radius 5) :resource "rock")`, "vec2"},
		{"nested operand", `(add (translate (circle :center (vec2 0 0) :radius 5) :by (vec3 1 1 1)) :resource "rock")`, "planar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := newLibrary(t, "rock")
			w := newVolume(t, lib)
			err := evalScript(t, tt.src).Apply(context.Background(), Volume(w), lib)
			if err == nil {
				t.Fatal("Apply succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			if w.ModificationCount() != 0 {
				t.Errorf("%d modifications applied", w.ModificationCount())
			}
		})
	}
}

func TestApplyClear(t *testing.T) {
	lib := newLibrary(t, "plate")
	w := newPlanar(t, lib)
	s := evalScript(t, `
(add (circle :center (vec2 50 50) :radius 20) :resource "plate")
(clear)
(add (circle :center (vec2 80 80) :radius 10) :resource "plate")
`)
	if err := s.Apply(context.Background(), Planar(w), lib); err != nil {
		t.Fatal(err)
	}
	if w.ClearCount() != 1 || w.ModificationCount() != 1 {
		t.Errorf("ClearCount = %d, ModificationCount = %d, want 1, 1", w.ClearCount(), w.ModificationCount())
	}
}

func TestApplyOnProxyFails(t *testing.T) {
	lib := newLibrary(t, "rock")
	w := sdf3d.NewWorld(headless.New(nil).Kernel(), sdf3d.Options{Options: world.Options{Library: lib, Proxy: true}})
	s := evalScript(t, `(add (sphere :center (vec3 10 10 10) :radius 5) :resource "rock")`)
	if err := s.Apply(context.Background(), Volume(w), lib); err == nil || !strings.Contains(err.Error(), "edit 1") {
		t.Fatalf("Apply on a proxy = %v", err)
	}
}
