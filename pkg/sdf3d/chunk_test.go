package sdf3d

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/chazu/sdfworld/pkg/kernel/headless"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zaptest"
)

type testWorld struct {
	host *headless.Host
	lib  *sdf.Library
	rock *sdf.Resource
	w    *World
}

func newTestWorld(t *testing.T, opts Options) *testWorld {
	t.Helper()
	loop := headless.NewLoop()
	t.Cleanup(loop.Close)

	lib := sdf.NewLibrary()
	rock := sdf.NewResource("rock")
	rock.Material = "rock"
	if err := lib.Add(rock); err != nil {
		t.Fatal(err)
	}
	h := headless.New(loop)
	opts.Logger = zaptest.NewLogger(t)
	opts.Library = lib
	w := NewWorld(h.Kernel(), opts)
	t.Cleanup(func() { _ = w.Destroy(context.Background()) })
	return &testWorld{host: h, lib: lib, rock: rock, w: w}
}

func (tw *testWorld) resource(t *testing.T, name string) *sdf.Resource {
	t.Helper()
	r := sdf.NewResource(name)
	if err := tw.lib.Add(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func (tw *testWorld) chunk(t *testing.T, res *sdf.Resource, key Key) *Chunk {
	t.Helper()
	c, ok := tw.w.Chunk(res, key)
	if !ok {
		t.Fatalf("no %s chunk at %v", res.Name, key)
	}
	return c.(*Chunk)
}

func (tw *testWorld) object(t *testing.T, name string) *headless.Object {
	t.Helper()
	for _, o := range tw.host.Renderer.Live() {
		if o.State().Name == name {
			return o
		}
	}
	t.Fatalf("no live render object %q", name)
	return nil
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		for k := 2; k >= 0; k-- {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}

func TestAffectedChunks(t *testing.T) {
	q := mediumQuality
	tests := []struct {
		name   string
		opts   Options
		shape  Shape
		want   int
		first  Key
		last   Key
		errIs  error
		noKeys bool
	}{
		{"sphere in one chunk reaches neighbours", Options{}, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 50}, 27, Key{-1, -1, -1}, Key{1, 1, 1}, nil, false},
		{"small sphere far from faces", Options{}, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, 1, Key{0, 0, 0}, Key{0, 0, 0}, nil, false},
		{"finite world clamps", Options{Finite: true, Size: mgl32.Vec3{512, 512, 256}}, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 50}, 4, Key{0, 0, 0}, Key{1, 1, 0}, nil, false},
		{"unbounded on finite world", Options{Finite: true, Size: mgl32.Vec3{512, 256, 256}}, NewNoise(1, 0.01), 2, Key{0, 0, 0}, Key{1, 0, 0}, nil, false},
		{"unbounded on infinite world", Options{}, NewNoise(1, 0.01), 0, Key{}, Key{}, world.ErrUnbounded, false},
		{"empty intersection", Options{}, Intersect(Sphere{Radius: 1}, Sphere{Center: mgl32.Vec3{100, 0, 0}, Radius: 1}), 0, Key{}, Key{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDimension(headless.New(nil).Kernel(), tt.opts)
			keys, err := d.AffectedChunks(tt.shape, q)
			if tt.errIs != nil {
				if !errors.Is(err, tt.errIs) {
					t.Fatalf("err = %v, want %v", err, tt.errIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("AffectedChunks: %v", err)
			}
			if tt.noKeys {
				if len(keys) != 0 {
					t.Fatalf("keys = %v, want none", keys)
				}
				return
			}
			if len(keys) != tt.want {
				t.Fatalf("len(keys) = %d, want %d: %v", len(keys), tt.want, keys)
			}
			sortKeys(keys)
			if keys[0] != tt.first || keys[len(keys)-1] != tt.last {
				t.Errorf("keys span %v..%v, want %v..%v", keys[0], keys[len(keys)-1], tt.first, tt.last)
			}
			for _, k := range keys {
				if !d.AffectsChunk(tt.shape, q, k) {
					t.Errorf("AffectsChunk(%v) = false for an affected key", k)
				}
			}
			if d.AffectsChunk(tt.shape, q, Key{50, 50, 50}) {
				t.Error("AffectsChunk true for a distant key")
			}
		})
	}
}

func TestWorldSphereExample(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()

	if err := tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 50}, tw.rock); err != nil {
		t.Fatalf("Add: %v", err)
	}
	c := tw.chunk(t, tw.rock, Key{0, 0, 0})
	if got, want := c.Array().Sample(9, 9, 9), sdf.Encode(-50, 64); got != want {
		t.Errorf("center sample = %d, want %d", got, want)
	}
	if got := c.Array().Sample(1, 1, 1); got != 255 {
		t.Errorf("corner sample = %d, want 255", got)
	}

	if !tw.w.NeedsMeshUpdate() {
		t.Fatal("NeedsMeshUpdate() = false after an edit")
	}
	if err := tw.w.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if tw.w.NeedsMeshUpdate() {
		t.Error("NeedsMeshUpdate() = true after Tick")
	}

	obj := tw.object(t, "rock (0, 0, 0)").State()
	if obj.Mesh == nil || obj.Mesh.IsEmpty() {
		t.Fatal("chunk (0,0,0) has no render mesh")
	}
	if obj.Material != "rock" || obj.Position != (mgl32.Vec3{}) {
		t.Errorf("render object material %q position %v", obj.Material, obj.Position)
	}

	var found bool
	for _, col := range tw.host.Physics.Live() {
		s := col.State()
		if s.Name == "rock (0, 0, 0)" {
			found = true
			if len(s.Indices) == 0 || len(s.Tags) != 1 || s.Tags[0] != "solid" || !s.Enabled {
				t.Errorf("collider state = %d indices, tags %v, enabled %v", len(s.Indices), s.Tags, s.Enabled)
			}
		}
	}
	if !found {
		t.Error("no collider for chunk (0,0,0)")
	}

	if v := tw.host.Violations(); v != 0 {
		t.Errorf("%d host calls made off the main loop", v)
	}
}

func TestWorldMeshIsInWorldSpace(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	center := mgl32.Vec3{300, 40, 500}
	if err := tw.w.Add(ctx, Sphere{Center: center, Radius: 20}, tw.rock); err != nil {
		t.Fatal(err)
	}
	c := tw.chunk(t, tw.rock, Key{1, 0, 1})
	m, err := c.WorldMesh(ctx)
	if err != nil || m == nil {
		t.Fatalf("WorldMesh = %v, %v", m, err)
	}
	lo, hi, _ := m.Bounds()
	if !BBoxAround(center, 20+mediumQuality.UnitSize()).Contains(lo) || !BBoxAround(center, 20+mediumQuality.UnitSize()).Contains(hi) {
		t.Errorf("world mesh bounds %v..%v not around %v", lo, hi, center)
	}
}

func TestChunkLocality(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	q := mediumQuality

	inside := Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}
	for _, key := range []Key{{1, 0, 0}, {-1, 0, 0}, {0, 1, 1}} {
		c := NewChunk(key, tw.rock, q, tw.host.Kernel(), nil)
		before := c.Array().CopyFront(nil)
		changed, err := c.Add(ctx, inside)
		if err != nil || changed {
			t.Errorf("chunk %v Add = %v, %v, want no change", key, changed, err)
		}
		if !bytes.Equal(before, c.Array().CopyFront(nil)) {
			t.Errorf("chunk %v samples changed", key)
		}
	}
}

func TestSubtractWithoutChunks(t *testing.T) {
	tw := newTestWorld(t, Options{})
	if err := tw.w.Subtract(context.Background(), Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 50}, tw.rock); err != nil {
		t.Fatal(err)
	}
	if keys := tw.w.Keys(tw.rock); len(keys) != 0 {
		t.Errorf("Subtract created %d chunks", len(keys))
	}
	if tw.w.ModificationCount() != 1 {
		t.Errorf("ModificationCount = %d, want 1", tw.w.ModificationCount())
	}
}

func TestOpacityAndEnabled(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	if err := tw.w.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	obj := tw.object(t, "rock (0, 0, 0)")

	tests := []struct {
		opacity float32
		alpha   float32
		enabled bool
		shadows bool
	}{
		{0.5, 0.5, true, false},
		{0, 0, false, false},
		{1, 1, true, true},
		{3, 1, true, true},
		{-1, 0, false, false},
	}
	for _, tt := range tests {
		if err := tw.w.SetOpacity(ctx, tt.opacity); err != nil {
			t.Fatal(err)
		}
		s := obj.State()
		if s.Alpha != tt.alpha || s.Enabled != tt.enabled || s.Shadows != tt.shadows {
			t.Errorf("opacity %g: alpha %g enabled %v shadows %v, want %g %v %v",
				tt.opacity, s.Alpha, s.Enabled, s.Shadows, tt.alpha, tt.enabled, tt.shadows)
		}
	}

	c := tw.chunk(t, tw.rock, Key{})
	if err := c.SetEnabled(ctx, false); err != nil {
		t.Fatal(err)
	}
	if obj.State().Enabled || c.State() != StateDisabled {
		t.Errorf("disabled chunk: render enabled %v, state %v", obj.State().Enabled, c.State())
	}
	for _, col := range tw.host.Physics.Live() {
		if col.State().Enabled {
			t.Errorf("collider %s still enabled", col.State().Name)
		}
	}
}

func TestNewChunkInheritsOpacity(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	if err := tw.w.SetOpacity(ctx, 0.25); err != nil {
		t.Fatal(err)
	}
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	_ = tw.w.Tick(ctx)
	if s := tw.object(t, "rock (0, 0, 0)").State(); s.Alpha != 0.25 || s.Shadows {
		t.Errorf("new chunk alpha %g shadows %v", s.Alpha, s.Shadows)
	}
}

func TestTextureSourceLayer(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()

	mask := tw.resource(t, "mask")
	mask.IsTextureSourceOnly = true
	tw.rock.ReferencedTextures = []sdf.TextureReference{{TargetAttribute: "MaskSdf", Source: mask}}

	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{120, 128, 128}, Radius: 8}, mask)
	if err := tw.w.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	for _, o := range tw.host.Renderer.Live() {
		if o.State().Name == "mask (0, 0, 0)" {
			t.Error("texture source layer got a render object")
		}
	}
	for _, c := range tw.host.Physics.Live() {
		if c.State().Name == "mask (0, 0, 0)" {
			t.Error("texture source layer got a collider")
		}
	}

	b, ok := tw.object(t, "rock (0, 0, 0)").State().Textures["MaskSdf"]
	if !ok {
		t.Fatal("MaskSdf not bound")
	}
	tex, ok := b.Texture.(*headless.Texture)
	if !ok || tex.Name() != "mask (0, 0, 0)" {
		t.Fatalf("bound texture %v, want the mask chunk texture", b.Texture)
	}
	if b.Params != sdf.TextureParams(mediumQuality) {
		t.Errorf("params = %v", b.Params)
	}
	size, dims, data := tex.Data()
	want := tw.chunk(t, mask, Key{}).Array().CopyFront(nil)
	if size != 19 || dims != 3 || !bytes.Equal(data, want) {
		t.Error("mask texture does not hold the mask samples")
	}

	// An edit of the source alone refreshes the texture through the binding.
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{140, 128, 128}, Radius: 8}, mask)
	_, _, data = tex.Data()
	if !bytes.Equal(data, tw.chunk(t, mask, Key{}).Array().CopyFront(nil)) {
		t.Error("mask texture is stale after a source edit")
	}

	if v := tw.host.Violations(); v != 0 {
		t.Errorf("%d host calls made off the main loop", v)
	}
}

func TestMissingTextureSourceBindsWhite(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	mask := tw.resource(t, "mask")
	tw.rock.ReferencedTextures = []sdf.TextureReference{{TargetAttribute: "MaskSdf", Source: mask}}

	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	_ = tw.w.Tick(ctx)
	b := tw.object(t, "rock (0, 0, 0)").State().Textures["MaskSdf"]
	if b.Texture != tw.host.Textures.White() {
		t.Errorf("bound %v, want white", b.Texture)
	}
}

func TestResourceChangeRemeshes(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	_ = tw.w.Tick(ctx)
	tw.object(t, "rock (0, 0, 0)")

	tw.rock.Material = ""
	tw.rock.CollisionTags = ""
	tw.rock.MarkChanged()
	if !tw.w.NeedsMeshUpdate() {
		t.Fatal("NeedsMeshUpdate() = false after MarkChanged")
	}
	if err := tw.w.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(tw.host.Renderer.Live()); n != 0 {
		t.Errorf("%d render objects left after the material was removed", n)
	}
	if n := len(tw.host.Physics.Live()); n != 0 {
		t.Errorf("%d colliders left after collision was disabled", n)
	}
}

func TestSubtractEmptiesMesh(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	_ = tw.w.Tick(ctx)
	obj := tw.object(t, "rock (0, 0, 0)")

	_ = tw.w.SubtractAll(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 40})
	if err := tw.w.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if s := obj.State(); s.Mesh != nil {
		t.Error("render mesh kept after the surface was carved away")
	}
	if n := len(tw.host.Physics.Live()); n != 0 {
		t.Errorf("%d colliders kept for an empty chunk", n)
	}
}

func TestDestroyReleasesHostObjects(t *testing.T) {
	tw := newTestWorld(t, Options{})
	ctx := context.Background()
	mask := tw.resource(t, "mask")
	tw.rock.ReferencedTextures = []sdf.TextureReference{{TargetAttribute: "MaskSdf", Source: mask}}
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, mask)
	_ = tw.w.Add(ctx, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 10}, tw.rock)
	_ = tw.w.Tick(ctx)
	c := tw.chunk(t, tw.rock, Key{})

	if err := tw.w.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if len(tw.host.Renderer.Live()) != 0 || len(tw.host.Physics.Live()) != 0 {
		t.Error("host objects survive Destroy")
	}
	for _, tex := range tw.host.Textures.All() {
		if !tex.Destroyed() {
			t.Errorf("texture %s survives Destroy", tex.Name())
		}
	}
	if c.State() != StateDestroyed {
		t.Errorf("chunk state %v", c.State())
	}
	if err := c.UpdateMesh(ctx); !errors.Is(err, world.ErrDestroyed) {
		t.Errorf("UpdateMesh after Destroy = %v, want ErrDestroyed", err)
	}
	if err := tw.w.Add(ctx, Sphere{Radius: 1}, tw.rock); !errors.Is(err, world.ErrDestroyed) {
		t.Errorf("Add after Destroy = %v, want ErrDestroyed", err)
	}
}

func TestReplicaMatchesAuthority(t *testing.T) {
	auth := newTestWorld(t, Options{})
	ctx := context.Background()
	shapes := []Shape{
		Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 60},
		NewBox(mgl32.Vec3{100, 100, 100}, mgl32.Vec3{300, 150, 140}, 8),
		Bias(Capsule{A: mgl32.Vec3{0, 0, 0}, B: mgl32.Vec3{250, 200, 100}, Radius: 20}, NewNoise(4, 0.05), 6),
	}
	for i, s := range shapes {
		var err error
		if i == 1 {
			err = auth.w.Subtract(ctx, s, auth.rock)
		} else {
			err = auth.w.Add(ctx, s, auth.rock)
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	proxy := NewWorld(headless.New(nil).Kernel(), Options{Options: world.Options{Library: auth.lib, Proxy: true}})
	var buf bytes.Buffer
	if _, err := auth.w.WriteModifications(&buf, 0); err != nil {
		t.Fatal(err)
	}
	ok, err := proxy.ReadModifications(ctx, &buf)
	if err != nil || !ok {
		t.Fatalf("ReadModifications = %v, %v", ok, err)
	}

	authKeys := auth.w.Keys(auth.rock)
	if len(proxy.Keys(auth.rock)) != len(authKeys) {
		t.Fatalf("replica has %d chunks, authority %d", len(proxy.Keys(auth.rock)), len(authKeys))
	}
	for _, key := range authKeys {
		a := auth.chunk(t, auth.rock, key).Array().CopyFront(nil)
		pc, ok := proxy.Chunk(auth.rock, key)
		if !ok {
			t.Fatalf("replica lacks chunk %v", key)
		}
		if !bytes.Equal(a, pc.(*Chunk).Array().CopyFront(nil)) {
			t.Errorf("chunk %v differs between authority and replica", key)
		}
	}
}
