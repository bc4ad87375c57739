package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const terrainYAML = `
world:
  dimension: 3d
  finite: true
  size: [1024, 512, 1024]
  workers: 4
resources:
  - name: mask
    textureSourceOnly: true
    quality: low
  - name: rock
    material: stone
    quality: high
    collisionTags: "solid walkable"
    textures:
      - attribute: moss
        source: mask
  - name: detail
    material: stone
    quality: custom
    custom: {resolution: 24, chunkSize: 128, maxDistance: 16}
network:
  listen: ":9000"
  heartbeat: 5s
  resyncInterval: 250ms
store:
  database: data/world.db
  keep: 3
log:
  level: debug
  development: true
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("resources:\n  - name: ground\n    material: dirt\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.World.Dimension != "3d" || cfg.Is2D() {
		t.Errorf("dimension = %q", cfg.World.Dimension)
	}
	if cfg.Network.Heartbeat != 2*time.Second || cfg.Network.ResyncInterval != 500*time.Millisecond {
		t.Errorf("network defaults = %+v", cfg.Network)
	}
	if cfg.Network.Path != "/sync" || cfg.Log.Level != "info" || cfg.Store.Keep != 20 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestParseTerrain(t *testing.T) {
	cfg, err := Parse([]byte(terrainYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Network.Heartbeat != 5*time.Second || cfg.Network.ResyncInterval != 250*time.Millisecond {
		t.Errorf("durations = %v, %v", cfg.Network.Heartbeat, cfg.Network.ResyncInterval)
	}
	if cfg.Network.PollInterval != 50*time.Millisecond {
		t.Errorf("poll interval default lost: %v", cfg.Network.PollInterval)
	}

	lib, err := cfg.Library()
	if err != nil {
		t.Fatalf("Library: %v", err)
	}
	all := lib.All()
	if len(all) != 3 {
		t.Fatalf("%d resources", len(all))
	}
	for i, name := range []string{"mask", "rock", "detail"} {
		if all[i].Name != name || all[i].ID != sdf.ResourceID(i+1) {
			t.Errorf("resource %d = %v, want %s#%d", i, all[i], name, i+1)
		}
	}

	mask, _ := lib.ByName("mask")
	rock, _ := lib.ByName("rock")
	if !mask.IsTextureSourceOnly || mask.QualityLevel != sdf.QualityLow {
		t.Errorf("mask = %+v", mask)
	}
	if rock.QualityLevel != sdf.QualityHigh || rock.Material != "stone" {
		t.Errorf("rock = %+v", rock)
	}
	if tags := rock.Tags(); len(tags) != 2 || tags[1] != "walkable" {
		t.Errorf("rock tags = %v", tags)
	}
	if len(rock.ReferencedTextures) != 1 || rock.ReferencedTextures[0].Source != mask || rock.ReferencedTextures[0].TargetAttribute != "moss" {
		t.Errorf("rock textures = %+v", rock.ReferencedTextures)
	}

	detail, _ := lib.ByName("detail")
	want := sdf.Quality{ChunkResolution: 24, ChunkSize: 128, MaxDistance: 16}
	if got := detail.Quality(&sdf.Presets3D); got != want {
		t.Errorf("detail quality = %v, want %v", got, want)
	}

	opts := cfg.Options3D(zap.NewNop(), lib, true)
	if !opts.Finite || opts.Size != (mgl32.Vec3{1024, 512, 1024}) || opts.Workers != 4 || !opts.Proxy || opts.Library != lib {
		t.Errorf("Options3D = %+v", opts)
	}
	if s := cfg.SenderOptions(nil); s.Heartbeat != 5*time.Second {
		t.Errorf("SenderOptions = %+v", s)
	}
	if r := cfg.ReceiverOptions(nil); r.ResyncInterval != 250*time.Millisecond {
		t.Errorf("ReceiverOptions = %+v", r)
	}
}

func TestPlanarResourcesDefaultToPlanarPresets(t *testing.T) {
	cfg, err := Parse([]byte(`
world: {dimension: 2d, finite: true, size: [512, 256]}
resources:
  - {name: plate, frontMaterial: grass, cutMaterial: dirt, depth: 32, offset: 4}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lib, err := cfg.Library()
	if err != nil {
		t.Fatal(err)
	}
	plate, _ := lib.ByName("plate")
	if plate.Depth != 32 || plate.Offset != 4 || plate.TexCoordSize != 256 {
		t.Errorf("plate extrusion = %g/%g/%g", plate.Depth, plate.Offset, plate.TexCoordSize)
	}
	if plate.Custom != sdf.Presets2D[sdf.QualityMedium] {
		t.Errorf("plate custom quality = %v", plate.Custom)
	}
	if opts := cfg.Options2D(nil, lib, false); opts.Size != (mgl32.Vec2{512, 256}) {
		t.Errorf("Options2D size = %v", opts.Size)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "resources"},
		{"no resources", "resources: []", "resources"},
		{"unknown key", "resources: [{name: a}]\nworld: {gravity: 9}", "gravity"},
		{"bad duration", "resources: [{name: a}]\nnetwork: {heartbeat: soon}", "heartbeat"},
		{"bad quality", "resources: [{name: a, quality: ultra}]", "quality"},
		{"custom without values", "resources: [{name: a, quality: custom}]", "custom"},
		{"bad log level", "resources: [{name: a}]\nlog: {level: loud}", "level"},
		{"duplicate", "resources: [{name: a}, {name: a}]", "duplicate resource"},
		{"unknown texture source", "resources: [{name: a, textures: [{attribute: t, source: b}]}]", `unknown source "b"`},
		{"finite without size", "world: {finite: true}\nresources: [{name: a}]", "size"},
		{"syntax", "resources: [", "config"},
		{"fractional workers", "world: {workers: 1.5}\nresources: [{name: a}]", "workers"},
		{"negative chunk size", "resources: [{name: a, quality: custom, custom: {resolution: 8, chunkSize: -1, maxDistance: 4}}]", "chunkSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte(terrainYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Database != "data/world.db" || cfg.Store.Keep != 3 {
		t.Errorf("store = %+v", cfg.Store)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestLogger(t *testing.T) {
	cfg, err := Parse([]byte(terrainYAML))
	if err != nil {
		t.Fatal(err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled")
	}

	cfg.Log = LogSpec{Level: "warn"}
	logger, err = cfg.Logger()
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) || !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn logger level wrong")
	}
}
