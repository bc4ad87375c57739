// Package config loads the YAML description of a world: its dimension, the
// resources of its layers, replication and persistence settings, and the
// logger. Files are validated against an embedded JSON schema before they are
// decoded.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "sdfworld://config.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

type Config struct {
	World     WorldSpec      `yaml:"world"`
	Resources []ResourceSpec `yaml:"resources"`
	Network   NetworkSpec    `yaml:"network"`
	Store     StoreSpec      `yaml:"store"`
	Log       LogSpec        `yaml:"log"`
}

type WorldSpec struct {
	// Dimension is "3d" or "2d".
	Dimension string    `yaml:"dimension"`
	Finite    bool      `yaml:"finite"`
	Size      []float32 `yaml:"size"`
	Workers   int       `yaml:"workers"`
}

type QualitySpec struct {
	Resolution  int     `yaml:"resolution"`
	ChunkSize   float32 `yaml:"chunkSize"`
	MaxDistance float32 `yaml:"maxDistance"`
}

type TextureSpec struct {
	Attribute string `yaml:"attribute"`
	Source    string `yaml:"source"`
}

type ResourceSpec struct {
	Name              string        `yaml:"name"`
	Material          string        `yaml:"material"`
	FrontMaterial     string        `yaml:"frontMaterial"`
	BackMaterial      string        `yaml:"backMaterial"`
	CutMaterial       string        `yaml:"cutMaterial"`
	Quality           string        `yaml:"quality"`
	Custom            *QualitySpec  `yaml:"custom"`
	CollisionTags     *string       `yaml:"collisionTags"`
	TextureSourceOnly bool          `yaml:"textureSourceOnly"`
	Depth             float32       `yaml:"depth"`
	Offset            float32       `yaml:"offset"`
	TexCoordSize      float32       `yaml:"texCoordSize"`
	Textures          []TextureSpec `yaml:"textures"`
}

type NetworkSpec struct {
	Listen         string        `yaml:"listen"`
	Path           string        `yaml:"path"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	ResyncInterval time.Duration `yaml:"resyncInterval"`
	PollInterval   time.Duration `yaml:"pollInterval"`
}

type StoreSpec struct {
	Database     string `yaml:"database"`
	SnapshotFile string `yaml:"snapshotFile"`
	Keep         int    `yaml:"keep"`
}

type LogSpec struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func defaults() Config {
	return Config{
		World: WorldSpec{Dimension: "3d"},
		Network: NetworkSpec{
			Listen:         ":8080",
			Path:           "/sync",
			Heartbeat:      2 * time.Second,
			ResyncInterval: 500 * time.Millisecond,
			PollInterval:   50 * time.Millisecond,
		},
		Store: StoreSpec{Keep: 20},
		Log:   LogSpec{Level: "info"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates YAML data against the schema and decodes it over the
// defaults.
func Parse(data []byte) (*Config, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate converts the YAML document to JSON values and checks it against
// the schema.
func validate(data []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("config: schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// check covers the rules the schema cannot express.
func (c *Config) check() error {
	seen := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		if seen[r.Name] {
			return fmt.Errorf("config: duplicate resource %q", r.Name)
		}
		seen[r.Name] = true
	}
	for _, r := range c.Resources {
		for _, tex := range r.Textures {
			if !seen[tex.Source] {
				return fmt.Errorf("config: resource %q: texture %s: unknown source %q", r.Name, tex.Attribute, tex.Source)
			}
		}
	}
	if c.World.Finite {
		want := 3
		if c.World.Dimension == "2d" {
			want = 2
		}
		if len(c.World.Size) != want {
			return fmt.Errorf("config: finite %s world needs a size of %d values, got %d", c.World.Dimension, want, len(c.World.Size))
		}
	}
	return nil
}
