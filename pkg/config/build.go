package config

import (
	"fmt"

	"github.com/chazu/sdfworld/pkg/netsync"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf2d"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	"github.com/chazu/sdfworld/pkg/transport/ws"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Is2D reports whether the world holds extruded planar layers.
func (c *Config) Is2D() bool { return c.World.Dimension == "2d" }

// Library builds the resources in file order, so every peer loading the
// same file assigns the same ids. Texture sources are resolved by name.
func (c *Config) Library() (*sdf.Library, error) {
	lib := sdf.NewLibrary()
	for _, spec := range c.Resources {
		r, err := spec.resource(c.Is2D())
		if err != nil {
			return nil, err
		}
		if err := lib.Add(r); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, spec := range c.Resources {
		r, _ := lib.ByName(spec.Name)
		for _, tex := range spec.Textures {
			src, ok := lib.ByName(tex.Source)
			if !ok {
				return nil, fmt.Errorf("config: resource %q: unknown texture source %q", spec.Name, tex.Source)
			}
			r.ReferencedTextures = append(r.ReferencedTextures, sdf.TextureReference{
				TargetAttribute: tex.Attribute,
				Source:          src,
			})
		}
	}
	return lib, nil
}

func (s ResourceSpec) resource(planar bool) (*sdf.Resource, error) {
	r := sdf.NewResource(s.Name)
	if planar {
		r.Custom = sdf.Presets2D[sdf.QualityMedium]
	}
	r.Material = s.Material
	r.FrontMaterial = s.FrontMaterial
	r.BackMaterial = s.BackMaterial
	r.CutMaterial = s.CutMaterial
	r.IsTextureSourceOnly = s.TextureSourceOnly
	if s.CollisionTags != nil {
		r.CollisionTags = *s.CollisionTags
	}
	if s.Quality != "" {
		level, err := sdf.ParseQualityLevel(s.Quality)
		if err != nil {
			return nil, fmt.Errorf("config: resource %q: %w", s.Name, err)
		}
		r.QualityLevel = level
	}
	if s.Custom != nil {
		q, err := sdf.NewQuality(s.Custom.Resolution, s.Custom.ChunkSize, s.Custom.MaxDistance)
		if err != nil {
			return nil, fmt.Errorf("config: resource %q: %w", s.Name, err)
		}
		r.Custom = q
	}
	if s.Depth > 0 {
		r.Depth = s.Depth
	}
	r.Offset = s.Offset
	if s.TexCoordSize > 0 {
		r.TexCoordSize = s.TexCoordSize
	}
	return r, nil
}

// Logger builds the process logger from the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

func (c *Config) worldOptions(logger *zap.Logger, lib *sdf.Library, proxy bool) world.Options {
	return world.Options{
		Logger:  logger,
		Library: lib,
		Proxy:   proxy,
		Workers: c.World.Workers,
	}
}

// Options3D returns the options of a volumetric world.
func (c *Config) Options3D(logger *zap.Logger, lib *sdf.Library, proxy bool) sdf3d.Options {
	opts := sdf3d.Options{Options: c.worldOptions(logger, lib, proxy), Finite: c.World.Finite}
	if c.World.Finite && len(c.World.Size) == 3 {
		opts.Size = mgl32.Vec3{c.World.Size[0], c.World.Size[1], c.World.Size[2]}
	}
	return opts
}

// Options2D returns the options of a planar world.
func (c *Config) Options2D(logger *zap.Logger, lib *sdf.Library, proxy bool) sdf2d.Options {
	opts := sdf2d.Options{Options: c.worldOptions(logger, lib, proxy), Finite: c.World.Finite}
	if c.World.Finite && len(c.World.Size) == 2 {
		opts.Size = mgl32.Vec2{c.World.Size[0], c.World.Size[1]}
	}
	return opts
}

func (c *Config) SenderOptions(logger *zap.Logger) netsync.SenderOptions {
	return netsync.SenderOptions{Logger: logger, Heartbeat: c.Network.Heartbeat}
}

func (c *Config) ReceiverOptions(logger *zap.Logger) netsync.ReceiverOptions {
	return netsync.ReceiverOptions{Logger: logger, ResyncInterval: c.Network.ResyncInterval}
}

func (c *Config) TransportOptions(logger *zap.Logger) ws.Options {
	return ws.Options{Logger: logger, PollInterval: c.Network.PollInterval}
}
