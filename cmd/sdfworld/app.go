package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/sdfworld/pkg/config"
	"github.com/chazu/sdfworld/pkg/engine"
	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/kernel/headless"
	"github.com/chazu/sdfworld/pkg/netsync"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf2d"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	"github.com/chazu/sdfworld/pkg/tessellate"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// colorPalette assigns distinct preview colors to layers.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// session is a world of either dimension.
type session interface {
	netsync.Log
	netsync.Replica

	Layers() []*sdf.Resource
	IsProxy() bool
	Tick(ctx context.Context) error
	Snapshot() (world.Snapshot, error)
	Restore(ctx context.Context, snap world.Snapshot) error
	Destroy(ctx context.Context) error

	target() engine.Target
	meshes(ctx context.Context) ([]*kernel.Mesh, error)
	reference(ctx context.Context, cells int) ([]*kernel.Mesh, error)
}

type worldSession[K comparable, S any] struct {
	*world.World[K, S]
	tgt engine.Target
}

func (s worldSession[K, S]) target() engine.Target { return s.tgt }

func (s worldSession[K, S]) meshes(ctx context.Context) ([]*kernel.Mesh, error) {
	return tessellate.Tessellate(ctx, s.World, mgl32.Vec3{})
}

func (s worldSession[K, S]) reference(ctx context.Context, cells int) ([]*kernel.Mesh, error) {
	v, ok := any(s.World).(*sdf3d.World)
	if !ok {
		return nil, errors.New("reference meshes need a 3d world")
	}
	return tessellate.ReferenceLayers(ctx, v, cells)
}

func newSession(cfg *config.Config, logger *zap.Logger, lib *sdf.Library, proxy bool) session {
	host := headless.New(nil).Kernel()
	if cfg.Is2D() {
		w := sdf2d.NewWorld(host, cfg.Options2D(logger, lib, proxy))
		return worldSession[sdf2d.Key, sdf2d.Shape]{World: w, tgt: engine.Planar(w)}
	}
	w := sdf3d.NewWorld(host, cfg.Options3D(logger, lib, proxy))
	return worldSession[sdf3d.Key, sdf3d.Shape]{World: w, tgt: engine.Volume(w)}
}

// App runs scripts against one world and exports its meshes.
type App struct {
	mu     sync.Mutex
	engine *engine.Engine
	lib    *sdf.Library
	world  session
	log    *zap.Logger
}

// MeshData is the JSON form of one chunk mesh.
type MeshData struct {
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	TexCoords []float32 `json:"texCoords,omitempty"`
	Indices   []uint32  `json:"indices"`
	Name      string    `json:"name"`
	Resource  string    `json:"resource"`
	Material  string    `json:"material,omitempty"`
	Color     string    `json:"color"`
}

// EvalErrorData is the JSON form of a script error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is what Evaluate and Export report.
type EvalResult struct {
	Meshes        []MeshData      `json:"meshes"`
	Errors        []EvalErrorData `json:"errors"`
	Warnings      []EvalErrorData `json:"warnings"`
	ClearCount    int             `json:"clearCount"`
	Modifications int             `json:"modifications"`
}

func newResult() EvalResult {
	return EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

// NewApp builds the library and an empty world described by cfg.
func NewApp(cfg *config.Config, logger *zap.Logger, proxy bool) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lib, err := cfg.Library()
	if err != nil {
		return nil, err
	}
	return &App{
		engine: engine.NewEngine(),
		lib:    lib,
		world:  newSession(cfg, logger, lib, proxy),
		log:    logger,
	}, nil
}

// Evaluate runs source against the world and returns the resulting meshes.
// Script errors are reported in the result; the world is left as it was
// when a script fails to evaluate or does not fit the world.
func (a *App) Evaluate(ctx context.Context, source string) EvalResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := newResult()

	script, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.log.Warn("evaluate failed", zap.Error(err))
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return a.finish(result)
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return a.finish(result)
	}

	for _, op := range script.Ops() {
		if op.Resource == "" {
			continue
		}
		if r, ok := a.lib.ByName(op.Resource); ok && !r.HasRenderMesh() {
			result.Warnings = append(result.Warnings, EvalErrorData{
				Message: fmt.Sprintf("%s on %q changes no mesh: the resource is a texture source", op.Kind, op.Resource),
			})
		}
	}

	if err := script.Apply(ctx, a.world.target(), a.lib); err != nil {
		a.log.Warn("apply failed", zap.Error(err))
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return a.finish(result)
	}
	a.log.Debug("script applied", zap.Int("edits", script.Len()), zap.Uint64("generation", script.Generation))
	return a.export(ctx, result)
}

// Export meshes the current world.
func (a *App) Export(ctx context.Context) EvalResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.export(ctx, newResult())
}

func (a *App) export(ctx context.Context, result EvalResult) EvalResult {
	if err := a.world.Tick(ctx); err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: "tick failed: " + err.Error()})
		return a.finish(result)
	}
	meshes, err := a.world.meshes(ctx)
	if err != nil {
		a.log.Warn("tessellate failed", zap.Error(err))
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return a.finish(result)
	}

	result.Meshes = a.meshData(meshes)
	return a.finish(result)
}

// Reference meshes each layer exactly from the modification log, with cells
// marching cubes divisions along its longest axis. Only volumetric worlds
// have reference meshes.
func (a *App) Reference(ctx context.Context, cells int) ([]MeshData, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	meshes, err := a.world.reference(ctx, cells)
	if err != nil {
		return nil, err
	}
	return a.meshData(meshes), nil
}

func (a *App) meshData(meshes []*kernel.Mesh) []MeshData {
	colors := make(map[string]string)
	for i, r := range a.world.Layers() {
		colors[r.Name] = colorPalette[i%len(colorPalette)]
	}
	out := make([]MeshData, 0, len(meshes))
	for _, m := range meshes {
		res := layerName(m.Name)
		out = append(out, MeshData{
			Vertices:  m.Vertices,
			Normals:   m.Normals,
			TexCoords: m.TexCoords,
			Indices:   m.Indices,
			Name:      m.Name,
			Resource:  res,
			Material:  m.Material,
			Color:     colors[res],
		})
	}
	return out
}

func (a *App) finish(result EvalResult) EvalResult {
	result.ClearCount = a.world.ClearCount()
	result.Modifications = a.world.ModificationCount()
	return result
}

// Close destroys the world.
func (a *App) Close(ctx context.Context) error {
	return a.world.Destroy(ctx)
}

// layerName recovers the resource of a chunk mesh named "<resource> <key>".
func layerName(name string) string {
	if i := strings.LastIndex(name, " ("); i >= 0 {
		return name[:i]
	}
	return name
}
