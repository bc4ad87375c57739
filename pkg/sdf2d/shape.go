package sdf2d

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// Shape is a planar signed distance field: negative inside, zero on the
// contour, positive outside.
type Shape interface {
	// Bounds encloses the contour. Shapes that fill the plane without limit
	// return false.
	Bounds() (BBox, bool)
	Distance(p mgl32.Vec2) float32
	// Sample fills out with Distance(xf.PointToWorld(x, y)) for every cell of
	// a grid of the given size.
	Sample(ctx context.Context, xf Transform, out []float32, size Size2) error
	TypeName() string
	WriteRaw(w *sdf.Writer, reg *Registry) error
}

// Registry resolves serialized shape types.
type Registry = sdf.Registry[Shape]

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry holds every shape type of this package.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry returns a registry with every shape type of this package.
func NewRegistry() *Registry {
	reg := sdf.NewRegistry[Shape]()
	reg.Register(typeRect, readRect)
	reg.Register(typeCircle, readCircle)
	reg.Register(typeLine, readLine)
	reg.Register(typeTranslated, readTranslated)
	reg.Register(typeTransformed, readTransformed)
	reg.Register(typeExpanded, readExpanded)
	reg.Register(typeIntersected, readIntersected)
	reg.Register(typeBiased, readBiased)
	reg.Register(typeNoise, readNoise)
	return reg
}

// WriteShape writes the type ordinal of s followed by its payload.
func WriteShape(w *sdf.Writer, reg *Registry, s Shape) error {
	if s == nil {
		return fmt.Errorf("sdf2d: write nil shape")
	}
	if err := reg.WriteType(w, s.TypeName()); err != nil {
		return err
	}
	return s.WriteRaw(w, reg)
}

// ReadShape reads a shape written by WriteShape.
func ReadShape(r *sdf.Reader, reg *Registry) (Shape, error) {
	return reg.Read(r)
}

func checkSampleSize(out []float32, size Size2) error {
	if size.X < 0 || size.Y < 0 {
		return fmt.Errorf("sdf2d: negative sample size %+v", size)
	}
	if len(out) < size.Len() {
		return fmt.Errorf("sdf2d: sample buffer holds %d values, need %d", len(out), size.Len())
	}
	return nil
}

// sampleEach evaluates dist at every grid point, one row per worker.
func sampleEach(ctx context.Context, xf Transform, out []float32, size Size2, dist func(mgl32.Vec2) float32) error {
	if err := checkSampleSize(out, size); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < size.Y; y++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			i := size.Index(0, y)
			for x := 0; x < size.X; x++ {
				out[i] = dist(xf.PointToWorld(mgl32.Vec2{float32(x), float32(y)}))
				i++
			}
			return nil
		})
	}
	return g.Wait()
}

// samplePair samples a into out and b into pooled scratch concurrently, then
// folds b into out with combine.
func samplePair(ctx context.Context, a, b Shape, xf Transform, out []float32, size Size2, combine func(x, y float32) float32) error {
	if err := checkSampleSize(out, size); err != nil {
		return err
	}
	n := size.Len()
	tmp := sdf.GetFloats(n)
	defer sdf.PutFloats(tmp)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Sample(gctx, xf, out, size) })
	g.Go(func() error { return b.Sample(gctx, xf, *tmp, size) })
	if err := g.Wait(); err != nil {
		return err
	}
	t := *tmp
	for i := 0; i < n; i++ {
		out[i] = combine(out[i], t[i])
	}
	return nil
}
