// Package tessellate turns worlds into standalone triangle meshes, one per
// chunk, for export and inspection outside a host renderer.
package tessellate

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/kernel/sdfx"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// worldMesher is implemented by the chunks of both dimensions.
type worldMesher interface {
	WorldMesh(ctx context.Context) (*kernel.Mesh, error)
}

// Tessellate meshes every chunk of every layer of w with a render mesh.
// Vertices are relative to origin. Layers come in creation order and the
// chunks of a layer are ordered by name; chunks without a surface are
// skipped. The world is only read.
func Tessellate[K comparable, S any](ctx context.Context, w *world.World[K, S], origin mgl32.Vec3) ([]*kernel.Mesh, error) {
	if w == nil {
		return nil, nil
	}
	var meshes []*kernel.Mesh
	for _, res := range w.Layers() {
		if !res.HasRenderMesh() {
			continue
		}
		keys := w.Keys(res)
		layer := make([]*kernel.Mesh, len(keys))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, key := range keys {
			c, ok := w.Chunk(res, key)
			if !ok {
				continue
			}
			g.Go(func() error {
				wm, ok := c.(worldMesher)
				if !ok {
					return fmt.Errorf("tessellate: %s chunk %v cannot produce a world mesh", res.Name, key)
				}
				m, err := wm.WorldMesh(gctx)
				if err != nil {
					return fmt.Errorf("tessellate: %s chunk %v: %w", res.Name, key, err)
				}
				if m != nil {
					m.Translate(origin.Mul(-1))
				}
				layer[i] = m
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		start := len(meshes)
		for _, m := range layer {
			if m != nil {
				meshes = append(meshes, m)
			}
		}
		added := meshes[start:]
		sort.Slice(added, func(i, j int) bool { return added[i].Name < added[j].Name })
	}
	return meshes, nil
}

// Reference meshes a bounded volumetric shape directly, without chunks or
// quantization, with cells marching cubes divisions along its longest axis.
// Comparing it with Tessellate shows the error the sample grid introduces.
func Reference(shape sdf3d.Shape, cells int) (*kernel.Mesh, error) {
	m, err := sdfx.Reference(shape, cells)
	if err != nil {
		return nil, fmt.Errorf("tessellate: reference: %w", err)
	}
	m.Name = shape.TypeName()
	return m, nil
}

// ReferenceLayers meshes each rendered layer of w straight from its
// modification log, folding adds and subtracts into one exact solid per
// layer. Layers that end up empty are skipped. An unbounded addition has
// no finite solid and fails with sdfx.ErrUnbounded.
func ReferenceLayers(ctx context.Context, w *sdf3d.World, cells int) ([]*kernel.Mesh, error) {
	if w == nil {
		return nil, nil
	}
	solids := make(map[*sdf.Resource]*sdfx.Solid)
	for i, m := range w.Modifications() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Resource == nil || !m.Resource.HasRenderMesh() {
			continue
		}
		s, ok := solids[m.Resource]
		if !ok {
			s = &sdfx.Solid{}
			solids[m.Resource] = s
		}
		var err error
		if m.Operator == sdf.Add {
			err = s.Add(m.Shape)
		} else {
			err = s.Subtract(m.Shape)
		}
		if err != nil {
			return nil, fmt.Errorf("tessellate: reference: modification %d (%s %s): %w", i, m.Operator, m.Resource, err)
		}
	}

	var meshes []*kernel.Mesh
	for _, res := range w.Layers() {
		s, ok := solids[res]
		if !ok || s.Empty() {
			continue
		}
		m := s.Mesh(cells)
		if m == nil || m.IsEmpty() {
			continue
		}
		m.Name = res.Name
		m.Material = res.Material
		meshes = append(meshes, m)
	}
	return meshes, nil
}
