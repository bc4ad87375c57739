package engine

import (
	"context"
	"fmt"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf2d"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
)

type OpKind int

const (
	OpAdd OpKind = iota
	OpSubtract
	OpSubtractAll
	OpClear
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpSubtractAll:
		return "subtract-all"
	case OpClear:
		return "clear"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one recorded edit. Resource is empty for subtract-all and clear.
type Op struct {
	Kind     OpKind
	Shape    *Node
	Resource string
}

// Node is a shape expression. Vectors keep the arity they were written
// with; the world a script is applied to decides whether they fit.
type Node struct {
	Kind     string
	Nums     map[string]float64
	Vecs     map[string][]float64
	Operands []*Node
}

func (n *Node) num(key string, def float64) float64 {
	if v, ok := n.Nums[key]; ok {
		return v
	}
	return def
}

func (n *Node) f32(key string, def float32) float32 {
	return float32(n.num(key, float64(def)))
}

func (n *Node) vec(key string, dims int) ([]float64, bool, error) {
	if _, ok := n.Nums[key]; ok {
		return nil, false, fmt.Errorf("%s: :%s must be a vec%d", n.Kind, key, dims)
	}
	v, ok := n.Vecs[key]
	if !ok {
		return nil, false, nil
	}
	if len(v) != dims {
		return nil, false, fmt.Errorf("%s: :%s is a vec%d, want vec%d", n.Kind, key, len(v), dims)
	}
	return v, true, nil
}

func (n *Node) vec3(key string) (mgl32.Vec3, error) {
	v, ok, err := n.vec(key, 3)
	if err != nil || !ok {
		return mgl32.Vec3{}, err
	}
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}, nil
}

func (n *Node) vec2(key string) (mgl32.Vec2, error) {
	v, ok, err := n.vec(key, 2)
	if err != nil || !ok {
		return mgl32.Vec2{}, err
	}
	return mgl32.Vec2{float32(v[0]), float32(v[1])}, nil
}

// Script is the list of edits recorded by one evaluation.
type Script struct {
	// Generation is the Evaluate call that produced the script.
	Generation uint64

	ops []Op
}

func (s *Script) Ops() []Op {
	return append([]Op(nil), s.ops...)
}

func (s *Script) Len() int { return len(s.ops) }

// Target is a world a script can be applied to.
type Target interface {
	plan(ops []Op, lib *sdf.Library) ([]step, error)
}

type step func(ctx context.Context) error

// Volume targets a volumetric world.
func Volume(w *sdf3d.World) Target {
	return target[sdf3d.Key, sdf3d.Shape]{w: w, build: build3D}
}

// Planar targets a planar world.
func Planar(w *sdf2d.World) Target {
	return target[sdf2d.Key, sdf2d.Shape]{w: w, build: build2D}
}

type target[K comparable, S any] struct {
	w     *world.World[K, S]
	build func(*Node) (S, error)
}

func (t target[K, S]) plan(ops []Op, lib *sdf.Library) ([]step, error) {
	steps := make([]step, 0, len(ops))
	for i, op := range ops {
		var res *sdf.Resource
		if op.Kind == OpAdd || op.Kind == OpSubtract {
			r, ok := lib.ByName(op.Resource)
			if !ok {
				return nil, fmt.Errorf("engine: edit %d (%s): unknown resource %q", i+1, op.Kind, op.Resource)
			}
			res = r
		}
		var shape S
		if op.Shape != nil {
			s, err := t.build(op.Shape)
			if err != nil {
				return nil, fmt.Errorf("engine: edit %d (%s): %w", i+1, op.Kind, err)
			}
			shape = s
		}
		switch op.Kind {
		case OpAdd:
			steps = append(steps, func(ctx context.Context) error { return t.w.Add(ctx, shape, res) })
		case OpSubtract:
			steps = append(steps, func(ctx context.Context) error { return t.w.Subtract(ctx, shape, res) })
		case OpSubtractAll:
			steps = append(steps, func(ctx context.Context) error { return t.w.SubtractAll(ctx, shape) })
		case OpClear:
			steps = append(steps, t.w.Clear)
		default:
			return nil, fmt.Errorf("engine: edit %d: unknown kind %v", i+1, op.Kind)
		}
	}
	return steps, nil
}

// Apply performs the script's edits on t in order. Every shape and resource
// is resolved before the first edit, so a script that does not fit the world
// leaves it untouched. An edit that fails stops the script; earlier edits
// stay applied.
func (s *Script) Apply(ctx context.Context, t Target, lib *sdf.Library) error {
	steps, err := t.plan(s.ops, lib)
	if err != nil {
		return err
	}
	for i, st := range steps {
		if err := st(ctx); err != nil {
			return fmt.Errorf("engine: edit %d (%s): %w", i+1, s.ops[i].Kind, err)
		}
	}
	return nil
}

func build3D(n *Node) (sdf3d.Shape, error) {
	operands := make([]sdf3d.Shape, len(n.Operands))
	for i, o := range n.Operands {
		s, err := build3D(o)
		if err != nil {
			return nil, err
		}
		operands[i] = s
	}

	switch n.Kind {
	case "sphere":
		c, err := n.vec3("center")
		if err != nil {
			return nil, err
		}
		return sdf3d.Sphere{Center: c, Radius: n.f32("radius", 0)}, nil

	case "box":
		lo, err := n.vec3("min")
		if err != nil {
			return nil, err
		}
		hi, err := n.vec3("max")
		if err != nil {
			return nil, err
		}
		return sdf3d.NewBox(lo, hi, n.f32("corner", 0)), nil

	case "capsule":
		a, err := n.vec3("a")
		if err != nil {
			return nil, err
		}
		b, err := n.vec3("b")
		if err != nil {
			return nil, err
		}
		return sdf3d.Capsule{A: a, B: b, Radius: n.f32("radius", 0)}, nil

	case "noise":
		s := sdf3d.NewNoise(int64(n.num("seed", 0)), n.f32("frequency", 0))
		s.Threshold = n.f32("threshold", s.Threshold)
		s.DistanceScale = n.f32("scale", s.DistanceScale)
		return s, nil

	case "cellular":
		cell, err := n.vec3("cell")
		if err != nil {
			return nil, err
		}
		return sdf3d.CellularNoise{Seed: int32(n.num("seed", 0)), CellSize: cell, DistanceOffset: n.f32("offset", 0)}, nil

	case "heightmap":
		return sdf3d.NewHeightmap(int64(n.num("seed", 0)), n.f32("frequency", 0), n.f32("amplitude", 0),
			n.f32("size", 0), int(n.num("resolution", 64))), nil

	case "translate":
		by, err := n.vec3("by")
		if err != nil {
			return nil, err
		}
		return sdf3d.Translate(operands[0], by), nil

	case "transform":
		pos, err := n.vec3("position")
		if err != nil {
			return nil, err
		}
		rot, err := n.vec3("rotate")
		if err != nil {
			return nil, err
		}
		xf := sdf3d.Transform{
			Position: pos,
			Rotation: mgl32.AnglesToQuat(mgl32.DegToRad(rot[0]), mgl32.DegToRad(rot[1]), mgl32.DegToRad(rot[2]), mgl32.XYZ),
			Scale:    n.f32("scale", 1),
		}
		return sdf3d.TransformShape(operands[0], xf), nil

	case "expand":
		return sdf3d.Expand(operands[0], n.f32("margin", 0)), nil
	case "intersect":
		return sdf3d.Intersect(operands[0], operands[1]), nil
	case "bias":
		return sdf3d.Bias(operands[0], operands[1], n.f32("scale", 1)), nil

	case "circle", "rect", "line":
		return nil, fmt.Errorf("%s is a planar shape", n.Kind)
	}
	return nil, fmt.Errorf("unknown shape %q", n.Kind)
}

func build2D(n *Node) (sdf2d.Shape, error) {
	operands := make([]sdf2d.Shape, len(n.Operands))
	for i, o := range n.Operands {
		s, err := build2D(o)
		if err != nil {
			return nil, err
		}
		operands[i] = s
	}

	switch n.Kind {
	case "circle":
		c, err := n.vec2("center")
		if err != nil {
			return nil, err
		}
		return sdf2d.Circle{Center: c, Radius: n.f32("radius", 0)}, nil

	case "rect":
		lo, err := n.vec2("min")
		if err != nil {
			return nil, err
		}
		hi, err := n.vec2("max")
		if err != nil {
			return nil, err
		}
		return sdf2d.NewRect(lo, hi, n.f32("corner", 0)), nil

	case "line":
		a, err := n.vec2("a")
		if err != nil {
			return nil, err
		}
		b, err := n.vec2("b")
		if err != nil {
			return nil, err
		}
		return sdf2d.Line{A: a, B: b, Radius: n.f32("radius", 0)}, nil

	case "translate":
		by, err := n.vec2("by")
		if err != nil {
			return nil, err
		}
		return sdf2d.Translate(operands[0], by), nil

	case "transform":
		pos, err := n.vec2("position")
		if err != nil {
			return nil, err
		}
		if _, ok := n.Vecs["rotate"]; ok {
			return nil, fmt.Errorf("transform: planar :rotate is an angle in degrees")
		}
		xf := sdf2d.Transform{
			Position: pos,
			Rotation: sdf2d.NewRotation(mgl32.DegToRad(n.f32("rotate", 0))),
			Scale:    n.f32("scale", 1),
		}
		return sdf2d.TransformShape(operands[0], xf), nil

	case "expand":
		return sdf2d.Expand(operands[0], n.f32("margin", 0)), nil
	case "intersect":
		return sdf2d.Intersect(operands[0], operands[1]), nil
	case "bias":
		return sdf2d.Bias(operands[0], operands[1], n.f32("scale", 1)), nil

	case "sphere", "box", "capsule", "noise", "cellular", "heightmap":
		return nil, fmt.Errorf("%s is a volumetric shape", n.Kind)
	}
	return nil, fmt.Errorf("unknown shape %q", n.Kind)
}
