package engine

import (
	"fmt"
	"sort"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
)

// preprocessSource rewrites script syntax zygomys does not accept:
//
//   - ; comments become // comments
//   - :keyword becomes the string "__kw_keyword"
//   - hyphens inside identifiers become underscores (subtract-all)
//
// String literals are copied unchanged.
func preprocessSource(source string) string {
	var out strings.Builder
	out.Grow(len(source) + len(source)/4)
	b := []byte(source)
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '"' || c == '`':
			j := i + 1
			for j < len(b) && b[j] != c {
				if c == '"' && b[j] == '\\' && j+1 < len(b) {
					j++
				}
				j++
			}
			if j < len(b) {
				j++
			}
			out.Write(b[i:j])
			i = j

		case c == ';':
			for i < len(b) && b[i] == ';' {
				i++
			}
			out.WriteString("//")
			j := i
			for j < len(b) && b[j] != '\n' {
				j++
			}
			out.Write(b[i:j])
			i = j

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out.WriteString(":=")
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKeywordChar(b[j]) {
				j++
			}
			out.WriteString(`"` + kwPrefix)
			out.Write(b[i+1 : j])
			out.WriteByte('"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out.WriteByte('_')
			i++

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isKeywordChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

// sexpVec carries a vec2 or vec3 literal between builtins.
type sexpVec struct {
	v []float64
}

func (v *sexpVec) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(v.v))
	for i, f := range v.v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return fmt.Sprintf("(vec%d %s)", len(v.v), strings.Join(parts, " "))
}
func (v *sexpVec) Type() *zygo.RegisteredType { return nil }

// sexpShape carries a shape expression between builtins.
type sexpShape struct {
	node *Node
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s ...)", s.node.Kind)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// kwPrefix marks keywords rewritten by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toShape(s zygo.Sexp) (*Node, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh.node, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// shapeSpec lists the keywords and operands a shape builtin accepts.
type shapeSpec struct {
	required []string
	optional []string
	operands int
}

var shapeSpecs = map[string]shapeSpec{
	// Volumetric.
	"sphere":    {required: []string{"center", "radius"}},
	"box":       {required: []string{"min", "max"}, optional: []string{"corner"}},
	"capsule":   {required: []string{"a", "b", "radius"}},
	"noise":     {required: []string{"seed", "frequency"}, optional: []string{"threshold", "scale"}},
	"cellular":  {required: []string{"seed", "cell"}, optional: []string{"offset"}},
	"heightmap": {required: []string{"seed", "frequency", "amplitude", "size"}, optional: []string{"resolution"}},

	// Planar.
	"circle": {required: []string{"center", "radius"}},
	"rect":   {required: []string{"min", "max"}, optional: []string{"corner"}},
	"line":   {required: []string{"a", "b", "radius"}},

	"translate": {required: []string{"by"}, operands: 1},
	"transform": {optional: []string{"position", "rotate", "scale"}, operands: 1},
	"expand":    {required: []string{"margin"}, operands: 1},
	"intersect": {operands: 2},
	"bias":      {optional: []string{"scale"}, operands: 2},
}

func (spec shapeSpec) parse(kind string, args []zygo.Sexp) (*Node, error) {
	pa := parseArgs(args)
	n := &Node{Kind: kind}
	if len(pa.positional) != spec.operands {
		return nil, fmt.Errorf("%s: expected %d shape operands, got %d", kind, spec.operands, len(pa.positional))
	}
	for i, p := range pa.positional {
		child, err := toShape(p)
		if err != nil {
			return nil, fmt.Errorf("%s: operand %d: %w", kind, i+1, err)
		}
		n.Operands = append(n.Operands, child)
	}

	allowed := make(map[string]bool, len(spec.required)+len(spec.optional))
	for _, k := range spec.required {
		allowed[k] = true
		if _, ok := pa.kw[k]; !ok {
			return nil, fmt.Errorf("%s: missing :%s", kind, k)
		}
	}
	for _, k := range spec.optional {
		allowed[k] = true
	}

	keys := make([]string, 0, len(pa.kw))
	for k := range pa.kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !allowed[k] {
			return nil, fmt.Errorf("%s: unknown keyword :%s", kind, k)
		}
		switch v := pa.kw[k].(type) {
		case *sexpVec:
			if n.Vecs == nil {
				n.Vecs = make(map[string][]float64)
			}
			n.Vecs[k] = v.v
		default:
			f, err := toFloat64(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", kind, k, err)
			}
			if n.Nums == nil {
				n.Nums = make(map[string]float64)
			}
			n.Nums[k] = f
		}
	}
	return n, nil
}

// registerBuiltins installs the script builtins. Edits are appended to s.
// Source must go through preprocessSource first so keywords are recognized.
func registerBuiltins(env *zygo.Zlisp, s *Script) {
	vec := func(dims int) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != dims {
				return zygo.SexpNull, fmt.Errorf("%s requires exactly %d arguments, got %d", name, dims, len(args))
			}
			v := make([]float64, dims)
			for i, a := range args {
				f, err := toFloat64(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: component %d: %w", name, i, err)
				}
				v[i] = f
			}
			return &sexpVec{v: v}, nil
		}
	}
	env.AddFunction("vec2", vec(2))
	env.AddFunction("vec3", vec(3))

	for kind, spec := range shapeSpecs {
		env.AddFunction(kind, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			n, err := spec.parse(kind, args)
			if err != nil {
				return zygo.SexpNull, err
			}
			return &sexpShape{node: n}, nil
		})
	}

	// (add shape :resource "rock") and (subtract shape :resource "rock")
	edit := func(kind OpKind) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires one shape", kind)
			}
			n, err := toShape(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
			}
			v, ok := pa.kw["resource"]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("%s: missing :resource", kind)
			}
			res, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: resource: %w", kind, err)
			}
			s.ops = append(s.ops, Op{Kind: kind, Shape: n, Resource: res})
			return pa.positional[0], nil
		}
	}
	env.AddFunction("add", edit(OpAdd))
	env.AddFunction("subtract", edit(OpSubtract))

	// (subtract-all shape)
	env.AddFunction("subtract_all", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("subtract-all requires one shape")
		}
		n, err := toShape(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("subtract-all: %w", err)
		}
		s.ops = append(s.ops, Op{Kind: OpSubtractAll, Shape: n})
		return args[0], nil
	})

	// (clear)
	env.AddFunction("clear", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 0 {
			return zygo.SexpNull, fmt.Errorf("clear takes no arguments")
		}
		s.ops = append(s.ops, Op{Kind: OpClear})
		return zygo.SexpNull, nil
	})
}
