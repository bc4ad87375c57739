package sdf2d

import (
	"context"
	"sync"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"
)

const typeNoise = "Noise"

var noiseGenerators sync.Map // int64 -> opensimplex.Noise32

func simplex(seed int64) opensimplex.Noise32 {
	if g, ok := noiseGenerators.Load(seed); ok {
		return g.(opensimplex.Noise32)
	}
	g, _ := noiseGenerators.LoadOrStore(seed, opensimplex.NewNormalized32(seed))
	return g.(opensimplex.Noise32)
}

// Noise thresholds a planar simplex noise field. Without bounds it is
// mostly useful as the bias of another shape.
type Noise struct {
	Seed          int64
	Frequency     float32
	Threshold     float32
	DistanceScale float32
}

// NewNoise returns a noise shape with threshold 0.5 and distance scale 256.
func NewNoise(seed int64, frequency float32) Noise {
	return Noise{Seed: seed, Frequency: frequency, Threshold: 0.5, DistanceScale: 256}
}

func (s Noise) Bounds() (BBox, bool) { return BBox{}, false }

func (s Noise) Distance(p mgl32.Vec2) float32 {
	q := p.Mul(s.Frequency)
	return (simplex(s.Seed).Eval2(q[0], q[1]) - s.Threshold) * s.DistanceScale
}

func (s Noise) Sample(ctx context.Context, xf Transform, out []float32, size Size2) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Noise) TypeName() string { return typeNoise }

func (s Noise) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Int64(s.Seed)
	w.Float32(s.Frequency)
	w.Float32(s.Threshold)
	w.Float32(s.DistanceScale)
	return w.Err()
}

func readNoise(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Noise{Seed: r.Int64(), Frequency: r.Float32(), Threshold: r.Float32(), DistanceScale: r.Float32()}
	return s, r.Err()
}
