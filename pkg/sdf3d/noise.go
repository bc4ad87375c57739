package sdf3d

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"
	"golang.org/x/sync/errgroup"
)

const (
	typeNoise         = "Noise"
	typeCellularNoise = "CellularNoise"
	typeHeightmap     = "Heightmap"
)

var noiseGenerators sync.Map // int64 -> opensimplex.Noise32

// simplex returns the shared normalized generator for seed. Values are in
// [0, 1).
func simplex(seed int64) opensimplex.Noise32 {
	if g, ok := noiseGenerators.Load(seed); ok {
		return g.(opensimplex.Noise32)
	}
	g, _ := noiseGenerators.LoadOrStore(seed, opensimplex.NewNormalized32(seed))
	return g.(opensimplex.Noise32)
}

// Noise thresholds a 3D simplex noise field. It has no bounds, so it can
// only be added to finite worlds or used as a bias.
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

func (s Noise) Distance(p mgl32.Vec3) float32 {
	q := p.Mul(s.Frequency)
	return (simplex(s.Seed).Eval3(q[0], q[1], q[2]) - s.Threshold) * s.DistanceScale
}

func (s Noise) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
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

// CellularNoise is the distance to the nearest of a set of pseudo-random
// feature points, one per cell, minus DistanceOffset. Negative offsets
// never produce a surface.
type CellularNoise struct {
	Seed           int32
	CellSize       mgl32.Vec3
	DistanceOffset float32
}

func (s CellularNoise) Bounds() (BBox, bool) { return BBox{}, false }

func (s CellularNoise) Distance(p mgl32.Vec3) float32 {
	cx := int32(math32.Floor(p[0] / s.CellSize[0]))
	cy := int32(math32.Floor(p[1] / s.CellSize[1]))
	cz := int32(math32.Floor(p[2] / s.CellSize[2]))
	minSq := math32.Inf(1)
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				f := s.feature(cx+dx, cy+dy, cz+dz)
				d := p.Sub(f)
				minSq = math32.Min(minSq, d.Dot(d))
			}
		}
	}
	return math32.Sqrt(minSq) - s.DistanceOffset
}

// feature returns the world position of the feature point of a cell.
func (s CellularNoise) feature(x, y, z int32) mgl32.Vec3 {
	seed := uint32(s.Seed)
	hx := hash4(seed, uint32(x), uint32(y), uint32(z))
	hy := hash4(uint32(z), seed, uint32(x), uint32(y))
	hz := hash4(uint32(y), uint32(z), seed, uint32(x))
	return mgl32.Vec3{
		(float32(x) + float32(hx&0xffff)/65536) * s.CellSize[0],
		(float32(y) + float32(hy&0xffff)/65536) * s.CellSize[1],
		(float32(z) + float32(hz&0xffff)/65536) * s.CellSize[2],
	}
}

// hash4 mixes four words with the murmur3 finalizer.
func hash4(a, b, c, d uint32) uint32 {
	h := uint32(0x9e3779b9)
	for _, k := range [4]uint32{a, b, c, d} {
		k *= 0xcc9e2d51
		k = k<<15 | k>>17
		k *= 0x1b873593
		h ^= k
		h = h<<13 | h>>19
		h = h*5 + 0xe6546b64
	}
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func (s CellularNoise) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (CellularNoise) TypeName() string { return typeCellularNoise }

func (s CellularNoise) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Int32(s.Seed)
	w.Vec3(s.CellSize)
	w.Float32(s.DistanceOffset)
	return w.Err()
}

func readCellularNoise(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := CellularNoise{Seed: r.Int32(), CellSize: r.Vec3(), DistanceOffset: r.Float32()}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !(s.CellSize[0] > 0 && s.CellSize[1] > 0 && s.CellSize[2] > 0) {
		return nil, fmt.Errorf("sdf3d: cellular noise cell size %v", s.CellSize)
	}
	return s, nil
}

// Heightmap is terrain whose surface height at (x, y) is a 2D simplex noise
// value scaled by Amplitude. Solid lies below the surface. Bounds cover
// [0, Size] on X and Y and [0, MaxHeight] on Z.
type Heightmap struct {
	Seed       int64
	Frequency  float32
	Amplitude  float32
	Size       float32
	Resolution int
	MaxHeight  float32
}

// NewHeightmap returns a heightmap whose MaxHeight is the highest of
// resolution x resolution samples across its extent.
func NewHeightmap(seed int64, frequency, amplitude, size float32, resolution int) Heightmap {
	h := Heightmap{Seed: seed, Frequency: frequency, Amplitude: amplitude, Size: size, Resolution: max(resolution, 2)}
	step := size / float32(h.Resolution-1)
	for x := 0; x < h.Resolution; x++ {
		for y := 0; y < h.Resolution; y++ {
			h.MaxHeight = math32.Max(h.MaxHeight, h.Height(float32(x)*step, float32(y)*step))
		}
	}
	return h
}

// Height returns the surface height at (x, y).
func (s Heightmap) Height(x, y float32) float32 {
	return simplex(s.Seed).Eval2(x*s.Frequency, y*s.Frequency) * s.Amplitude
}

func (s Heightmap) Bounds() (BBox, bool) {
	return BBox{Max: mgl32.Vec3{s.Size, s.Size, s.MaxHeight}}, true
}

// Distance divides the vertical distance by the local slope so steep
// terrain does not overestimate.
func (s Heightmap) Distance(p mgl32.Vec3) float32 {
	const eps = 0.5
	h := s.Height(p[0], p[1])
	gx := (s.Height(p[0]+eps, p[1]) - s.Height(p[0]-eps, p[1])) / (2 * eps)
	gy := (s.Height(p[0], p[1]+eps) - s.Height(p[0], p[1]-eps)) / (2 * eps)
	return (p[2] - h) / math32.Sqrt(1+gx*gx+gy*gy)
}

// Sample evaluates heights once per column. Grids that are not upright fall
// back to point sampling.
func (s Heightmap) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	if !xf.IsUpright() {
		return sampleEach(ctx, xf, out, size, s.Distance)
	}
	if err := checkSampleSize(out, size); err != nil {
		return err
	}
	scale := xf.Scale
	stride := size.X + 2
	hp := sdf.GetFloats(stride * (size.Y + 2))
	defer sdf.PutFloats(hp)
	heights := *hp

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < size.Y+2; y++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for x := 0; x < stride; x++ {
				wp := xf.PointToWorld(mgl32.Vec3{float32(x - 1), float32(y - 1), 0})
				heights[x+y*stride] = (s.Height(wp[0], wp[1]) - wp[2]) / scale
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < size.Y; y++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for x := 0; x < size.X; x++ {
				hi := x + 1 + (y+1)*stride
				c := heights[hi]
				xn, xp := heights[hi-1], heights[hi+1]
				yn, yp := heights[hi-stride], heights[hi+stride]

				// Steepest rise and fall towards a neighbour, in cells.
				up := math32.Max(0, math32.Max(math32.Max(xn, xp), math32.Max(yn, yp))-c)
				down := math32.Min(0, math32.Min(math32.Min(xn, xp), math32.Min(yn, yp))-c)
				above := 1 / math32.Sqrt(1+up*up)
				below := 1 / math32.Sqrt(1+down*down)

				for z := 0; z < size.Z; z++ {
					fz := float32(z)
					inc := below
					if fz > c {
						inc = above
					}
					out[size.Index(x, y, z)] = (fz - c) * scale * inc
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (Heightmap) TypeName() string { return typeHeightmap }

func (s Heightmap) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Int64(s.Seed)
	w.Float32(s.Frequency)
	w.Float32(s.Amplitude)
	w.Float32(s.Size)
	w.Int32(int32(s.Resolution))
	w.Float32(s.MaxHeight)
	return w.Err()
}

func readHeightmap(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Heightmap{
		Seed:       r.Int64(),
		Frequency:  r.Float32(),
		Amplitude:  r.Float32(),
		Size:       r.Float32(),
		Resolution: int(r.Int32()),
		MaxHeight:  r.Float32(),
	}
	return s, r.Err()
}
