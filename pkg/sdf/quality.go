package sdf

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Margin is the number of extra samples stored on each side of a chunk so
// that normals and interpolation are continuous across chunk seams.
const Margin = 1

// Quality describes how one volume is discretized.
type Quality struct {
	ChunkResolution int     `json:"chunkResolution" yaml:"chunkResolution"`
	ChunkSize       float32 `json:"chunkSize" yaml:"chunkSize"`
	MaxDistance     float32 `json:"maxDistance" yaml:"maxDistance"`
}

// NewQuality returns a validated quality.
func NewQuality(resolution int, chunkSize, maxDistance float32) (Quality, error) {
	q := Quality{ChunkResolution: resolution, ChunkSize: chunkSize, MaxDistance: maxDistance}
	if err := q.Validate(); err != nil {
		return Quality{}, err
	}
	return q, nil
}

// Validate reports whether every parameter is positive.
func (q Quality) Validate() error {
	if q.ChunkResolution <= 0 {
		return fmt.Errorf("%w: chunk resolution %d", ErrInvalidQuality, q.ChunkResolution)
	}
	if !(q.ChunkSize > 0) {
		return fmt.Errorf("%w: chunk size %g", ErrInvalidQuality, q.ChunkSize)
	}
	if !(q.MaxDistance > 0) {
		return fmt.Errorf("%w: max distance %g", ErrInvalidQuality, q.MaxDistance)
	}
	return nil
}

// UnitSize is the world-space distance between two adjacent samples.
func (q Quality) UnitSize() float32 {
	return q.ChunkSize / float32(q.ChunkResolution)
}

// InvUnitSize is 1 / UnitSize.
func (q Quality) InvUnitSize() float32 {
	return float32(q.ChunkResolution) / q.ChunkSize
}

// ArraySize is the number of samples along one axis of a chunk array,
// margins included.
func (q Quality) ArraySize() int {
	return q.ChunkResolution + 2*Margin + 1
}

// Encode quantizes a distance for this quality.
func (q Quality) Encode(d float32) byte {
	return Encode(d, q.MaxDistance)
}

// Decode restores an approximate distance for this quality.
func (q Quality) Decode(b byte) float32 {
	return Decode(b, q.MaxDistance)
}

func (q Quality) String() string {
	return fmt.Sprintf("res=%d size=%g maxDist=%g", q.ChunkResolution, q.ChunkSize, q.MaxDistance)
}

// Encode maps d to a byte: -maxDistance becomes 0, +maxDistance becomes 255
// and values outside that range saturate. The mapping rounds to the nearest
// step, so a round trip through Decode is accurate to maxDistance/255.
//
// A small maxDistance gives finer steps near the surface but clips steep
// edits sooner, since every sample further than maxDistance from a surface
// reads as the same value.
func Encode(d, maxDistance float32) byte {
	v := d / maxDistance
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	} else if v != v {
		v = 1
	}
	return byte(math32.Round(255 * (v*0.5 + 0.5)))
}

// Decode is the inverse of Encode.
func Decode(b byte, maxDistance float32) float32 {
	return (float32(b)/255*2 - 1) * maxDistance
}

// QualityLevel selects one of the preset qualities, or Custom.
type QualityLevel int

const (
	QualityLow QualityLevel = iota
	QualityMedium
	QualityHigh
	QualityExtreme
	QualityCustom
)

var qualityLevelNames = [...]string{"low", "medium", "high", "extreme", "custom"}

func (l QualityLevel) String() string {
	if l < 0 || int(l) >= len(qualityLevelNames) {
		return fmt.Sprintf("QualityLevel(%d)", int(l))
	}
	return qualityLevelNames[l]
}

// ParseQualityLevel accepts the lower-case names printed by String.
func ParseQualityLevel(s string) (QualityLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range qualityLevelNames {
		if name == s {
			return QualityLevel(i), nil
		}
	}
	return 0, fmt.Errorf("sdf: unknown quality level %q", s)
}

// Presets maps every non-custom level to a fixed quality.
type Presets [QualityCustom]Quality

// Presets3D are the quality presets of volumetric layers.
var Presets3D = Presets{
	QualityLow:     {ChunkResolution: 8, ChunkSize: 256, MaxDistance: 32},
	QualityMedium:  {ChunkResolution: 16, ChunkSize: 256, MaxDistance: 64},
	QualityHigh:    {ChunkResolution: 32, ChunkSize: 256, MaxDistance: 96},
	QualityExtreme: {ChunkResolution: 16, ChunkSize: 128, MaxDistance: 32},
}

// Presets2D are the quality presets of extruded planar layers.
var Presets2D = Presets{
	QualityLow:     {ChunkResolution: 8, ChunkSize: 256, MaxDistance: 48},
	QualityMedium:  {ChunkResolution: 16, ChunkSize: 256, MaxDistance: 24},
	QualityHigh:    {ChunkResolution: 32, ChunkSize: 256, MaxDistance: 12},
	QualityExtreme: {ChunkResolution: 32, ChunkSize: 128, MaxDistance: 6},
}

// Resolve returns the preset for level, or custom when level is QualityCustom.
func (p *Presets) Resolve(level QualityLevel, custom Quality) Quality {
	if level < 0 || level >= QualityCustom {
		return custom
	}
	return p[level]
}

// TextureParams returns the shader parameters for sampling a chunk texture
// of quality q: (margin, margin, scale*size, 2*MaxDistance). margin skips the
// border samples, scale maps world units to chunk units and size maps chunk
// units to the texels between the margins.
func TextureParams(q Quality) mgl32.Vec4 {
	arraySize := float32(q.ArraySize())
	margin := (Margin + 0.5) / arraySize
	scale := 1 / q.ChunkSize
	size := 1 - (2*Margin+1)/arraySize
	return mgl32.Vec4{margin, margin, scale * size, q.MaxDistance * 2}
}
