package rgbd

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/rgbdmesh/mesh"
)

// Defaults for a Config.
const (
	DefaultStride       = 1
	DefaultEdgeCull     = 4000.
	DefaultFarClip      = 6000.
	DefaultTexScale     = 1.
	DefaultJitter       = 0.
	DefaultSensorWidth  = 640
	DefaultSensorHeight = 480
	maxDepthDistance    = 65535.
)

// Config holds the reconstruction tunables. A Reconstructor copies its Config at the start of
// every update, so changes only apply to the next update.
type Config struct {
	// Stride is the pixel step of the sampled grid, clamped to [1, 8].
	Stride int `json:"stride" yaml:"stride"`
	// XShift and YShift offset the pixel position before unprojection.
	XShift float64 `json:"x_shift" yaml:"x_shift"`
	YShift float64 `json:"y_shift" yaml:"y_shift"`
	// XTexScale and YTexScale scale the projected color pixel before it becomes a texture coordinate.
	XTexScale float64 `json:"x_tex_scale" yaml:"x_tex_scale"`
	YTexScale float64 `json:"y_tex_scale" yaml:"y_tex_scale"`
	// EdgeCull is the largest depth difference a triangle may span, exclusive.
	EdgeCull float64 `json:"edge_cull" yaml:"edge_cull"`
	// FarClip is the depth at and beyond which samples are dropped.
	FarClip float64 `json:"far_clip" yaml:"far_clip"`
	// Jitter is the amplitude of the uniform noise added to every valid depth sample.
	Jitter float64 `json:"jitter" yaml:"jitter"`
	// CalculateNormals enables per-vertex normals.
	CalculateNormals bool `json:"calculate_normals" yaml:"calculate_normals"`
	// Mirror flips the unprojected x axis and the texture coordinates horizontally.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Stride:    DefaultStride,
		XTexScale: DefaultTexScale,
		YTexScale: DefaultTexScale,
		EdgeCull:  DefaultEdgeCull,
		FarClip:   DefaultFarClip,
		Jitter:    DefaultJitter,
	}
}

// Normalized returns a copy of the config with the stride clamped to its allowed range.
func (c Config) Normalized() Config {
	c.Stride = mesh.ClampStride(c.Stride)
	return c
}

// Validate returns an error describing an unusable value. The stride is never an error.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"x_shift":     c.XShift,
		"y_shift":     c.YShift,
		"x_tex_scale": c.XTexScale,
		"y_tex_scale": c.YTexScale,
		"edge_cull":   c.EdgeCull,
		"far_clip":    c.FarClip,
		"jitter":      c.Jitter,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("%s must be finite, got %v", name, v)
		}
	}
	if c.EdgeCull <= 0 {
		return errors.Errorf("edge_cull must be positive, got %v", c.EdgeCull)
	}
	if c.FarClip <= 0 || c.FarClip > maxDepthDistance+1 {
		return errors.Errorf("far_clip must be in (0, %v], got %v", maxDepthDistance+1, c.FarClip)
	}
	if c.Jitter < 0 {
		return errors.Errorf("jitter must not be negative, got %v", c.Jitter)
	}
	return nil
}
