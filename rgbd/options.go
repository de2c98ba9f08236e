package rgbd

import (
	"math/rand"

	"github.com/benbjohnson/clock"
)

// options configures a Reconstructor.
type options struct {
	width  int
	height int
	clock  clock.Clock
	source rand.Source
	config *Config
}

// Option configures how a Reconstructor is set up.
type Option interface {
	apply(*options)
}

// funcOption wraps a function that modifies options into an
// implementation of the Option interface.
type funcOption struct {
	f func(*options)
}

func (fdo *funcOption) apply(do *options) {
	fdo.f(do)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{
		f: f,
	}
}

// WithSensorSize sets the depth sensor resolution. Raw depth samples passed to SetDepthPixels
// and calibrations passed to SetCalibration must match it. Defaults to 640x480.
func WithSensorSize(width, height int) Option {
	return newFuncOption(func(o *options) {
		o.width = width
		o.height = height
	})
}

// WithClock sets the clock used to time the reconstruction phases.
func WithClock(clk clock.Clock) Option {
	return newFuncOption(func(o *options) {
		o.clock = clk
	})
}

// WithRandSource sets the source of depth jitter.
func WithRandSource(source rand.Source) Option {
	return newFuncOption(func(o *options) {
		o.source = source
	})
}

// WithConfig sets the initial reconstruction config.
func WithConfig(cfg Config) Option {
	return newFuncOption(func(o *options) {
		o.config = &cfg
	})
}
