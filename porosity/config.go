// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package porosity

import (
	"fmt"
	"math"
	"runtime"

	"rescribe.xyz/canopy/binarize"
)

// DefaultSubSamplingSize is the number of grid rows and columns used
// when none is set
const DefaultSubSamplingSize = 10

// MaxRejectionFraction is the largest share of each border which can
// be rejected; larger values are clamped to it
const MaxRejectionFraction = 0.3

// DefaultThresholds are the gap ratio thresholds analysed by default.
// The final 1.10 never classifies a cell as a gap, and gives a
// reference value comparable with the Can-EYE method.
var DefaultThresholds = []float64{0.40, 0.43, 0.45, 0.50, 0.55, 0.60, 0.65, 0.70, 0.75, 0.80, 0.85, 0.90, 0.95, 1.10}

// ConfigError is returned by NewConfig for settings which cannot be
// used, before any image is processed
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Invalid configuration for %s: %s", e.Field, e.Reason)
}

// Params are the raw analysis settings, which are checked and
// normalised by NewConfig
type Params struct {
	SubSamplingSize   int
	RejectionFraction float64
	RenderOverlay     bool
	Thresholds        []float64
	ToneMap           string
	// Workers is the number of thresholds classified concurrently
	// for each image; 0 means one per CPU
	Workers int
}

// Config is a validated, immutable analysis configuration, shared
// read-only by every image in a batch
type Config struct {
	subSamplingSize   int
	rejectionFraction float64
	rejection         int
	renderOverlay     bool
	thresholds        []float64
	toneMap           binarize.ToneMap
	workers           int
}

// NewConfig checks p and builds a Config from it.
// A SubSamplingSize of 0 means DefaultSubSamplingSize, and nil
// Thresholds means DefaultThresholds. RejectionFraction is clamped
// to [0, MaxRejectionFraction].
func NewConfig(p Params) (Config, error) {
	var c Config

	c.subSamplingSize = p.SubSamplingSize
	if c.subSamplingSize == 0 {
		c.subSamplingSize = DefaultSubSamplingSize
	}
	if c.subSamplingSize < 1 {
		return Config{}, &ConfigError{"subSamplingSize", fmt.Sprintf("must be at least 1, got %d", p.SubSamplingSize)}
	}

	if math.IsNaN(p.RejectionFraction) {
		return Config{}, &ConfigError{"rejectionFraction", "is not a number"}
	}
	c.rejectionFraction = math.Max(0, math.Min(MaxRejectionFraction, p.RejectionFraction))
	// at most 0.3 of each side is rejected, so some cells always remain
	c.rejection = int(float64(c.subSamplingSize) * c.rejectionFraction)

	thresholds := p.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds
	}
	if len(thresholds) == 0 {
		return Config{}, &ConfigError{"thresholds", "at least one threshold is needed"}
	}
	for _, t := range thresholds {
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
			return Config{}, &ConfigError{"thresholds", fmt.Sprintf("%v is not a positive ratio", t)}
		}
	}
	c.thresholds = append([]float64(nil), thresholds...)

	tm, err := binarize.ParseToneMap(p.ToneMap)
	if err != nil {
		return Config{}, &ConfigError{"toneMap", err.Error()}
	}
	c.toneMap = tm

	c.renderOverlay = p.RenderOverlay

	c.workers = p.Workers
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}

	return c, nil
}

// DefaultConfig returns the configuration with every default applied
func DefaultConfig() Config {
	c, err := NewConfig(Params{})
	if err != nil {
		panic(err)
	}
	return c
}

// SubSamplingSize is the number of grid rows and columns
func (c Config) SubSamplingSize() int { return c.subSamplingSize }

// RejectionFraction is the clamped share of each border rejected
func (c Config) RejectionFraction() float64 { return c.rejectionFraction }

// Rejection is the number of grid rows and columns rejected from
// each side
func (c Config) Rejection() int { return c.rejection }

// RenderOverlay reports whether per-cell decisions should be kept
// for rendering
func (c Config) RenderOverlay() bool { return c.renderOverlay }

// ToneMap is the tone map used during binarization
func (c Config) ToneMap() binarize.ToneMap { return c.toneMap }

// Workers is the number of thresholds classified concurrently
func (c Config) Workers() int { return c.workers }

// Thresholds returns a copy of the thresholds, in analysis order
func (c Config) Thresholds() []float64 {
	return append([]float64(nil), c.thresholds...)
}

// BinarizeOptions are the binarization options for the configuration
func (c Config) BinarizeOptions() binarize.Options {
	return binarize.Options{Sigma: binarize.DefaultSigma, ToneMap: c.toneMap}
}
