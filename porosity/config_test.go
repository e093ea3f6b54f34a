// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package porosity

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescribe.xyz/canopy/binarize"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, 10, c.SubSamplingSize())
	assert.Equal(t, 0.0, c.RejectionFraction())
	assert.Equal(t, 0, c.Rejection())
	assert.False(t, c.RenderOverlay())
	assert.Equal(t, DefaultThresholds, c.Thresholds())
	assert.Equal(t, binarize.Ocean, c.ToneMap())
	assert.Greater(t, c.Workers(), 0)
}

func TestConfigRejection(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		fraction  float64
		expected  float64
		rejection int
	}{
		{"none", 10, 0, 0, 0},
		{"tenth", 10, 0.1, 0.1, 1},
		{"fifth of 15", 15, 0.2, 0.2, 3},
		{"rounds down", 5, 0.1, 0.1, 0},
		{"clamped high", 10, 0.5, 0.3, 3},
		{"clamped low", 10, -0.2, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := NewConfig(Params{SubSamplingSize: c.size, RejectionFraction: c.fraction})
			require.NoError(t, err)
			assert.Equal(t, c.expected, cfg.RejectionFraction())
			assert.Equal(t, c.rejection, cfg.Rejection())
		})
	}
}

func TestConfigRejectionLeavesCells(t *testing.T) {
	for size := 1; size <= 200; size++ {
		cfg, err := NewConfig(Params{SubSamplingSize: size, RejectionFraction: 1})
		require.NoError(t, err)
		require.Less(t, 2*cfg.Rejection(), size, "size %d", size)
		_, _, err = BuildGrid(size*4, size*4, size, cfg.Rejection())
		assert.NotErrorIs(t, err, ErrDegenerateGrid, "size %d", size)
	}
}

func TestConfigErrors(t *testing.T) {
	cases := []struct {
		name  string
		p     Params
		field string
	}{
		{"negative size", Params{SubSamplingSize: -3}, "subSamplingSize"},
		{"empty thresholds", Params{Thresholds: []float64{}}, "thresholds"},
		{"zero threshold", Params{Thresholds: []float64{0.4, 0}}, "thresholds"},
		{"negative threshold", Params{Thresholds: []float64{-0.5}}, "thresholds"},
		{"nan threshold", Params{Thresholds: []float64{math.NaN()}}, "thresholds"},
		{"nan rejection", Params{RejectionFraction: math.NaN()}, "rejectionFraction"},
		{"tone map", Params{ToneMap: "rainbow"}, "toneMap"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewConfig(c.p)
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr), "expected a ConfigError, got %v", err)
			assert.Equal(t, c.field, cerr.Field)
		})
	}
}

func TestConfigImmutable(t *testing.T) {
	thresholds := []float64{0.5, 0.6}
	cfg, err := NewConfig(Params{Thresholds: thresholds, ToneMap: "none"})
	require.NoError(t, err)
	thresholds[0] = 0.9
	assert.Equal(t, []float64{0.5, 0.6}, cfg.Thresholds())

	got := cfg.Thresholds()
	got[1] = 0.1
	assert.Equal(t, []float64{0.5, 0.6}, cfg.Thresholds())
	assert.Equal(t, binarize.Identity, cfg.ToneMap())
}
