// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package porosity

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescribe.xyz/canopy/binarize"
	"rescribe.xyz/canopy/integralimg"
)

// StrLog is a simple logger that saves to a string,
// so it can be printed out only when needed.
type StrLog struct {
	log string
}

func (t *StrLog) Write(p []byte) (n int, err error) {
	t.log += string(p)
	return len(p), nil
}

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// fill sets the first n pixels (row by row) of r to foreground
func fill(img *image.Gray, r image.Rectangle, n int) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if n == 0 {
				return
			}
			img.SetGray(x, y, color.Gray{binarize.Foreground})
			n--
		}
	}
}

// speckled makes a binary image whose foreground density varies
// smoothly across it, so different cells cross different thresholds
func speckled(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			density := (x + y) * 100 / (w + h)
			if (x*7+y*13)%100 < density {
				img.SetGray(x, y, color.Gray{binarize.Foreground})
			}
		}
	}
	return img
}

func TestGridTiling(t *testing.T) {
	cases := []struct {
		w, h, size int
	}{
		{100, 100, 10},
		{101, 97, 10},
		{640, 480, 15},
		{37, 23, 5},
		{10, 10, 1},
		{7, 9, 7},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%dx%d_%d", c.w, c.h, c.size), func(t *testing.T) {
			grid, aoi, err := BuildGrid(c.w, c.h, c.size, 0)
			require.NoError(t, err)
			require.Len(t, grid, c.size*c.size)
			assert.Equal(t, image.Rect(0, 0, c.w, c.h), aoi)

			total := 0
			for i, cell := range grid {
				assert.True(t, cell.In(aoi), "cell %v outside aoi %v", cell, aoi)
				total += Area(cell)
				for _, other := range grid[i+1:] {
					if cell.Overlaps(other) {
						t.Fatalf("Cells %v and %v overlap", cell, other)
					}
				}
			}
			assert.Equal(t, Area(aoi), total)
		})
	}
}

func TestGridOrder(t *testing.T) {
	grid, _, err := BuildGrid(30, 30, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), grid[0])
	assert.Equal(t, image.Rect(0, 10, 10, 20), grid[1])
	assert.Equal(t, image.Rect(10, 0, 20, 10), grid[3])
}

func TestGridRejection(t *testing.T) {
	grid, aoi, err := BuildGrid(105, 105, 10, 1)
	require.NoError(t, err)
	assert.Len(t, grid, 64)
	assert.Equal(t, image.Rect(10, 10, 90, 90), aoi)
	// the strip between the last cell and the image edge is left out
	// along with the rejected border
	assert.Equal(t, image.Rect(80, 80, 90, 90), grid[len(grid)-1])
}

func TestGridDegenerate(t *testing.T) {
	cases := []struct {
		name                  string
		w, h, size, rejection int
	}{
		{"rejection fills grid", 100, 100, 4, 2},
		{"rejection past grid", 100, 100, 4, 3},
		{"image narrower than grid", 5, 100, 10, 0},
		{"image shorter than grid", 100, 5, 10, 0},
		{"no grid", 100, 100, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			grid, aoi, err := BuildGrid(c.w, c.h, c.size, c.rejection)
			assert.ErrorIs(t, err, ErrDegenerateGrid)
			assert.Empty(t, grid)
			assert.True(t, aoi.Empty())
		})
	}
}

func TestClassifyScenario(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	sixty := image.Rect(0, 0, 10, 10)
	fifty := image.Rect(10, 0, 20, 10)
	fill(img, sixty, 60)
	fill(img, fifty, 50)

	grid, _, err := BuildGrid(100, 100, 10, 0)
	require.NoError(t, err)
	require.Len(t, grid, 100)
	for _, cell := range grid {
		require.Equal(t, 100, Area(cell))
	}

	c := Classify(integralimg.ToNonZeroIntegralImg(img), grid, 0.5, true)
	assert.Equal(t, 60, c.LargeGap)
	require.Len(t, c.Decisions, 100)

	found := 0
	for _, d := range c.Decisions {
		switch d.Cell {
		case sixty:
			found++
			assert.Equal(t, 60, d.Foreground)
			assert.True(t, d.Gap, "cell with ratio 0.6 should be a gap at 0.5")
		case fifty:
			found++
			assert.Equal(t, 50, d.Foreground)
			assert.False(t, d.Gap, "cell with ratio exactly 0.5 should not be a gap")
		default:
			assert.False(t, d.Gap)
		}
	}
	assert.Equal(t, 2, found)

	without := Classify(integralimg.ToNonZeroIntegralImg(img), grid, 0.5, false)
	assert.Equal(t, c.LargeGap, without.LargeGap)
	assert.Nil(t, without.Decisions)
}

func TestThresholdMonotonic(t *testing.T) {
	img := speckled(200, 150)
	grid, aoi, err := BuildGrid(200, 150, 10, 0)
	require.NoError(t, err)
	counts := integralimg.ToNonZeroIntegralImg(img)
	leaf := Area(aoi) - int(counts.Sum(aoi))

	results, _ := Aggregate(counts, leaf, grid, aoi, DefaultThresholds, 4, false)
	require.Len(t, results, len(DefaultThresholds))
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].CrownPixels, results[i-1].CrownPixels,
			"crown at %.2f smaller than at %.2f", results[i].Threshold, results[i-1].Threshold)
	}
	// some cells should change class across the thresholds
	assert.Less(t, results[0].CrownPixels, results[len(results)-1].CrownPixels)
	assert.Equal(t, Area(aoi), results[len(results)-1].CrownPixels)
}

func TestAggregateOrder(t *testing.T) {
	img := speckled(120, 120)
	grid, aoi, err := BuildGrid(120, 120, 12, 0)
	require.NoError(t, err)
	counts := integralimg.ToNonZeroIntegralImg(img)
	leaf := Area(aoi) - int(counts.Sum(aoi))

	thresholds := []float64{0.9, 0.4, 1.1, 0.6, 0.5}
	results, classes := Aggregate(counts, leaf, grid, aoi, thresholds, 3, true)
	require.Len(t, results, len(thresholds))
	require.Len(t, classes, len(thresholds))
	for i, th := range thresholds {
		assert.Equal(t, th, results[i].Threshold)
		assert.Equal(t, th, classes[i].Threshold)
		single := Classify(counts, grid, th, false)
		assert.Equal(t, Area(aoi)-single.LargeGap, results[i].CrownPixels)
	}

	serial, _ := Aggregate(counts, leaf, grid, aoi, thresholds, 1, false)
	assert.Equal(t, serial, results)
}

func TestDivisionGuard(t *testing.T) {
	fc := FractionCover(10, 0)
	assert.Equal(t, 0.0, fc)
	assert.False(t, math.IsNaN(fc))
	assert.Equal(t, 0.0, Porosity(fc))
	assert.InDelta(t, 0.75, Porosity(FractionCover(25, 100)), 1e-12)
}

func TestAllBackground(t *testing.T) {
	// the ocean tone map lifts black above the threshold, so use none
	cfg, err := NewConfig(Params{ToneMap: "none"})
	require.NoError(t, err)
	a, err := Analyse("black", uniform(100, 80, 0), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, Aggregated, a.Stage)
	assert.Equal(t, Area(a.AOI), a.LeafPixels)
	for _, r := range a.Results {
		assert.Equal(t, Area(a.AOI), r.CrownPixels, "threshold %.2f", r.Threshold)
		assert.Equal(t, 1.0, r.FractionCover)
		assert.Equal(t, 0.0, r.Porosity)
	}
}

func TestAllForeground(t *testing.T) {
	cfg := DefaultConfig()
	a, err := Analyse("white", uniform(100, 80, 255), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a.LeafPixels)
	for _, r := range a.Results {
		if r.Threshold < 1 {
			assert.Equal(t, 0, r.CrownPixels, "threshold %.2f", r.Threshold)
		}
		assert.Equal(t, 0.0, r.FractionCover)
		assert.Equal(t, 0.0, r.Porosity)
		assert.False(t, math.IsNaN(r.Porosity))
	}
}

func TestAnalyseDeterministic(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 160, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			src.SetGray(x, y, color.Gray{uint8((x*x + y*3) % 256)})
		}
	}
	cfg, err := NewConfig(Params{SubSamplingSize: 8, RejectionFraction: 0.15, Workers: 3})
	require.NoError(t, err)

	first, err := Analyse("a", src, cfg, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := Analyse("a", src, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Binary.Pix, again.Binary.Pix)
		assert.Equal(t, first.LeafPixels, again.LeafPixels)
		assert.Equal(t, first.Results, again.Results)
	}
}

func TestAnalyseOverlayDecisions(t *testing.T) {
	cfg, err := NewConfig(Params{RenderOverlay: true, Thresholds: []float64{0.5, 0.7}})
	require.NoError(t, err)
	a, err := Analyse("overlay", uniform(50, 50, 255), cfg, nil)
	require.NoError(t, err)
	require.Len(t, a.Classifications, 2)
	assert.Len(t, a.Classifications[0].Decisions, len(a.Grid))

	cfg, err = NewConfig(Params{Thresholds: []float64{0.5, 0.7}})
	require.NoError(t, err)
	a, err = Analyse("nooverlay", uniform(50, 50, 255), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Classifications)
}

func TestAnalyseLogs(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)
	cfg, err := NewConfig(Params{RejectionFraction: 0.1})
	require.NoError(t, err)
	_, err = Analyse("logged", uniform(105, 105, 0), cfg, vlog)
	require.NoError(t, err)
	assert.Contains(t, slog.log, "logged total pixels: 11025 aoi: 6400 rejected: 4625")
}

func TestAnalyseDegenerate(t *testing.T) {
	a, err := Analyse("tiny", uniform(4, 4, 0), DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrDegenerateGrid)
	require.NotNil(t, a)
	assert.Equal(t, Binarized, a.Stage)
}

func TestStageOrder(t *testing.T) {
	a, err := NewAnalysis("order", uniform(20, 20, 0), DefaultConfig(), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Measure(), ErrStage)
	assert.ErrorIs(t, a.Aggregate(), ErrStage)
	require.NoError(t, a.Binarize())
	assert.ErrorIs(t, a.Binarize(), ErrStage)
	require.NoError(t, a.BuildGrid())
	require.NoError(t, a.Measure())
	require.NoError(t, a.Aggregate())
	assert.Equal(t, Aggregated, a.Stage)
}

func TestNewAnalysisErrors(t *testing.T) {
	_, err := NewAnalysis("zero", uniform(20, 20, 0), Config{}, nil)
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))

	_, err = NewAnalysis("empty", image.NewGray(image.Rect(0, 0, 0, 0)), DefaultConfig(), nil)
	assert.Error(t, err)
}
