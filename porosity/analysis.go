// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// porosity estimates the porosity of a tree crown (the share of sky
// visible through the foliage) from an overhead photograph.
//
// The photograph is binarized once, so that sky is foreground and
// foliage is background, and the foliage ("leaf") pixels inside the
// area of interest are counted. The area of interest is divided into
// a grid of cells, and at each threshold the cells whose foreground
// share is above the threshold are treated as large gaps in the
// crown. The crown is the area of interest less the sky in the large
// gaps, and the porosity at that threshold is 1 - leaf / crown.
package porosity

import (
	"errors"
	"fmt"
	"image"
	"log"

	"rescribe.xyz/canopy/binarize"
	"rescribe.xyz/canopy/integralimg"
)

// Stage is a step in the analysis of an image
type Stage int

const (
	Loaded Stage = iota
	Binarized
	Gridded
	Measured
	Aggregated
)

func (s Stage) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Binarized:
		return "binarized"
	case Gridded:
		return "gridded"
	case Measured:
		return "measured"
	case Aggregated:
		return "aggregated"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ErrStage is returned when an analysis step is run out of order
var ErrStage = errors.New("analysis step run out of order")

// Analysis holds the state of the analysis of one image. Each step
// must be run in order, once; Analyse runs them all.
type Analysis struct {
	Name  string
	Stage Stage

	// Binary is the binarized image, set by Binarize
	Binary *image.Gray
	// Grid and AOI are set by BuildGrid
	Grid Grid
	AOI  image.Rectangle
	// LeafPixels is the number of background pixels in the AOI,
	// set by Measure
	LeafPixels int
	// Results has one entry per threshold, set by Aggregate
	Results []Result
	// Classifications has one entry per threshold, and is only set
	// by Aggregate if the configuration asks for overlays
	Classifications []Classification

	img    image.Image
	cfg    Config
	counts integralimg.I
	logger *log.Logger
}

// NewAnalysis starts the analysis of img. The logger may be nil.
func NewAnalysis(name string, img image.Image, cfg Config, logger *log.Logger) (*Analysis, error) {
	if cfg.subSamplingSize == 0 {
		return nil, &ConfigError{"config", "not created with NewConfig"}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("Image %s is empty", name)
	}
	return &Analysis{Name: name, Stage: Loaded, img: img, cfg: cfg, logger: logger}, nil
}

func (a *Analysis) log(v ...interface{}) {
	if a.logger != nil {
		a.logger.Println(v...)
	}
}

func (a *Analysis) expect(s Stage) error {
	if a.Stage != s {
		return fmt.Errorf("%w: %s is %s, needs to be %s", ErrStage, a.Name, a.Stage, s)
	}
	return nil
}

// Binarize creates the binary image, and the summed-area table used
// to count its foreground pixels
func (a *Analysis) Binarize() error {
	if err := a.expect(Loaded); err != nil {
		return err
	}
	a.Binary = binarize.Binarize(a.img, a.cfg.BinarizeOptions())
	a.counts = integralimg.ToNonZeroIntegralImg(a.Binary)
	a.Stage = Binarized
	return nil
}

// BuildGrid creates the grid and area of interest for the image
func (a *Analysis) BuildGrid() error {
	if err := a.expect(Binarized); err != nil {
		return err
	}
	b := a.Binary.Bounds()
	grid, aoi, err := BuildGrid(b.Dx(), b.Dy(), a.cfg.subSamplingSize, a.cfg.rejection)
	if err != nil {
		return fmt.Errorf("Error building grid for %s (%dx%d): %w", a.Name, b.Dx(), b.Dy(), err)
	}
	a.Grid, a.AOI = grid, aoi
	total := b.Dx() * b.Dy()
	a.log(a.Name, "total pixels:", total, "aoi:", Area(aoi), "rejected:", total-Area(aoi))
	a.Stage = Gridded
	return nil
}

// Measure counts the leaf (background) pixels in the area of interest
func (a *Analysis) Measure() error {
	if err := a.expect(Gridded); err != nil {
		return err
	}
	a.LeafPixels = Area(a.AOI) - int(a.counts.Sum(a.AOI))
	a.Stage = Measured
	return nil
}

// Aggregate computes the porosity at each threshold
func (a *Analysis) Aggregate() error {
	if err := a.expect(Measured); err != nil {
		return err
	}
	a.Results, a.Classifications = Aggregate(a.counts, a.LeafPixels, a.Grid, a.AOI, a.cfg.thresholds, a.cfg.workers, a.cfg.renderOverlay)
	a.Stage = Aggregated
	return nil
}

// Analyse runs every step of the analysis of img
func Analyse(name string, img image.Image, cfg Config, logger *log.Logger) (*Analysis, error) {
	a, err := NewAnalysis(name, img, cfg, logger)
	if err != nil {
		return nil, err
	}
	for _, step := range []func() error{a.Binarize, a.BuildGrid, a.Measure, a.Aggregate} {
		err = step()
		if err != nil {
			return a, err
		}
	}
	return a, nil
}
