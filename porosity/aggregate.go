// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package porosity

import (
	"image"
	"sync"

	"rescribe.xyz/canopy/integralimg"
)

// Result is the porosity of an image at one threshold
type Result struct {
	Threshold     float64
	CrownPixels   int
	FractionCover float64
	Porosity      float64
}

// FractionCover divides the leaf pixels by the crown pixels, with
// a crown of 0 giving a fraction cover of 0 rather than an error
func FractionCover(leaf, crown int) float64 {
	if crown == 0 {
		return 0
	}
	return float64(leaf) / float64(crown)
}

// Porosity is 1 - fractionCover, except that a fraction cover of 0
// (which only happens when the crown is empty) gives 0
func Porosity(fractionCover float64) float64 {
	if fractionCover == 0 {
		return 0
	}
	return 1 - fractionCover
}

// Aggregate classifies the grid at every threshold and computes the
// porosity for each. Up to workers thresholds are classified at once;
// results are always in the same order as thresholds. The per-cell
// decisions are only kept if keepDecisions is set.
func Aggregate(counts integralimg.I, leaf int, grid Grid, aoi image.Rectangle, thresholds []float64, workers int, keepDecisions bool) ([]Result, []Classification) {
	results := make([]Result, len(thresholds))
	classes := make([]Classification, len(thresholds))

	if workers < 1 {
		workers = 1
	}
	if workers > len(thresholds) {
		workers = len(thresholds)
	}

	todo := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range todo {
				c := Classify(counts, grid, thresholds[i], keepDecisions)
				crown := Area(aoi) - c.LargeGap
				fc := FractionCover(leaf, crown)
				results[i] = Result{
					Threshold:     thresholds[i],
					CrownPixels:   crown,
					FractionCover: fc,
					Porosity:      Porosity(fc),
				}
				classes[i] = c
			}
		}()
	}
	for i := range thresholds {
		todo <- i
	}
	close(todo)
	wg.Wait()

	if !keepDecisions {
		classes = nil
	}
	return results, classes
}
