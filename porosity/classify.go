// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package porosity

import (
	"image"

	"rescribe.xyz/canopy/integralimg"
)

// Decision records how a cell was classified at one threshold
type Decision struct {
	Cell       image.Rectangle
	Foreground int
	Gap        bool
}

// Classification is the result of classifying every cell of a grid
// at one threshold
type Classification struct {
	Threshold float64
	// LargeGap is the number of foreground pixels in gap cells
	LargeGap int
	// Decisions holds one entry per cell, in grid order, if they
	// were requested
	Decisions []Decision
}

// Classify marks each cell of grid as a gap if the share of its
// pixels which are foreground is strictly greater than threshold.
// counts must be a ToNonZeroIntegralImg of the binarized image.
func Classify(counts integralimg.I, grid Grid, threshold float64, keepDecisions bool) Classification {
	c := Classification{Threshold: threshold}
	if keepDecisions {
		c.Decisions = make([]Decision, 0, len(grid))
	}
	for _, cell := range grid {
		w := counts.GetWindow(cell)
		fg := int(w.Sum())
		gap := w.Size() > 0 && w.Mean() > threshold
		if gap {
			c.LargeGap += fg
		}
		if keepDecisions {
			c.Decisions = append(c.Decisions, Decision{Cell: cell, Foreground: fg, Gap: gap})
		}
	}
	return c
}
