// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package binarize

import (
	"image"
	"math"
)

// eps is the smallest class weight considered, matching the float32
// epsilon used by OpenCV
const eps = 1.1920929e-07

// OtsuThreshold finds the threshold which maximises the variance
// between the two classes of pixels it separates, see
// https://en.wikipedia.org/wiki/Otsu%27s_method
// Pixels <= the threshold form the dark class. Where several
// thresholds give the same variance, the lowest is used. An image
// with only one intensity gives a threshold of 0.
func OtsuThreshold(img *image.Gray) uint8 {
	histo := histogram(img)
	total := float64(img.Bounds().Dx() * img.Bounds().Dy())
	if total == 0 {
		return 0
	}

	var mu float64
	for i, n := range histo {
		mu += float64(i) * float64(n) / total
	}

	var (
		best     uint8
		maxSigma float64
		// weight and weighted sum of the dark class
		q1, sum1 float64
	)
	for i, n := range histo {
		p := float64(n) / total
		q1 += p
		sum1 += float64(i) * p
		q2 := 1 - q1
		if math.Min(q1, q2) < eps || math.Max(q1, q2) > 1-eps {
			continue
		}
		mu1 := sum1 / q1
		mu2 := (mu - sum1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			best = uint8(i)
		}
	}

	return best
}
