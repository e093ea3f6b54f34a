// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// binarize converts canopy photographs into binary images, where sky
// is white (255) and foliage is black (0), using a single global
// threshold chosen with Otsu's method.
package binarize

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Pixel values of a binarized image
const (
	Background = 0
	Foreground = 255
)

// DefaultSigma is the standard deviation of the gaussian smoothing
// applied before thresholding, the sigma OpenCV derives for a 5x5
// kernel. The blur itself uses a wider kernel and clamps at the
// edges, so smoothed values can differ slightly from OpenCV's.
const DefaultSigma = 1.1

// Options control the binarization
type Options struct {
	// Sigma of the gaussian blur; 0 disables smoothing
	Sigma float64
	// ToneMap is applied to the smoothed image before the threshold
	// is chosen
	ToneMap ToneMap
}

// DefaultOptions returns the options used for porosity analysis
func DefaultOptions() Options {
	return Options{Sigma: DefaultSigma, ToneMap: Ocean}
}

// Binarize smooths img, applies the tone map, and thresholds the
// result at the level found by OtsuThreshold. The returned image
// always has its origin at (0, 0), and img is not modified.
func Binarize(img image.Image, opts Options) *image.Gray {
	gray := Smooth(ToGray(img), opts.Sigma)
	mapped := opts.ToneMap.Apply(gray)
	return Threshold(mapped, OtsuThreshold(mapped))
}

// Threshold sets every pixel brighter than thresh to Foreground, and
// every other pixel to Background
func Threshold(img *image.Gray, thresh uint8) *image.Gray {
	b := img.Bounds()
	new := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y > thresh {
				new.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Foreground})
			} else {
				new.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Background})
			}
		}
	}
	return new
}

// Smooth applies a gaussian blur to img
func Smooth(img *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return img
	}
	blurred := imaging.Blur(img, sigma)
	b := blurred.Bounds()
	new := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			// the three colour channels are equal for a gray source
			new.Pix[y*new.Stride+x] = blurred.Pix[y*blurred.Stride+x*4]
		}
	}
	return new
}
