// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package binarize

import (
	"image"
	"image/draw"
)

// ToGray converts any image to grayscale, with its origin at (0, 0).
// A *image.Gray which is already at the origin is returned as is.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// histogram counts the number of pixels at each intensity
func histogram(img *image.Gray) [256]int {
	var histo [256]int

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			histo[img.GrayAt(x, y).Y]++
		}
	}

	return histo
}
