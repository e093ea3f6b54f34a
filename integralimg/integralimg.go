// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// integralimg provides summed-area tables ("integral images"), which
// allow the sum of any rectangular part of an image to be found with
// four lookups, however large the rectangle is.
package integralimg

import (
	"image"
)

// I is the Integral Image. It has one more row and column than the
// image it was made from, with row and column 0 all zero, so that
// I[y][x] is the sum of all pixels above and to the left of (x, y).
type I struct {
	sums   [][]uint64
	bounds image.Rectangle
}

// Window is a part of an Integral Image
type Window struct {
	topleft     uint64
	topright    uint64
	bottomleft  uint64
	bottomright uint64
	width       int
	height      int
}

// ToNonZeroIntegralImg creates an integral image which counts the
// pixels that are not zero, so a Window Sum is the number of set
// pixels in a binary image, and its Mean the share of them
func ToNonZeroIntegralImg(img *image.Gray) I {
	b := img.Bounds()
	sums := make([][]uint64, b.Dy()+1)
	sums[0] = make([]uint64, b.Dx()+1)
	for y := 1; y <= b.Dy(); y++ {
		row := make([]uint64, b.Dx()+1)
		above := sums[y-1]
		var rowsum uint64
		for x := 1; x <= b.Dx(); x++ {
			if img.GrayAt(b.Min.X+x-1, b.Min.Y+y-1).Y != 0 {
				rowsum++
			}
			row[x] = above[x] + rowsum
		}
		sums[y] = row
	}
	return I{sums: sums, bounds: b}
}

// GetWindow gets the values of the corners of a rectangular part of
// an Integral Image. The rectangle is clipped to the image bounds.
func (i I) GetWindow(r image.Rectangle) Window {
	r = r.Intersect(i.bounds)
	if r.Empty() {
		return Window{}
	}
	minx, miny := r.Min.X-i.bounds.Min.X, r.Min.Y-i.bounds.Min.Y
	maxx, maxy := r.Max.X-i.bounds.Min.X, r.Max.Y-i.bounds.Min.Y

	return Window{
		topleft:     i.sums[miny][minx],
		topright:    i.sums[miny][maxx],
		bottomleft:  i.sums[maxy][minx],
		bottomright: i.sums[maxy][maxx],
		width:       maxx - minx,
		height:      maxy - miny,
	}
}

// Sum returns the sum of all pixels in a Window
func (w Window) Sum() uint64 {
	return w.bottomright + w.topleft - w.topright - w.bottomleft
}

// Size returns the total size of a Window
func (w Window) Size() int {
	return w.width * w.height
}

// Mean returns the average value of pixels in a Window, or 0 for
// an empty Window
func (w Window) Mean() float64 {
	if w.Size() == 0 {
		return 0
	}
	return float64(w.Sum()) / float64(w.Size())
}

// Sum calculates the sum of a section of an Integral Image
func (i I) Sum(r image.Rectangle) uint64 {
	return i.GetWindow(r).Sum()
}
