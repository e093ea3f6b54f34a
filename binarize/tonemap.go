// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package binarize

import (
	"fmt"
	"image"
	"math"
)

// ToneMap is a fixed intensity transform applied before the
// threshold is chosen
type ToneMap int

const (
	// Ocean maps intensities through the "ocean" colour map and back
	// to luma. The map is not monotonic: luma falls from 75 at black
	// to its lowest a third of the way up, then rises to 255 at white.
	Ocean ToneMap = iota
	// Identity leaves intensities unchanged
	Identity
)

var oceanLut = makeOceanLut()

// ParseToneMap converts a tone map name ("ocean" or "none") to a ToneMap
func ParseToneMap(s string) (ToneMap, error) {
	switch s {
	case "", "ocean":
		return Ocean, nil
	case "none", "identity":
		return Identity, nil
	}
	return Ocean, fmt.Errorf("Unknown tone map %q", s)
}

func (t ToneMap) String() string {
	switch t {
	case Ocean:
		return "ocean"
	case Identity:
		return "none"
	}
	return fmt.Sprintf("ToneMap(%d)", int(t))
}

// Lut returns the 256 entry lookup table for the tone map
func (t ToneMap) Lut() [256]uint8 {
	if t == Ocean {
		return oceanLut
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(i)
	}
	return lut
}

// Apply returns a new image with the tone map applied to every pixel
func (t ToneMap) Apply(img *image.Gray) *image.Gray {
	lut := t.Lut()
	b := img.Bounds()
	new := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			new.Pix[(y-b.Min.Y)*new.Stride+(x-b.Min.X)] = lut[img.GrayAt(x, y).Y]
		}
	}
	return new
}

// channel scales a colour map value in [0, 1] to 8 bits
func channel(v float64) uint32 {
	v = math.Max(0, math.Min(1, v))
	return uint32(math.Round(v * 255))
}

// makeOceanLut builds the ocean colour map (blue rising linearly,
// green as |3v-1|/2 and red from two thirds of the way) and converts
// each colour to luma with the same fixed point weights OpenCV uses
func makeOceanLut() [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		v := float64(i) / 255
		r := channel(3*v - 2)
		g := channel(math.Abs(1.5*v - 0.5))
		b := channel(v)
		lut[i] = uint8((r*4899 + g*9617 + b*1868 + (1 << 13)) >> 14)
	}
	return lut
}
