// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// overlay draws pictures of how the cells of a photo were classified,
// so that the choice of threshold can be checked by eye.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"rescribe.xyz/canopy/binarize"
	"rescribe.xyz/canopy/porosity"
)

// GapValue is the grey used for the sky pixels of large gap cells
const GapValue = 128

// DefaultColumns is the number of tiles on each row of a sheet
const DefaultColumns = 4

// DefaultTileWidth is the width each tile of a sheet is scaled to
const DefaultTileWidth = 480

const labelHeight = 20
const margin = 4

// Render copies a binary image, drawing the foreground pixels of
// every cell marked as a gap in GapValue grey
func Render(bin *image.Gray, decisions []porosity.Decision) *image.Gray {
	b := bin.Bounds()
	out := image.NewGray(b)
	copy(out.Pix, bin.Pix)
	for _, d := range decisions {
		if !d.Gap {
			continue
		}
		r := d.Cell.Intersect(b)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				i := out.PixOffset(x, y)
				if out.Pix[i] == binarize.Foreground {
					out.Pix[i] = GapValue
				}
			}
		}
	}
	return out
}

// Sheet arranges tiles in rows of cols, each scaled to tileWidth
// pixels wide with its label written above it
func Sheet(tiles []*image.Gray, labels []string, cols int, tileWidth int) (*image.RGBA, error) {
	if len(tiles) == 0 {
		return nil, errors.New("No tiles to draw")
	}
	if len(labels) != len(tiles) {
		return nil, fmt.Errorf("Got %d labels for %d tiles", len(labels), len(tiles))
	}
	if cols < 1 {
		cols = DefaultColumns
	}
	if tileWidth < 1 {
		tileWidth = DefaultTileWidth
	}
	if cols > len(tiles) {
		cols = len(tiles)
	}
	rows := (len(tiles) + cols - 1) / cols

	tb := tiles[0].Bounds()
	tileHeight := tb.Dy() * tileWidth / tb.Dx()
	if tileHeight < 1 {
		tileHeight = 1
	}
	cellw := tileWidth + margin*2
	cellh := tileHeight + labelHeight + margin*2

	sheet := image.NewRGBA(image.Rect(0, 0, cellw*cols, cellh*rows))
	draw.Draw(sheet, sheet.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  sheet,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for i, t := range tiles {
		x := (i%cols)*cellw + margin
		y := (i/cols)*cellh + margin
		d.Dot = fixed.P(x, y+labelHeight-6)
		d.DrawString(labels[i])
		dst := image.Rect(x, y+labelHeight, x+tileWidth, y+labelHeight+tileHeight)
		xdraw.ApproxBiLinear.Scale(sheet, dst, t, t.Bounds(), draw.Src, nil)
	}
	return sheet, nil
}

// FromAnalysis draws a sheet with one tile per threshold for an
// analysis which kept its per-cell decisions
func FromAnalysis(a *porosity.Analysis, cols int, tileWidth int) (*image.RGBA, error) {
	if a.Stage != porosity.Aggregated {
		return nil, fmt.Errorf("Error drawing overlay for %s: analysis is %s", a.Name, a.Stage)
	}
	if len(a.Classifications) != len(a.Results) {
		return nil, fmt.Errorf("Error drawing overlay for %s: no cell decisions were kept", a.Name)
	}
	var tiles []*image.Gray
	var labels []string
	for i, c := range a.Classifications {
		tiles = append(tiles, Render(a.Binary, c.Decisions))
		labels = append(labels, fmt.Sprintf("threshold %.2f: porosity %.4f", c.Threshold, a.Results[i].Porosity))
	}
	return Sheet(tiles, labels, cols, tileWidth)
}
