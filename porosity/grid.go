// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package porosity

import (
	"errors"
	"image"
)

// ErrDegenerateGrid is returned when the grid for an image would
// contain no cells, or cells with no area
var ErrDegenerateGrid = errors.New("rejection border leaves no grid cells")

// Grid is the ordered list of cells analysed in an image. Cells are
// generated column by column, which matters only for rendering.
type Grid []image.Rectangle

// Area returns the number of pixels in r
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// BuildGrid divides a width x height image into size x size cells,
// leaving out rejection rows and columns of cells from each side, and
// returns the cells along with the area of interest which bounds them.
//
// The far edge of cells in the final row or column of the full grid
// is extended to the edge of the image, to cover the pixels left over
// by the integer division. When rejection is above zero the final row
// and column are never generated, so the leftover pixels fall outside
// the area of interest along with the rejected border.
func BuildGrid(width, height, size, rejection int) (Grid, image.Rectangle, error) {
	if size < 1 || rejection < 0 || 2*rejection >= size {
		return nil, image.Rectangle{}, ErrDegenerateGrid
	}
	dw := width / size
	dh := height / size
	if dw == 0 || dh == 0 {
		return nil, image.Rectangle{}, ErrDegenerateGrid
	}

	grid := make(Grid, 0, (size-2*rejection)*(size-2*rejection))
	for x := rejection; x < size-rejection; x++ {
		for y := rejection; y < size-rejection; y++ {
			r := image.Rect(dw*x, dh*y, dw*(x+1), dh*(y+1))
			if x == size-1 {
				r.Max.X = width
			}
			if y == size-1 {
				r.Max.Y = height
			}
			grid = append(grid, r)
		}
	}

	aoi := image.Rectangle{Min: grid[0].Min, Max: grid[len(grid)-1].Max}

	return grid, aoi, nil
}
