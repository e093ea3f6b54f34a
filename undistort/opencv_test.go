// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

//go:build gocv

package undistort

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestOpenCVUndistort(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{uint8(x * 4)})
		}
	}
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	c := Calibration{
		CameraMatrix: mat.NewDense(3, 3, []float64{100, 0, 32, 0, 100, 24, 0, 0, 1}),
		Distortion:   mat.NewDense(5, 1, []float64{0, 0, 0, 0, 0}),
	}
	u, err := NewOpenCV(filepath.Join(dir, "undistorted"), c)
	require.NoError(t, err)
	defer u.(*OpenCV).Close()

	out, err := u.Undistort(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "undistorted", "photo.png"), out)

	g, err := os.Open(out)
	require.NoError(t, err)
	defer g.Close()
	cfg, err := png.DecodeConfig(g)
	require.NoError(t, err)
	assert.InDelta(t, 64, cfg.Width, 2)
	assert.InDelta(t, 48, cfg.Height, 2)

	_, err = u.Undistort(filepath.Join(dir, "notpresent.png"))
	assert.Error(t, err)
}
