// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package undistort

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMatrix(t *testing.T) {
	m, err := LoadMatrix("testdata/calibration.xml", CameraMatrixName)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 1651.3947219164001, m.At(0, 0), 1e-9)
	assert.Equal(t, 1295.5, m.At(0, 2))
	assert.Equal(t, 971.5, m.At(1, 2))
	assert.Equal(t, 1.0, m.At(2, 2))

	d, err := LoadMatrix("testdata/calibration.xml", DistortionName)
	require.NoError(t, err)
	r, c = d.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, -0.29, d.At(0, 0))
	assert.Equal(t, -0.02, d.At(4, 0))
}

func TestLoadMatrixErrors(t *testing.T) {
	cases := []struct {
		name, path, matrix, err string
	}{
		{"missing file", "testdata/notpresent.xml", CameraMatrixName, "Error reading calibration file"},
		{"missing matrix", "testdata/calibration.xml", "Rotation", "No Rotation found"},
		{"not a matrix", "testdata/calibration.xml", "Avg_Reprojection_Error", "bad size"},
		{"too few values", "testdata/short.xml", CameraMatrixName, "3 values for a 3x3 matrix"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadMatrix(c.path, c.matrix)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.err)
		})
	}
}

func TestLoadCalibration(t *testing.T) {
	c, err := LoadCalibration("testdata/calibration.xml")
	require.NoError(t, err)
	assert.NotNil(t, c.CameraMatrix)
	assert.NotNil(t, c.Distortion)

	_, err = LoadCalibration("testdata/short.xml")
	assert.Error(t, err)
}

func TestPassthrough(t *testing.T) {
	var u Undistorter = Passthrough{}
	p, err := u.Undistort("photos/IMG_0001.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photos/IMG_0001.jpg", p)
}

func TestCalibrate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("calibration test commands need a unix shell")
	}
	out, err := Calibrate(context.Background(), []string{"sh", "-c", "echo calibrated"})
	require.NoError(t, err)
	assert.Equal(t, "calibrated\n", out)

	_, err = Calibrate(context.Background(), []string{"sh", "-c", "echo broken >&2; exit 3"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Stderr: broken"), "error should include stderr: %v", err)

	_, err = Calibrate(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Calibrate(ctx, []string{"sh", "-c", "sleep 5"})
	assert.Error(t, err)
}
