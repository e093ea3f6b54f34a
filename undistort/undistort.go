// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// undistort removes lens distortion from photos before they are
// analysed, using a camera matrix and distortion coefficients found
// by calibrating the camera. The OpenCV implementation is only built
// with the 'gocv' build tag.
package undistort

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Names of the matrices in a calibration file
const (
	CameraMatrixName = "Camera_Matrix"
	DistortionName   = "Distortion_Coefficients"
)

// ErrNoOpenCV is returned by NewOpenCV when built without OpenCV
var ErrNoOpenCV = errors.New("built without OpenCV support; rebuild with -tags gocv")

// Undistorter removes lens distortion from the photo at path,
// returning the path of the corrected photo
type Undistorter interface {
	Undistort(path string) (string, error)
}

// Passthrough is an Undistorter which leaves photos as they are
type Passthrough struct{}

func (Passthrough) Undistort(path string) (string, error) {
	return path, nil
}

// Calibration holds the results of calibrating a camera
type Calibration struct {
	CameraMatrix *mat.Dense
	Distortion   *mat.Dense
}

type storageNode struct {
	XMLName xml.Name
	Rows    int    `xml:"rows"`
	Cols    int    `xml:"cols"`
	Data    string `xml:"data"`
}

type storage struct {
	Nodes []storageNode `xml:",any"`
}

// LoadMatrix reads the matrix called name from an OpenCV XML storage
// file. The data is stored row by row.
func LoadMatrix(path string, name string) (*mat.Dense, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Error reading calibration file %s: %w", path, err)
	}
	var s storage
	err = xml.Unmarshal(b, &s)
	if err != nil {
		return nil, fmt.Errorf("Error parsing calibration file %s: %w", path, err)
	}
	for _, n := range s.Nodes {
		if n.XMLName.Local != name {
			continue
		}
		if n.Rows < 1 || n.Cols < 1 {
			return nil, fmt.Errorf("Error reading %s from %s: bad size %dx%d", name, path, n.Rows, n.Cols)
		}
		fields := strings.Fields(n.Data)
		if len(fields) != n.Rows*n.Cols {
			return nil, fmt.Errorf("Error reading %s from %s: %d values for a %dx%d matrix", name, path, len(fields), n.Rows, n.Cols)
		}
		data := make([]float64, len(fields))
		for i, f := range fields {
			data[i], err = strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("Error reading %s from %s: %w", name, path, err)
			}
		}
		return mat.NewDense(n.Rows, n.Cols, data), nil
	}
	return nil, fmt.Errorf("No %s found in %s", name, path)
}

// LoadCalibration reads the camera matrix and distortion
// coefficients from an OpenCV XML storage file
func LoadCalibration(path string) (Calibration, error) {
	var c Calibration
	var err error
	c.CameraMatrix, err = LoadMatrix(path, CameraMatrixName)
	if err != nil {
		return c, err
	}
	r, cols := c.CameraMatrix.Dims()
	if r != 3 || cols != 3 {
		return c, fmt.Errorf("Error reading %s from %s: camera matrix must be 3x3, not %dx%d", CameraMatrixName, path, r, cols)
	}
	c.Distortion, err = LoadMatrix(path, DistortionName)
	return c, err
}
