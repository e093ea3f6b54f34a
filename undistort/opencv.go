// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

//go:build gocv

package undistort

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Available reports whether OpenCV undistortion was built in
const Available = true

type optimal struct {
	camera gocv.Mat
	roi    image.Rectangle
}

// OpenCV undistorts photos with OpenCV, writing each corrected photo
// into Dir with the same name. The corrected photo is cropped to the
// region which has valid pixels for every point.
type OpenCV struct {
	Dir string

	camera     gocv.Mat
	distortion gocv.Mat

	mu      sync.Mutex
	optimal map[image.Point]optimal
}

func toMat(d *mat.Dense) gocv.Mat {
	r, c := d.Dims()
	m := gocv.NewMatWithSize(r, c, gocv.MatTypeCV64F)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.SetDoubleAt(i, j, d.At(i, j))
		}
	}
	return m
}

// NewOpenCV returns an OpenCV undistorter writing into dir
func NewOpenCV(dir string, c Calibration) (Undistorter, error) {
	if c.CameraMatrix == nil || c.Distortion == nil {
		return nil, fmt.Errorf("Incomplete calibration")
	}
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("Error creating undistortion directory %s: %w", dir, err)
	}
	return &OpenCV{
		Dir:        dir,
		camera:     toMat(c.CameraMatrix),
		distortion: toMat(c.Distortion),
		optimal:    make(map[image.Point]optimal),
	}, nil
}

// newCamera finds the optimal new camera matrix for an image size,
// keeping every source pixel
func (o *OpenCV) newCamera(size image.Point) optimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	if opt, ok := o.optimal[size]; ok {
		return opt
	}
	cam, roi := gocv.GetOptimalNewCameraMatrixWithParams(o.camera, o.distortion, size, 1, size, false)
	opt := optimal{camera: cam, roi: roi}
	o.optimal[size] = opt
	return opt
}

func (o *OpenCV) Undistort(path string) (string, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return "", fmt.Errorf("Error reading %s for undistortion", path)
	}
	defer img.Close()

	opt := o.newCamera(image.Pt(img.Cols(), img.Rows()))

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Undistort(img, &dst, o.camera, o.distortion, opt.camera)

	roi := opt.roi.Intersect(image.Rect(0, 0, dst.Cols(), dst.Rows()))
	if roi.Empty() {
		roi = image.Rect(0, 0, dst.Cols(), dst.Rows())
	}
	cropped := dst.Region(roi)
	defer cropped.Close()

	out := filepath.Join(o.Dir, filepath.Base(path))
	if !gocv.IMWrite(out, cropped) {
		return "", fmt.Errorf("Error writing undistorted photo %s", out)
	}
	return out, nil
}

// Close frees the OpenCV matrices
func (o *OpenCV) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, opt := range o.optimal {
		opt.camera.Close()
	}
	o.camera.Close()
	return o.distortion.Close()
}
