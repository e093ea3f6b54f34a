// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

//go:build !gocv

package undistort

// Available reports whether OpenCV undistortion was built in
const Available = false

// NewOpenCV always fails without the 'gocv' build tag
func NewOpenCV(dir string, c Calibration) (Undistorter, error) {
	return nil, ErrNoOpenCV
}
