// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

/*
The canopy package contains tools and functions to estimate the
porosity of tree crowns from overhead photographs, either on the local
machine or with the photos stored in Amazon's S3. Porosity is the
share of the crown through which the sky can be seen, and is worked
out at several "large gap" thresholds at once so the results can be
compared with each other and with the Can-EYE method.

Introduction

Presuming you have the go tools installed, you can install the canopy
command with this command:
  go install rescribe.xyz/canopy/cmd/canopy@latest

The canopy tool will give information on what it does and how it works
with the '-h' flag:
  canopy -h

Running on a directory of photos

The simplest way to use canopy is to point it at a directory of
photos:
  canopy photos/

Each photo is binarized, so that sky is separated from foliage, and
its area of interest is split into a grid of cells. Cells which have
more sky in them than a threshold are counted as large gaps, which are
not part of the crown. The porosity of each photo at each threshold is
written to results/results.csv, along with a summary of the whole
batch (summary.csv), a graph of it (graph.png), and a list of any
photos which could not be analysed (failures.csv).

Settings

The settings used can be saved to, and loaded from, a YAML file with
the -config flag. Any flags given on the command line override the
settings in the file. The subsampling size (-s) sets the number of
cells along each side of the grid, and the rejection fraction (-r) the
share of a cell left out around the edge of the photo.

Undistortion

Photos taken with a wide angle lens can be undistorted before they are
analysed, if canopy was built with the 'gocv' build tag and OpenCV is
available. The camera matrix and distortion coefficients are read from
an OpenCV calibration file, which can be generated first with the -c
flag by an external calibration command.

Using S3

If the -bucket flag is given, photos are read from an S3 bucket
instead, optionally under a prefix, and the results are written back
to the bucket under the results/ prefix. To get this to work for you,
you'll need to change the settings in cloudsettings.go, and set up your
~/.aws/credentials appropriately.
*/
package canopy
