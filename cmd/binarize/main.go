// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// binarize writes the binarized version of a photo, separating sky
// (white) from foliage (black) as canopy does before analysis.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"

	"github.com/disintegration/imaging"

	"rescribe.xyz/canopy/binarize"
)

const usage = `Usage: binarize [-tonemap ocean|none] [-sigma num] [-thresh num] inimg outimg

Binarizes a photo the way canopy does before analysing it. The
photo is smoothed, tone mapped, and thresholded with Otsu's method,
unless a threshold is given with -thresh.
`

func main() {
	tonemap := flag.String("tonemap", "ocean", "tone map applied before thresholding: 'ocean' or 'none'")
	sigma := flag.Float64("sigma", binarize.DefaultSigma, "sigma of the gaussian smoothing; 0 for none")
	thresh := flag.Int("thresh", -1, "threshold to use instead of Otsu's (0-255)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	tm, err := binarize.ParseToneMap(*tonemap)
	if err != nil {
		log.Fatalln(err)
	}
	if *thresh > 255 {
		log.Fatalf("Threshold %d is out of range\n", *thresh)
	}

	img, err := imaging.Open(flag.Arg(0), imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("Could not open image %s: %v\n", flag.Arg(0), err)
	}

	mapped := tm.Apply(binarize.Smooth(binarize.ToGray(img), *sigma))
	if *thresh < 0 {
		*thresh = int(binarize.OtsuThreshold(mapped))
		log.Printf("Set threshold to %d\n", *thresh)
	}
	bin := binarize.Threshold(mapped, uint8(*thresh))

	f, err := os.Create(flag.Arg(1))
	if err != nil {
		log.Fatalf("Could not create file %s: %v\n", flag.Arg(1), err)
	}
	defer f.Close()
	err = png.Encode(f, bin)
	if err != nil {
		log.Fatalf("Could not encode image: %v\n", err)
	}
}
