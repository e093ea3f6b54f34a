// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// canopy estimates the porosity of tree crowns from a directory (or
// S3 prefix) of overhead photos.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"rescribe.xyz/canopy"
	"rescribe.xyz/canopy/internal/pipeline"
	"rescribe.xyz/canopy/undistort"
)

const usage = `Usage: canopy [-v] [-c] [-d] [-config file] [-save] [-s size] [-r fraction]
              [-t thresholds] [-tonemap ocean|none] [-overlay] [-w workers]
              [-o resultdir] [-bucket bucket] [-prefix prefix] [-clean]
              [photodir]

Estimates the porosity of the tree crowns in a directory of overhead
photos. Each photo is analysed at every threshold, and the results
are written to results.csv in the result directory (photodir/results
by default), along with failures.csv (if any photos could not be
analysed), summary.csv, graph.png and, with -overlay, an overlay
picture for each photo showing which cells were counted as large
gaps.

Unless -d is given, photos are first undistorted with the camera
calibration in the calibration file, which is first created by
running the calibration command if -c is given. Undistortion needs
canopy to have been built with the 'gocv' build tag.

If -bucket is given the photos are read from the S3 bucket, under
prefix if given, and the results are written back to it under
prefix/results/. With -clean any results already there, including
overlays of photos no longer present, are removed first.

Settings are read from the -config file if it exists; any flags given
override them, and -save writes the result back to the file.
`

// parseThresholds parses a comma separated list of thresholds. The
// list is never nil, so an empty one is rejected rather than replaced
// by the defaults.
func parseThresholds(s string) ([]float64, error) {
	thresholds := []float64{}
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		t, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("Error parsing threshold %q: %w", f, err)
		}
		thresholds = append(thresholds, t)
	}
	return thresholds, nil
}

// setFlags returns the names of the flags given on the command line
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	calibrate := flag.Bool("c", false, "run calibration before undistorting")
	skipUndistort := flag.Bool("d", false, "don't undistort photos")
	config := flag.String("config", "canopy.yaml", "settings file")
	save := flag.Bool("save", false, "save settings to the settings file")
	size := flag.Int("s", 0, "subsampling size: number of cells along each side of the grid")
	rejection := flag.Float64("r", 0, "rejection fraction: share of a cell left out around the edges (0 to 0.3)")
	thresholds := flag.String("t", "", "comma separated list of thresholds")
	tonemap := flag.String("tonemap", "", "tone map applied before thresholding: 'ocean' or 'none'")
	drawOverlay := flag.Bool("overlay", false, "draw an overlay of the gaps found in each photo")
	workers := flag.Int("w", 0, "number of photos to analyse at once (0 for one per CPU)")
	resultdir := flag.String("o", "", "directory to write results to, for a local photo directory")
	bucket := flag.String("bucket", "", "S3 bucket to read photos from")
	prefix := flag.String("prefix", "", "prefix of photos in the S3 bucket")
	calibfile := flag.String("calib", "", "camera calibration file")
	clean := flag.Bool("clean", false, "remove results of earlier runs before analysing")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	set := setFlags()
	if flag.NArg() > 1 || (flag.NArg() == 0 && !set["bucket"]) {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", 0)
	}

	settings, err := canopy.LoadSettings(*config)
	if err != nil {
		log.Fatalln(err)
	}
	if set["s"] {
		settings.Porosity.SubSamplingSize = *size
	}
	if set["r"] {
		settings.Porosity.RejectionFraction = *rejection
	}
	if set["t"] {
		settings.Porosity.Thresholds, err = parseThresholds(*thresholds)
		if err != nil {
			log.Fatalln(err)
		}
	}
	if set["tonemap"] {
		settings.Porosity.ToneMap = *tonemap
	}
	if set["overlay"] {
		settings.Porosity.RenderOverlay = *drawOverlay
	}
	if set["d"] {
		settings.Undistort.Skip = *skipUndistort
	}
	if set["c"] {
		settings.Undistort.Calibrate = *calibrate
	}
	if set["calib"] {
		settings.Undistort.CalibrationFile = *calibfile
	}
	if set["bucket"] {
		settings.Storage.Bucket = *bucket
	}
	if set["prefix"] {
		settings.Storage.Prefix = *prefix
	}

	cfg, err := settings.PorosityConfig()
	if err != nil {
		log.Fatalln(err)
	}

	if *save {
		err = canopy.SaveSettings(settings, *config)
		if err != nil {
			log.Fatalln(err)
		}
		verboselog.Println("Saved settings to", *config)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var conn pipeline.Storer
	var title string
	if set["bucket"] {
		conn = &canopy.AwsConn{Region: settings.Storage.Region, Bucket: settings.Storage.Bucket, Prefix: settings.Storage.Prefix, Logger: verboselog}
		title = settings.Storage.Bucket + "/" + settings.Storage.Prefix
	} else {
		dir := flag.Arg(0)
		conn = &canopy.LocalConn{Dir: dir, ResultDir: *resultdir, Logger: verboselog}
		title = filepath.Base(dir)
	}

	conn.Log("Setting up connection")
	err = conn.Init()
	if err != nil {
		log.Fatalln("Error setting up connection:", err)
	}

	if *clean {
		err = pipeline.ClearResults(conn)
		if err != nil {
			log.Fatalln(err)
		}
	}

	undistdir, err := os.MkdirTemp("", "canopy-undistorted")
	if err != nil {
		log.Fatalln("Error creating undistortion directory:", err)
	}
	defer os.RemoveAll(undistdir)

	opts := pipeline.Options{Workers: *workers, Title: title}
	opts.Undistorter, err = setupUndistort(ctx, settings, undistdir, verboselog)
	if err != nil {
		log.Fatalln(err)
	}
	if c, ok := opts.Undistorter.(io.Closer); ok {
		defer c.Close()
	}

	sum, err := pipeline.Run(ctx, conn, cfg, opts)
	cancelled := errors.Is(err, context.Canceled)
	if err != nil && !cancelled {
		os.RemoveAll(undistdir)
		log.Fatalln("Error analysing photos:", err)
	}

	fmt.Printf("Analysed %d of %d photos\n", len(sum.Rows), sum.Images)
	for _, f := range sum.Failures {
		fmt.Println("Failed:", f.Err)
	}
	for _, k := range sum.Uploaded {
		fmt.Println("Saved", k)
	}
	if cancelled {
		fmt.Println("Interrupted before every photo was analysed")
		os.RemoveAll(undistdir)
		os.Exit(1)
	}
}

// setupUndistort runs the calibration if needed and returns the
// undistorter to use, which writes into dir
func setupUndistort(ctx context.Context, settings *canopy.Settings, dir string, logger *log.Logger) (undistort.Undistorter, error) {
	if settings.Undistort.Skip {
		return undistort.Passthrough{}, nil
	}
	if !undistort.Available {
		log.Println("Warning: canopy was built without OpenCV, so photos will not be undistorted")
		return undistort.Passthrough{}, nil
	}

	if settings.Undistort.Calibrate {
		logger.Println("Calibration in progress")
		out, err := undistort.Calibrate(ctx, settings.Undistort.CalibrationCommand)
		if err != nil {
			return nil, err
		}
		logger.Println(out)
	}

	c, err := undistort.LoadCalibration(settings.Undistort.CalibrationFile)
	if err != nil {
		return nil, err
	}
	logger.Println("Camera matrix:", c.CameraMatrix.RawMatrix().Data)
	logger.Println("Distortion coefficients:", c.Distortion.RawMatrix().Data)

	return undistort.NewOpenCV(dir, c)
}
