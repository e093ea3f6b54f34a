// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// pipeline is a package used by the canopy command, which handles
// the analysis of a batch of photos, using channels heavily to
// coordinate the stages each photo goes through. Note that it is
// considered an "internal" package, not intended for external use,
// and no guarantee is made of the stability of any interfaces
// provided.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"rescribe.xyz/canopy"
	"rescribe.xyz/canopy/overlay"
	"rescribe.xyz/canopy/porosity"
	"rescribe.xyz/canopy/report"
	"rescribe.xyz/canopy/undistort"
)

// Names of the files written for each batch
const (
	ResultsFile   = "results.csv"
	FailuresFile  = "failures.csv"
	SummaryFile   = "summary.csv"
	GraphFile     = "graph.png"
	overlaySuffix = "_overlay.png"
)

// Stages an image can fail at
const (
	StageDownload  = "download"
	StageUndistort = "undistort"
	StageLoad      = "load"
	StageAnalyse   = "analyse"
)

var photoRe = regexp.MustCompile(`(?i)\.(jpe?g|png|tiff?)$`)

type Lister interface {
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	PhotoStorageId() string
	PhotoPrefix() string
}

type Downloader interface {
	Download(bucket string, key string, fn string) error
	Log(v ...interface{})
	PhotoStorageId() string
}

type Uploader interface {
	Log(v ...interface{})
	Upload(bucket string, key string, path string) error
	ResultStorageId() string
	ResultPrefix() string
}

// Storer is a connection photos can be read from and results
// written to; canopy.LocalConn and canopy.AwsConn are Storers
type Storer interface {
	DeleteObjects(bucket string, keys []string) error
	Download(bucket string, key string, fn string) error
	GetLogger() *log.Logger
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	PhotoPrefix() string
	PhotoStorageId() string
	ResultPrefix() string
	ResultStorageId() string
	Upload(bucket string, key string, path string) error
}

// ImageError records why one photo of a batch could not be analysed
type ImageError struct {
	Name  string
	Stage string
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("Error at %s stage for %s: %v", e.Stage, e.Name, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// Options controls how a batch is run
type Options struct {
	// Undistorter corrects each photo before it is analysed; nil
	// means photos are analysed as they are
	Undistorter undistort.Undistorter
	// Workers is the number of photos analysed at once; 0 means
	// one per CPU
	Workers int
	// TempDir is where photos and results are put before upload;
	// if empty a temporary directory is created and removed
	TempDir string
	// Title is used for the graph
	Title string
	// OverlayColumns is the number of tiles per row of an overlay
	OverlayColumns int
}

// Row holds the results for one photo
type Row struct {
	Name       string
	LeafPixels int
	Results    []porosity.Result
	// Overlay is the local path of the overlay, if one was drawn
	Overlay string
}

// Summary describes what happened to a batch
type Summary struct {
	// Images is the number of photos found
	Images int
	// Rows holds the photos analysed successfully, in the order
	// they were listed
	Rows     []Row
	Failures []report.Failure
	// Thresholds summarises the porosity at each threshold
	Thresholds []report.Summary
	// Uploaded lists the keys of the files written
	Uploaded []string
}

// job carries a photo through the stages of the pipeline. A job
// which has failed is passed on untouched so it can be recorded.
type job struct {
	index int
	key   string
	name  string
	path  string
	// paths which should be removed once the job is done
	temp []string
	row  Row
	err  error
}

func (j *job) fail(stage string, err error) {
	j.err = &ImageError{Name: j.name, Stage: stage, Err: err}
}

func (j *job) cleanup() {
	for _, p := range j.temp {
		_ = os.Remove(p)
	}
}

// FilterPhotos returns the keys which look like photos
func FilterPhotos(keys []string) []string {
	var photos []string
	for _, k := range keys {
		if photoRe.MatchString(k) {
			photos = append(photos, k)
		}
	}
	return photos
}

// ListPhotos lists the photos in the photo storage of conn
func ListPhotos(conn Lister) ([]string, error) {
	keys, err := conn.ListObjects(conn.PhotoStorageId(), conn.PhotoPrefix())
	if err != nil {
		return nil, fmt.Errorf("Error listing photos: %w", err)
	}
	return FilterPhotos(keys), nil
}

// drain consumes the rest of a channel so that its sender isn't
// blocked, cleaning up after each job
func drain(c chan job) {
	for j := range c {
		j.cleanup()
	}
}

// download reads jobs from a channel and downloads each photo into
// dir, passing the job on to the process channel. Photos which
// can't be downloaded are marked as failed. If the context is
// cancelled no more photos are downloaded.
func download(ctx context.Context, dl chan job, process chan job, conn Downloader, dir string, logger *log.Logger) {
	defer close(process)
	for j := range dl {
		select {
		case <-ctx.Done():
			drain(dl)
			return
		default:
		}
		fn := filepath.Join(dir, j.name)
		logger.Println("Downloading", j.key)
		err := conn.Download(conn.PhotoStorageId(), j.key, fn)
		if err != nil {
			j.fail(StageDownload, err)
		} else {
			j.path = fn
			j.temp = append(j.temp, fn)
		}
		process <- j
	}
}

// undistortPhotos reads jobs from a channel, undistorts each photo
// with u, and passes the job on to the analyse channel
func undistortPhotos(ctx context.Context, c chan job, analyse chan job, u undistort.Undistorter, logger *log.Logger) {
	defer close(analyse)
	for j := range c {
		select {
		case <-ctx.Done():
			j.cleanup()
			drain(c)
			return
		default:
		}
		if j.err == nil {
			logger.Println("Undistorting", j.name)
			p, err := u.Undistort(j.path)
			if err != nil {
				j.fail(StageUndistort, err)
			} else if p != j.path {
				j.path = p
				j.temp = append(j.temp, p)
			}
		}
		analyse <- j
	}
}

// analyse reads jobs from a channel, loads and analyses each photo,
// and passes the job on to the done channel. If the configuration
// asks for it an overlay is drawn into dir.
func analyse(ctx context.Context, c chan job, done chan job, cfg porosity.Config, cols int, dir string, logger *log.Logger) {
	for j := range c {
		select {
		case <-ctx.Done():
			j.cleanup()
			drain(c)
			return
		default:
		}
		if j.err == nil {
			analysePhoto(&j, cfg, cols, dir, logger)
		}
		j.cleanup()
		done <- j
	}
}

func analysePhoto(j *job, cfg porosity.Config, cols int, dir string, logger *log.Logger) {
	logger.Println("Analysing", j.name)
	img, err := imaging.Open(j.path, imaging.AutoOrientation(true))
	if err != nil {
		j.fail(StageLoad, err)
		return
	}
	a, err := porosity.Analyse(j.name, img, cfg, logger)
	if err != nil {
		j.fail(StageAnalyse, err)
		return
	}
	j.row = Row{Name: j.name, LeafPixels: a.LeafPixels, Results: a.Results}

	if !cfg.RenderOverlay() {
		return
	}
	sheet, err := overlay.FromAnalysis(a, cols, overlay.DefaultTileWidth)
	if err == nil {
		base := strings.TrimSuffix(j.name, filepath.Ext(j.name))
		fn := filepath.Join(dir, base+overlaySuffix)
		err = savePng(fn, sheet)
		if err == nil {
			j.row.Overlay = fn
		}
	}
	if err != nil {
		logger.Println("Error drawing overlay for", j.name, err)
	}
}

func savePng(fn string, img image.Image) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Run analyses every photo conn lists, writing a table of results, a
// table of failures, a summary and a graph of the whole batch, and
// any overlays, and uploading them with conn. A photo which fails at
// any stage is recorded in the failures table and the batch carries
// on. If the context is cancelled no more photos are started, and
// the results of those already analysed are still written.
func Run(ctx context.Context, conn Storer, cfg porosity.Config, opts Options) (Summary, error) {
	var sum Summary
	logger := conn.GetLogger()

	keys, err := ListPhotos(conn)
	if err != nil {
		return sum, err
	}
	sum.Images = len(keys)
	if len(keys) == 0 {
		return sum, errors.New("No photos found")
	}

	dir := opts.TempDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "canopy")
		if err != nil {
			return sum, fmt.Errorf("Error creating temporary directory: %w", err)
		}
		defer os.RemoveAll(dir)
	}

	u := opts.Undistorter
	if u == nil {
		u = undistort.Passthrough{}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	dl := make(chan job)
	undist := make(chan job)
	process := make(chan job)
	done := make(chan job)

	go download(ctx, dl, undist, conn, dir, logger)
	go undistortPhotos(ctx, undist, process, u, logger)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analyse(ctx, process, done, cfg, opts.OverlayColumns, dir, logger)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	go func() {
		defer close(dl)
		for i, k := range keys {
			select {
			case dl <- job{index: i, key: k, name: filepath.Base(k)}:
			case <-ctx.Done():
				return
			}
		}
	}()

	finished := make([]*job, len(keys))
	for j := range done {
		j := j
		finished[j.index] = &j
	}

	for _, j := range finished {
		if j == nil {
			continue
		}
		if j.err != nil {
			conn.Log(j.err)
			sum.Failures = append(sum.Failures, report.Failure{Name: j.name, Err: j.err})
			continue
		}
		sum.Rows = append(sum.Rows, j.row)
	}
	conn.Log("Analysed", len(sum.Rows), "of", len(keys), "photos,", len(sum.Failures), "failed")

	files, err := writeReports(dir, cfg, opts.Title, &sum, logger)
	if err != nil {
		return sum, err
	}
	for _, r := range sum.Rows {
		if r.Overlay != "" {
			files = append(files, r.Overlay)
		}
	}
	sum.Uploaded, err = upload(conn, files)
	if err != nil {
		return sum, err
	}

	return sum, ctx.Err()
}

// writeReports writes the results, failures, summary and graph for a
// batch into dir, returning the paths written
func writeReports(dir string, cfg porosity.Config, title string, sum *Summary, logger *log.Logger) ([]string, error) {
	var files []string
	thresholds := cfg.Thresholds()

	fn := filepath.Join(dir, ResultsFile)
	err := writeFile(fn, func(f *os.File) error {
		w := report.NewWriter(f, thresholds)
		err := w.WriteHeader()
		if err != nil {
			return err
		}
		for _, r := range sum.Rows {
			err = w.Write(r.Name, r.LeafPixels, r.Results)
			if err != nil {
				return err
			}
		}
		return w.Flush()
	})
	if err != nil {
		return files, fmt.Errorf("Error writing %s: %w", fn, err)
	}
	files = append(files, fn)

	if len(sum.Failures) > 0 {
		fn = filepath.Join(dir, FailuresFile)
		err = writeFile(fn, func(f *os.File) error {
			return report.WriteFailures(f, sum.Failures)
		})
		if err != nil {
			return files, fmt.Errorf("Error writing %s: %w", fn, err)
		}
		files = append(files, fn)
	}

	var all [][]porosity.Result
	for _, r := range sum.Rows {
		all = append(all, r.Results)
	}
	sum.Thresholds, err = report.Summarise(thresholds, all)
	if err != nil {
		return files, err
	}
	fn = filepath.Join(dir, SummaryFile)
	err = writeFile(fn, func(f *os.File) error {
		return report.WriteSummary(f, sum.Thresholds)
	})
	if err != nil {
		return files, fmt.Errorf("Error writing %s: %w", fn, err)
	}
	files = append(files, fn)

	fn = filepath.Join(dir, GraphFile)
	err = writeFile(fn, func(f *os.File) error {
		return canopy.Graph(sum.Thresholds, title, f)
	})
	if err != nil {
		// not an error for the batch; too few thresholds or photos
		logger.Println("No graph drawn:", err)
		_ = os.Remove(fn)
	} else {
		files = append(files, fn)
	}

	return files, nil
}

func writeFile(fn string, write func(f *os.File) error) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	err = write(f)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// upload uploads each file into the result storage, returning the
// keys uploaded to
func upload(conn Uploader, files []string) ([]string, error) {
	var keys []string
	for _, fn := range files {
		key := conn.ResultPrefix() + filepath.Base(fn)
		conn.Log("Uploading", key)
		err := conn.Upload(conn.ResultStorageId(), key, fn)
		if err != nil {
			return keys, fmt.Errorf("Error uploading %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
