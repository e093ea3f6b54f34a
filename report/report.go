// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// report writes porosity results as semicolon separated tables, one
// row per image and one porosity column per threshold.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"rescribe.xyz/canopy/porosity"
)

// Delimiter separates the columns of every table
const Delimiter = ';'

// ReferenceColumn is the header for thresholds of 1 or more, which
// never mark a gap and so are compared against the Can-EYE method
const ReferenceColumn = "Porosity_Can-EYE_Comparison"

// ColumnName gives the header for the porosity column of a threshold
func ColumnName(threshold float64) string {
	if threshold >= 1 {
		return ReferenceColumn
	}
	return fmt.Sprintf("Porosity %.2f", threshold)
}

// Header returns the header row for a results table
func Header(thresholds []float64) []string {
	h := []string{"File Name", "Leaf pix Count"}
	for _, t := range thresholds {
		h = append(h, ColumnName(t))
	}
	return h
}

// FormatPorosity formats a porosity value to 4 decimal places
func FormatPorosity(p float64) string {
	return strconv.FormatFloat(p, 'f', 4, 64)
}

// Writer writes a results table. The columns are positional, so
// every row must have results for the same thresholds, in the same
// order, as the header.
type Writer struct {
	w          *csv.Writer
	thresholds []float64
}

// NewWriter returns a Writer for results at the given thresholds
func NewWriter(w io.Writer, thresholds []float64) *Writer {
	c := csv.NewWriter(w)
	c.Comma = Delimiter
	return &Writer{w: c, thresholds: append([]float64(nil), thresholds...)}
}

// WriteHeader writes the header row
func (w *Writer) WriteHeader() error {
	return w.w.Write(Header(w.thresholds))
}

// Write writes the row for one image
func (w *Writer) Write(name string, leaf int, results []porosity.Result) error {
	if len(results) != len(w.thresholds) {
		return fmt.Errorf("Error writing results for %s: %d results for %d thresholds", name, len(results), len(w.thresholds))
	}
	row := []string{name, strconv.Itoa(leaf)}
	for i, r := range results {
		if r.Threshold != w.thresholds[i] {
			return fmt.Errorf("Error writing results for %s: result %d is for threshold %v, not %v", name, i, r.Threshold, w.thresholds[i])
		}
		row = append(row, FormatPorosity(r.Porosity))
	}
	return w.w.Write(row)
}

// Flush writes any buffered rows, returning any error from writing
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Failure records an image which could not be analysed
type Failure struct {
	Name string
	Err  error
}

// WriteFailures writes a table of the images which failed, and why
func WriteFailures(w io.Writer, failures []Failure) error {
	c := csv.NewWriter(w)
	c.Comma = Delimiter
	err := c.Write([]string{"File Name", "Error"})
	if err != nil {
		return err
	}
	for _, f := range failures {
		err = c.Write([]string{f.Name, f.Err.Error()})
		if err != nil {
			return err
		}
	}
	c.Flush()
	return c.Error()
}
