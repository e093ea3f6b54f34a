// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rescribe.xyz/canopy/porosity"
)

// Summary describes the porosity of a batch of images at one threshold
type Summary struct {
	Threshold float64
	N         int
	Mean      float64
	StdDev    float64
	Min       float64
	Max       float64
}

// Summarise computes a Summary for each threshold from the results
// of every image. Each entry of results must hold one result per
// threshold, in order.
func Summarise(thresholds []float64, results [][]porosity.Result) ([]Summary, error) {
	var sums []Summary
	for i, t := range thresholds {
		var vals []float64
		for n, r := range results {
			if len(r) != len(thresholds) || r[i].Threshold != t {
				return nil, fmt.Errorf("Error summarising results: image %d does not match thresholds", n)
			}
			vals = append(vals, r[i].Porosity)
		}
		s := Summary{Threshold: t, N: len(vals)}
		if len(vals) > 0 {
			s.Mean = stat.Mean(vals, nil)
			s.Min = floats.Min(vals)
			s.Max = floats.Max(vals)
		}
		if len(vals) > 1 {
			s.StdDev = stat.StdDev(vals, nil)
		}
		sums = append(sums, s)
	}
	return sums, nil
}

// WriteSummary writes a table with one row per threshold
func WriteSummary(w io.Writer, sums []Summary) error {
	c := csv.NewWriter(w)
	c.Comma = Delimiter
	err := c.Write([]string{"Threshold", "Images", "Mean", "Std Dev", "Min", "Max"})
	if err != nil {
		return err
	}
	for _, s := range sums {
		err = c.Write([]string{
			ColumnName(s.Threshold),
			strconv.Itoa(s.N),
			FormatPorosity(s.Mean),
			FormatPorosity(s.StdDev),
			FormatPorosity(s.Min),
			FormatPorosity(s.Max),
		})
		if err != nil {
			return err
		}
	}
	c.Flush()
	return c.Error()
}
