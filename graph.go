// Copyright 2026 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package canopy

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"rescribe.xyz/canopy/report"
)

const yticknum = 10

// createSeries creates a line through the porosity values of a graph
func createSeries(xvalues []float64, yvalues []float64, c drawing.Color, dashed bool) chart.ContinuousSeries {
	s := chart.ContinuousSeries{
		XValues: xvalues,
		YValues: yvalues,
		Style: chart.Style{
			StrokeColor: c,
		},
	}
	if dashed {
		s.Style.StrokeDashArray = []float64{5.0, 5.0}
	}
	return s
}

// Graph creates a graph of the porosity of a batch of photos against
// threshold, showing the mean with the minimum and maximum as dashed
// lines. Thresholds of 1 or more are left out, as they never mark any
// gaps.
func Graph(sums []report.Summary, title string, w io.Writer) error {
	var graphsums []report.Summary
	for _, s := range sums {
		if s.Threshold < 1 && s.N > 0 {
			graphsums = append(graphsums, s)
		}
	}
	if len(graphsums) < 2 {
		return errors.New("Not enough thresholds to graph")
	}
	sort.Slice(graphsums, func(i, j int) bool { return graphsums[i].Threshold < graphsums[j].Threshold })

	var xvalues, means, mins, maxes []float64
	var ticks, yticks []chart.Tick
	var annotations []chart.Value2
	for _, s := range graphsums {
		xvalues = append(xvalues, s.Threshold)
		means = append(means, s.Mean)
		mins = append(mins, s.Min)
		maxes = append(maxes, s.Max)
		ticks = append(ticks, chart.Tick{Value: s.Threshold, Label: fmt.Sprintf("%.2f", s.Threshold)})
		annotations = append(annotations, chart.Value2{Label: fmt.Sprintf("%.3f", s.Mean), XValue: s.Threshold, YValue: s.Mean})
	}
	for i := 0; i <= yticknum; i++ {
		n := float64(i) / yticknum
		yticks = append(yticks, chart.Tick{Value: n, Label: fmt.Sprintf("%.1f", n)})
	}

	mainSeries := createSeries(xvalues, means, chart.ColorBlue, false)
	mainSeries.Style.FillColor = chart.ColorAlternateBlue

	graph := chart.Chart{
		Title:  title,
		Width:  1920,
		Height: 1080,
		XAxis: chart.XAxis{
			Name: "Threshold",
			Range: &chart.ContinuousRange{
				Min: xvalues[0],
				Max: xvalues[len(xvalues)-1],
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Porosity",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: 1.0,
			},
			Ticks: yticks,
		},
		Series: []chart.Series{
			mainSeries,
			createSeries(xvalues, mins, chart.ColorAlternateGray, true),
			createSeries(xvalues, maxes, chart.ColorAlternateGray, true),
			chart.AnnotationSeries{
				Annotations: annotations,
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
