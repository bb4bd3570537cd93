// Package plot draws structured chart objects as raster images.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/montanaflynn/stats"
	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/metcalfc/spectra/internal/chart"
)

// ErrNoData is returned for plots without any numeric series.
var ErrNoData = errors.New("plot has no numeric data")

// Default image size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// Render draws p and decodes the result for display.
func Render(p *chart.Plot, width, height int) (image.Image, error) {
	data, err := RenderPNG(p, width, height)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode plot: %w", err)
	}
	return img, nil
}

// RenderPNG draws p as PNG bytes. Bar traces, categorical x values and
// single points become a bar chart of the first usable trace; everything
// else is drawn as lines.
func RenderPNG(p *chart.Plot, width, height int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var buf bytes.Buffer
	var err error
	if useBars(p) {
		err = renderBars(&buf, p, width, height)
	} else {
		err = renderLines(&buf, p, width, height)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func useBars(p *chart.Plot) bool {
	for _, tr := range p.Traces {
		ys := chart.Numbers(tr.Y)
		if len(ys) == 0 {
			continue
		}
		if tr.Type == "bar" || len(ys) < 2 {
			return true
		}
		if len(tr.X) > 0 && len(chart.Numbers(tr.X)) != len(tr.X) {
			return true
		}
	}
	return false
}

func renderLines(buf *bytes.Buffer, p *chart.Plot, width, height int) error {
	var series []gochart.Series
	var all []float64
	for i, tr := range p.Traces {
		ys := chart.Numbers(tr.Y)
		if len(ys) < 2 {
			continue
		}
		xs := chart.Numbers(tr.X)
		if len(xs) != len(ys) {
			xs = make([]float64, len(ys))
			for j := range xs {
				xs[j] = float64(j)
			}
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    traceName(i, tr),
			XValues: xs,
			YValues: ys,
		})
		all = append(all, ys...)
	}
	if len(series) == 0 {
		return ErrNoData
	}

	ch := gochart.Chart{
		Title:      p.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      gochart.YAxis{Range: yRange(all)},
		Series:     series,
	}
	if len(series) > 1 {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}
	if err := ch.Render(gochart.PNG, buf); err != nil {
		return fmt.Errorf("failed to render line chart: %w", err)
	}
	return nil
}

func renderBars(buf *bytes.Buffer, p *chart.Plot, width, height int) error {
	var bars []gochart.Value
	var all []float64
	for _, tr := range p.Traces {
		ys := chart.Numbers(tr.Y)
		if len(ys) == 0 {
			continue
		}
		labels := chart.Labels(tr.X)
		for i, y := range ys {
			label := fmt.Sprint(i + 1)
			if i < len(labels) {
				label = labels[i]
			}
			bars = append(bars, gochart.Value{Value: y, Label: label})
		}
		all = ys
		break
	}
	if len(bars) == 0 {
		return ErrNoData
	}

	bw := width / (len(bars) * 2)
	bw = max(4, min(bw, 60))
	bc := gochart.BarChart{
		Title:    p.Title,
		Width:    width,
		Height:   height,
		BarWidth: bw,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: gochart.YAxis{Range: yRange(all)},
		Bars:  bars,
	}
	if err := bc.Render(gochart.PNG, buf); err != nil {
		return fmt.Errorf("failed to render bar chart: %w", err)
	}
	return nil
}

// yRange widens flat data, which go-chart refuses to draw, and anchors the
// axis at zero for all-positive values.
func yRange(ys []float64) gochart.Range {
	data := stats.Float64Data(ys)
	lo, err := data.Min()
	if err != nil {
		return &gochart.ContinuousRange{Min: 0, Max: 1}
	}
	hi, _ := data.Max()
	if lo > 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}
	if hi == lo {
		pad := math.Max(math.Abs(hi)*0.1, 1)
		lo, hi = lo-pad, hi+pad
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

func traceName(i int, tr chart.Trace) string {
	if tr.Name != "" {
		return tr.Name
	}
	return fmt.Sprintf("series %d", i+1)
}
