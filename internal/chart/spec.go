package chart

import (
	"fmt"
	"path/filepath"
	"time"

	"candlescope/pkg/model"
)

// MarkerOffset lifts pattern markers above the candle high, in price units
const MarkerOffset = 0.5

// MovingAverageWindows are drawn over the closes
var MovingAverageWindows = []int{5, 10}

// MovingAverage is one SMA overlay, aligned with the candles
type MovingAverage struct {
	Window int
	Values []float64
}

// Spec is everything a renderer needs to draw one chart
type Spec struct {
	Title          string
	TimeFormat     string
	Candles        []model.Candle
	MovingAverages []MovingAverage
	Annotations    []model.Annotation
}

// Renderer draws a chart spec to an image file
type Renderer interface {
	Render(spec Spec, path string) error
}

// BuildSpec assembles the candles, overlays and one marker per event.
// Events whose timestamp is not in the series are ignored.
func BuildSpec(series model.Series, events []model.PatternEvent, title string) Spec {
	spec := Spec{
		Title:      title,
		TimeFormat: "15:04",
		Candles:    series.Candles,
	}
	if series.Interval == "1d" {
		spec.TimeFormat = "Jan 02"
	}

	for _, w := range MovingAverageWindows {
		spec.MovingAverages = append(spec.MovingAverages, MovingAverage{
			Window: w,
			Values: RollingMA(series.Candles, w),
		})
	}

	for _, ev := range events {
		i := series.Index(ev.Time)
		if i < 0 {
			continue
		}
		spec.Annotations = append(spec.Annotations, model.Annotation{
			Time:  ev.Time,
			Price: series.Candles[i].High + MarkerOffset,
			Label: string(ev.Kind),
		})
	}

	return spec
}

// Stamp formats the last bar time used in output names
func Stamp(last time.Time) string {
	return last.Format("20060102_1504")
}

// FileName returns {ticker}_{tag}_{YYYYMMDD_HHMM}_intraday_chart.png
func FileName(ticker, tag string, last time.Time) string {
	return fmt.Sprintf("%s_%s_%s_intraday_chart.png", ticker, tag, Stamp(last))
}

// Path joins FileName onto dir
func Path(dir, ticker, tag string, last time.Time) string {
	return filepath.Join(dir, FileName(ticker, tag, last))
}

// Title returns the two-line chart heading
func Title(ticker string, last time.Time) string {
	return fmt.Sprintf("%s - Intraday Price Movement\nAs of %s", ticker, last.Format("Jan 02, 2006 - 15:04"))
}
