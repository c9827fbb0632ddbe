package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescope/pkg/model"
)

var t0 = time.Date(2024, 1, 15, 15, 59, 0, 0, time.UTC)

func testSeries(n int) model.Series {
	candles := make([]model.Candle, n)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = model.Candle{
			Time:   t0.Add(time.Duration(i-n+1) * time.Minute),
			Open:   p,
			High:   p + 1,
			Low:    p - 1,
			Close:  p + 0.5,
			Volume: int64(1000 + i),
		}
	}
	return model.Series{Symbol: "BBB", Interval: "1m", Candles: candles}
}

func TestCalculateMA(t *testing.T) {
	s := testSeries(5)
	assert.InDelta(t, 102.5, CalculateMA(s.Candles, 5), 1e-9)
	assert.InDelta(t, 104.0, CalculateMA(s.Candles, 2), 1e-9)
	assert.Zero(t, CalculateMA(s.Candles, 6))
	assert.Zero(t, CalculateMA(s.Candles, 0))
}

func TestRollingMA(t *testing.T) {
	s := testSeries(6)
	ma := RollingMA(s.Candles, 5)

	require.Len(t, ma, 6)
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(ma[i]), "index %d", i)
	}
	assert.InDelta(t, 102.5, ma[4], 1e-9)
	assert.InDelta(t, 103.5, ma[5], 1e-9)

	s.Candles[5].Close = math.NaN()
	ma = RollingMA(s.Candles, 5)
	assert.True(t, math.IsNaN(ma[5]))
}

func TestBuildSpec(t *testing.T) {
	s := testSeries(12)
	events := []model.PatternEvent{
		{Time: s.Candles[3].Time, Kind: model.PatternDoji},
		{Time: s.Candles[3].Time, Kind: model.PatternEngulfing},
		{Time: t0.Add(time.Hour), Kind: model.PatternHammer},
	}

	spec := BuildSpec(s, events, "title")

	assert.Equal(t, "title", spec.Title)
	assert.Equal(t, "15:04", spec.TimeFormat)
	assert.Len(t, spec.Candles, 12)
	require.Len(t, spec.MovingAverages, 2)
	assert.Equal(t, 5, spec.MovingAverages[0].Window)
	assert.Equal(t, 10, spec.MovingAverages[1].Window)

	require.Len(t, spec.Annotations, 2, "unknown timestamp dropped")
	for _, a := range spec.Annotations {
		assert.Equal(t, s.Candles[3].Time, a.Time)
		assert.InDelta(t, s.Candles[3].High+0.5, a.Price, 1e-9)
	}
	assert.Equal(t, "Doji", spec.Annotations[0].Label)

	daily := s
	daily.Interval = "1d"
	assert.Equal(t, "Jan 02", BuildSpec(daily, nil, "").TimeFormat)
}

func TestNames(t *testing.T) {
	last := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)

	assert.Equal(t, "BBB_Stock_20240307_0905_intraday_chart.png", FileName("BBB", "Stock", last))
	assert.Equal(t, filepath.Join("charts", "VFIAX_MF_20240307_0905_intraday_chart.png"), Path("charts", "VFIAX", "MF", last))
	assert.Equal(t, "BBB - Intraday Price Movement\nAs of Mar 07, 2024 - 09:05", Title("BBB", last))
}

func TestPNGRenderer(t *testing.T) {
	s := testSeries(30)
	events := []model.PatternEvent{{Time: s.Candles[10].Time, Kind: model.PatternHammer}}
	path := filepath.Join(t.TempDir(), "chart.png")

	err := NewPNGRenderer(800, 600).Render(BuildSpec(s, events, Title("BBB", s.Last().Time)), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
}

func TestPNGRenderer_SingleCandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.png")
	require.NoError(t, NewPNGRenderer(400, 300).Render(BuildSpec(testSeries(1), nil, "one"), path))
	assert.FileExists(t, path)
}

func TestPNGRenderer_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.png")
	assert.Error(t, NewPNGRenderer(400, 300).Render(Spec{}, path))
	assert.NoFileExists(t, path)
}
