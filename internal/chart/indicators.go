package chart

import (
	"math"

	"candlescope/pkg/model"
)

// CalculateMA calculates the Simple Moving Average of closes ending at the
// last candle. Returns 0 when there is not enough data.
func CalculateMA(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// RollingMA returns the SMA of closes at every candle. Entries are NaN until
// the window is full, and NaN while a non-finite close is inside the window.
func RollingMA(candles []model.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 {
		return out
	}

	for i := period - 1; i < len(candles); i++ {
		avg := CalculateMA(candles[i-period+1:i+1], period)
		if math.IsNaN(avg) || math.IsInf(avg, 0) {
			continue
		}
		out[i] = avg
	}
	return out
}
