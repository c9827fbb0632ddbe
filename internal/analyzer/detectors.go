package analyzer

import (
	"candlescope/pkg/model"
)

// Doji: tiny body inside a non-trivial range. Thresholds are absolute price
// units, not a share of the price.
func Doji(cfg PatternConfig) Detector {
	return Detector{
		Kind: model.PatternDoji,
		Match: func(_ *model.Candle, c model.Candle) bool {
			return c.Body() < cfg.DojiMaxBody && c.Range() > cfg.DojiMinRange
		},
	}
}

// Hammer: bullish candle with a long lower wick and a short upper wick.
// A zero body is compared literally, there is no ratio to divide by.
func Hammer(cfg PatternConfig) Detector {
	return Detector{
		Kind: model.PatternHammer,
		Match: func(_ *model.Candle, c model.Candle) bool {
			body := c.Body()
			return c.Close > c.Open &&
				(c.Open-c.Low) > cfg.HammerWick*body &&
				(c.High-c.Close) < body
		},
	}
}

// Engulfing: bullish candle whose body covers the previous bearish body.
// Bearish engulfing is intentionally not detected.
func Engulfing() Detector {
	return Detector{
		Kind: model.PatternEngulfing,
		Match: func(prev *model.Candle, c model.Candle) bool {
			if prev == nil {
				return false
			}
			return prev.Close < prev.Open &&
				c.Close > c.Open &&
				c.Close > prev.Open &&
				c.Open < prev.Close
		},
	}
}
