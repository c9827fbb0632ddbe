package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlescope/pkg/model"
)

var base = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

func candle(min int, o, h, l, c float64) model.Candle {
	return model.Candle{
		Time:   base.Add(time.Duration(min) * time.Minute),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: 1000,
	}
}

func series(candles ...model.Candle) model.Series {
	return model.Series{Symbol: "TEST", Interval: "1m", Candles: candles}
}

func kinds(events []model.PatternEvent) []model.PatternKind {
	out := make([]model.PatternKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestPatternEngine_EmptySeries(t *testing.T) {
	engine := NewPatternEngine(DefaultPatternConfig())
	assert.Empty(t, engine.Detect(series()))
}

func TestPatternEngine_SingleCandle(t *testing.T) {
	tests := []struct {
		name   string
		candle model.Candle
		want   []model.PatternKind
	}{
		{
			name:   "flat body with wide range is a doji",
			candle: candle(0, 100, 100.2, 99.9, 100),
			want:   []model.PatternKind{model.PatternDoji},
		},
		{
			name:   "tiny body but narrow range is nothing",
			candle: candle(0, 100, 100.05, 99.99, 100.01),
			want:   []model.PatternKind{},
		},
		{
			name:   "long lower wick bullish candle is a hammer",
			candle: candle(0, 10, 10.6, 8.9, 10.5),
			want:   []model.PatternKind{model.PatternHammer},
		},
		{
			name:   "bearish candle with long lower wick is not a hammer",
			candle: candle(0, 10.5, 10.6, 8.9, 10),
			want:   []model.PatternKind{},
		},
		{
			name:   "hammer with long upper wick is rejected",
			candle: candle(0, 10, 11.5, 8.9, 10.5),
			want:   []model.PatternKind{},
		},
		{
			name:   "zero body with narrow range and lower wick is nothing",
			candle: candle(0, 10, 10, 9.95, 10),
			want:   []model.PatternKind{},
		},
		{
			name:   "doji wins over hammer on the same candle",
			candle: candle(0, 10, 10.02, 9.5, 10.01),
			want:   []model.PatternKind{model.PatternDoji},
		},
	}

	engine := NewPatternEngine(DefaultPatternConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := engine.Detect(series(tt.candle))
			assert.Equal(t, tt.want, kinds(events))
			for _, ev := range events {
				assert.True(t, ev.Time.Equal(tt.candle.Time))
			}
		})
	}
}

func TestPatternEngine_DojiForAnyFlatCandle(t *testing.T) {
	engine := NewPatternEngine(DefaultPatternConfig())
	for _, price := range []float64{1, 17.25, 250, 4200} {
		for _, spread := range []float64{0.11, 0.5, 0.9} {
			c := candle(0, price, price+spread/2, price-spread/2, price)
			events := engine.Detect(series(c))
			require.Len(t, events, 1, "price=%v spread=%v", price, spread)
			assert.Equal(t, model.PatternDoji, events[0].Kind)
			assert.True(t, events[0].Time.Equal(c.Time))
		}
	}
}

func TestPatternEngine_BullishEngulfing(t *testing.T) {
	prev := candle(0, 10, 10.1, 8.9, 9)
	cur := candle(1, 8.8, 10.3, 8.7, 10.2)

	events := NewPatternEngine(DefaultPatternConfig()).Detect(series(prev, cur))

	require.Len(t, events, 1)
	assert.Equal(t, model.PatternEngulfing, events[0].Kind)
	assert.True(t, events[0].Time.Equal(cur.Time))
}

func TestPatternEngine_BearishEngulfingIgnored(t *testing.T) {
	prev := candle(0, 9, 10.1, 8.9, 10)
	cur := candle(1, 10.2, 10.3, 8.7, 8.8)

	events := NewPatternEngine(DefaultPatternConfig()).Detect(series(prev, cur))
	assert.Empty(t, events)
}

func TestPatternEngine_EngulfingCoOccurs(t *testing.T) {
	engine := NewPatternEngine(DefaultPatternConfig())

	t.Run("with doji", func(t *testing.T) {
		prev := candle(0, 10, 10, 9.99, 9.99)
		cur := candle(1, 9.985, 10.2, 9.9, 10.005)
		events := engine.Detect(series(prev, cur))
		assert.Equal(t, []model.PatternKind{model.PatternDoji, model.PatternEngulfing}, kinds(events))
	})

	t.Run("with hammer", func(t *testing.T) {
		prev := candle(0, 10, 10.05, 9.75, 9.8)
		cur := candle(1, 9.7, 10.15, 8.8, 10.1)
		events := engine.Detect(series(prev, cur))
		assert.Equal(t, []model.PatternKind{model.PatternHammer, model.PatternEngulfing}, kinds(events))
	})
}

func TestPatternEngine_SkipsNonFiniteRows(t *testing.T) {
	engine := NewPatternEngine(DefaultPatternConfig())

	bearish := candle(0, 10, 10.1, 8.9, 9)
	broken := candle(1, math.NaN(), 10.2, 9.9, 10)
	bullish := candle(2, 8.8, 10.3, 8.7, 10.2)
	doji := candle(3, 100, math.Inf(1), 99.9, 100)

	events := engine.Detect(series(bearish, broken, bullish, doji))
	assert.Empty(t, events)

	// the same bullish candle right after the bearish one engulfs it
	events = engine.Detect(series(bearish, bullish))
	assert.Equal(t, []model.PatternKind{model.PatternEngulfing}, kinds(events))
}

func TestPatternEngine_AscendingOrder(t *testing.T) {
	engine := NewPatternEngine(DefaultPatternConfig())
	events := engine.Detect(series(
		candle(0, 100, 100.2, 99.9, 100),
		candle(1, 10, 10.1, 8.9, 9),
		candle(2, 8.8, 10.3, 8.7, 10.2),
		candle(3, 10, 10.6, 8.9, 10.5),
	))

	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Time.Before(events[i-1].Time))
	}
	assert.Equal(t, map[model.PatternKind]int{
		model.PatternDoji:      1,
		model.PatternEngulfing: 1,
		model.PatternHammer:    1,
	}, Summarize(events))
}

func TestPatternEngine_CustomGroups(t *testing.T) {
	engine := NewPatternEngineWithGroups(Group{Detectors: []Detector{Engulfing()}})
	events := engine.Detect(series(
		candle(0, 100, 100.2, 99.9, 100),
		candle(1, 10, 10.1, 8.9, 9),
		candle(2, 8.8, 10.3, 8.7, 10.2),
	))
	assert.Equal(t, []model.PatternKind{model.PatternEngulfing}, kinds(events))
}

func TestHammer_ZeroBody(t *testing.T) {
	hammer := Hammer(DefaultPatternConfig())

	// open == close: the wick comparison is against a zero body, never a ratio
	assert.False(t, hammer.Match(nil, candle(0, 10, 10, 9.95, 10)))
	assert.False(t, hammer.Match(nil, candle(0, 10, 10.3, 8, 10)))
}
