package analyzer

import (
	"candlescope/pkg/model"
)

// Detector evaluates one candle, with its predecessor when there is one.
// prev is nil for the first candle of a series.
type Detector struct {
	Kind  model.PatternKind
	Match func(prev *model.Candle, cur model.Candle) bool
}

// Group is an ordered set of detectors. In an exclusive group the first
// match wins; otherwise every matching detector emits.
type Group struct {
	Exclusive bool
	Detectors []Detector
}

// PatternConfig holds the absolute thresholds of the shape predicates
type PatternConfig struct {
	DojiMaxBody  float64 // body must stay below this
	DojiMinRange float64 // range must exceed this
	HammerWick   float64 // lower wick must exceed HammerWick x body
}

// DefaultPatternConfig returns the thresholds in price units
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		DojiMaxBody:  0.03,
		DojiMinRange: 0.1,
		HammerWick:   2,
	}
}

// PatternEngine detects reversal candles over a price series
type PatternEngine struct {
	groups []Group
}

// NewPatternEngine creates an engine with Doji/Hammer as one exclusive group
// followed by bullish Engulfing on its own.
func NewPatternEngine(cfg PatternConfig) *PatternEngine {
	return NewPatternEngineWithGroups(
		Group{Exclusive: true, Detectors: []Detector{Doji(cfg), Hammer(cfg)}},
		Group{Detectors: []Detector{Engulfing()}},
	)
}

// NewPatternEngineWithGroups creates an engine from custom detector groups
func NewPatternEngineWithGroups(groups ...Group) *PatternEngine {
	return &PatternEngine{groups: groups}
}

// Detect returns the events of the series in ascending time order.
// Rows with a non-finite price are skipped and do not serve as the
// predecessor of the following row.
func (e *PatternEngine) Detect(series model.Series) []model.PatternEvent {
	var events []model.PatternEvent

	var prev *model.Candle
	for i := range series.Candles {
		cur := series.Candles[i]
		if !cur.Valid() {
			prev = nil
			continue
		}

		for _, g := range e.groups {
			for _, d := range g.Detectors {
				if !d.Match(prev, cur) {
					continue
				}
				events = append(events, model.PatternEvent{Time: cur.Time, Kind: d.Kind})
				if g.Exclusive {
					break
				}
			}
		}

		prev = &series.Candles[i]
	}

	return events
}

// Summarize counts events per kind
func Summarize(events []model.PatternEvent) map[model.PatternKind]int {
	counts := make(map[model.PatternKind]int)
	for _, ev := range events {
		counts[ev.Kind]++
	}
	return counts
}
