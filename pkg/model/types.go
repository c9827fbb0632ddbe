package model

import (
	"math"
	"sort"
	"time"
)

// Candle represents a single candlestick (OHLCV data)
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Body returns the absolute distance between open and close
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Valid reports whether all four prices are finite numbers
func (c Candle) Valid() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Series is an ordered run of candles for one symbol
type Series struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Candles  []Candle `json:"candles"`
}

// Empty reports whether the series holds no candles
func (s Series) Empty() bool {
	return len(s.Candles) == 0
}

// Len returns the number of candles
func (s Series) Len() int {
	return len(s.Candles)
}

// Last returns the most recent candle. It panics on an empty series.
func (s Series) Last() Candle {
	return s.Candles[len(s.Candles)-1]
}

// Index returns the position of the candle stamped t, or -1
func (s Series) Index(t time.Time) int {
	i := sort.Search(len(s.Candles), func(i int) bool {
		return !s.Candles[i].Time.Before(t)
	})
	if i < len(s.Candles) && s.Candles[i].Time.Equal(t) {
		return i
	}
	return -1
}

// Normalize returns a copy of the series with naive (UTC-labelled wall clock)
// timestamps, sorted ascending, keeping the last row for duplicated stamps.
func Normalize(s Series) Series {
	out := Series{Symbol: s.Symbol, Interval: s.Interval}
	if len(s.Candles) == 0 {
		return out
	}

	candles := make([]Candle, len(s.Candles))
	for i, c := range s.Candles {
		c.Time = StripZone(c.Time)
		candles[i] = c
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	deduped := candles[:0]
	for _, c := range candles {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(c.Time) {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}
	out.Candles = deduped
	return out
}

// StripZone keeps the wall clock of t and drops its location
func StripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Category is the kind of instrument the user charts
type Category int

const (
	CategoryStock Category = iota + 1
	CategoryFund
)

// ParseCategory maps the menu answer ("1" or "2") to a category
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "1":
		return CategoryStock, true
	case "2":
		return CategoryFund, true
	default:
		return 0, false
	}
}

// Tag is the short label used in output file names
func (c Category) Tag() string {
	switch c {
	case CategoryStock:
		return "Stock"
	case CategoryFund:
		return "MF"
	default:
		return "Unknown"
	}
}

// Interval is the bar size requested from the series feed
func (c Category) Interval() string {
	if c == CategoryStock {
		return "1m"
	}
	return "1d"
}

// Noun is the human readable name used in prompts
func (c Category) Noun() string {
	if c == CategoryStock {
		return "stock"
	}
	return "mutual fund"
}

func (c Category) String() string {
	return c.Tag()
}

// PatternKind is one of the detected candlestick shapes
type PatternKind string

const (
	PatternDoji      PatternKind = "Doji"
	PatternHammer    PatternKind = "Hammer"
	PatternEngulfing PatternKind = "Engulfing"
)

// PatternEvent marks a candle that matched a pattern
type PatternEvent struct {
	Time time.Time   `json:"time"`
	Kind PatternKind `json:"pattern"`
}

// SymbolCandidate is one entry of the selection menu
type SymbolCandidate struct {
	Rank   int    `json:"rank"` // 1-based
	Ticker string `json:"ticker"`
}

// Candidates ranks tickers in the given order
func Candidates(tickers []string) []SymbolCandidate {
	out := make([]SymbolCandidate, len(tickers))
	for i, t := range tickers {
		out[i] = SymbolCandidate{Rank: i + 1, Ticker: t}
	}
	return out
}

// RetrievalOutcome is either a live listing or a fallback list with a reason
type RetrievalOutcome struct {
	Candidates []SymbolCandidate `json:"candidates"`
	Fallback   bool              `json:"fallback"`
	Reason     string            `json:"reason,omitempty"`
}

// Live reports whether the candidates came from the remote listing
func (o RetrievalOutcome) Live() bool {
	return !o.Fallback
}

// Annotation is a marker drawn on the chart
type Annotation struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
	Label string    `json:"label"`
}
