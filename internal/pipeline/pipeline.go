package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candlescope/internal/chart"
	"candlescope/internal/export"
	"candlescope/internal/recorder"
	"candlescope/pkg/model"
)

// Terminal outcomes of a run. They are expected and carry no partial output.
var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrNoData           = errors.New("no data")
)

// Lookback bounds every series request
const Lookback = "1d"

// Selector supplies the interactive answers of a run
type Selector interface {
	Category(ctx context.Context) (string, error)
	Count(ctx context.Context) (string, error)
	Choose(ctx context.Context, c model.Category, candidates []model.SymbolCandidate) (string, error)
}

// SymbolLoader resolves the selection menu for a category
type SymbolLoader interface {
	Load(ctx context.Context, c model.Category, maxItems int) (model.RetrievalOutcome, error)
	Fallback(c model.Category, reason string) model.RetrievalOutcome
}

// SeriesProvider fetches candles for a ticker
type SeriesProvider interface {
	GetSeries(ctx context.Context, symbol, interval, lookback string) (model.Series, error)
}

// Detector finds patterns in a normalized series
type Detector interface {
	Detect(series model.Series) []model.PatternEvent
}

// Pipeline runs one category, listing, fetch, detect, chart and export pass
type Pipeline struct {
	Loader   SymbolLoader
	Provider SeriesProvider
	Engine   Detector
	Renderer chart.Renderer
	Sink     export.Sink
	Recorder recorder.Recorder
	Selector Selector

	ChartsDir   string
	PatternsDir string
	FundCount   int // listing size for funds, which are not asked for a count

	Out    io.Writer
	Logger *zap.Logger

	now func() time.Time
}

// Result describes a completed run
type Result struct {
	RunID      string
	Ticker     string
	Category   model.Category
	Outcome    model.RetrievalOutcome
	Series     model.Series
	Events     []model.PatternEvent
	ChartPath  string
	ExportPath string // empty when nothing was detected
}

// Run executes the pipeline once. ErrInvalidCategory, ErrInvalidSelection
// and ErrNoData halt the run before any file is written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger().With(zap.String("run_id", res.RunID))
	started := p.clock()

	answer, err := p.Selector.Category(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading category: %w", err)
	}
	category, ok := model.ParseCategory(strings.TrimSpace(answer))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, answer)
	}
	res.Category = category
	log = log.With(zap.Stringer("category", category))

	outcome, err := p.listing(ctx, category)
	if err != nil {
		return nil, err
	}
	res.Outcome = outcome
	if outcome.Fallback {
		log.Warn("using default list", zap.String("reason", outcome.Reason))
		fmt.Fprintf(p.out(), "Using default %s list. (%s)\n", category.Noun(), outcome.Reason)
	}

	choice, err := p.Selector.Choose(ctx, category, outcome.Candidates)
	if err != nil {
		return nil, fmt.Errorf("reading selection: %w", err)
	}
	idx, err := ParseSelection(choice, len(outcome.Candidates))
	if err != nil {
		return nil, err
	}
	res.Ticker = outcome.Candidates[idx-1].Ticker
	log = log.With(zap.String("ticker", res.Ticker))

	fmt.Fprintf(p.out(), "\nFetching data for: %s...\n", res.Ticker)
	series, err := p.Provider.GetSeries(ctx, res.Ticker, category.Interval(), Lookback)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("series fetch failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrNoData, res.Ticker, err)
	}
	series = model.Normalize(series)
	if !hasPrices(series) {
		return nil, fmt.Errorf("%w: %s", ErrNoData, res.Ticker)
	}
	res.Series = series

	res.Events = p.Engine.Detect(series)
	log.Info("patterns detected",
		zap.Int("candles", series.Len()),
		zap.Int("events", len(res.Events)),
	)

	last := series.Last().Time
	res.ChartPath = chart.Path(p.ChartsDir, res.Ticker, category.Tag(), last)
	spec := chart.BuildSpec(series, res.Events, chart.Title(res.Ticker, last))
	if err := p.Renderer.Render(spec, res.ChartPath); err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}
	fmt.Fprintf(p.out(), "Chart saved as: %s\n", res.ChartPath)

	if len(res.Events) > 0 {
		path := p.exportPath(res.Ticker, category, last)
		if err := p.Sink.Export(path, res.Events); err != nil {
			// chart and export go out together or not at all
			if rmErr := os.Remove(res.ChartPath); rmErr != nil {
				log.Warn("removing chart after failed export", zap.Error(rmErr))
			}
			return nil, fmt.Errorf("exporting patterns: %w", err)
		}
		res.ExportPath = path
		fmt.Fprintf(p.out(), "Patterns saved to %s: %s\n", strings.ToUpper(p.Sink.Ext()), path)
	} else {
		fmt.Fprintln(p.out(), "No reversal patterns detected.")
	}

	if p.Recorder != nil {
		rec := &recorder.RunRecord{
			RunID:      res.RunID,
			StartedAt:  started,
			Ticker:     res.Ticker,
			Category:   category.Tag(),
			Fallback:   outcome.Fallback,
			Candles:    series.Len(),
			LastBar:    last,
			ChartPath:  res.ChartPath,
			ExportPath: res.ExportPath,
			Events:     res.Events,
		}
		if err := p.Recorder.RecordRun(rec); err != nil {
			log.Warn("recording run failed", zap.Error(err))
		}
	}

	return res, nil
}

// listing asks for the item count when the category needs one and loads
// the menu. A count that is not a number falls back to the default list.
func (p *Pipeline) listing(ctx context.Context, c model.Category) (model.RetrievalOutcome, error) {
	count := p.FundCount
	if c == model.CategoryStock {
		answer, err := p.Selector.Count(ctx)
		if err != nil {
			return model.RetrievalOutcome{}, fmt.Errorf("reading count: %w", err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil {
			return p.Loader.Fallback(c, fmt.Sprintf("invalid count %q", answer)), nil
		}
		count = n
	}

	outcome, err := p.Loader.Load(ctx, c, count)
	if err != nil {
		if ctx.Err() != nil {
			return model.RetrievalOutcome{}, ctx.Err()
		}
		p.logger().Warn("listing failed", zap.Error(err))
		return p.Loader.Fallback(c, err.Error()), nil
	}
	return outcome, nil
}

func (p *Pipeline) exportPath(ticker string, c model.Category, last time.Time) string {
	return filepath.Join(p.PatternsDir, export.FileName(ticker, c.Tag(), last, p.Sink.Ext()))
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

// hasPrices reports whether at least one candle carries finite prices
func hasPrices(s model.Series) bool {
	for _, c := range s.Candles {
		if c.Valid() {
			return true
		}
	}
	return false
}

// ParseSelection validates a 1-based menu answer against n entries
func ParseSelection(answer string, n int) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || idx < 1 || idx > n {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSelection, answer)
	}
	return idx, nil
}
