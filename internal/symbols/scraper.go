package symbols

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"candlescope/internal/ratelimit"
	"candlescope/internal/retry"
	"candlescope/pkg/model"
)

// DefaultRowClass marks the rows of Yahoo's screener tables
const DefaultRowClass = "simpTblRow"

var errNoSymbols = errors.New("listing page contained no symbols")

// Doer sends HTTP requests; *http.Client satisfies it
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ScraperConfig holds the listing fetch settings
type ScraperConfig struct {
	Retries  int
	Delay    time.Duration
	Timeout  time.Duration
	RowClass string
	Limiter  *ratelimit.Limiter
	Clock    retry.Clock
}

// DefaultScraperConfig returns 3 attempts, 2s apart, 10s per request
func DefaultScraperConfig() ScraperConfig {
	return ScraperConfig{
		Retries:  3,
		Delay:    2 * time.Second,
		Timeout:  10 * time.Second,
		RowClass: DefaultRowClass,
	}
}

// Scraper reads ticker symbols off a listing page
type Scraper struct {
	client Doer
	cfg    ScraperConfig
	logger *zap.Logger

	// OnAttempt, when set, is called after every attempt with its outcome
	OnAttempt func(attempt int, err error)
}

// NewScraper creates a scraper. A nil client gets an http.Client with the
// configured timeout.
func NewScraper(client Doer, cfg ScraperConfig, logger *zap.Logger) *Scraper {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RowClass == "" {
		cfg.RowClass = DefaultRowClass
	}
	if cfg.Clock == nil {
		cfg.Clock = retry.RealClock{}
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{client: client, cfg: cfg, logger: logger}
}

// Scrape returns up to maxItems symbols from the page at url. When every
// attempt fails it returns an empty list and a nil error; only cancellation
// of ctx is reported as an error.
func (s *Scraper) Scrape(ctx context.Context, url string, maxItems int) ([]model.SymbolCandidate, error) {
	var tickers []string

	policy := retry.Policy{
		Attempts: s.cfg.Retries,
		Delay:    s.cfg.Delay,
		OnFailure: func(attempt int, err error) {
			s.logger.Warn("listing attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", s.cfg.Retries),
				zap.String("url", url),
				zap.Error(err))
		},
	}

	attempts, err := retry.Do(ctx, policy, s.cfg.Clock, func(ctx context.Context, attempt int) error {
		found, err := s.attempt(ctx, url, maxItems)
		if s.OnAttempt != nil {
			s.OnAttempt(attempt, err)
		}
		if err != nil {
			return err
		}
		tickers = found
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("listing unavailable", zap.String("url", url), zap.Int("attempts", attempts), zap.Error(err))
		return nil, nil
	}

	s.logger.Info("listing fetched",
		zap.String("url", url),
		zap.Int("attempts", attempts),
		zap.Int("symbols", len(tickers)))
	return model.Candidates(tickers), nil
}

func (s *Scraper) attempt(ctx context.Context, url string, maxItems int) ([]string, error) {
	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return nil, retry.Permanent(err)
		}
	}

	body, err := s.fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, retry.Immediate(fmt.Errorf("parsing listing: %w", err))
	}

	tickers := ExtractSymbols(doc, s.cfg.RowClass, maxItems)
	if len(tickers) == 0 {
		// a readable page without symbols is retried without waiting
		return nil, retry.Immediate(errNoSymbols)
	}
	return tickers, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests && s.cfg.Limiter != nil {
		s.cfg.Limiter.SignalRateLimited()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("listing status %d", resp.StatusCode)
	}
	if s.cfg.Limiter != nil {
		s.cfg.Limiter.ResetBackoff()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading listing: %w", err)
	}
	return string(data), nil
}

// ExtractSymbols returns the trimmed first-cell text of the first maxItems
// rows carrying rowClass, skipping rows without a non-empty cell.
func ExtractSymbols(doc *html.Node, rowClass string, maxItems int) []string {
	if maxItems <= 0 {
		return nil
	}

	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(rows) >= maxItems {
			return
		}
		if n.Type == html.ElementNode && n.Data == "tr" && hasClass(n, rowClass) {
			rows = append(rows, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		cell := findElement(row, "td")
		if cell == nil {
			continue
		}
		if sym := strings.TrimSpace(textContent(cell)); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// findElement returns the first descendant named tag, depth first
func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
