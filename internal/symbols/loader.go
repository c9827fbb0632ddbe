package symbols

import (
	"context"
	"fmt"

	"candlescope/pkg/model"
)

// Source returns ranked symbols from a listing page. An empty result means
// the listing was unavailable.
type Source interface {
	Scrape(ctx context.Context, url string, maxItems int) ([]model.SymbolCandidate, error)
}

// Loader resolves the menu for a category, substituting the static list
// when the live listing yields nothing
type Loader struct {
	source Source
	urls   map[model.Category]string
}

// NewLoader creates a loader reading stocks and funds from the given pages
func NewLoader(src Source, stockURL, fundURL string) *Loader {
	return &Loader{
		source: src,
		urls: map[model.Category]string{
			model.CategoryStock: stockURL,
			model.CategoryFund:  fundURL,
		},
	}
}

// Load returns the live listing or the category's default list
func (l *Loader) Load(ctx context.Context, c model.Category, maxItems int) (model.RetrievalOutcome, error) {
	url, ok := l.urls[c]
	if !ok {
		return model.RetrievalOutcome{}, fmt.Errorf("no listing for category %v", c)
	}

	candidates, err := l.source.Scrape(ctx, url, maxItems)
	if err != nil {
		return model.RetrievalOutcome{}, fmt.Errorf("scraping %s listing: %w", c.Noun(), err)
	}
	if len(candidates) == 0 {
		return l.Fallback(c, "Fallback to default"), nil
	}

	return model.RetrievalOutcome{Candidates: candidates}, nil
}

// Fallback returns the static list for c with the reason it was used
func (l *Loader) Fallback(c model.Category, reason string) model.RetrievalOutcome {
	return model.RetrievalOutcome{
		Candidates: model.Candidates(Defaults(c)),
		Fallback:   true,
		Reason:     reason,
	}
}
