package provider

import (
	"context"
	"errors"
	"fmt"

	"candlescope/pkg/model"
)

// Provider defines the interface for price series feeds
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetSeries fetches OHLCV bars for symbol. interval is a feed bar size
	// ("1m", "1d"), lookback a feed range ("1d"). A symbol without data yields
	// an empty series and a nil error.
	GetSeries(ctx context.Context, symbol, interval, lookback string) (model.Series, error)
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a new fallback provider
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetSeries asks each provider in turn. A non-retryable error (the symbol is
// unknown, the request is malformed) stops the chain since the next provider
// would answer the same.
func (f *FallbackProvider) GetSeries(ctx context.Context, symbol, interval, lookback string) (model.Series, error) {
	if len(f.providers) == 0 {
		return model.Series{}, errors.New("no data providers configured")
	}

	var lastErr error
	for _, p := range f.providers {
		series, err := p.GetSeries(ctx, symbol, interval, lookback)
		if err == nil {
			return series, nil
		}
		lastErr = err

		var pe *ProviderError
		if errors.As(err, &pe) && !pe.Retryable {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return model.Series{}, fmt.Errorf("fetching %s: %w", symbol, lastErr)
}

// Providers returns the list of underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
