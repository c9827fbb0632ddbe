package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"candlescope/internal/ratelimit"
	"candlescope/pkg/model"
)

// Yahoo chart API hosts, tried in this order by default
var YahooHosts = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

// YahooProvider implements Provider on the Yahoo Finance chart API (unofficial)
type YahooProvider struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
}

// NewYahooProvider creates a provider for one chart API host
func NewYahooProvider(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) *YahooProvider {
	name := "yahoo"
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		name = "yahoo:" + u.Host
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(name, 0)
	}
	return &YahooProvider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// NewYahooFallback chains one YahooProvider per host sharing a limiter
func NewYahooFallback(hosts []string, timeout time.Duration, limiter *ratelimit.Limiter) *FallbackProvider {
	providers := make([]Provider, 0, len(hosts))
	for _, h := range hosts {
		providers = append(providers, NewYahooProvider(h, timeout, limiter))
	}
	return NewFallbackProvider(providers...)
}

// Name returns the provider name
func (p *YahooProvider) Name() string {
	return p.name
}

// yahooResponse represents the Yahoo Finance API response. Quote arrays
// hold nulls for bars without trades.
type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				GMTOffset            int    `json:"gmtoffset"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetSeries fetches bars for symbol over the lookback range
func (p *YahooProvider) GetSeries(ctx context.Context, symbol, interval, lookback string) (model.Series, error) {
	empty := model.Series{Symbol: symbol, Interval: interval}

	if err := p.limiter.Wait(ctx); err != nil {
		return empty, err
	}

	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", lookback)
	q.Set("includePrePost", "false")
	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("creating request: %w", err), Retryable: false}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := p.client.Do(req)
	if err != nil {
		return empty, &ProviderError{Provider: p.Name(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.limiter.SignalRateLimited()
		return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("rate limited"), Retryable: true}
	}
	if resp.StatusCode >= 500 {
		return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: true}
	}

	p.limiter.ResetBackoff()

	var data yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if resp.StatusCode != http.StatusOK {
			return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
		}
		return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("decoding response: %w", err), Retryable: true}
	}

	if data.Chart.Error != nil {
		if data.Chart.Error.Code == "Not Found" {
			return empty, nil
		}
		return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("%s", data.Chart.Error.Description), Retryable: false}
	}
	if resp.StatusCode != http.StatusOK {
		return empty, &ProviderError{Provider: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode), Retryable: false}
	}

	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Timestamp) == 0 ||
		len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return empty, nil
	}

	result := data.Chart.Result[0]
	quotes := result.Indicators.Quote[0]
	loc := exchangeLocation(result.Meta.ExchangeTimezoneName, result.Meta.GMTOffset)

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		// bars where the feed reports nothing at all are gaps, not prices
		if math.IsNaN(o) && math.IsNaN(h) && math.IsNaN(l) && math.IsNaN(c) {
			continue
		}

		var volume int64
		if v := at(quotes.Volume, i); !math.IsNaN(v) {
			volume = int64(v)
		}

		candles = append(candles, model.Candle{
			Time:   model.StripZone(time.Unix(ts, 0).In(loc)),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: volume,
		})
	}

	empty.Candles = candles
	return empty, nil
}

// at returns the i-th value or NaN for nulls and short arrays
func at(values []*float64, i int) float64 {
	if i >= len(values) || values[i] == nil {
		return math.NaN()
	}
	return *values[i]
}

func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", gmtOffset)
}
