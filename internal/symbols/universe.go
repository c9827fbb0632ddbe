package symbols

import "candlescope/pkg/model"

// DefaultStocks is offered when the gainers listing cannot be read
var DefaultStocks = []string{"AAPL", "MSFT", "GOOG", "AMZN", "TSLA"}

// DefaultFunds is offered when the mutual fund listing cannot be read
var DefaultFunds = []string{"VFIAX", "SWPPX", "FXAIX", "VTSAX", "SPY"}

// Defaults returns a fresh copy of the static list for a category
func Defaults(c model.Category) []string {
	var src []string
	switch c {
	case model.CategoryStock:
		src = DefaultStocks
	case model.CategoryFund:
		src = DefaultFunds
	default:
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
