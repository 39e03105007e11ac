package broker

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Sizing configuration errors. Quantity and amount_usd are mutually
// intended but not schema-enforced; both set is rejected here rather than
// silently preferring one.
var (
	ErrAmbiguousSizing = errors.New("both quantity and amount_usd are set")
	ErrNoSizing        = errors.New("neither quantity nor amount_usd is set")
	ErrZeroPrice       = errors.New("cannot size notional order without a price")
)

// SizeOrder converts an action's sizing fields into a share quantity.
// An explicit quantity wins; otherwise shares are computed from
// amount_usd / price, truncated to four decimal places (fractional shares).
func SizeOrder(quantity, amountUSD *float64, price float64) (decimal.Decimal, error) {
	if quantity != nil && amountUSD != nil {
		return decimal.Zero, ErrAmbiguousSizing
	}
	if quantity == nil && amountUSD == nil {
		return decimal.Zero, ErrNoSizing
	}
	if quantity != nil {
		return decimal.NewFromFloat(*quantity), nil
	}
	if price <= 0 {
		return decimal.Zero, ErrZeroPrice
	}
	shares := decimal.NewFromFloat(*amountUSD).Div(decimal.NewFromFloat(price))
	return shares.Truncate(4), nil
}
