// Package exchange wraps the external exchange API behind a small interface:
// price lookup, market orders and connectivity checks.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDisabled is returned by every call after a failed startup ping. The
// client stays disabled until the process restarts.
var ErrDisabled = errors.New("exchange client is disabled: startup ping failed")

// Order statuses as reported by the exchange
const (
	StatusFilled   = "FILLED"
	StatusRejected = "REJECTED"
	StatusExpired  = "EXPIRED"
	StatusCanceled = "CANCELED"
)

// OrderResult is the parsed reply to a market order
type OrderResult struct {
	OrderID            string
	Status             string
	ExecutedQty        decimal.Decimal
	CumulativeQuoteQty decimal.Decimal
	TransactTime       time.Time
	Raw                map[string]interface{}
}

// Client is the exchange surface consumed by the execution sink
type Client interface {
	// Ping checks connectivity; called once at startup
	Ping(ctx context.Context) error
	// AvgPrice returns the current average price for a symbol
	AvgPrice(ctx context.Context, symbol string) (float64, error)
	// MarketBuy places a market buy quoted in the quote currency (USD amount)
	MarketBuy(ctx context.Context, symbol string, quoteQty float64) (*OrderResult, error)
	// MarketSell places a market sell of a base-currency quantity
	MarketSell(ctx context.Context, symbol string, baseQty float64) (*OrderResult, error)
}
