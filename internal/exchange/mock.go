package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock is an in-memory Client for tests. Responses and errors are
// programmable per call; all invocations are recorded.
type Mock struct {
	mu sync.Mutex

	PingErr     error
	AvgPriceVal float64
	AvgPriceErr error

	BuyResult *OrderResult
	BuyErr    error

	SellResult *OrderResult
	SellErr    error

	BuyCalls  []MockOrderCall
	SellCalls []MockOrderCall
}

// MockOrderCall records one market order invocation
type MockOrderCall struct {
	Symbol   string
	Quantity float64
}

// NewMock creates a mock exchange with sane defaults
func NewMock() *Mock {
	return &Mock{AvgPriceVal: 50000.0}
}

// Ping implements Client
func (m *Mock) Ping(ctx context.Context) error { return m.PingErr }

// AvgPrice implements Client
func (m *Mock) AvgPrice(ctx context.Context, symbol string) (float64, error) {
	if m.AvgPriceErr != nil {
		return 0, m.AvgPriceErr
	}
	return m.AvgPriceVal, nil
}

// MarketBuy implements Client
func (m *Mock) MarketBuy(ctx context.Context, symbol string, quoteQty float64) (*OrderResult, error) {
	m.mu.Lock()
	m.BuyCalls = append(m.BuyCalls, MockOrderCall{Symbol: symbol, Quantity: quoteQty})
	m.mu.Unlock()

	if m.BuyErr != nil {
		return nil, m.BuyErr
	}
	if m.BuyResult != nil {
		return m.BuyResult, nil
	}
	// Default: full fill at the configured average price
	qty := decimal.NewFromFloat(quoteQty).Div(decimal.NewFromFloat(m.AvgPriceVal))
	return &OrderResult{
		OrderID:            uuid.New().String(),
		Status:             StatusFilled,
		ExecutedQty:        qty,
		CumulativeQuoteQty: decimal.NewFromFloat(quoteQty),
		Raw:                map[string]interface{}{"mock": true, "symbol": symbol},
	}, nil
}

// MarketSell implements Client
func (m *Mock) MarketSell(ctx context.Context, symbol string, baseQty float64) (*OrderResult, error) {
	m.mu.Lock()
	m.SellCalls = append(m.SellCalls, MockOrderCall{Symbol: symbol, Quantity: baseQty})
	m.mu.Unlock()

	if m.SellErr != nil {
		return nil, m.SellErr
	}
	if m.SellResult != nil {
		return m.SellResult, nil
	}
	return nil, fmt.Errorf("mock: sell not programmed for %s", symbol)
}
