package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakatrade/saka/internal/exchange"
	"github.com/sakatrade/saka/internal/models"
)

type fakeReceiptWriter struct {
	inserted []*models.Receipt
	err      error
}

func (f *fakeReceiptWriter) Insert(_ context.Context, r *models.Receipt) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, r)
	return nil
}

func buyDecision(amount float64) models.Execute {
	return models.Execute{
		Asset:     "BTC/USD",
		Side:      models.SignalBuy,
		TradeType: models.TradeTypeMarket,
		AmountUSD: amount,
		Reason:    "buy confluence",
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name  string
		asset string
		want  string
	}{
		{"slash pair with usd quote", "BTC/USD", "BTCUSDT"},
		{"lowercase input", "eth/usd", "ETHUSDT"},
		{"already a tether pair", "BTCUSDT", "BTCUSDT"},
		{"slash pair already tether", "SOL/USDT", "SOLUSDT"},
		{"busd quote passes through", "BNBBUSD", "BNBBUSD"},
		{"usdc quote passes through", "ETH/USDC", "ETHUSDC"},
		{"no usd suffix unchanged", "ETHBTC", "ETHBTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSymbol(tt.asset))
		})
	}
}

func TestExecuteBuyFilled(t *testing.T) {
	ex := exchange.NewMock()
	ex.BuyResult = &exchange.OrderResult{
		OrderID:            "12345",
		Status:             exchange.StatusFilled,
		ExecutedQty:        decimal.RequireFromString("0.005"),
		CumulativeQuoteQty: decimal.RequireFromString("150"),
		TransactTime:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Raw:                map[string]interface{}{"symbol": "BTCUSDT"},
	}
	store := &fakeReceiptWriter{}
	sink := NewSink(ex, store)

	receipt, err := sink.Execute(context.Background(), buyDecision(150))
	require.NoError(t, err)
	require.NotNil(t, receipt)

	assert.Equal(t, models.ReceiptStatusSuccess, receipt.Status)
	assert.Equal(t, "12345", receipt.OrderID)
	assert.Equal(t, "BTC/USD", receipt.Asset)
	assert.Equal(t, models.SignalBuy, receipt.Side)
	// 150 quote / 0.005 base = 30000
	assert.True(t, receipt.ExecutedPrice.Equal(decimal.RequireFromString("30000")),
		"executed price = %s", receipt.ExecutedPrice)
	assert.True(t, receipt.AmountUSD.Equal(decimal.RequireFromString("150")))

	require.Len(t, ex.BuyCalls, 1)
	assert.Equal(t, "BTCUSDT", ex.BuyCalls[0].Symbol)
	assert.Equal(t, 150.0, ex.BuyCalls[0].Quantity)

	require.Len(t, store.inserted, 1)
	assert.Same(t, receipt, store.inserted[0])
}

func TestExecuteBuyNonFilledStatus(t *testing.T) {
	ex := exchange.NewMock()
	ex.BuyResult = &exchange.OrderResult{
		OrderID:            "777",
		Status:             exchange.StatusExpired,
		ExecutedQty:        decimal.Zero,
		CumulativeQuoteQty: decimal.Zero,
	}
	store := &fakeReceiptWriter{}
	sink := NewSink(ex, store)

	receipt, err := sink.Execute(context.Background(), buyDecision(100))
	require.Error(t, err)
	assert.Equal(t, models.ErrExchangeRejected, models.KindOf(err))

	// The failed attempt is still recorded
	require.NotNil(t, receipt)
	assert.Equal(t, models.ReceiptStatusFailed, receipt.Status)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, models.ReceiptStatusFailed, store.inserted[0].Status)
}

func TestExecuteBuyExchangeAPIError(t *testing.T) {
	ex := exchange.NewMock()
	ex.BuyErr = &common.APIError{Code: -2010, Message: "Account has insufficient balance"}
	store := &fakeReceiptWriter{}
	sink := NewSink(ex, store)

	receipt, err := sink.Execute(context.Background(), buyDecision(100))
	require.Error(t, err)
	assert.Equal(t, models.ErrExchangeRejected, models.KindOf(err))

	// The rejection is recorded like any other terminal exchange reply
	require.NotNil(t, receipt)
	assert.Equal(t, models.ReceiptStatusFailed, receipt.Status)
	assert.Contains(t, receipt.OrderID, "rej-")
	assert.True(t, receipt.ExecutedQuantity.IsZero())
	assert.Equal(t, int64(-2010), receipt.RawResponse["exchange_code"])
	require.Len(t, store.inserted, 1)
	assert.Equal(t, models.ReceiptStatusFailed, store.inserted[0].Status)
}

func TestExecuteBuyFilledWithEmptyFillIsRejected(t *testing.T) {
	tests := []struct {
		name  string
		qty   string
		quote string
	}{
		{"both zero", "0", "0"},
		{"zero executed quantity", "0", "150"},
		{"zero quote quantity", "0.005", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := exchange.NewMock()
			ex.BuyResult = &exchange.OrderResult{
				OrderID:            "999",
				Status:             exchange.StatusFilled,
				ExecutedQty:        decimal.RequireFromString(tt.qty),
				CumulativeQuoteQty: decimal.RequireFromString(tt.quote),
			}
			store := &fakeReceiptWriter{}
			sink := NewSink(ex, store)

			receipt, err := sink.Execute(context.Background(), buyDecision(150))
			require.Error(t, err)
			assert.Equal(t, models.ErrExchangeRejected, models.KindOf(err))

			// The unusable fill is never committed as a success
			require.NotNil(t, receipt)
			assert.Equal(t, models.ReceiptStatusFailed, receipt.Status)
			require.Len(t, store.inserted, 1)
			assert.Equal(t, models.ReceiptStatusFailed, store.inserted[0].Status)
		})
	}
}

func TestExecuteBuyDeadlineIsUnknownOutcome(t *testing.T) {
	ex := exchange.NewMock()
	ex.BuyErr = context.DeadlineExceeded
	store := &fakeReceiptWriter{}
	sink := NewSink(ex, store)

	receipt, err := sink.Execute(context.Background(), buyDecision(100))
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Equal(t, models.ErrExchangeUnknown, models.KindOf(err))
	assert.Empty(t, store.inserted)
}

func TestExecuteBuyDisabledExchangePassesThrough(t *testing.T) {
	ex := exchange.NewMock()
	ex.BuyErr = exchange.ErrDisabled
	sink := NewSink(ex, &fakeReceiptWriter{})

	_, err := sink.Execute(context.Background(), buyDecision(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrDisabled)
}

func TestExecuteBuyPersistenceFailureAfterFill(t *testing.T) {
	ex := exchange.NewMock()
	ex.BuyResult = &exchange.OrderResult{
		OrderID:            "55",
		Status:             exchange.StatusFilled,
		ExecutedQty:        decimal.RequireFromString("0.01"),
		CumulativeQuoteQty: decimal.RequireFromString("500"),
	}
	store := &fakeReceiptWriter{err: errors.New("connection refused")}
	sink := NewSink(ex, store)

	receipt, err := sink.Execute(context.Background(), buyDecision(500))
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Equal(t, models.ErrPersistence, models.KindOf(err))

	// The order must never be retried against the exchange
	assert.Len(t, ex.BuyCalls, 1)
}

func TestExecuteSellIsSimulated(t *testing.T) {
	ex := exchange.NewMock()
	ex.AvgPriceVal = 30000.0
	store := &fakeReceiptWriter{}
	sink := NewSink(ex, store)

	decision := models.Execute{
		Asset:     "BTC/USD",
		Side:      models.SignalSell,
		TradeType: models.TradeTypeMarket,
		AmountUSD: 300,
		Reason:    "sell confluence",
	}

	receipt, err := sink.Execute(context.Background(), decision)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	assert.Equal(t, models.ReceiptStatusTestSuccess, receipt.Status)
	assert.Contains(t, receipt.OrderID, "sim-")
	assert.True(t, receipt.ExecutedPrice.Equal(decimal.RequireFromString("30000")))
	// 300 / 30000 = 0.01
	assert.True(t, receipt.ExecutedQuantity.Equal(decimal.RequireFromString("0.01")),
		"executed quantity = %s", receipt.ExecutedQuantity)
	assert.Equal(t, true, receipt.RawResponse["simulated"])

	// No live sell order is ever placed
	assert.Empty(t, ex.SellCalls)
	require.Len(t, store.inserted, 1)
}

func TestExecuteSellPriceLookupFailure(t *testing.T) {
	ex := exchange.NewMock()
	ex.AvgPriceErr = context.DeadlineExceeded
	sink := NewSink(ex, &fakeReceiptWriter{})

	decision := models.Execute{
		Asset:     "ETH/USD",
		Side:      models.SignalSell,
		AmountUSD: 100,
	}
	_, err := sink.Execute(context.Background(), decision)
	require.Error(t, err)
	assert.Equal(t, models.ErrExchangeUnknown, models.KindOf(err))
}

func TestExecuteRejectsUnknownSide(t *testing.T) {
	sink := NewSink(exchange.NewMock(), &fakeReceiptWriter{})

	_, err := sink.Execute(context.Background(), models.Execute{
		Asset: "BTC/USD",
		Side:  models.SignalHold,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrClientInput, models.KindOf(err))
}
