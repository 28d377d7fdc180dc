package exchange

import (
	"context"
	"testing"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBinanceDefaults(t *testing.T) {
	b := NewBinance(BinanceConfig{Testnet: true})
	assert.False(t, b.Disabled(), "a fresh client starts enabled")
}

func TestDisabledClientRefusesCalls(t *testing.T) {
	b := NewBinance(BinanceConfig{Testnet: true})
	b.disabled.Store(true)

	ctx := context.Background()
	assert.ErrorIs(t, b.Ping(ctx), ErrDisabled)

	_, err := b.AvgPrice(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = b.MarketBuy(ctx, "BTCUSDT", 100)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = b.MarketSell(ctx, "BTCUSDT", 0.01)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestConvertOrderResponse(t *testing.T) {
	resp := &binance.CreateOrderResponse{
		Symbol:                   "BTCUSDT",
		OrderID:                  12345,
		ClientOrderID:            "client-1",
		TransactTime:             1748779200000, // 2025-06-01T12:00:00Z
		ExecutedQuantity:         "0.00500000",
		CummulativeQuoteQuantity: "150.00000000",
		Status:                   binance.OrderStatusTypeFilled,
	}

	result := convertOrderResponse(resp)

	assert.Equal(t, "12345", result.OrderID)
	assert.Equal(t, StatusFilled, result.Status)
	assert.True(t, result.ExecutedQty.Equal(decimal.RequireFromString("0.005")))
	assert.True(t, result.CumulativeQuoteQty.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, 2025, result.TransactTime.Year())
	assert.Equal(t, "BTCUSDT", result.Raw["symbol"])
}

func TestConvertOrderResponseUnparseableQuantitiesBecomeZero(t *testing.T) {
	resp := &binance.CreateOrderResponse{
		OrderID:                  7,
		ExecutedQuantity:         "not-a-number",
		CummulativeQuoteQuantity: "",
		Status:                   binance.OrderStatusTypeFilled,
	}

	result := convertOrderResponse(resp)

	// Zero values are rejected downstream before a success receipt is built
	require.True(t, result.ExecutedQty.IsZero())
	require.True(t, result.CumulativeQuoteQty.IsZero())
}
