package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakatrade/saka/internal/models"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *ReceiptStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewReceiptStore(mock)
}

func sampleReceipt() *models.Receipt {
	return &models.Receipt{
		OrderID:          "12345",
		Status:           models.ReceiptStatusSuccess,
		Asset:            "BTC/USD",
		Side:             models.SignalBuy,
		ExecutedPrice:    decimal.RequireFromString("30000"),
		ExecutedQuantity: decimal.RequireFromString("0.005"),
		AmountUSD:        decimal.RequireFromString("150"),
		Timestamp:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		RawResponse:      map[string]interface{}{"symbol": "BTCUSDT"},
	}
}

func TestInsertReceipt(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO trades").
		WithArgs("12345", "success", "BTC/USD", "BUY",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Insert(context.Background(), sampleReceipt()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDuplicateOrderID(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO trades").
		WithArgs("12345", "success", "BTC/USD", "BUY",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := store.Insert(context.Background(), sampleReceipt())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateReceipt)
}

func TestInsertOtherErrorIsNotDuplicate(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("INSERT INTO trades").
		WithArgs("12345", "success", "BTC/USD", "BUY",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := store.Insert(context.Background(), sampleReceipt())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateReceipt)
}

func receiptRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"order_id", "status", "asset", "side", "executed_price",
		"executed_quantity", "amount_usd", "timestamp", "raw_response",
	})
}

func TestGetByOrderID(t *testing.T) {
	mock, store := newMockStore(t)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM trades").
		WithArgs("12345").
		WillReturnRows(receiptRows().AddRow(
			"12345", "success", "BTC/USD", "BUY",
			decimal.RequireFromString("30000"),
			decimal.RequireFromString("0.005"),
			decimal.RequireFromString("150"),
			ts,
			map[string]interface{}{"symbol": "BTCUSDT"},
		))

	receipt, err := store.GetByOrderID(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, "12345", receipt.OrderID)
	assert.Equal(t, models.ReceiptStatusSuccess, receipt.Status)
	assert.Equal(t, models.SignalBuy, receipt.Side)
	assert.True(t, receipt.ExecutedPrice.Equal(decimal.RequireFromString("30000")))
	assert.Equal(t, ts, receipt.Timestamp)
	assert.Equal(t, "BTCUSDT", receipt.RawResponse["symbol"])
}

func TestListByAsset(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM trades").
		WithArgs("BTC/USD", 10).
		WillReturnRows(receiptRows().
			AddRow("2", "success", "BTC/USD", "BUY",
				decimal.RequireFromString("31000"), decimal.RequireFromString("0.004"),
				decimal.RequireFromString("124"), time.Now().UTC(), map[string]interface{}(nil)).
			AddRow("1", "test_success", "BTC/USD", "SELL",
				decimal.RequireFromString("30000"), decimal.RequireFromString("0.005"),
				decimal.RequireFromString("150"), time.Now().UTC(), map[string]interface{}(nil)))

	receipts, err := store.ListByAsset(context.Background(), "BTC/USD", 10)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "2", receipts[0].OrderID)
	assert.Equal(t, models.ReceiptStatusTestSuccess, receipts[1].Status)
}

func TestListRecentEmpty(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM trades").
		WithArgs(50).
		WillReturnRows(receiptRows())

	receipts, err := store.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}
