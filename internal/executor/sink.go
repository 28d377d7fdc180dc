// Package executor turns approved trade decisions into exchange orders and
// durable receipts.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sakatrade/saka/internal/config"
	"github.com/sakatrade/saka/internal/exchange"
	"github.com/sakatrade/saka/internal/models"
)

// stablecoinSuffixes are quote currencies that already name a tradeable pair
var stablecoinSuffixes = []string{"USDT", "BUSD", "TUSD", "USDC"}

// NormalizeSymbol converts a human asset name like "BTC/USD" into the
// exchange pair symbol "BTCUSDT". Symbols that already end in a stablecoin
// quote pass through unchanged.
func NormalizeSymbol(asset string) string {
	s := strings.ToUpper(strings.ReplaceAll(asset, "/", ""))
	for _, suffix := range stablecoinSuffixes {
		if strings.HasSuffix(s, suffix) {
			return s
		}
	}
	if strings.HasSuffix(s, "USD") {
		return strings.TrimSuffix(s, "USD") + "USDT"
	}
	return s
}

// ReceiptWriter persists execution receipts
type ReceiptWriter interface {
	Insert(ctx context.Context, r *models.Receipt) error
}

// Sink executes approved decisions against the exchange and records a
// receipt for every attempt that produced a terminal exchange reply.
type Sink struct {
	exchange exchange.Client
	receipts ReceiptWriter
	logger   zerolog.Logger
}

// NewSink creates an execution sink
func NewSink(ex exchange.Client, receipts ReceiptWriter) *Sink {
	return &Sink{
		exchange: ex,
		receipts: receipts,
		logger:   config.NewLogger("executor"),
	}
}

// Execute places the order described by the decision and persists the
// resulting receipt. Buys hit the live order endpoint; sells are simulated
// against the current average price because the book holds no inventory
// tracking yet.
func (s *Sink) Execute(ctx context.Context, decision models.Execute) (*models.Receipt, error) {
	symbol := NormalizeSymbol(decision.Asset)

	s.logger.Info().
		Str("asset", decision.Asset).
		Str("symbol", symbol).
		Str("side", string(decision.Side)).
		Float64("amount_usd", decision.AmountUSD).
		Msg("Executing trade decision")

	switch decision.Side {
	case models.SignalBuy:
		return s.executeBuy(ctx, symbol, decision)
	case models.SignalSell:
		return s.executeSimulatedSell(ctx, symbol, decision)
	default:
		return nil, models.NewCycleError(models.ErrClientInput, "executor",
			fmt.Errorf("unsupported trade side: %q", decision.Side))
	}
}

func (s *Sink) executeBuy(ctx context.Context, symbol string, decision models.Execute) (*models.Receipt, error) {
	result, err := s.exchange.MarketBuy(ctx, symbol, decision.AmountUSD)
	if err != nil {
		classified := s.classifyOrderError(symbol, decision, err)

		// A structured rejection is a terminal exchange reply; it gets a
		// failed receipt like any other terminal non-fill.
		var apiErr *common.APIError
		if errors.As(err, &apiErr) {
			receipt := rejectionReceipt(decision, apiErr)
			if persistErr := s.persist(ctx, receipt); persistErr != nil {
				return nil, persistErr
			}
			return receipt, classified
		}
		return nil, classified
	}

	receipt := receiptFromOrder(result, decision)

	if result.Status != exchange.StatusFilled {
		receipt.Status = models.ReceiptStatusFailed
		if persistErr := s.persist(ctx, receipt); persistErr != nil {
			return nil, persistErr
		}
		return receipt, models.NewCycleError(models.ErrExchangeRejected, "exchange",
			fmt.Errorf("order %s terminated with status %s", result.OrderID, result.Status))
	}

	// A FILLED reply must carry positive fill quantities; anything else is
	// an unusable fill and must never become a success receipt.
	if !result.ExecutedQty.IsPositive() || !result.CumulativeQuoteQty.IsPositive() {
		receipt.Status = models.ReceiptStatusFailed
		if persistErr := s.persist(ctx, receipt); persistErr != nil {
			return nil, persistErr
		}
		return receipt, models.NewCycleError(models.ErrExchangeRejected, "exchange",
			fmt.Errorf("order %s reported FILLED with non-positive fill quantities (qty=%s, quote=%s)",
				result.OrderID, result.ExecutedQty, result.CumulativeQuoteQty))
	}

	receipt.Status = models.ReceiptStatusSuccess
	if persistErr := s.persist(ctx, receipt); persistErr != nil {
		return nil, persistErr
	}

	s.logger.Info().
		Str("order_id", receipt.OrderID).
		Str("symbol", symbol).
		Str("executed_price", receipt.ExecutedPrice.String()).
		Str("executed_quantity", receipt.ExecutedQuantity.String()).
		Msg("Buy order filled")
	return receipt, nil
}

// executeSimulatedSell books a test receipt at the current average price
// instead of placing a live sell. There is no position ledger yet, so a real
// sell could liquidate holdings the pipeline does not know about.
func (s *Sink) executeSimulatedSell(ctx context.Context, symbol string, decision models.Execute) (*models.Receipt, error) {
	price, err := s.exchange.AvgPrice(ctx, symbol)
	if err != nil {
		return nil, s.classifyOrderError(symbol, decision, err)
	}
	if price <= 0 {
		return nil, models.NewCycleError(models.ErrExchangeRejected, "exchange",
			fmt.Errorf("non-positive average price %v for %s", price, symbol))
	}

	amount := decimal.NewFromFloat(decision.AmountUSD)
	execPrice := decimal.NewFromFloat(price)

	receipt := &models.Receipt{
		OrderID:          "sim-" + uuid.New().String(),
		Status:           models.ReceiptStatusTestSuccess,
		Asset:            decision.Asset,
		Side:             decision.Side,
		ExecutedPrice:    execPrice,
		ExecutedQuantity: amount.Div(execPrice),
		AmountUSD:        amount,
		Timestamp:        time.Now().UTC(),
		RawResponse: map[string]interface{}{
			"simulated": true,
			"symbol":    symbol,
			"avg_price": price,
		},
	}

	if persistErr := s.persist(ctx, receipt); persistErr != nil {
		return nil, persistErr
	}

	s.logger.Info().
		Str("order_id", receipt.OrderID).
		Str("symbol", symbol).
		Float64("avg_price", price).
		Msg("Sell executed in simulation mode")
	return receipt, nil
}

// classifyOrderError maps exchange failures onto the cycle error taxonomy.
// A structured exchange rejection means the order definitively did not
// execute; a cut-off transport error leaves the order state unknown.
func (s *Sink) classifyOrderError(symbol string, decision models.Execute, err error) error {
	if errors.Is(err, exchange.ErrDisabled) {
		return err
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn().
			Str("symbol", symbol).
			Int64("exchange_code", apiErr.Code).
			Str("exchange_message", apiErr.Message).
			Msg("Exchange rejected the order")
		return models.NewCycleError(models.ErrExchangeRejected, "exchange", err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		s.logger.Error().
			Err(err).
			Str("symbol", symbol).
			Str("side", string(decision.Side)).
			Float64("amount_usd", decision.AmountUSD).
			Msg("Exchange call cut off after send; order state unknown, manual reconciliation required")
		return models.NewCycleError(models.ErrExchangeUnknown, "exchange", err)
	}

	s.logger.Error().
		Err(err).
		Str("symbol", symbol).
		Msg("Exchange call failed with unclassified transport error; order state unknown")
	return models.NewCycleError(models.ErrExchangeUnknown, "exchange", err)
}

// persist writes the receipt. A write failure after a fill is surfaced as a
// persistence error and the full receipt is logged so the record survives in
// the log stream.
func (s *Sink) persist(ctx context.Context, r *models.Receipt) error {
	if err := s.receipts.Insert(ctx, r); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", r.OrderID).
			Str("status", string(r.Status)).
			Str("asset", r.Asset).
			Str("side", string(r.Side)).
			Str("executed_price", r.ExecutedPrice.String()).
			Str("executed_quantity", r.ExecutedQuantity.String()).
			Str("amount_usd", r.AmountUSD.String()).
			Time("timestamp", r.Timestamp).
			Interface("raw_response", r.RawResponse).
			Msg("Receipt could not be persisted; full receipt logged for recovery")
		return models.NewCycleError(models.ErrPersistence, "receipt_store", err)
	}
	return nil
}

// rejectionReceipt records a structured exchange rejection. No order reached
// the book, so the id is synthetic and the fill fields stay zero.
func rejectionReceipt(decision models.Execute, apiErr *common.APIError) *models.Receipt {
	return &models.Receipt{
		OrderID:          "rej-" + uuid.New().String(),
		Status:           models.ReceiptStatusFailed,
		Asset:            decision.Asset,
		Side:             decision.Side,
		ExecutedPrice:    decimal.Zero,
		ExecutedQuantity: decimal.Zero,
		AmountUSD:        decimal.NewFromFloat(decision.AmountUSD),
		Timestamp:        time.Now().UTC(),
		RawResponse: map[string]interface{}{
			"exchange_code":    apiErr.Code,
			"exchange_message": apiErr.Message,
		},
	}
}

// receiptFromOrder builds the durable record from a terminal order reply
func receiptFromOrder(result *exchange.OrderResult, decision models.Execute) *models.Receipt {
	price := decimal.Zero
	if result.ExecutedQty.IsPositive() {
		price = result.CumulativeQuoteQty.Div(result.ExecutedQty)
	}

	ts := result.TransactTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &models.Receipt{
		OrderID:          result.OrderID,
		Asset:            decision.Asset,
		Side:             decision.Side,
		ExecutedPrice:    price,
		ExecutedQuantity: result.ExecutedQty,
		AmountUSD:        result.CumulativeQuoteQty,
		Timestamp:        ts,
		RawResponse:      result.Raw,
	}
}
