package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// BinanceConfig contains configuration for the Binance client
type BinanceConfig struct {
	APIKey         string
	SecretKey      string
	Testnet        bool
	RequestsPerSec float64
}

// Binance implements Client against the Binance spot API. The client is
// shared process-wide and read-mostly after startup; only the disabled flag
// changes, and only during Start.
type Binance struct {
	client   *binance.Client
	limiter  *rate.Limiter
	testnet  bool
	disabled atomic.Bool
}

// NewBinance creates a Binance exchange client. Credentials are read once;
// rotation requires a restart.
func NewBinance(cfg BinanceConfig) *Binance {
	if cfg.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("Binance client initialized (TESTNET mode)")
	} else {
		log.Warn().Msg("Binance client initialized (LIVE TRADING mode)")
	}

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}

	return &Binance{
		client:  binance.NewClient(cfg.APIKey, cfg.SecretKey),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		testnet: cfg.Testnet,
	}
}

// Start issues the startup ping. On failure the client enters the disabled
// state: every later call returns ErrDisabled until restart.
func (b *Binance) Start(ctx context.Context) error {
	if err := b.Ping(ctx); err != nil {
		b.disabled.Store(true)
		log.Error().Err(err).Msg("Exchange unreachable at startup, client disabled")
		return fmt.Errorf("startup ping failed: %w", err)
	}
	log.Info().Bool("testnet", b.testnet).Msg("Exchange connectivity verified")
	return nil
}

// Disabled reports whether the client refused to start
func (b *Binance) Disabled() bool { return b.disabled.Load() }

// Ping checks connectivity to the exchange
func (b *Binance) Ping(ctx context.Context) error {
	if b.disabled.Load() {
		return ErrDisabled
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	return b.client.NewPingService().Do(ctx)
}

// AvgPrice returns the current average price for a symbol
func (b *Binance) AvgPrice(ctx context.Context, symbol string) (float64, error) {
	if b.disabled.Load() {
		return 0, ErrDisabled
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	res, err := b.client.NewAveragePriceService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch avg price for %s: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(res.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable avg price %q for %s: %w", res.Price, symbol, err)
	}
	return price, nil
}

// MarketBuy places a market buy quoted in the quote currency
func (b *Binance) MarketBuy(ctx context.Context, symbol string, quoteQty float64) (*OrderResult, error) {
	if b.disabled.Load() {
		return nil, ErrDisabled
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(fmt.Sprintf("%.2f", quoteQty)).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	result := convertOrderResponse(resp)
	log.Info().
		Str("order_id", result.OrderID).
		Str("symbol", symbol).
		Str("status", result.Status).
		Str("quote_qty", result.CumulativeQuoteQty.String()).
		Msg("Market buy placed")
	return result, nil
}

// MarketSell places a market sell of a base-currency quantity
func (b *Binance) MarketSell(ctx context.Context, symbol string, baseQty float64) (*OrderResult, error) {
	if b.disabled.Load() {
		return nil, ErrDisabled
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(fmt.Sprintf("%.8f", baseQty)).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	result := convertOrderResponse(resp)
	log.Info().
		Str("order_id", result.OrderID).
		Str("symbol", symbol).
		Str("status", result.Status).
		Msg("Market sell placed")
	return result, nil
}

// convertOrderResponse parses the exchange reply into an OrderResult.
// Numeric fields arrive as strings; unparseable values become zero and are
// caught downstream by the sink's fill validation.
func convertOrderResponse(resp *binance.CreateOrderResponse) *OrderResult {
	executedQty, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		executedQty = decimal.Zero
	}
	cumQuote, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		cumQuote = decimal.Zero
	}

	return &OrderResult{
		OrderID:            strconv.FormatInt(resp.OrderID, 10),
		Status:             string(resp.Status),
		ExecutedQty:        executedQty,
		CumulativeQuoteQty: cumQuote,
		TransactTime:       time.UnixMilli(resp.TransactTime).UTC(),
		Raw: map[string]interface{}{
			"symbol":                  resp.Symbol,
			"order_id":                resp.OrderID,
			"client_order_id":         resp.ClientOrderID,
			"transact_time":           resp.TransactTime,
			"price":                   resp.Price,
			"orig_quantity":           resp.OrigQuantity,
			"executed_quantity":       resp.ExecutedQuantity,
			"cummulative_quote_qty":   resp.CummulativeQuoteQuantity,
			"status":                  string(resp.Status),
			"type":                    string(resp.Type),
			"side":                    string(resp.Side),
		},
	}
}
