// Package models defines the wire types exchanged between the orchestrator,
// the analyzer agents, the decision engine and the execution sink, plus the
// cycle error taxonomy shared across packages.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWarmup is the minimum number of historical closes an analysis
// request must carry before the analyzers can produce meaningful output.
const DefaultWarmup = 30

// TradeSignal represents a directional trading signal
type TradeSignal string

const (
	SignalBuy  TradeSignal = "BUY"
	SignalSell TradeSignal = "SELL"
	SignalHold TradeSignal = "HOLD"
)

// TradeType represents the order type
type TradeType string

const (
	TradeTypeMarket TradeType = "MARKET"
	TradeTypeLimit  TradeType = "LIMIT"
)

// MacroImpact classifies the severity of a macroeconomic event
type MacroImpact string

const (
	MacroImpactHigh   MacroImpact = "HIGH"
	MacroImpactMedium MacroImpact = "MEDIUM"
	MacroImpactLow    MacroImpact = "LOW"
)

// AnalysisRequest is the input to one decision cycle. HistoricalPrices are
// ordered oldest to newest; the current price is the last element.
type AnalysisRequest struct {
	Asset            string    `json:"asset"`
	HistoricalPrices []float64 `json:"historical_prices"`
}

// CurrentPrice returns the most recent close, or 0 when no history is present.
func (r *AnalysisRequest) CurrentPrice() float64 {
	if len(r.HistoricalPrices) == 0 {
		return 0
	}
	return r.HistoricalPrices[len(r.HistoricalPrices)-1]
}

// Validate checks the request against the warmup requirement
func (r *AnalysisRequest) Validate(warmup int) error {
	if r.Asset == "" {
		return NewCycleError(ErrClientInput, "request", fmt.Errorf("asset is required"))
	}
	if len(r.HistoricalPrices) < warmup {
		return NewCycleError(ErrClientInput, "request", fmt.Errorf(
			"insufficient historical data: got %d closes, need at least %d",
			len(r.HistoricalPrices), warmup))
	}
	for i, p := range r.HistoricalPrices {
		if p <= 0 {
			return NewCycleError(ErrClientInput, "request", fmt.Errorf(
				"historical price at index %d is not strictly positive: %v", i, p))
		}
	}
	return nil
}

// RiskReport is the risk analyzer's output. CanTrade=false is a hard veto.
type RiskReport struct {
	Asset      string  `json:"asset"`
	RiskLevel  float64 `json:"risk_level"`
	Volatility float64 `json:"volatility"`
	CanTrade   bool    `json:"can_trade"`
	Reason     string  `json:"reason"`
}

// Validate enforces the report's numeric invariants
func (r *RiskReport) Validate() error {
	if r.RiskLevel < 0 || r.RiskLevel > 1 {
		return fmt.Errorf("risk_level out of range [0,1]: %v", r.RiskLevel)
	}
	if r.Volatility < 0 {
		return fmt.Errorf("volatility must be non-negative: %v", r.Volatility)
	}
	return nil
}

// TechnicalReport is the technical analyzer's output
type TechnicalReport struct {
	Asset              string  `json:"asset"`
	RSI                float64 `json:"rsi"`
	MACDLine           float64 `json:"macd_line"`
	SignalLine         float64 `json:"signal_line"`
	Histogram          float64 `json:"histogram"`
	IsBullishCrossover bool    `json:"is_bullish_crossover"`
	IsBearishCrossover bool    `json:"is_bearish_crossover"`
}

// Validate enforces the report's numeric invariants
func (r *TechnicalReport) Validate() error {
	if r.RSI < 0 || r.RSI > 100 {
		return fmt.Errorf("rsi out of range [0,100]: %v", r.RSI)
	}
	return nil
}

// MacroReport is the macro analyzer's output
type MacroReport struct {
	Asset     string      `json:"asset"`
	Impact    MacroImpact `json:"impact"`
	EventName string      `json:"event_name"`
	Summary   string      `json:"summary"`
}

// Validate enforces the impact enum
func (r *MacroReport) Validate() error {
	switch r.Impact {
	case MacroImpactHigh, MacroImpactMedium, MacroImpactLow:
		return nil
	default:
		return fmt.Errorf("unknown macro impact: %q", r.Impact)
	}
}

// SentimentReport is the sentiment analyzer's output
type SentimentReport struct {
	Asset          string      `json:"asset"`
	SentimentScore float64     `json:"sentiment_score"`
	Confidence     float64     `json:"confidence"`
	Signal         TradeSignal `json:"signal"`
}

// Validate enforces the report's numeric invariants
func (r *SentimentReport) Validate() error {
	if r.SentimentScore < -1 || r.SentimentScore > 1 {
		return fmt.Errorf("sentiment_score out of range [-1,1]: %v", r.SentimentScore)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence out of range [0,1]: %v", r.Confidence)
	}
	return nil
}

// ConsolidatedInput bundles the four analyzer reports for the decision engine.
// It is assembled by the orchestrator and passed by value; the engine never
// mutates it.
type ConsolidatedInput struct {
	Asset        string          `json:"asset"`
	CurrentPrice float64         `json:"current_price"`
	Risk         RiskReport      `json:"risk_analysis"`
	Technical    TechnicalReport `json:"technical_analysis"`
	Macro        MacroReport     `json:"macro_analysis"`
	Sentiment    SentimentReport `json:"sentiment_analysis"`
}

// TradeProposal is the filter stage's output submitted to the advisor
type TradeProposal struct {
	Asset      string      `json:"asset"`
	Side       TradeSignal `json:"side"`
	TradeType  TradeType   `json:"trade_type"`
	EntryPrice float64     `json:"entry_price"`
	Reasoning  string      `json:"reasoning"`
}

// Approval is the advisor's verdict on a trade proposal
type Approval struct {
	DecisionApproved bool   `json:"decision_approved"`
	Remarks          string `json:"remarks"`
}

// Sizing is the position sizer's reply
type Sizing struct {
	Asset     string  `json:"asset"`
	AmountUSD float64 `json:"amount_usd"`
	Reasoning string  `json:"reasoning"`
}

// FinalDecision is the outcome of one decision cycle: Hold or Execute.
// The concrete type carries the fields valid for its variant, so an
// Execute always has an asset, side and amount and a Hold never does.
type FinalDecision interface {
	Action() string
	DecisionReason() string
}

// Hold means no trade this cycle
type Hold struct {
	Reason string `json:"reason"`
}

// Action implements FinalDecision
func (Hold) Action() string { return "hold" }

// DecisionReason implements FinalDecision
func (h Hold) DecisionReason() string { return h.Reason }

// MarshalJSON adds the action discriminator expected on the wire
func (h Hold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ActionField string `json:"action"`
		Reason      string `json:"reason"`
	}{ActionField: h.Action(), Reason: h.Reason})
}

// Execute means a sized, approved market order should be placed
type Execute struct {
	Asset     string      `json:"asset"`
	Side      TradeSignal `json:"side"`
	TradeType TradeType   `json:"trade_type"`
	AmountUSD float64     `json:"amount_usd"`
	Reason    string      `json:"reason"`
}

// Action implements FinalDecision
func (Execute) Action() string { return "execute_trade" }

// DecisionReason implements FinalDecision
func (e Execute) DecisionReason() string { return e.Reason }

// MarshalJSON adds the action discriminator expected on the wire
func (e Execute) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ActionField string      `json:"action"`
		Asset       string      `json:"asset"`
		Side        TradeSignal `json:"side"`
		TradeType   TradeType   `json:"trade_type"`
		AmountUSD   float64     `json:"amount_usd"`
		Reason      string      `json:"reason"`
	}{
		ActionField: e.Action(),
		Asset:       e.Asset,
		Side:        e.Side,
		TradeType:   e.TradeType,
		AmountUSD:   e.AmountUSD,
		Reason:      e.Reason,
	})
}

// ReceiptStatus is the terminal status of an execution attempt
type ReceiptStatus string

const (
	ReceiptStatusSuccess     ReceiptStatus = "success"
	ReceiptStatusTestSuccess ReceiptStatus = "test_success"
	ReceiptStatusFailed      ReceiptStatus = "failed"
)

// Receipt is the durable record of an executed order. Monetary fields use
// decimal to avoid float drift in the store; the HTTP wire format remains
// JSON numeric via decimal's marshaller.
type Receipt struct {
	OrderID          string                 `json:"order_id"`
	Status           ReceiptStatus          `json:"status"`
	Asset            string                 `json:"asset"`
	Side             TradeSignal            `json:"side"`
	ExecutedPrice    decimal.Decimal        `json:"executed_price"`
	ExecutedQuantity decimal.Decimal        `json:"executed_quantity"`
	AmountUSD        decimal.Decimal        `json:"amount_usd"`
	Timestamp        time.Time              `json:"timestamp"`
	RawResponse      map[string]interface{} `json:"raw_response,omitempty"`
}

// Ack is the immediate response of the asynchronous entry point
type Ack struct {
	Message string `json:"message"`
	Asset   string `json:"asset"`
}
