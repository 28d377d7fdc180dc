// Package decision implements the hierarchical decision procedure: hard
// vetoes, signal confluence, advisory approval and position sizing. The
// filter stage is a pure function; only the approval stage performs I/O.
package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sakatrade/saka/internal/models"
)

// Thresholds are the only tuning knobs of the filter stage
type Thresholds struct {
	RSIOversold   float64 // buy confluence requires rsi strictly below
	RSIOverbought float64 // sell confluence requires rsi strictly above
	SentimentBuy  float64 // buy confluence requires score strictly above
	SentimentSell float64 // sell confluence requires score strictly below
}

// DefaultThresholds returns the production thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:   35,
		RSIOverbought: 65,
		SentimentBuy:  0.1,
		SentimentSell: -0.1,
	}
}

// Advisor reviews trade proposals before execution
type Advisor interface {
	ReviewTrade(ctx context.Context, proposal models.TradeProposal) (models.Approval, error)
}

// Sizer computes the USD amount to commit to an approved trade
type Sizer interface {
	CalculatePositionSize(ctx context.Context, asset string, entryPrice float64) (models.Sizing, error)
}

// Engine runs the full decision procedure for one consolidated input
type Engine struct {
	thresholds Thresholds
	advisor    Advisor
	sizer      Sizer
}

// NewEngine creates a decision engine with the given collaborators
func NewEngine(thresholds Thresholds, advisor Advisor, sizer Sizer) *Engine {
	return &Engine{thresholds: thresholds, advisor: advisor, sizer: sizer}
}

// Filter applies the veto hierarchy and the confluence signal. It is pure:
// no I/O, no side effects, deterministic for identical inputs. Exactly one
// of the return values is non-nil.
func Filter(in models.ConsolidatedInput, th Thresholds) (*models.Hold, *models.TradeProposal) {
	if !in.Risk.CanTrade {
		return &models.Hold{Reason: "VETO (risk): " + in.Risk.Reason}, nil
	}
	if in.Macro.Impact == models.MacroImpactHigh {
		return &models.Hold{Reason: "VETO (macro): " + in.Macro.Summary}, nil
	}

	buy := in.Technical.RSI < th.RSIOversold &&
		in.Technical.IsBullishCrossover &&
		in.Sentiment.SentimentScore > th.SentimentBuy
	sell := in.Technical.RSI > th.RSIOverbought &&
		in.Technical.IsBearishCrossover &&
		in.Sentiment.SentimentScore < th.SentimentSell

	switch {
	case buy:
		return nil, &models.TradeProposal{
			Asset:      in.Asset,
			Side:       models.SignalBuy,
			TradeType:  models.TradeTypeMarket,
			EntryPrice: in.CurrentPrice,
			Reasoning: fmt.Sprintf(
				"buy confluence: RSI %.2f below %.2f, bullish MACD crossover, sentiment %.2f above %.2f",
				in.Technical.RSI, th.RSIOversold, in.Sentiment.SentimentScore, th.SentimentBuy),
		}
	case sell:
		return nil, &models.TradeProposal{
			Asset:      in.Asset,
			Side:       models.SignalSell,
			TradeType:  models.TradeTypeMarket,
			EntryPrice: in.CurrentPrice,
			Reasoning: fmt.Sprintf(
				"sell confluence: RSI %.2f above %.2f, bearish MACD crossover, sentiment %.2f below %.2f",
				in.Technical.RSI, th.RSIOverbought, in.Sentiment.SentimentScore, th.SentimentSell),
		}
	default:
		return &models.Hold{Reason: "no confluence among technical and sentiment signals"}, nil
	}
}

// Decide runs the filter stage and, when a proposal survives, the approval
// stage against the advisor and the sizer. Collaborator failures abort the
// cycle; no collaborator is contacted when the filter already holds.
func (e *Engine) Decide(ctx context.Context, in models.ConsolidatedInput) (models.FinalDecision, error) {
	hold, proposal := Filter(in, e.thresholds)
	if hold != nil {
		log.Info().
			Str("asset", in.Asset).
			Str("reason", hold.Reason).
			Msg("Decision: hold")
		return *hold, nil
	}

	approval, err := e.advisor.ReviewTrade(ctx, *proposal)
	if err != nil {
		return nil, err
	}
	if !approval.DecisionApproved {
		log.Info().
			Str("asset", in.Asset).
			Str("remarks", approval.Remarks).
			Msg("Decision: hold, advisor rejected proposal")
		return models.Hold{Reason: approval.Remarks}, nil
	}

	sizing, err := e.sizer.CalculatePositionSize(ctx, proposal.Asset, proposal.EntryPrice)
	if err != nil {
		return nil, err
	}

	decision := models.Execute{
		Asset:     proposal.Asset,
		Side:      proposal.Side,
		TradeType: models.TradeTypeMarket,
		AmountUSD: sizing.AmountUSD,
		Reason:    joinReasons(proposal.Reasoning, approval.Remarks, sizing.Reasoning),
	}

	log.Info().
		Str("asset", decision.Asset).
		Str("side", string(decision.Side)).
		Float64("amount_usd", decision.AmountUSD).
		Msg("Decision: execute")

	return decision, nil
}

// joinReasons concatenates the non-empty reasoning fragments
func joinReasons(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
