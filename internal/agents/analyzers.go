package agents

import (
	"context"
	"fmt"

	"github.com/sakatrade/saka/internal/models"
)

// RiskClient wraps the risk analyzer. A can_trade=false reply is the hard
// veto signal consumed by the decision engine.
type RiskClient struct {
	caller *Caller
}

// NewRiskClient creates the risk analyzer client
func NewRiskClient(caller *Caller) *RiskClient {
	return &RiskClient{caller: caller}
}

// Analyze requests a risk assessment for the asset
func (c *RiskClient) Analyze(ctx context.Context, req models.AnalysisRequest) (models.RiskReport, error) {
	var report models.RiskReport
	if err := c.caller.Post(ctx, "/analyze", req, &report); err != nil {
		return models.RiskReport{}, err
	}
	if report.Asset == "" {
		return models.RiskReport{}, c.caller.contractErr(fmt.Errorf("missing required field: asset"))
	}
	if err := report.Validate(); err != nil {
		return models.RiskReport{}, c.caller.contractErr(err)
	}
	return report, nil
}

// TechnicalClient wraps the technical analyzer (RSI, MACD, crossovers)
type TechnicalClient struct {
	caller *Caller
}

// NewTechnicalClient creates the technical analyzer client
func NewTechnicalClient(caller *Caller) *TechnicalClient {
	return &TechnicalClient{caller: caller}
}

// Analyze requests technical indicators for the asset's price history
func (c *TechnicalClient) Analyze(ctx context.Context, req models.AnalysisRequest) (models.TechnicalReport, error) {
	var report models.TechnicalReport
	if err := c.caller.Post(ctx, "/analyze", req, &report); err != nil {
		return models.TechnicalReport{}, err
	}
	if report.Asset == "" {
		return models.TechnicalReport{}, c.caller.contractErr(fmt.Errorf("missing required field: asset"))
	}
	if err := report.Validate(); err != nil {
		return models.TechnicalReport{}, c.caller.contractErr(err)
	}
	return report, nil
}

// MacroClient wraps the macroeconomic event analyzer
type MacroClient struct {
	caller *Caller
}

// NewMacroClient creates the macro analyzer client
func NewMacroClient(caller *Caller) *MacroClient {
	return &MacroClient{caller: caller}
}

// Analyze requests a macro event impact assessment
func (c *MacroClient) Analyze(ctx context.Context, req models.AnalysisRequest) (models.MacroReport, error) {
	var report models.MacroReport
	if err := c.caller.Post(ctx, "/analyze_events", req, &report); err != nil {
		return models.MacroReport{}, err
	}
	if report.Asset == "" {
		return models.MacroReport{}, c.caller.contractErr(fmt.Errorf("missing required field: asset"))
	}
	if err := report.Validate(); err != nil {
		return models.MacroReport{}, c.caller.contractErr(err)
	}
	return report, nil
}

// SentimentClient wraps the market sentiment analyzer
type SentimentClient struct {
	caller *Caller
}

// NewSentimentClient creates the sentiment analyzer client
func NewSentimentClient(caller *Caller) *SentimentClient {
	return &SentimentClient{caller: caller}
}

// Analyze requests a sentiment score for the asset
func (c *SentimentClient) Analyze(ctx context.Context, req models.AnalysisRequest) (models.SentimentReport, error) {
	var report models.SentimentReport
	if err := c.caller.Post(ctx, "/analyze_sentiment", req, &report); err != nil {
		return models.SentimentReport{}, err
	}
	if report.Asset == "" {
		return models.SentimentReport{}, c.caller.contractErr(fmt.Errorf("missing required field: asset"))
	}
	if err := report.Validate(); err != nil {
		return models.SentimentReport{}, c.caller.contractErr(err)
	}
	return report, nil
}
