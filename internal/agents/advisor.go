package agents

import (
	"context"

	"github.com/sakatrade/saka/internal/models"
)

// AdvisorClient wraps the trade advisor. The advisor sees every proposal
// that survives the filter stage and can reject it.
type AdvisorClient struct {
	caller *Caller
}

// NewAdvisorClient creates the advisor client
func NewAdvisorClient(caller *Caller) *AdvisorClient {
	return &AdvisorClient{caller: caller}
}

// ReviewTrade submits a proposal for advisory approval
func (c *AdvisorClient) ReviewTrade(ctx context.Context, proposal models.TradeProposal) (models.Approval, error) {
	var approval models.Approval
	if err := c.caller.Post(ctx, "/review_trade", proposal, &approval); err != nil {
		return models.Approval{}, err
	}
	return approval, nil
}
