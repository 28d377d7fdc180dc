package agents

import (
	"context"
	"fmt"

	"github.com/sakatrade/saka/internal/models"
)

// SizerClient wraps the position sizer
type SizerClient struct {
	caller *Caller
}

// NewSizerClient creates the sizer client
func NewSizerClient(caller *Caller) *SizerClient {
	return &SizerClient{caller: caller}
}

// sizingRequest is the sizer's input contract
type sizingRequest struct {
	Asset      string  `json:"asset"`
	EntryPrice float64 `json:"entry_price"`
}

// CalculatePositionSize requests the USD amount to commit to a trade
func (c *SizerClient) CalculatePositionSize(ctx context.Context, asset string, entryPrice float64) (models.Sizing, error) {
	var sizing models.Sizing
	req := sizingRequest{Asset: asset, EntryPrice: entryPrice}
	if err := c.caller.Post(ctx, "/calculate_position_size", req, &sizing); err != nil {
		return models.Sizing{}, err
	}
	if sizing.AmountUSD <= 0 {
		return models.Sizing{}, c.caller.contractErr(fmt.Errorf(
			"amount_usd must be positive: %v", sizing.AmountUSD))
	}
	return sizing, nil
}
