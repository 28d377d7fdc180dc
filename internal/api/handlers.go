package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sakatrade/saka/internal/exchange"
	"github.com/sakatrade/saka/internal/models"
	"github.com/sakatrade/saka/internal/orchestrator"
)

const (
	defaultReceiptLimit = 50
	maxReceiptLimit     = 500
)

// handleTriggerSync runs one full decision cycle and returns its outcome
func (s *Server) handleTriggerSync(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.cycles.RunCycle(c.Request.Context(), req)
	if err != nil {
		s.writeCycleError(c, err)
		return
	}

	// The response body is the decision itself; the receipt, when one
	// exists, is reachable through GET /receipts.
	c.JSON(http.StatusOK, result.Decision)
}

// handleTriggerAsync accepts a cycle for background execution
func (s *Server) handleTriggerAsync(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ack, err := s.cycles.Submit(req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrTooManyCycles) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		s.writeCycleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ack)
}

// handleListReceipts serves the trade log, newest first
func (s *Server) handleListReceipts(c *gin.Context) {
	limit := defaultReceiptLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if parsed > maxReceiptLimit {
			parsed = maxReceiptLimit
		}
		limit = parsed
	}

	var (
		receipts []*models.Receipt
		err      error
	)
	if asset := c.Query("asset"); asset != "" {
		receipts, err = s.receipts.ListByAsset(c.Request.Context(), asset, limit)
	} else {
		receipts, err = s.receipts.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}
	if receipts == nil {
		receipts = []*models.Receipt{}
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "count": len(receipts)})
}

// handleHealth is the liveness probe
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReady reports readiness of the backing store
func (s *Server) handleReady(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  "database unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// writeCycleError maps a cycle failure onto its HTTP status. A disabled
// exchange is surfaced as 503 so callers can tell a dead venue from a dead
// collaborator.
func (s *Server) writeCycleError(c *gin.Context, err error) {
	if errors.Is(err, exchange.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, errBody(err))
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, errBody(err))
		return
	}

	switch models.KindOf(err) {
	case models.ErrClientInput:
		c.JSON(http.StatusBadRequest, errBody(err))
	case models.ErrCollaboratorUnavailable, models.ErrCollaboratorContract, models.ErrExchangeRejected:
		c.JSON(http.StatusBadGateway, errBody(err))
	case models.ErrTimeout, models.ErrExchangeUnknown:
		c.JSON(http.StatusGatewayTimeout, errBody(err))
	default:
		c.JSON(http.StatusInternalServerError, errBody(err))
	}
}

func errBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	var ce *models.CycleError
	if errors.As(err, &ce) {
		body["kind"] = string(ce.Kind)
		if ce.Collaborator != "" {
			body["collaborator"] = ce.Collaborator
		}
	}
	return body
}
