// Package agents provides typed HTTP clients for the external collaborators:
// the four specialist analyzers, the trade advisor and the position sizer.
// Clients never retry; failures are classified and the cycle aborts.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sakatrade/saka/internal/models"
)

// HeaderInternalAPIKey is the shared-secret header sent on every internal call
const HeaderInternalAPIKey = "X-Internal-API-Key"

// Circuit breaker thresholds for collaborator calls. A tripped breaker fails
// fast with collaborator_unavailable instead of waiting out the timeout.
const (
	breakerMinRequests   = 5
	breakerFailureRatio  = 0.6
	breakerOpenTimeout   = 30 * time.Second
	breakerCountInterval = 10 * time.Second
)

// Caller is a thin POST-JSON client shared by all collaborator wrappers.
// The http.Client is shared process-wide; the breaker is per collaborator.
type Caller struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewCaller creates a collaborator caller with its own circuit breaker
func NewCaller(name, baseURL, apiKey string, timeout time.Duration, client *http.Client) *Caller {
	if client == nil {
		client = NewHTTPClient()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: breakerCountInterval,
		Timeout:  breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && ratio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("collaborator", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Collaborator circuit breaker state changed")
		},
	})
	return &Caller{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client:  client,
		breaker: breaker,
	}
}

// NewHTTPClient builds the shared HTTP client with pooled connections.
// One instance is created in the composition root and handed to all callers.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Name returns the collaborator name used in error classification and logs
func (c *Caller) Name() string { return c.name }

// Post sends a JSON body to baseURL+path and decodes the reply into out.
// Errors come back classified per the cycle taxonomy.
func (c *Caller) Post(ctx context.Context, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.NewCycleError(models.ErrCollaboratorUnavailable, c.name,
			fmt.Errorf("circuit breaker open"))
	}
	return err
}

func (c *Caller) do(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return models.NewCycleError(models.ErrCollaboratorContract, c.name,
			fmt.Errorf("failed to encode request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return models.NewCycleError(models.ErrCollaboratorUnavailable, c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderInternalAPIKey, c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("collaborator", c.name).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Collaborator call completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.NewCycleError(models.ErrCollaboratorUnavailable, c.name,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewCycleError(models.ErrCollaboratorContract, c.name,
			fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

func (c *Caller) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewCycleError(models.ErrTimeout, c.name, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.NewCycleError(models.ErrTimeout, c.name, err)
	}
	if errors.Is(err, context.Canceled) {
		// Sibling failure cancelled this call; report the cancellation so
		// the first error wins in the errgroup.
		return models.NewCycleError(models.ErrCollaboratorUnavailable, c.name, err)
	}
	return models.NewCycleError(models.ErrCollaboratorUnavailable, c.name, err)
}

// contractErr wraps a schema violation found after a successful decode
func (c *Caller) contractErr(err error) error {
	return models.NewCycleError(models.ErrCollaboratorContract, c.name, err)
}
