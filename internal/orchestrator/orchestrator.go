// Package orchestrator drives one decision cycle end to end: request
// validation, parallel analyzer fan-out, the decision procedure, execution
// and notification.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sakatrade/saka/internal/config"
	"github.com/sakatrade/saka/internal/metrics"
	"github.com/sakatrade/saka/internal/models"
)

// ErrTooManyCycles is returned by Submit when the worker pool is saturated
var ErrTooManyCycles = errors.New("too many concurrent decision cycles")

// RiskAnalyzer produces the risk report for one request
type RiskAnalyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.RiskReport, error)
}

// TechnicalAnalyzer produces the technical indicator report
type TechnicalAnalyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.TechnicalReport, error)
}

// MacroAnalyzer produces the macro event report
type MacroAnalyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.MacroReport, error)
}

// SentimentAnalyzer produces the sentiment report
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.SentimentReport, error)
}

// Decider turns a consolidated input into a final decision
type Decider interface {
	Decide(ctx context.Context, in models.ConsolidatedInput) (models.FinalDecision, error)
}

// Executor places approved orders and returns the durable receipt
type Executor interface {
	Execute(ctx context.Context, decision models.Execute) (*models.Receipt, error)
}

// Notifier reports executed trades and operator alerts out of band
type Notifier interface {
	NotifyReceipt(r *models.Receipt)
	Notify(text string)
}

// Orchestrator coordinates the decision cycle. It owns no business rules:
// vetoes and confluence live in the decision engine, execution semantics in
// the sink.
type Orchestrator struct {
	risk      RiskAnalyzer
	technical TechnicalAnalyzer
	macro     MacroAnalyzer
	sentiment SentimentAnalyzer
	decider   Decider
	executor  Executor
	notifier  Notifier

	warmup   int
	timeouts config.TimeoutsConfig

	// sem bounds the number of in-flight asynchronous cycles
	sem    *semaphore.Weighted
	logger zerolog.Logger
}

// Options groups the orchestrator's collaborators and tuning
type Options struct {
	Risk      RiskAnalyzer
	Technical TechnicalAnalyzer
	Macro     MacroAnalyzer
	Sentiment SentimentAnalyzer
	Decider   Decider
	Executor  Executor
	Notifier  Notifier

	Warmup              int
	Timeouts            config.TimeoutsConfig
	MaxConcurrentCycles int64
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	warmup := opts.Warmup
	if warmup <= 0 {
		warmup = models.DefaultWarmup
	}
	maxCycles := opts.MaxConcurrentCycles
	if maxCycles <= 0 {
		maxCycles = 16
	}

	return &Orchestrator{
		risk:      opts.Risk,
		technical: opts.Technical,
		macro:     opts.Macro,
		sentiment: opts.Sentiment,
		decider:   opts.Decider,
		executor:  opts.Executor,
		notifier:  opts.Notifier,
		warmup:    warmup,
		timeouts:  opts.Timeouts,
		sem:       semaphore.NewWeighted(maxCycles),
		logger:    config.NewLogger("orchestrator"),
	}
}

// CycleResult bundles the outcome of one cycle. Receipt is non-nil only
// when an order reached a terminal exchange state.
type CycleResult struct {
	Decision models.FinalDecision
	Receipt  *models.Receipt
}

// RunCycle executes one synchronous decision cycle. The four analyzers run
// concurrently; the first failure cancels the siblings and aborts the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, req models.AnalysisRequest) (*CycleResult, error) {
	start := time.Now()
	result, err := o.runCycle(ctx, req)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		metrics.CycleErrors.WithLabelValues(string(models.KindOf(err))).Inc()
	case result.Receipt != nil:
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeExecuted).Inc()
	default:
		metrics.CyclesTotal.WithLabelValues(metrics.OutcomeHold).Inc()
	}
	return result, err
}

func (o *Orchestrator) runCycle(ctx context.Context, req models.AnalysisRequest) (*CycleResult, error) {
	if err := req.Validate(o.warmup); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("asset", req.Asset).
		Int("closes", len(req.HistoricalPrices)).
		Msg("Decision cycle started")

	input, err := o.fanOut(ctx, req)
	if err != nil {
		o.logger.Warn().Err(err).Str("asset", req.Asset).Msg("Analysis stage failed, cycle aborted")
		return nil, err
	}

	decideCtx, cancel := context.WithTimeout(ctx, o.timeouts.Decision)
	defer cancel()

	decision, err := o.decider.Decide(decideCtx, input)
	if err != nil {
		o.logger.Warn().Err(err).Str("asset", req.Asset).Msg("Decision stage failed, cycle aborted")
		return nil, err
	}

	execute, ok := decision.(models.Execute)
	if !ok {
		return &CycleResult{Decision: decision}, nil
	}

	execCtx, cancel := context.WithTimeout(ctx, o.timeouts.Exchange)
	defer cancel()

	receipt, err := o.executor.Execute(execCtx, execute)
	if err != nil {
		// A rejected order still carries its failure receipt
		if receipt != nil {
			o.notify(receipt)
		}
		if models.KindOf(err) == models.ErrExchangeUnknown && o.notifier != nil {
			o.notifier.Notify(fmt.Sprintf(
				"⚠️ Order outcome unknown for %s %s $%.2f: exchange call was cut off after send. Manual reconciliation required.",
				execute.Side, execute.Asset, execute.AmountUSD))
		}
		return nil, err
	}

	metrics.OrdersPlaced.WithLabelValues(string(receipt.Side), string(receipt.Status)).Inc()
	metrics.ReceiptsPersisted.Inc()
	o.notify(receipt)

	o.logger.Info().
		Str("asset", req.Asset).
		Str("order_id", receipt.OrderID).
		Str("status", string(receipt.Status)).
		Msg("Decision cycle completed with execution")

	return &CycleResult{Decision: decision, Receipt: receipt}, nil
}

// fanOut runs the four analyzers concurrently. All four must succeed; the
// consolidated input is all-or-nothing.
func (o *Orchestrator) fanOut(ctx context.Context, req models.AnalysisRequest) (models.ConsolidatedInput, error) {
	input := models.ConsolidatedInput{
		Asset:        req.Asset,
		CurrentPrice: req.CurrentPrice(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, err := analyze(gctx, o.timeouts.Default, "risk", o.risk.Analyze, req)
		input.Risk = report
		return err
	})
	g.Go(func() error {
		report, err := analyze(gctx, o.timeouts.Default, "technical", o.technical.Analyze, req)
		input.Technical = report
		return err
	})
	g.Go(func() error {
		report, err := analyze(gctx, o.timeouts.Default, "macro", o.macro.Analyze, req)
		input.Macro = report
		return err
	})
	g.Go(func() error {
		report, err := analyze(gctx, o.timeouts.Default, "sentiment", o.sentiment.Analyze, req)
		input.Sentiment = report
		return err
	})

	if err := g.Wait(); err != nil {
		return models.ConsolidatedInput{}, err
	}
	return input, nil
}

// analyze wraps one analyzer call with its timeout and instrumentation
func analyze[T any](
	ctx context.Context,
	timeout time.Duration,
	name string,
	call func(context.Context, models.AnalysisRequest) (T, error),
	req models.AnalysisRequest,
) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	report, err := call(callCtx, req)
	metrics.CollaboratorLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CollaboratorCalls.WithLabelValues(name, result).Inc()
	return report, err
}

// Submit starts an asynchronous cycle. Validation happens before the ack so
// bad input still fails fast; the cycle itself runs detached from the
// caller's request context under the composite cycle deadline.
func (o *Orchestrator) Submit(req models.AnalysisRequest) (models.Ack, error) {
	if err := req.Validate(o.warmup); err != nil {
		return models.Ack{}, err
	}

	if !o.sem.TryAcquire(1) {
		metrics.CyclesRejected.Inc()
		return models.Ack{}, ErrTooManyCycles
	}

	go func() {
		defer o.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), o.timeouts.CycleDeadline())
		defer cancel()

		if _, err := o.RunCycle(ctx, req); err != nil {
			o.logger.Error().
				Err(err).
				Str("asset", req.Asset).
				Str("kind", string(models.KindOf(err))).
				Msg("Asynchronous cycle failed")
		}
	}()

	return models.Ack{
		Message: "Decision cycle accepted",
		Asset:   req.Asset,
	}, nil
}

func (o *Orchestrator) notify(r *models.Receipt) {
	if o.notifier != nil {
		o.notifier.NotifyReceipt(r)
	}
}
