package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakatrade/saka/internal/config"
	"github.com/sakatrade/saka/internal/models"
)

type fakeAnalyzers struct {
	mu       sync.Mutex
	inflight int32
	peak     int32
	delay    time.Duration

	riskErr      error
	risk         models.RiskReport
	technical    models.TechnicalReport
	macro        models.MacroReport
	sentiment    models.SentimentReport
	sentimentErr error

	calls map[string]int
}

func newFakeAnalyzers() *fakeAnalyzers {
	return &fakeAnalyzers{
		risk:      models.RiskReport{Asset: "BTC/USD", RiskLevel: 0.2, CanTrade: true},
		technical: models.TechnicalReport{Asset: "BTC/USD", RSI: 30, IsBullishCrossover: true},
		macro:     models.MacroReport{Asset: "BTC/USD", Impact: models.MacroImpactLow},
		sentiment: models.SentimentReport{Asset: "BTC/USD", SentimentScore: 0.5, Confidence: 0.9, Signal: models.SignalBuy},
		calls:     make(map[string]int),
	}
}

func (f *fakeAnalyzers) enter(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	n := atomic.AddInt32(&f.inflight, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.inflight, -1)
}

func (f *fakeAnalyzers) AnalyzeRisk(ctx context.Context, req models.AnalysisRequest) (models.RiskReport, error) {
	f.enter("risk")
	return f.risk, f.riskErr
}

func (f *fakeAnalyzers) AnalyzeTechnical(ctx context.Context, req models.AnalysisRequest) (models.TechnicalReport, error) {
	f.enter("technical")
	return f.technical, nil
}

func (f *fakeAnalyzers) AnalyzeMacro(ctx context.Context, req models.AnalysisRequest) (models.MacroReport, error) {
	f.enter("macro")
	return f.macro, nil
}

func (f *fakeAnalyzers) AnalyzeSentiment(ctx context.Context, req models.AnalysisRequest) (models.SentimentReport, error) {
	f.enter("sentiment")
	return f.sentiment, f.sentimentErr
}

type riskFn func(context.Context, models.AnalysisRequest) (models.RiskReport, error)

func (fn riskFn) Analyze(ctx context.Context, req models.AnalysisRequest) (models.RiskReport, error) {
	return fn(ctx, req)
}

type technicalFn func(context.Context, models.AnalysisRequest) (models.TechnicalReport, error)

func (fn technicalFn) Analyze(ctx context.Context, req models.AnalysisRequest) (models.TechnicalReport, error) {
	return fn(ctx, req)
}

type macroFn func(context.Context, models.AnalysisRequest) (models.MacroReport, error)

func (fn macroFn) Analyze(ctx context.Context, req models.AnalysisRequest) (models.MacroReport, error) {
	return fn(ctx, req)
}

type sentimentFn func(context.Context, models.AnalysisRequest) (models.SentimentReport, error)

func (fn sentimentFn) Analyze(ctx context.Context, req models.AnalysisRequest) (models.SentimentReport, error) {
	return fn(ctx, req)
}

type fakeDecider struct {
	mu       sync.Mutex
	inputs   []models.ConsolidatedInput
	decision models.FinalDecision
	err      error
}

func (f *fakeDecider) Decide(ctx context.Context, in models.ConsolidatedInput) (models.FinalDecision, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.decision == nil {
		return models.Hold{Reason: "no confluence among technical and sentiment signals"}, nil
	}
	return f.decision, nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []models.Execute
	receipt *models.Receipt
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, d models.Execute) (*models.Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, d)
	f.mu.Unlock()
	return f.receipt, f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	receipts []*models.Receipt
	texts    []string
}

func (f *fakeNotifier) NotifyReceipt(r *models.Receipt) {
	f.mu.Lock()
	f.receipts = append(f.receipts, r)
	f.mu.Unlock()
}

func (f *fakeNotifier) Notify(text string) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
}

func testTimeouts() config.TimeoutsConfig {
	return config.TimeoutsConfig{
		Default:  2 * time.Second,
		Decision: 2 * time.Second,
		Exchange: 2 * time.Second,
	}
}

func validRequest() models.AnalysisRequest {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 29000 + float64(i)*10
	}
	return models.AnalysisRequest{Asset: "BTC/USD", HistoricalPrices: prices}
}

func newTestOrchestrator(f *fakeAnalyzers, d *fakeDecider, e *fakeExecutor, n *fakeNotifier) *Orchestrator {
	return New(Options{
		Risk:                riskFn(f.AnalyzeRisk),
		Technical:           technicalFn(f.AnalyzeTechnical),
		Macro:               macroFn(f.AnalyzeMacro),
		Sentiment:           sentimentFn(f.AnalyzeSentiment),
		Decider:             d,
		Executor:            e,
		Notifier:            n,
		Warmup:              30,
		Timeouts:            testTimeouts(),
		MaxConcurrentCycles: 4,
	})
}

func TestRunCycleHold(t *testing.T) {
	analyzers := newFakeAnalyzers()
	decider := &fakeDecider{}
	executor := &fakeExecutor{}
	o := newTestOrchestrator(analyzers, decider, executor, &fakeNotifier{})

	result, err := o.RunCycle(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "hold", result.Decision.Action())
	assert.Nil(t, result.Receipt)
	assert.Empty(t, executor.calls, "hold must never reach the executor")
}

func TestRunCycleConsolidatesAllFourReports(t *testing.T) {
	analyzers := newFakeAnalyzers()
	decider := &fakeDecider{}
	o := newTestOrchestrator(analyzers, decider, &fakeExecutor{}, &fakeNotifier{})

	req := validRequest()
	_, err := o.RunCycle(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, decider.inputs, 1)
	in := decider.inputs[0]
	assert.Equal(t, "BTC/USD", in.Asset)
	// Current price is the most recent close
	assert.Equal(t, req.HistoricalPrices[len(req.HistoricalPrices)-1], in.CurrentPrice)
	assert.Equal(t, analyzers.risk, in.Risk)
	assert.Equal(t, analyzers.technical, in.Technical)
	assert.Equal(t, analyzers.macro, in.Macro)
	assert.Equal(t, analyzers.sentiment, in.Sentiment)

	for _, name := range []string{"risk", "technical", "macro", "sentiment"} {
		assert.Equal(t, 1, analyzers.calls[name], "analyzer %s call count", name)
	}
}

func TestRunCycleAnalyzersRunConcurrently(t *testing.T) {
	analyzers := newFakeAnalyzers()
	analyzers.delay = 100 * time.Millisecond
	o := newTestOrchestrator(analyzers, &fakeDecider{}, &fakeExecutor{}, &fakeNotifier{})

	start := time.Now()
	_, err := o.RunCycle(context.Background(), validRequest())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 350*time.Millisecond,
		"four analyzers with 100ms latency each must overlap")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&analyzers.peak), int32(2))
}

func TestRunCycleAbortsOnAnalyzerFailure(t *testing.T) {
	analyzers := newFakeAnalyzers()
	analyzers.sentimentErr = models.NewCycleError(models.ErrCollaboratorUnavailable,
		"sentiment", errors.New("connection refused"))
	decider := &fakeDecider{}
	o := newTestOrchestrator(analyzers, decider, &fakeExecutor{}, &fakeNotifier{})

	result, err := o.RunCycle(context.Background(), validRequest())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrCollaboratorUnavailable, models.KindOf(err))
	assert.Empty(t, decider.inputs, "partial analysis must never reach the decision engine")
}

func TestRunCycleRejectsInvalidRequest(t *testing.T) {
	analyzers := newFakeAnalyzers()
	o := newTestOrchestrator(analyzers, &fakeDecider{}, &fakeExecutor{}, &fakeNotifier{})

	tests := []struct {
		name string
		req  models.AnalysisRequest
	}{
		{"missing asset", models.AnalysisRequest{HistoricalPrices: validRequest().HistoricalPrices}},
		{"too few closes", models.AnalysisRequest{Asset: "BTC/USD", HistoricalPrices: []float64{1, 2, 3}}},
		{"non-positive price", func() models.AnalysisRequest {
			r := validRequest()
			r.HistoricalPrices[5] = 0
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.RunCycle(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, models.ErrClientInput, models.KindOf(err))
		})
	}
	assert.Empty(t, analyzers.calls, "invalid requests must never fan out")
}

func TestRunCycleExecutesAndNotifies(t *testing.T) {
	analyzers := newFakeAnalyzers()
	decider := &fakeDecider{decision: models.Execute{
		Asset:     "BTC/USD",
		Side:      models.SignalBuy,
		TradeType: models.TradeTypeMarket,
		AmountUSD: 150,
		Reason:    "buy confluence",
	}}
	receipt := &models.Receipt{
		OrderID:   "12345",
		Status:    models.ReceiptStatusSuccess,
		Asset:     "BTC/USD",
		Side:      models.SignalBuy,
		AmountUSD: decimal.RequireFromString("150"),
	}
	executor := &fakeExecutor{receipt: receipt}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(analyzers, decider, executor, notifier)

	result, err := o.RunCycle(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Receipt)

	assert.Equal(t, "execute_trade", result.Decision.Action())
	assert.Equal(t, "12345", result.Receipt.OrderID)
	require.Len(t, executor.calls, 1)
	assert.Equal(t, 150.0, executor.calls[0].AmountUSD)

	require.Len(t, notifier.receipts, 1)
	assert.Same(t, receipt, notifier.receipts[0])
}

func TestRunCycleExecutionFailurePropagates(t *testing.T) {
	analyzers := newFakeAnalyzers()
	decider := &fakeDecider{decision: models.Execute{
		Asset: "BTC/USD", Side: models.SignalBuy, AmountUSD: 150,
	}}
	executor := &fakeExecutor{err: models.NewCycleError(models.ErrExchangeRejected,
		"exchange", errors.New("insufficient balance"))}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(analyzers, decider, executor, notifier)

	result, err := o.RunCycle(context.Background(), validRequest())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, models.ErrExchangeRejected, models.KindOf(err))
	assert.Empty(t, notifier.receipts)
}

func TestRunCycleUnknownOutcomeAlertsOperator(t *testing.T) {
	analyzers := newFakeAnalyzers()
	decider := &fakeDecider{decision: models.Execute{
		Asset: "BTC/USD", Side: models.SignalBuy, AmountUSD: 150,
	}}
	executor := &fakeExecutor{err: models.NewCycleError(models.ErrExchangeUnknown,
		"exchange", errors.New("request cut off"))}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(analyzers, decider, executor, notifier)

	_, err := o.RunCycle(context.Background(), validRequest())
	require.Error(t, err)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], "Manual reconciliation required")
	assert.Contains(t, notifier.texts[0], "BTC/USD")
}

func TestSubmitValidatesBeforeAck(t *testing.T) {
	o := newTestOrchestrator(newFakeAnalyzers(), &fakeDecider{}, &fakeExecutor{}, &fakeNotifier{})

	_, err := o.Submit(models.AnalysisRequest{Asset: ""})
	require.Error(t, err)
	assert.Equal(t, models.ErrClientInput, models.KindOf(err))
}

func TestSubmitAcksAndRunsCycle(t *testing.T) {
	analyzers := newFakeAnalyzers()
	decider := &fakeDecider{}
	o := newTestOrchestrator(analyzers, decider, &fakeExecutor{}, &fakeNotifier{})

	ack, err := o.Submit(validRequest())
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", ack.Asset)
	assert.NotEmpty(t, ack.Message)

	require.Eventually(t, func() bool {
		decider.mu.Lock()
		defer decider.mu.Unlock()
		return len(decider.inputs) == 1
	}, 2*time.Second, 10*time.Millisecond, "asynchronous cycle must run to completion")
}

func TestSubmitRejectsWhenPoolSaturated(t *testing.T) {
	analyzers := newFakeAnalyzers()
	analyzers.delay = 300 * time.Millisecond
	o := New(Options{
		Risk:                riskFn(analyzers.AnalyzeRisk),
		Technical:           technicalFn(analyzers.AnalyzeTechnical),
		Macro:               macroFn(analyzers.AnalyzeMacro),
		Sentiment:           sentimentFn(analyzers.AnalyzeSentiment),
		Decider:             &fakeDecider{},
		Executor:            &fakeExecutor{},
		Warmup:              30,
		Timeouts:            testTimeouts(),
		MaxConcurrentCycles: 1,
	})

	_, err := o.Submit(validRequest())
	require.NoError(t, err)

	_, err = o.Submit(validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyCycles)
}
