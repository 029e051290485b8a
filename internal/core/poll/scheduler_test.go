package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docpay/internal/provider"
)

// step is one scripted QueryStatus response.
type step struct {
	res *provider.StatusResult
	err error
}

// scriptedGateway plays back steps in order, then answers pending forever.
type scriptedGateway struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (g *scriptedGateway) InitiatePush(context.Context, provider.InitiateRequest) (*provider.InitiateResult, error) {
	return nil, errors.New("not used")
}

func (g *scriptedGateway) QueryStatus(context.Context, string) (*provider.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.steps) == 0 {
		return &provider.StatusResult{Status: provider.StatusPending}, nil
	}
	s := g.steps[0]
	g.steps = g.steps[1:]
	return s.res, s.err
}

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func pending() step {
	return step{res: &provider.StatusResult{Status: provider.StatusPending}}
}

func completed(code string) step {
	return step{res: &provider.StatusResult{Status: provider.StatusCompleted, ConfirmationCode: code}}
}

func failed(code, desc string) step {
	return step{res: &provider.StatusResult{Status: provider.StatusFailed, ProviderCode: code, ProviderDesc: desc}}
}

func testConfig() Config {
	return Config{
		Interval:            5 * time.Millisecond,
		MaxAttempts:         10,
		RateLimitMultiplier: 2,
		RateLimitCeiling:    3,
		TransientCeiling:    3,
	}
}

func TestPendingThenCompleted(t *testing.T) {
	gw := &scriptedGateway{steps: []step{pending(), pending(), completed("MPESA123")}}
	s := NewScheduler(gw, testConfig())

	var attempts []int
	res := s.Run(context.Background(), "ws_CO_1", func(n int) { attempts = append(attempts, n) })

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if res.ConfirmationCode != "MPESA123" {
		t.Fatalf("confirmation code = %q, want MPESA123", res.ConfirmationCode)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("attempts observed = %v, want [1 2]", attempts)
	}
}

func TestFailedPassesProviderCodeThrough(t *testing.T) {
	gw := &scriptedGateway{steps: []step{pending(), failed("2001", "The initiator information is invalid")}}
	s := NewScheduler(gw, testConfig())

	res := s.Run(context.Background(), "ws_CO_1", nil)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", res.Outcome)
	}
	if res.ProviderCode != "2001" {
		t.Fatalf("provider code = %q, want 2001", res.ProviderCode)
	}
}

// A session that never resolves must reach TimedOut no earlier than
// (N-1)*interval and no later than N*interval plus scheduling jitter.
func TestBoundedPollingWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 20 * time.Millisecond
	cfg.MaxAttempts = 4
	gw := &scriptedGateway{}
	s := NewScheduler(gw, cfg)

	start := time.Now()
	res := s.Run(context.Background(), "ws_CO_1", nil)
	elapsed := time.Since(start)

	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", res.Outcome)
	}
	if got := gw.callCount(); got != cfg.MaxAttempts {
		t.Fatalf("gateway calls = %d, want %d", got, cfg.MaxAttempts)
	}
	min := time.Duration(cfg.MaxAttempts-1) * cfg.Interval
	max := time.Duration(cfg.MaxAttempts)*cfg.Interval + 100*time.Millisecond
	if elapsed < min || elapsed > max {
		t.Fatalf("elapsed = %v, want within [%v, %v]", elapsed, min, max)
	}
	if s.MaxWait() != time.Duration(cfg.MaxAttempts)*cfg.Interval {
		t.Fatalf("MaxWait = %v, want %v", s.MaxWait(), time.Duration(cfg.MaxAttempts)*cfg.Interval)
	}
}

// Rate-limited responses are a scheduling signal, not a user failure:
// they must never consume the attempt budget.
func TestRateLimitDoesNotConsumeBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 3
	gw := &scriptedGateway{steps: []step{
		pending(),
		{err: provider.ErrRateLimited},
		{err: provider.ErrRateLimited},
		pending(),
		completed("MPESA777"),
	}}
	s := NewScheduler(gw, cfg)

	var last int
	res := s.Run(context.Background(), "ws_CO_1", func(n int) { last = n })

	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
	if last != 2 {
		t.Fatalf("attempt count = %d, want 2 (rate limits must not count)", last)
	}
	if got := gw.callCount(); got != 5 {
		t.Fatalf("gateway calls = %d, want 5", got)
	}
}

func TestRateLimitCeilingStopsTheLoop(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitCeiling = 2
	gw := &scriptedGateway{steps: []step{
		{err: provider.ErrRateLimited},
		{err: provider.ErrRateLimited},
		{err: provider.ErrRateLimited},
		{err: provider.ErrRateLimited},
	}}
	s := NewScheduler(gw, cfg)

	res := s.Run(context.Background(), "ws_CO_1", nil)
	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", res.Outcome)
	}
	if got := gw.callCount(); got != cfg.RateLimitCeiling+1 {
		t.Fatalf("gateway calls = %d, want %d", got, cfg.RateLimitCeiling+1)
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	gw := &scriptedGateway{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		completed("MPESA555"),
	}}
	s := NewScheduler(gw, testConfig())

	res := s.Run(context.Background(), "ws_CO_1", nil)
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", res.Outcome)
	}
}

func TestTransientCeilingYieldsTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.TransientCeiling = 2
	gw := &scriptedGateway{steps: []step{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
	}}
	s := NewScheduler(gw, cfg)

	res := s.Run(context.Background(), "ws_CO_1", nil)
	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", res.Outcome)
	}
}

func TestCancellationStopsPromptly(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 50 * time.Millisecond
	gw := &scriptedGateway{}
	s := NewScheduler(gw, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := s.Run(ctx, "ws_CO_1", nil)
	elapsed := time.Since(start)

	if res.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", res.Outcome)
	}
	if elapsed > cfg.Interval {
		t.Fatalf("cancellation took %v, want under one interval (%v)", elapsed, cfg.Interval)
	}
	if got := gw.callCount(); got > 2 {
		t.Fatalf("gateway calls after cancel = %d, want at most 2", got)
	}
}
