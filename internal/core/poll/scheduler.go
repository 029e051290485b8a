package poll

import (
	"context"
	"errors"
	"time"

	"docpay/internal/provider"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Outcome is the terminal result of a polling run.
type Outcome int

const (
	OutcomeCompleted Outcome = iota + 1
	OutcomeFailed
	OutcomeTimedOut
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result carries the outcome plus whatever the provider reported with it.
type Result struct {
	Outcome          Outcome
	ConfirmationCode string
	ProviderCode     string
	ProviderDesc     string
}

// Config bounds the run. Total wall-clock time is deterministic:
// MaxAttempts*Interval for the happy path, plus the rate-limit and
// transient ceilings' slowed retries in the worst case.
type Config struct {
	Interval            time.Duration
	MaxAttempts         int
	RateLimitMultiplier float64
	RateLimitCeiling    int
	TransientCeiling    int
}

// Scheduler repeatedly queries status for one provider transaction until
// a terminal result or budget exhaustion. It never retries unboundedly.
type Scheduler struct {
	gw  provider.Gateway
	cfg Config
}

func NewScheduler(gw provider.Gateway, cfg Config) *Scheduler {
	return &Scheduler{gw: gw, cfg: cfg}
}

// MaxWait is the pending-path ceiling on total waiting time, surfaced to
// callers up front so UI messaging stays accurate.
func (s *Scheduler) MaxWait() time.Duration {
	return time.Duration(s.cfg.MaxAttempts) * s.cfg.Interval
}

// Run polls until completed, failed, timed out, or the context is
// cancelled. onAttempt, if non-nil, observes every budget-consuming
// poll; rate-limited and transport-errored calls do not consume budget.
func (s *Scheduler) Run(ctx context.Context, providerTxID string, onAttempt func(attempt int)) Result {
	steady := backoff.NewConstantBackOff(s.cfg.Interval)
	slowed := backoff.NewConstantBackOff(time.Duration(float64(s.cfg.Interval) * s.cfg.RateLimitMultiplier))

	attempts := 0
	rateRetries := 0
	transientRetries := 0

	for {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled}
		}

		res, err := s.gw.QueryStatus(ctx, providerTxID)
		switch {
		case errors.Is(err, provider.ErrRateLimited):
			// Not the user's fault; slow down without touching the budget.
			rateRetries++
			log.Debug().
				Str("provider_tx_id", providerTxID).
				Int("rate_retries", rateRetries).
				Msg("status poll rate limited")
			if rateRetries > s.cfg.RateLimitCeiling {
				return Result{Outcome: OutcomeTimedOut}
			}
			if !s.sleep(ctx, slowed.NextBackOff()) {
				return Result{Outcome: OutcomeCancelled}
			}
			continue

		case err != nil:
			transientRetries++
			log.Warn().Err(err).
				Str("provider_tx_id", providerTxID).
				Int("transient_retries", transientRetries).
				Msg("status poll transport error")
			if transientRetries > s.cfg.TransientCeiling {
				return Result{Outcome: OutcomeTimedOut}
			}
			if !s.sleep(ctx, slowed.NextBackOff()) {
				return Result{Outcome: OutcomeCancelled}
			}
			continue
		}

		switch res.Status {
		case provider.StatusCompleted:
			return Result{
				Outcome:          OutcomeCompleted,
				ConfirmationCode: res.ConfirmationCode,
				ProviderDesc:     res.ProviderDesc,
			}
		case provider.StatusFailed:
			return Result{
				Outcome:      OutcomeFailed,
				ProviderCode: res.ProviderCode,
				ProviderDesc: res.ProviderDesc,
			}
		}

		// Pending: successful provider contact, so the slowdown counters reset.
		rateRetries = 0
		transientRetries = 0
		slowed.Reset()

		attempts++
		if onAttempt != nil {
			onAttempt(attempts)
		}
		if attempts >= s.cfg.MaxAttempts {
			log.Info().
				Str("provider_tx_id", providerTxID).
				Int("attempts", attempts).
				Msg("status poll budget exhausted")
			return Result{Outcome: OutcomeTimedOut}
		}
		if !s.sleep(ctx, steady.NextBackOff()) {
			return Result{Outcome: OutcomeCancelled}
		}
	}
}

// sleep waits for d or until cancellation; reports false when cancelled.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
