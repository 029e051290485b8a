package session

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

// State is a lifecycle position of a checkout attempt. States are ordered;
// a session only ever moves forward, never back.
type State int

const (
	StateInitiating State = iota + 1
	StateAwaitingUserAction
	StatePolling
	StateCompleted
	StateFailed
	StateTimedOut
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateInitiating:
		return "initiating"
	case StateAwaitingUserAction:
		return "awaiting_user_action"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut || s == StateAbandoned
}

// FailureReason is the closed taxonomy surfaced to callers. Raw provider
// strings never leave the service; every failure is one of these.
type FailureReason string

const (
	ReasonUserCancelled       FailureReason = "user_cancelled"
	ReasonUserDidNotRespond   FailureReason = "user_did_not_respond"
	ReasonWrongPin            FailureReason = "wrong_pin"
	ReasonInsufficientFunds   FailureReason = "insufficient_funds"
	ReasonAmountOutOfRange    FailureReason = "amount_out_of_range"
	ReasonDailyLimitExceeded  FailureReason = "daily_limit_exceeded"
	ReasonAccountBalanceLimit FailureReason = "account_balance_limit"
	ReasonNetworkError        FailureReason = "network_error"
	ReasonRateLimited         FailureReason = "rate_limited"
	ReasonProviderServerError FailureReason = "provider_server_error"
	ReasonUnknownFailure      FailureReason = "unknown_failure"
)

// Session is the per-attempt record. The orchestrator is the single
// writer; everything else reads snapshots.
type Session struct {
	Reference             string
	ProviderTransactionID string
	Phone                 string
	Amount                int
	Currency              string
	ItemType              string
	ItemPayload           json.RawMessage
	Destination           string

	State            State
	AttemptCount     int
	FailureReason    FailureReason
	FailureHint      string
	ConfirmationCode string

	CreatedAt    time.Time
	LastPolledAt time.Time
	CompletedAt  time.Time
}

// ErrInvalidStateTransition is returned for any operation against a
// session whose state does not admit it.
type ErrInvalidStateTransition struct {
	Reference string
	From      State
	To        State
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("session %s: invalid transition %s -> %s", e.Reference, e.From, e.To)
}

// ValidationError is surfaced synchronously, before any session exists.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// New creates a session in Initiating with a fresh local reference. The
// provider-assigned reference replaces it once initiation succeeds.
func New(phone string, amount int, itemType string, itemPayload json.RawMessage, destination string) *Session {
	return &Session{
		Reference:   NewReference(),
		Phone:       phone,
		Amount:      amount,
		Currency:    "KES",
		ItemType:    itemType,
		ItemPayload: itemPayload,
		Destination: destination,
		State:       StateInitiating,
		CreatedAt:   time.Now(),
	}
}

// TransitionTo advances the session state. Terminal states reject all
// transitions and the ordering is strictly forward.
func (s *Session) TransitionTo(next State) error {
	if s.State.Terminal() || next <= s.State {
		return &ErrInvalidStateTransition{Reference: s.Reference, From: s.State, To: next}
	}
	s.State = next
	return nil
}

// Complete marks the session completed with the provider confirmation code.
func (s *Session) Complete(confirmationCode string) error {
	if err := s.TransitionTo(StateCompleted); err != nil {
		return err
	}
	s.ConfirmationCode = confirmationCode
	s.CompletedAt = time.Now()
	return nil
}

// Fail marks the session failed with a classified reason.
func (s *Session) Fail(reason FailureReason, hint string) error {
	if err := s.TransitionTo(StateFailed); err != nil {
		return err
	}
	s.FailureReason = reason
	s.FailureHint = hint
	s.CompletedAt = time.Now()
	return nil
}

// NewReference mints a locally unique fallback reference. Sessions that
// reach the provider carry the provider-assigned reference instead.
func NewReference() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("DP_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("DP_%d_%x", time.Now().Unix(), b)
}
