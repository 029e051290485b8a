package provider

import (
	"context"
	"errors"
)

// Status values a gateway reports for an in-flight push transaction.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrRateLimited signals the provider throttled the request. It is a
// scheduling signal for the poller, never a user-visible failure.
var ErrRateLimited = errors.New("provider rate limited")

// InitiateRequest starts a push payment prompt on the customer's phone.
type InitiateRequest struct {
	Phone       string
	Amount      int
	AccountRef  string
	Description string
}

// InitiateResult carries the provider-assigned identifiers. Reference is
// the idempotency key for the whole attempt; ProviderTransactionID is
// what status queries key on.
type InitiateResult struct {
	Reference             string
	ProviderTransactionID string
	CustomerMessage       string
}

// StatusResult is one status-query observation.
type StatusResult struct {
	Status           string
	ProviderCode     string
	ProviderDesc     string
	ConfirmationCode string
}

// CallbackResult is the provider's asynchronous result push, parsed.
type CallbackResult struct {
	ProviderTransactionID string
	ResultCode            string
	ResultDesc            string
	Amount                int
	Receipt               string
	Phone                 string
}

// Gateway is the outbound provider boundary. No retry logic lives here;
// retries belong to the poll scheduler.
type Gateway interface {
	InitiatePush(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	QueryStatus(ctx context.Context, providerTransactionID string) (*StatusResult, error)
}

// Error is a provider-reported failure with its raw code, kept until the
// classifier turns it into a caller-safe reason.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Message + " (code " + e.Code + ")"
	}
	return e.Message
}
