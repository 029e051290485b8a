package repositories

import (
	"context"
	"time"

	"docpay/internal/domain/session"
)

// SessionStore holds live checkout sessions for the lifetime of a
// confirmation. The orchestrator is the single writer; nothing else
// mutates sessions.
type SessionStore interface {
	Put(s *session.Session)
	Get(reference string) (*session.Session, bool)
	GetByProviderTransactionID(providerTxID string) (*session.Session, bool)
}

// ArchivedSession is the audit/export projection of a terminal session.
type ArchivedSession struct {
	ID               int64     `json:"id"`
	Reference        string    `json:"reference"`
	ProviderTxID     string    `json:"providerTxId"`
	Amount           int       `json:"amount"`
	Currency         string    `json:"currency"`
	ItemType         string    `json:"itemType"`
	State            string    `json:"state"`
	FailureReason    string    `json:"failureReason,omitempty"`
	ConfirmationCode string    `json:"confirmationCode,omitempty"`
	AttemptCount     int       `json:"attemptCount"`
	CreatedAt        time.Time `json:"createdAt"`
	CompletedAt      time.Time `json:"completedAt"`
}

// SessionArchive persists terminal sessions for audit and export.
type SessionArchive interface {
	ArchiveSession(ctx context.Context, s *session.Session) error
	ListSessions(ctx context.Context, limit, offset int) ([]ArchivedSession, error)
}

// DeliveryGuard grants at-most-once acquisition per reference. The first
// caller to Acquire a reference wins; everyone after gets false.
type DeliveryGuard interface {
	Acquire(ctx context.Context, reference string) (bool, error)
}
