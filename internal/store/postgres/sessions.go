package postgres

import (
	"context"

	"docpay/internal/domain/session"
	"docpay/internal/store/repositories"
)

// -----------------------------------------------------------------------------
// Audit archive: terminal sessions only, keyed by reference. Inserted
// once when a checkout reaches a terminal state; re-archiving the same
// reference is a no-op.
// -----------------------------------------------------------------------------
func (r *Repo) ArchiveSession(ctx context.Context, s *session.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO checkout_sessions (
			reference, provider_tx_id, amount, currency, item_type, destination,
			state, failure_reason, confirmation_code, attempt_count,
			created_at, completed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),$10,$11,$12)
		ON CONFLICT (reference) DO NOTHING
	`, s.Reference, s.ProviderTransactionID, s.Amount, s.Currency, s.ItemType, s.Destination,
		s.State.String(), string(s.FailureReason), s.ConfirmationCode, s.AttemptCount,
		s.CreatedAt, s.CompletedAt)
	return err
}

// -----------------------------------------------------------------------------
// Read API
// -----------------------------------------------------------------------------
func (r *Repo) ListSessions(ctx context.Context, limit, offset int) ([]repositories.ArchivedSession, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, reference, provider_tx_id, amount, currency, item_type,
		       state, COALESCE(failure_reason,''), COALESCE(confirmation_code,''),
		       attempt_count, created_at, completed_at
		  FROM checkout_sessions
		 ORDER BY id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repositories.ArchivedSession
	for rows.Next() {
		var a repositories.ArchivedSession
		if err := rows.Scan(&a.ID, &a.Reference, &a.ProviderTxID, &a.Amount, &a.Currency, &a.ItemType,
			&a.State, &a.FailureReason, &a.ConfirmationCode, &a.AttemptCount, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
