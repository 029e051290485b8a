package delivery

import (
	"context"
	"fmt"

	"docpay/internal/provider/base"

	"github.com/rs/zerolog/log"
)

// Handler is the document-delivery hand-off boundary. The orchestrator
// invokes it exactly once per confirmed reference; the collaborator
// should still dedup defensively on its side.
type Handler interface {
	OnPaymentConfirmed(ctx context.Context, reference, confirmationCode string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, reference, confirmationCode string) error

func (f HandlerFunc) OnPaymentConfirmed(ctx context.Context, reference, confirmationCode string) error {
	return f(ctx, reference, confirmationCode)
}

// HTTPNotifier posts confirmed references to the document-generation
// service, which unlocks and delivers the purchased artifact.
type HTTPNotifier struct {
	client *base.HTTPClient
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	client := base.NewHTTPClient("delivery", 15)
	client.SetBaseURL(url)
	return &HTTPNotifier{client: client}
}

func (n *HTTPNotifier) OnPaymentConfirmed(ctx context.Context, reference, confirmationCode string) error {
	resp, err := n.client.PostJSON(ctx, "", map[string]string{
		"reference":        reference,
		"confirmationCode": confirmationCode,
	}, nil)
	if err != nil {
		return fmt.Errorf("delivery notify: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("delivery notify: status %d; body=%s", resp.StatusCode, resp.String())
	}
	log.Info().
		Str("reference", reference).
		Str("confirmation_code", confirmationCode).
		Msg("document delivery triggered")
	return nil
}
