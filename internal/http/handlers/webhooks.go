package handlers

import (
	"errors"
	"io"
	"net/http"

	"docpay/internal/core/orchestrator"
	"docpay/internal/provider/daraja"

	"github.com/rs/zerolog/log"
)

// DarajaCallback receives the STK result push. Daraja retries non-200
// responses, so recognized payloads always get 200 even when the
// session is unknown or already terminal.
func DarajaCallback(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cb, err := daraja.ParseCallback(body)
		if err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		if err := orch.HandleCallback(r.Context(), cb); err != nil {
			if errors.Is(err, orchestrator.ErrSessionNotFound) {
				log.Warn().
					Str("provider_tx_id", cb.ProviderTransactionID).
					Msg("callback for unknown session")
			} else {
				log.Error().Err(err).
					Str("provider_tx_id", cb.ProviderTransactionID).
					Msg("callback processing failed")
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
