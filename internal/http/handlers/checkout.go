package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"docpay/internal/core/orchestrator"
	"docpay/internal/domain/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type startResp struct {
	Reference       string `json:"reference"`
	State           string `json:"state"`
	FailureReason   string `json:"failureReason,omitempty"`
	FailureHint     string `json:"failureHint,omitempty"`
	MaxWaitSeconds  int    `json:"maxWaitSeconds"`
	CustomerMessage string `json:"customerMessage,omitempty"`
}

type errResp struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StartCheckout validates input and initiates a push payment.
func StartCheckout(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in orchestrator.CheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errResp{Error: "bad json"})
			return
		}

		sess, err := orch.StartCheckout(r.Context(), in)
		if err != nil {
			var verr *session.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, errResp{Error: verr.Message, Field: verr.Field})
				return
			}
			log.Error().Err(err).Msg("checkout start failed")
			writeJSON(w, http.StatusInternalServerError, errResp{Error: "internal error"})
			return
		}

		snap, err := orch.GetSessionState(sess.Reference)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errResp{Error: "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, startResp{
			Reference:       snap.Reference,
			State:           snap.State,
			FailureReason:   string(snap.FailureReason),
			FailureHint:     snap.FailureHint,
			MaxWaitSeconds:  snap.MaxWaitSeconds,
			CustomerMessage: snap.CustomerMessage,
		})
	}
}

// GetCheckout is the poll-safe state read for the UI.
func GetCheckout(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")
		snap, err := orch.GetSessionState(reference)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errResp{Error: "unknown reference"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// AbandonCheckout stops a live confirmation at the caller's request.
func AbandonCheckout(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference := chi.URLParam(r, "reference")
		err := orch.AbandonSession(reference)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
		case errors.Is(err, orchestrator.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, errResp{Error: "unknown reference"})
		default:
			var terr *session.ErrInvalidStateTransition
			if errors.As(err, &terr) {
				writeJSON(w, http.StatusConflict, errResp{Error: "invalid state transition"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errResp{Error: "internal error"})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
