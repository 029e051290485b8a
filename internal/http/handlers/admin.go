package handlers

import (
	"net/http"
	"strconv"

	"docpay/internal/services/audit"
)

// ListCheckouts handles audit/export listing of archived sessions.
func ListCheckouts(auditService *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := audit.ListRequest{}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				req.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				req.Offset = n
			}
		}

		resp, err := auditService.ListSessions(r.Context(), req)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errResp{Error: "failed to list checkouts"})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
