package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
)

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingTokenError(r.Context(), w, "list_sessions")
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), claims.AccountID, claims.SessionID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, sessions)
}

func (h *Handler) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingTokenError(r.Context(), w, "revoke_all_sessions")
		return
	}

	if err := h.service.RevokeAll(r.Context(), claims.AccountID); err != nil {
		writeMappedError(r.Context(), w, "revoke_all_sessions", err)
		return
	}
	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "All sessions revoked")
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "account_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "deactivate_account", domain.ErrInvalidInput)
		return
	}

	if err := h.service.DeactivateAccount(r.Context(), accountID); err != nil {
		writeMappedError(r.Context(), w, "deactivate_account", err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deactivated")
}
