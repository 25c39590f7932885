package http

import (
	"errors"
	"net/http"

	"github.com/campuskit/identity-service/internal/application"
	"github.com/campuskit/identity-service/internal/domain"
)

func (h *Handler) passwordForgot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_forgot", err)
		return
	}

	err := h.service.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case err == nil, errors.Is(err, domain.ErrDeliveryFailure):
		writeMessage(w, http.StatusOK, "If the account exists, a reset link has been sent")
	default:
		writeMappedError(r.Context(), w, "password_forgot", err)
	}
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req application.PasswordResetRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "password_reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset")
}

func (h *Handler) passwordChange(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingTokenError(r.Context(), w, "password_change")
		return
	}

	var req application.PasswordChangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_change", err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), claims.AccountID, req); err != nil {
		writeMappedError(r.Context(), w, "password_change", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed")
}

func (h *Handler) emailVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "email_verify", err)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		writeMappedError(r.Context(), w, "email_verify", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email verified")
}

func (h *Handler) emailVerifyRequest(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingTokenError(r.Context(), w, "email_verify_request")
		return
	}

	err := h.service.RequestEmailVerification(r.Context(), claims.AccountID)
	switch {
	case err == nil, errors.Is(err, domain.ErrDeliveryFailure):
		writeMessage(w, http.StatusOK, "Verification email sent")
	default:
		writeMappedError(r.Context(), w, "email_verify_request", err)
	}
}
