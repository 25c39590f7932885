package http

import (
	"errors"
	"net/http"

	"github.com/campuskit/identity-service/internal/application"
	"github.com/campuskit/identity-service/internal/domain"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	fillClientMeta(r, &req.ClientMeta)

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) otpRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "otp_request", err)
		return
	}

	err := h.service.RequestOtp(r.Context(), req.Email)
	switch {
	case err == nil, errors.Is(err, domain.ErrDeliveryFailure):
		// The response never distinguishes unknown accounts from delivery
		// trouble; the stored code stays consumable either way.
		writeMessage(w, http.StatusOK, "If the account exists, a login code has been sent")
	default:
		writeMappedError(r.Context(), w, "otp_request", err)
	}
}

func (h *Handler) otpLogin(w http.ResponseWriter, r *http.Request) {
	var req application.OtpLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "otp_login", err)
		return
	}
	fillClientMeta(r, &req.ClientMeta)

	res, err := h.service.LoginWithOtp(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "otp_login", err)
		return
	}

	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// Body is optional when the cookie carries the token.
	_ = decodeBody(r, &req)

	token := refreshTokenFromRequest(r, req.RefreshToken)
	if token == "" {
		writeMissingTokenError(r.Context(), w, "refresh")
		return
	}

	pair, err := h.service.Rotate(r.Context(), token)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeSuccess(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = decodeBody(r, &req)

	token := refreshTokenFromRequest(r, req.RefreshToken)
	if token != "" {
		if err := h.service.Revoke(r.Context(), token); err != nil {
			writeMappedError(r.Context(), w, "logout", err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func fillClientMeta(r *http.Request, meta *application.ClientMeta) {
	if meta.IPAddress == "" {
		meta.IPAddress = readIP(r)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = r.UserAgent()
	}
}
