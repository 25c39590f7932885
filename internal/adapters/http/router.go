package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campuskit/identity-service/internal/application"
	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

// Handler is the HTTP adapter entrypoint for identity use-cases.
type Handler struct {
	service      *application.Service
	throttle     ports.ThrottleStore
	rateLimit    int
	rateWindow   time.Duration
	cookieSecure bool
}

// HandlerOptions carries edge concerns that never reach the application core.
type HandlerOptions struct {
	Throttle     ports.ThrottleStore
	RateLimit    int
	RateWindow   time.Duration
	CookieSecure bool
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, opts HandlerOptions) *Handler {
	return &Handler{
		service:      service,
		throttle:     opts.Throttle,
		rateLimit:    opts.RateLimit,
		rateWindow:   opts.RateWindow,
		cookieSecure: opts.CookieSecure,
	}
}

// NewRouter registers the identity routes and middleware stack.
// Centralizing routes here keeps auth and error behavior consistent across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Get("/.well-known/jwks.json", handler.jwks)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.throttleMiddleware)
			r.Post("/login", handler.login)
			r.Post("/otp/request", handler.otpRequest)
			r.Post("/otp/login", handler.otpLogin)
			r.Post("/password/forgot", handler.passwordForgot)
			r.Post("/password/reset", handler.passwordReset)
			r.Post("/email/verify", handler.emailVerify)
		})

		r.Post("/refresh", handler.refresh)
		r.Post("/logout", handler.logout)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/password/change", handler.passwordChange)
			r.Post("/email/verify-request", handler.emailVerifyRequest)
			r.Get("/sessions", handler.listSessions)
			r.Delete("/sessions", handler.revokeAllSessions)

			r.Group(func(r chi.Router) {
				r.Use(requireRoles(domain.RoleAdmin, domain.RoleSuperAdmin))
				r.Post("/register", handler.register)
				r.Delete("/accounts/{account_id}", handler.deactivateAccount)
			})
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"keys": h.service.PublicJWKs()})
}
