package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
)

type Config struct {
	DefaultRole          domain.Role
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	OtpTTL               time.Duration
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration
	SessionLimit         int
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	ProfileID string `json:"profile_id"`
}

type RegisterResponse struct {
	AccountID uuid.UUID   `json:"account_id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	ProfileID uuid.UUID   `json:"profile_id"`
}

// ClientMeta carries request metadata captured at the HTTP edge for session
// records and login-attempt audit rows.
type ClientMeta struct {
	DeviceName string `json:"device_name"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ClientMeta
}

type OtpLoginRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	ClientMeta
}

// TokenPair is the result of every successful authentication: the access token
// is returned in the body, the refresh token additionally travels as a cookie.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	SessionID        uuid.UUID `json:"session_id"`
	AccessExpiresIn  int64     `json:"expires_in"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type LoginResponse struct {
	AccountID uuid.UUID   `json:"account_id"`
	Role      domain.Role `json:"role"`
	TokenPair
}

type PasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type SessionItem struct {
	SessionID      uuid.UUID  `json:"session_id"`
	DeviceName     string     `json:"device_name"`
	IPAddress      string     `json:"ip_address"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	IsCurrent      bool       `json:"is_current"`
}

func toSessionItem(rec domain.SessionRecord, currentSessionID uuid.UUID) SessionItem {
	return SessionItem{
		SessionID:      rec.SessionID,
		DeviceName:     rec.DeviceName,
		IPAddress:      rec.IPAddress,
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivityAt,
		ExpiresAt:      rec.ExpiresAt,
		RevokedAt:      rec.RevokedAt,
		IsCurrent:      rec.SessionID == currentSessionID,
	}
}
