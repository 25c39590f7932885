package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the canonical identity aggregate for the campus ERP.
// It carries only credential and session-adjacent state; the academic profile
// (student/faculty record) lives in the owning domain module and is referenced weakly.
type Account struct {
	AccountID     uuid.UUID
	Email         string
	PasswordHash  string
	Role          Role
	ProfileID     uuid.UUID
	EmailVerified bool
	IsDeleted     bool

	// Each is nil except between issuance and consumption or expiry.
	OTP               *OneTimeArtifact
	ResetToken        *OneTimeArtifact
	VerificationToken *OneTimeArtifact

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OneTimeArtifact is the stored form of an OTP, reset token, or verification token.
// Only the hash is ever at rest; the raw secret exists transiently on the delivery path.
type OneTimeArtifact struct {
	Hash      string
	ExpiresAt time.Time
}

// Present reports whether an artifact is currently stored for the account.
func (a OneTimeArtifact) Present() bool {
	return a.Hash != ""
}

// Expired reports whether the artifact deadline has passed at the given instant.
func (a OneTimeArtifact) Expired(now time.Time) bool {
	return a.Present() && !a.ExpiresAt.After(now)
}

// SessionRecord is one entry of an account's active-session set.
// SessionID is stable for the session's lifetime; TokenID is replaced on every
// rotation, so a stale refresh token can never match a live row.
type SessionRecord struct {
	SessionID      uuid.UUID
	TokenID        uuid.UUID
	AccountID      uuid.UUID
	DeviceName     string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
}

// Active reports whether the session still authorizes refresh at the given instant.
func (s SessionRecord) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// LoginAttempt records authentication outcomes for audit.
// Lockout is an edge concern here, so the record is signal only.
type LoginAttempt struct {
	ID            int64
	AccountID     *uuid.UUID
	AttemptAt     time.Time
	IPAddress     string
	Status        string
	FailureReason string
	Method        string
	UserAgent     string
}
