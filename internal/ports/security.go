package ports

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
)

// PasswordHasher hides the password hashing algorithm behind a port so the
// application never depends on a concrete KDF.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(hash, plaintext string) error
}

// AccessClaims are the verified contents of a short-lived access token.
// SessionID is stable across rotations; the rotating token id never appears here.
type AccessClaims struct {
	AccountID uuid.UUID
	Role      domain.Role
	ProfileID uuid.UUID
	SessionID uuid.UUID
	ExpiresAt time.Time
}

// RefreshClaims are the verified contents of a long-lived refresh token.
// TokenID links the token to its session row; rotation replaces it.
type RefreshClaims struct {
	AccountID uuid.UUID
	TokenID   uuid.UUID
	ExpiresAt time.Time
}

// TokenSigner issues and validates the signed token pair. Validation must be
// purely cryptographic: no storage reads, so the authorization gate stays cheap.
type TokenSigner interface {
	SignAccess(claims AccessClaims) (string, error)
	SignRefresh(claims RefreshClaims) (string, error)
	ValidateAccess(token string) (AccessClaims, error)
	ValidateRefresh(token string) (RefreshClaims, error)
	// PublicJWKs exposes verification keys for sibling services.
	PublicJWKs() []map[string]any
}
