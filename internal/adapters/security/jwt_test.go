package security_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/adapters/security"
	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

func newTestSigner(t *testing.T) *security.JWTSigner {
	t.Helper()
	signer, err := security.NewEphemeralJWTSigner("test-key-1")
	if err != nil {
		t.Fatalf("create ephemeral signer: %v", err)
	}
	return signer
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	want := ports.AccessClaims{
		AccountID: uuid.New(),
		Role:      domain.RoleLibrarian,
		ProfileID: uuid.New(),
		SessionID: uuid.New(),
		ExpiresAt: time.Now().UTC().Add(15 * time.Minute),
	}

	token, err := signer.SignAccess(want)
	if err != nil {
		t.Fatalf("sign access failed: %v", err)
	}

	got, err := signer.ValidateAccess(token)
	if err != nil {
		t.Fatalf("validate access failed: %v", err)
	}
	if got.AccountID != want.AccountID || got.Role != want.Role ||
		got.ProfileID != want.ProfileID || got.SessionID != want.SessionID {
		t.Fatalf("claims mismatch: got %+v want %+v", got, want)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	want := ports.RefreshClaims{
		AccountID: uuid.New(),
		TokenID:   uuid.New(),
		ExpiresAt: time.Now().UTC().Add(30 * 24 * time.Hour),
	}

	token, err := signer.SignRefresh(want)
	if err != nil {
		t.Fatalf("sign refresh failed: %v", err)
	}

	got, err := signer.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("validate refresh failed: %v", err)
	}
	if got.AccountID != want.AccountID || got.TokenID != want.TokenID {
		t.Fatalf("claims mismatch: got %+v want %+v", got, want)
	}
}

func TestTokenTypesDoNotCrossValidate(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	expiry := time.Now().UTC().Add(time.Hour)

	access, err := signer.SignAccess(ports.AccessClaims{
		AccountID: uuid.New(),
		Role:      domain.RoleStudent,
		ProfileID: uuid.New(),
		SessionID: uuid.New(),
		ExpiresAt: expiry,
	})
	if err != nil {
		t.Fatalf("sign access failed: %v", err)
	}
	refresh, err := signer.SignRefresh(ports.RefreshClaims{
		AccountID: uuid.New(),
		TokenID:   uuid.New(),
		ExpiresAt: expiry,
	})
	if err != nil {
		t.Fatalf("sign refresh failed: %v", err)
	}

	if _, err := signer.ValidateRefresh(access); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("access token must not validate as refresh, got %v", err)
	}
	if _, err := signer.ValidateAccess(refresh); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("refresh token must not validate as access, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	// Past the 30s validation leeway.
	token, err := signer.SignAccess(ports.AccessClaims{
		AccountID: uuid.New(),
		Role:      domain.RoleStudent,
		ProfileID: uuid.New(),
		SessionID: uuid.New(),
		ExpiresAt: time.Now().UTC().Add(-2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("sign access failed: %v", err)
	}

	if _, err := signer.ValidateAccess(token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestForeignKeyRejected(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	other := newTestSigner(t)

	token, err := other.SignAccess(ports.AccessClaims{
		AccountID: uuid.New(),
		Role:      domain.RoleStudent,
		ProfileID: uuid.New(),
		SessionID: uuid.New(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign access failed: %v", err)
	}

	if _, err := signer.ValidateAccess(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("token from a foreign key must be rejected, got %v", err)
	}
	if _, err := signer.ValidateAccess("not-a-jwt"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("garbage must be rejected, got %v", err)
	}
}

func TestPublicJWKsShape(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	keys := signer.PublicJWKs()
	if len(keys) != 1 {
		t.Fatalf("expected one jwk, got %d", len(keys))
	}
	jwk := keys[0]
	if jwk["kid"] != "test-key-1" || jwk["kty"] != "RSA" || jwk["alg"] != "RS256" {
		t.Fatalf("unexpected jwk header fields: %+v", jwk)
	}
	if jwk["n"] == "" || jwk["e"] == "" {
		t.Fatalf("jwk missing modulus or exponent")
	}
}
