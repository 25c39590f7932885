package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTSigner implements RS256 signing for both halves of the token pair.
// The "typ" claim keeps the two token kinds from ever validating as each
// other; keys stay at adapter level so the application never sees crypto.
type JWTSigner struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewJWTSigner builds a signer from configured PEM keys.
func NewJWTSigner(kid, privateKeyPEM, publicKeyPEM string) (*JWTSigner, error) {
	if kid == "" {
		return nil, errors.New("jwt key id (kid) is required")
	}
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("jwt private/public keys are required")
	}

	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &JWTSigner{
		kid:        kid,
		privateKey: priv,
		publicKey:  pub,
	}, nil
}

// NewEphemeralJWTSigner creates an in-memory keypair for local/dev use.
// This exists to unblock runtime startup when static keys are intentionally absent.
func NewEphemeralJWTSigner(kid string) (*JWTSigner, error) {
	if kid == "" {
		kid = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &JWTSigner{
		kid:        kid,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
	}, nil
}

type accessJWTClaims struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	ProfileID string `json:"profile_id"`
	SessionID string `json:"session_id"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type refreshJWTClaims struct {
	AccountID string `json:"account_id"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *JWTSigner) SignAccess(claims ports.AccessClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, accessJWTClaims{
		AccountID: claims.AccountID.String(),
		Role:      string(claims.Role),
		ProfileID: claims.ProfileID.String(),
		SessionID: claims.SessionID.String(),
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

func (s *JWTSigner) SignRefresh(claims ports.RefreshClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, refreshJWTClaims{
		AccountID: claims.AccountID.String(),
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

func (s *JWTSigner) ValidateAccess(raw string) (ports.AccessClaims, error) {
	var claims accessJWTClaims
	if err := s.parse(raw, &claims); err != nil {
		return ports.AccessClaims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return ports.AccessClaims{}, domain.ErrTokenInvalid
	}

	accountID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return ports.AccessClaims{}, domain.ErrTokenInvalid
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ports.AccessClaims{}, domain.ErrTokenInvalid
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return ports.AccessClaims{}, domain.ErrTokenInvalid
	}
	profileID, _ := uuid.Parse(claims.ProfileID)

	return ports.AccessClaims{
		AccountID: accountID,
		Role:      role,
		ProfileID: profileID,
		SessionID: sessionID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (s *JWTSigner) ValidateRefresh(raw string) (ports.RefreshClaims, error) {
	var claims refreshJWTClaims
	if err := s.parse(raw, &claims); err != nil {
		return ports.RefreshClaims{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return ports.RefreshClaims{}, domain.ErrTokenInvalid
	}

	accountID, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return ports.RefreshClaims{}, domain.ErrTokenInvalid
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return ports.RefreshClaims{}, domain.ErrTokenInvalid
	}

	return ports.RefreshClaims{
		AccountID: accountID,
		TokenID:   tokenID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

func (s *JWTSigner) parse(raw string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return domain.ErrTokenInvalid
	}
	return nil
}

func (s *JWTSigner) PublicJWKs() []map[string]any {
	e := big.NewInt(int64(s.publicKey.E)).Bytes()
	n := s.publicKey.N.Bytes()

	return []map[string]any{
		{
			"kid": s.kid,
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(n),
			"e":   base64.RawURLEncoding.EncodeToString(e),
		},
	}
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
