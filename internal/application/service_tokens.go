package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

// issueTokenPair appends a session row and signs both tokens. When the account
// is at its session cap the oldest active session is revoked first, so a lost
// device cannot pin the account at the limit forever.
func (s *Service) issueTokenPair(ctx context.Context, account domain.Account, meta ClientMeta) (TokenPair, error) {
	now := s.nowFn()

	if s.cfg.SessionLimit > 0 {
		active, err := s.sessions.ListActiveByAccount(ctx, account.AccountID, now)
		if err != nil {
			return TokenPair{}, fmt.Errorf("list active sessions: %w", err)
		}
		for len(active) >= s.cfg.SessionLimit {
			oldest := active[0]
			for _, it := range active[1:] {
				if it.CreatedAt.Before(oldest.CreatedAt) {
					oldest = it
				}
			}
			if err := s.sessions.RevokeByTokenID(ctx, oldest.TokenID, now); err != nil {
				return TokenPair{}, fmt.Errorf("evict oldest session: %w", err)
			}
			trimmed := active[:0]
			for _, it := range active {
				if it.SessionID != oldest.SessionID {
					trimmed = append(trimmed, it)
				}
			}
			active = trimmed
		}
	}

	tokenID := uuid.New()
	refreshExpiresAt := now.Add(s.cfg.RefreshTokenTTL)
	session, err := s.sessions.Create(ctx, ports.SessionCreateParams{
		TokenID:        tokenID,
		AccountID:      account.AccountID,
		DeviceName:     meta.DeviceName,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
		ExpiresAt:      refreshExpiresAt,
		LastActivityAt: now,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("create session: %w", err)
	}

	return s.signPair(account.AccountID, account.Role, account.ProfileID, session.SessionID, tokenID, refreshExpiresAt)
}

func (s *Service) signPair(accountID uuid.UUID, role domain.Role, profileID, sessionID, tokenID uuid.UUID, refreshExpiresAt time.Time) (TokenPair, error) {
	now := s.nowFn()
	access, err := s.tokenSigner.SignAccess(ports.AccessClaims{
		AccountID: accountID,
		Role:      role,
		ProfileID: profileID,
		SessionID: sessionID,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokenSigner.SignRefresh(ports.RefreshClaims{
		AccountID: accountID,
		TokenID:   tokenID,
		ExpiresAt: refreshExpiresAt,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sessionID,
		AccessExpiresIn:  int64(s.cfg.AccessTokenTTL.Seconds()),
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// Rotate exchanges a refresh token for a fresh pair. The stored token id is
// replaced in one conditional update, so a replayed refresh token loses the
// race permanently: at most one rotation per presented token.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokenSigner.ValidateRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return TokenPair{}, domain.ErrTokenExpired
		}
		return TokenPair{}, domain.ErrTokenInvalid
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("load account: %w", err)
		}
		return TokenPair{}, domain.ErrSessionRevoked
	}
	if account.IsDeleted {
		return TokenPair{}, domain.ErrSessionRevoked
	}

	newTokenID := uuid.New()
	session, err := s.sessions.Rotate(ctx, claims.TokenID, newTokenID, s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A validly signed token with no matching row was already rotated
			// away. Replays report the session as revoked.
			return TokenPair{}, domain.ErrSessionRevoked
		}
		return TokenPair{}, err
	}

	return s.signPair(account.AccountID, account.Role, account.ProfileID, session.SessionID, newTokenID, session.ExpiresAt)
}

// Revoke logs out the session behind the presented refresh token. Unknown or
// already-revoked tokens are a no-op; logout is idempotent.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.tokenSigner.ValidateRefresh(refreshToken)
	if err != nil {
		return nil
	}
	return s.sessions.RevokeByTokenID(ctx, claims.TokenID, s.nowFn())
}

// RevokeAll ends every session for the account.
func (s *Service) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	return s.sessions.RevokeAllByAccount(ctx, accountID, s.nowFn())
}

// ValidateAccessToken is the gate's fast path: signature and expiry only, no
// storage reads.
func (s *Service) ValidateAccessToken(token string) (ports.AccessClaims, error) {
	claims, err := s.tokenSigner.ValidateAccess(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return ports.AccessClaims{}, domain.ErrTokenExpired
		}
		return ports.AccessClaims{}, domain.ErrUnauthenticated
	}
	return claims, nil
}

func (s *Service) PublicJWKs() []map[string]any {
	return s.tokenSigner.PublicJWKs()
}
