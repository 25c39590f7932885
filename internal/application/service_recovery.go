package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

// RequestPasswordReset issues a single-use reset token. Like the OTP path it
// answers identically for unknown addresses.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}
	if account.IsDeleted {
		return nil
	}

	rawToken := randomHex(32)
	now := s.nowFn()
	expiresAt := now.Add(s.cfg.ResetTokenTTL)
	if err := s.accounts.StoreResetToken(ctx, account.AccountID, hashToken(rawToken), expiresAt, now); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"account_id": account.AccountID,
		"email":      account.Email,
		"token":      rawToken,
		"expires_at": expiresAt,
	})
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "identity.password_reset.requested",
		PartitionKey: account.AccountID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the password hash and ends
// every existing session. A leaked reset token is a full-compromise signal, so
// containment beats convenience here.
func (s *Service) ResetPassword(ctx context.Context, req PasswordResetRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	now := s.nowFn()
	accountID, err := s.accounts.ConsumeResetToken(ctx, hashToken(req.Token), now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, newHash, s.nowFn()); err != nil {
		return err
	}
	return s.sessions.RevokeAllByAccount(ctx, accountID, s.nowFn())
}

// issueVerificationToken stores a fresh verification token and enqueues its
// delivery. Reused by registration and by the explicit re-request endpoint.
func (s *Service) issueVerificationToken(ctx context.Context, account domain.Account) error {
	rawToken := randomHex(32)
	now := s.nowFn()
	expiresAt := now.Add(s.cfg.VerificationTokenTTL)
	if err := s.accounts.StoreVerificationToken(ctx, account.AccountID, hashToken(rawToken), expiresAt, now); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"account_id": account.AccountID,
		"email":      account.Email,
		"token":      rawToken,
		"expires_at": expiresAt,
	})
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "identity.email_verification.requested",
		PartitionKey: account.AccountID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// RequestEmailVerification re-issues the verification token for the
// authenticated account.
func (s *Service) RequestEmailVerification(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return nil
	}
	return s.issueVerificationToken(ctx, account)
}

// VerifyEmail consumes a verification token and marks the account verified.
// Sessions are untouched; verification is not a credential event.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	accountID, err := s.accounts.ConsumeVerificationToken(ctx, hashToken(token), s.nowFn())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrTokenInvalid
		}
		return err
	}
	return s.accounts.SetEmailVerified(ctx, accountID, s.nowFn())
}
