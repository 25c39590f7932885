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

// RequestOtp issues a passwordless login code. The response is identical
// whether the address is registered or not, and whether delivery later
// succeeds or not; the code stays consumable either way.
func (s *Service) RequestOtp(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Do not leak whether the account exists.
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}
	if account.IsDeleted {
		return nil
	}

	code := randomDigits(6)
	now := s.nowFn()
	expiresAt := now.Add(s.cfg.OtpTTL)
	if err := s.accounts.StoreOTP(ctx, account.AccountID, hashToken(code), expiresAt, now); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"account_id": account.AccountID,
		"email":      account.Email,
		"code":       code,
		"expires_at": expiresAt,
	})
	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "identity.otp.issued",
		PartitionKey: account.AccountID.String(),
		Payload:      payload,
		OccurredAt:   now,
	}); err != nil {
		// The stored code is already valid; delivery trouble is the worker's
		// problem, not the caller's.
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// LoginWithOtp consumes a pending code and issues the same token pair as a
// password login. Consumption and validation are one conditional update, so a
// code can never succeed twice.
func (s *Service) LoginWithOtp(ctx context.Context, req OtpLoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return LoginResponse{}, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return LoginResponse{}, fmt.Errorf("load account: %w", err)
		}
		s.recordAttempt(ctx, nil, req.ClientMeta, "OTP", "FAILED", "ACCOUNT_NOT_FOUND")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if account.IsDeleted {
		s.recordAttempt(ctx, &account.AccountID, req.ClientMeta, "OTP", "FAILED", "ACCOUNT_DEACTIVATED")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	if err := s.accounts.ConsumeOTP(ctx, account.AccountID, hashToken(code), s.nowFn()); err != nil {
		s.recordAttempt(ctx, &account.AccountID, req.ClientMeta, "OTP", "FAILED", otpFailureReason(err))
		return LoginResponse{}, err
	}

	pair, err := s.issueTokenPair(ctx, account, req.ClientMeta)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.recordAttempt(ctx, &account.AccountID, req.ClientMeta, "OTP", "SUCCESS", "")

	return LoginResponse{
		AccountID: account.AccountID,
		Role:      account.Role,
		TokenPair: pair,
	}, nil
}

func otpFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoOTPIssued):
		return "NO_OTP_ISSUED"
	case errors.Is(err, domain.ErrTokenExpired):
		return "OTP_EXPIRED"
	case errors.Is(err, domain.ErrOTPMismatch):
		return "OTP_MISMATCH"
	default:
		return "OTP_ERROR"
	}
}
