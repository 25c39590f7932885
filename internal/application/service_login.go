package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
)

// Login authenticates with email and password. Unknown email, wrong password
// and soft-deleted account all collapse into InvalidCredentials so the
// response never reveals whether an address is registered.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return LoginResponse{}, fmt.Errorf("load account: %w", err)
		}
		s.recordAttempt(ctx, nil, req.ClientMeta, "PASSWORD", "FAILED", "ACCOUNT_NOT_FOUND")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if account.IsDeleted {
		s.recordAttempt(ctx, &account.AccountID, req.ClientMeta, "PASSWORD", "FAILED", "ACCOUNT_DEACTIVATED")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		s.recordAttempt(ctx, &account.AccountID, req.ClientMeta, "PASSWORD", "FAILED", "INVALID_PASSWORD")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, account, req.ClientMeta)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.recordAttempt(ctx, &account.AccountID, req.ClientMeta, "PASSWORD", "SUCCESS", "")

	return LoginResponse{
		AccountID: account.AccountID,
		Role:      account.Role,
		TokenPair: pair,
	}, nil
}

// ChangePassword verifies the current password and replaces the hash. Other
// sessions stay alive; ending them is the reset flow's containment measure,
// not this one's.
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, req PasswordChangeRequest) error {
	if err := domain.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load account: %w", err)
		}
		return domain.ErrInvalidCredentials
	}
	if account.IsDeleted {
		return domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, req.CurrentPassword); err != nil {
		return domain.ErrInvalidCredentials
	}
	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.accounts.UpdatePassword(ctx, account.AccountID, newHash, s.nowFn())
}
