package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

// Register creates an account for an existing directory profile. Only
// administrative roles reach this path; no tokens are issued on registration.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	role := s.cfg.DefaultRole
	if req.Role != "" {
		role, err = domain.ParseRole(req.Role)
		if err != nil {
			return RegisterResponse{}, err
		}
	}

	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("%w: invalid profile_id", domain.ErrInvalidInput)
	}
	if s.profiles != nil {
		if _, err := s.profiles.GetProfile(ctx, profileID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return RegisterResponse{}, fmt.Errorf("%w: profile %s", domain.ErrNotFound, profileID)
			}
			return RegisterResponse{}, fmt.Errorf("profile lookup: %w", err)
		}
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	payload, _ := json.Marshal(map[string]any{
		"email":         email,
		"role":          role,
		"profile_id":    profileID,
		"registered_at": now,
	})
	account, err := s.accounts.CreateWithOutboxTx(ctx, ports.CreateAccountTxParams{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		ProfileID:    profileID,
		RegisteredAt: now,
	}, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    "identity.account.registered",
		PartitionKey: email,
		Payload:      payload,
		OccurredAt:   now,
	})
	if err != nil {
		return RegisterResponse{}, err
	}

	// Kick off email verification right away; failure to enqueue must not
	// unwind the freshly created account.
	_ = s.issueVerificationToken(ctx, account)

	return RegisterResponse{
		AccountID: account.AccountID,
		Email:     account.Email,
		Role:      account.Role,
		ProfileID: account.ProfileID,
	}, nil
}

// DeactivateAccount soft-deletes an account and ends all of its sessions.
// Administrative path: unknown ids surface NotFound rather than collapsing
// into a credentials error.
func (s *Service) DeactivateAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	now := s.nowFn()
	if err := s.accounts.SoftDelete(ctx, account.AccountID, now); err != nil {
		return err
	}
	return s.sessions.RevokeAllByAccount(ctx, account.AccountID, now)
}
