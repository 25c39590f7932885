package postgres

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

type Repositories struct {
	Accounts      ports.AccountRepository
	Sessions      ports.SessionRepository
	LoginAttempts ports.LoginAttemptRepository
	Outbox        ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:      &accountRepository{db: db},
		Sessions:      &sessionRepository{db: db},
		LoginAttempts: &loginAttemptRepository{db: db},
		Outbox:        &outboxRepository{db: db},
	}
}

func toDomainAccount(row accountModel) domain.Account {
	acc := domain.Account{
		AccountID:     row.AccountID,
		Email:         row.Email,
		PasswordHash:  row.PasswordHash,
		Role:          domain.Role(row.Role),
		ProfileID:     row.ProfileID,
		EmailVerified: row.EmailVerified,
		IsDeleted:     row.IsDeleted,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.OtpHash != nil && row.OtpExpiresAt != nil {
		acc.OTP = &domain.OneTimeArtifact{Hash: *row.OtpHash, ExpiresAt: *row.OtpExpiresAt}
	}
	if row.ResetTokenHash != nil && row.ResetTokenExpiresAt != nil {
		acc.ResetToken = &domain.OneTimeArtifact{Hash: *row.ResetTokenHash, ExpiresAt: *row.ResetTokenExpiresAt}
	}
	if row.VerificationTokenHash != nil && row.VerificationTokenExpiresAt != nil {
		acc.VerificationToken = &domain.OneTimeArtifact{Hash: *row.VerificationTokenHash, ExpiresAt: *row.VerificationTokenExpiresAt}
	}
	return acc
}

func toDomainSession(row sessionModel) domain.SessionRecord {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.SessionRecord{
		SessionID:      row.SessionID,
		TokenID:        row.TokenID,
		AccountID:      row.AccountID,
		DeviceName:     row.DeviceName,
		IPAddress:      ip,
		UserAgent:      row.UserAgent,
		CreatedAt:      row.CreatedAt,
		LastActivityAt: row.LastActivityAt,
		ExpiresAt:      row.ExpiresAt,
		RevokedAt:      row.RevokedAt,
	}
}

func toDomainLoginAttempt(row loginAttemptModel) domain.LoginAttempt {
	ip := ""
	if row.IPAddress != nil {
		ip = *row.IPAddress
	}
	return domain.LoginAttempt{
		ID:            row.ID,
		AccountID:     row.AccountID,
		AttemptAt:     row.AttemptAt,
		IPAddress:     ip,
		Status:        row.Status,
		FailureReason: row.FailureReason,
		Method:        row.Method,
		UserAgent:     row.UserAgent,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
