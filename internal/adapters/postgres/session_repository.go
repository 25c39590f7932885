package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, params ports.SessionCreateParams) (domain.SessionRecord, error) {
	rec := sessionModel{
		TokenID:        params.TokenID,
		AccountID:      params.AccountID,
		DeviceName:     params.DeviceName,
		IPAddress:      nullableString(params.IPAddress),
		UserAgent:      params.UserAgent,
		CreatedAt:      params.LastActivityAt,
		LastActivityAt: params.LastActivityAt,
		ExpiresAt:      params.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.SessionRecord{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) GetByTokenID(ctx context.Context, tokenID uuid.UUID) (domain.SessionRecord, error) {
	var rec sessionModel
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SessionRecord{}, domain.ErrNotFound
		}
		return domain.SessionRecord{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.SessionRecord, error) {
	var rows []sessionModel
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.SessionRecord, 0, len(rows))
	for _, item := range rows {
		result = append(result, toDomainSession(item))
	}
	return result, nil
}

func (r *sessionRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]domain.SessionRecord, error) {
	var rows []sessionModel
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("revoked_at IS NULL").
		Where("expires_at > ?", now).
		Order("created_at ASC")
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.SessionRecord, 0, len(rows))
	for _, item := range rows {
		result = append(result, toDomainSession(item))
	}
	return result, nil
}

// Rotate swaps the token id on the live row in a single conditional update.
// Zero rows affected means the presented token already lost: a follow-up read
// distinguishes revoked, expired, and never-existed.
func (r *sessionRepository) Rotate(ctx context.Context, oldTokenID, newTokenID uuid.UUID, now time.Time) (domain.SessionRecord, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("token_id = ?", oldTokenID).
		Where("revoked_at IS NULL").
		Where("expires_at > ?", now).
		Updates(map[string]any{
			"token_id":         newTokenID,
			"last_activity_at": now,
		})
	if res.Error != nil {
		return domain.SessionRecord{}, res.Error
	}
	if res.RowsAffected == 0 {
		var rec sessionModel
		if err := r.db.WithContext(ctx).Where("token_id = ?", oldTokenID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.SessionRecord{}, domain.ErrNotFound
			}
			return domain.SessionRecord{}, err
		}
		if rec.RevokedAt != nil {
			return domain.SessionRecord{}, domain.ErrSessionRevoked
		}
		return domain.SessionRecord{}, domain.ErrSessionExpired
	}

	var rec sessionModel
	if err := r.db.WithContext(ctx).Where("token_id = ?", newTokenID).Take(&rec).Error; err != nil {
		return domain.SessionRecord{}, err
	}
	return toDomainSession(rec), nil
}

func (r *sessionRepository) RevokeByTokenID(ctx context.Context, tokenID uuid.UUID, revokedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("token_id = ?", tokenID).
		Where("revoked_at IS NULL").
		Update("revoked_at", revokedAt).Error
}

func (r *sessionRepository) RevokeAllByAccount(ctx context.Context, accountID uuid.UUID, revokedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&sessionModel{}).
		Where("account_id = ?", accountID).
		Where("revoked_at IS NULL").
		Update("revoked_at", revokedAt).Error
}
