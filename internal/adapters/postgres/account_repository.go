package postgres

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campuskit/identity-service/internal/domain"
	"github.com/campuskit/identity-service/internal/ports"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateAccountTxParams, outboxEvent ports.OutboxEvent) (domain.Account, error) {
	var result domain.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := accountModel{
			Email:        params.Email,
			PasswordHash: params.PasswordHash,
			Role:         string(params.Role),
			ProfileID:    params.ProfileID,
			CreatedAt:    params.RegisteredAt,
			UpdatedAt:    params.RegisteredAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		payload := outboxEvent.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		var payloadObj map[string]any
		if err := json.Unmarshal(payload, &payloadObj); err == nil {
			payloadObj["account_id"] = rec.AccountID.String()
			if adjusted, mErr := json.Marshal(payloadObj); mErr == nil {
				payload = adjusted
			}
		}

		outbox := identityOutboxModel{
			OutboxID:     outboxEvent.EventID,
			EventType:    outboxEvent.EventType,
			PartitionKey: rec.AccountID.String(),
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return err
		}

		result = toDomainAccount(rec)
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return result, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	var rec accountModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) SetEmailVerified(ctx context.Context, accountID uuid.UUID, updatedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"email_verified": true,
			"updated_at":     updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *accountRepository) SoftDelete(ctx context.Context, accountID uuid.UUID, deletedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Where("is_deleted = FALSE").
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": deletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&accountModel{}).Where("account_id = ?", accountID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *accountRepository) StoreOTP(ctx context.Context, accountID uuid.UUID, codeHash string, expiresAt, now time.Time) error {
	return r.storeArtifact(ctx, accountID, "otp_hash", "otp_expires_at", codeHash, expiresAt, now)
}

// ConsumeOTP locks the row, classifies the submitted code, and clears the
// stored hash in a conditional update keyed on that hash. Of two concurrent
// consumers the loser sees the field already gone and gets NoOTPIssued.
func (r *accountRepository) ConsumeOTP(ctx context.Context, accountID uuid.UUID, codeHash string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec accountModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if rec.OtpHash == nil || rec.OtpExpiresAt == nil {
			return domain.ErrNoOTPIssued
		}
		if !rec.OtpExpiresAt.After(now) {
			// Expired codes are cleared on the read that discovers them.
			if err := r.clearArtifactTx(tx, accountID, "otp_hash", "otp_expires_at", *rec.OtpHash, now); err != nil {
				return err
			}
			return domain.ErrTokenExpired
		}
		if subtle.ConstantTimeCompare([]byte(*rec.OtpHash), []byte(codeHash)) != 1 {
			return domain.ErrOTPMismatch
		}

		res := tx.Model(&accountModel{}).
			Where("account_id = ?", accountID).
			Where("otp_hash = ?", codeHash).
			Updates(map[string]any{
				"otp_hash":       nil,
				"otp_expires_at": nil,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNoOTPIssued
		}
		return nil
	})
}

func (r *accountRepository) StoreResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt, now time.Time) error {
	return r.storeArtifact(ctx, accountID, "reset_token_hash", "reset_token_expires_at", tokenHash, expiresAt, now)
}

func (r *accountRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	return r.consumeLookupArtifact(ctx, "reset_token_hash", "reset_token_expires_at", tokenHash, now)
}

func (r *accountRepository) StoreVerificationToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt, now time.Time) error {
	return r.storeArtifact(ctx, accountID, "verification_token_hash", "verification_token_expires_at", tokenHash, expiresAt, now)
}

func (r *accountRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	return r.consumeLookupArtifact(ctx, "verification_token_hash", "verification_token_expires_at", tokenHash, now)
}

// storeArtifact overwrites the hash+expiry column pair; at most one artifact of
// each kind is ever in flight per account.
func (r *accountRepository) storeArtifact(ctx context.Context, accountID uuid.UUID, hashCol, expiryCol, hash string, expiresAt, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Where("is_deleted = FALSE").
		Updates(map[string]any{
			hashCol:      hash,
			expiryCol:    expiresAt,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// consumeLookupArtifact resolves the owning account by hash, then clears the
// pair conditioned on the hash still being present. Unknown hash and
// already-consumed hash are indistinguishable to the caller.
func (r *accountRepository) consumeLookupArtifact(ctx context.Context, hashCol, expiryCol, tokenHash string, now time.Time) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec accountModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(hashCol+" = ?", tokenHash).
			Where("is_deleted = FALSE").
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		accountID = rec.AccountID

		expiry := artifactExpiry(rec, expiryCol)
		if expiry == nil || !expiry.After(now) {
			if err := r.clearArtifactTx(tx, rec.AccountID, hashCol, expiryCol, tokenHash, now); err != nil {
				return err
			}
			return domain.ErrTokenExpired
		}

		res := tx.Model(&accountModel{}).
			Where("account_id = ?", rec.AccountID).
			Where(hashCol+" = ?", tokenHash).
			Updates(map[string]any{
				hashCol:      nil,
				expiryCol:    nil,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return accountID, nil
}

func (r *accountRepository) clearArtifactTx(tx *gorm.DB, accountID uuid.UUID, hashCol, expiryCol, expectedHash string, now time.Time) error {
	return tx.Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Where(hashCol+" = ?", expectedHash).
		Updates(map[string]any{
			hashCol:      nil,
			expiryCol:    nil,
			"updated_at": now,
		}).Error
}

func artifactExpiry(rec accountModel, expiryCol string) *time.Time {
	switch expiryCol {
	case "otp_expires_at":
		return rec.OtpExpiresAt
	case "reset_token_expires_at":
		return rec.ResetTokenExpiresAt
	case "verification_token_expires_at":
		return rec.VerificationTokenExpiresAt
	default:
		return nil
	}
}
