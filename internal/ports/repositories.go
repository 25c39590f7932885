package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
)

// CreateAccountTxParams captures atomic account-creation inputs.
// The registration outbox event rides the same transaction so the identity record
// and its integration signal cannot diverge.
type CreateAccountTxParams struct {
	Email        string
	PasswordHash string
	Role         domain.Role
	ProfileID    uuid.UUID
	RegisteredAt time.Time
}

// AccountRepository is the credential store for identity aggregates.
// Every one-time artifact mutation is a conditional update against the stored hash;
// callers never read-modify-write credential state.
type AccountRepository interface {
	CreateWithOutboxTx(ctx context.Context, params CreateAccountTxParams, event OutboxEvent) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error)
	UpdatePassword(ctx context.Context, accountID uuid.UUID, passwordHash string, updatedAt time.Time) error
	SetEmailVerified(ctx context.Context, accountID uuid.UUID, updatedAt time.Time) error
	SoftDelete(ctx context.Context, accountID uuid.UUID, deletedAt time.Time) error

	// StoreOTP overwrites any outstanding code; at most one is in flight per account.
	StoreOTP(ctx context.Context, accountID uuid.UUID, codeHash string, expiresAt, now time.Time) error
	// ConsumeOTP clears the stored code iff the submitted hash matches and the code is
	// unexpired, in one conditional update. Failure kinds: domain.ErrNoOTPIssued,
	// domain.ErrTokenExpired (field cleared), domain.ErrOTPMismatch (field kept).
	ConsumeOTP(ctx context.Context, accountID uuid.UUID, codeHash string, now time.Time) error

	StoreResetToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt, now time.Time) error
	// ConsumeResetToken resolves the owning account by token hash and clears the token.
	// domain.ErrNotFound when no account holds the hash; domain.ErrTokenExpired past deadline.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)

	StoreVerificationToken(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt, now time.Time) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)
}

// SessionCreateParams captures metadata required to append a session.
type SessionCreateParams struct {
	TokenID        uuid.UUID
	AccountID      uuid.UUID
	DeviceName     string
	IPAddress      string
	UserAgent      string
	ExpiresAt      time.Time
	LastActivityAt time.Time
}

// SessionRepository is the durable active-session set behind the token service.
// No other component mutates session rows.
type SessionRepository interface {
	Create(ctx context.Context, params SessionCreateParams) (domain.SessionRecord, error)
	GetByTokenID(ctx context.Context, tokenID uuid.UUID) (domain.SessionRecord, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.SessionRecord, error)
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID, now time.Time) ([]domain.SessionRecord, error)
	// Rotate atomically replaces oldTokenID with newTokenID on the live row. The update
	// is conditioned on the row still being active, so of two concurrent rotations of
	// the same token exactly one succeeds; the loser observes domain.ErrSessionRevoked,
	// domain.ErrSessionExpired, or domain.ErrNotFound.
	Rotate(ctx context.Context, oldTokenID, newTokenID uuid.UUID, now time.Time) (domain.SessionRecord, error)
	// RevokeByTokenID is idempotent: revoking an absent or already-revoked token is a no-op.
	RevokeByTokenID(ctx context.Context, tokenID uuid.UUID, revokedAt time.Time) error
	RevokeAllByAccount(ctx context.Context, accountID uuid.UUID, revokedAt time.Time) error
}

// LoginAttemptRepository stores login outcomes for audit.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt domain.LoginAttempt) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LoginAttempt, error)
}

// OutboxEvent is the write-side event payload prior to storage.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls the publish-retry workflow for notification events.
// Persisting the event before delivery is what keeps issued codes valid when the
// delivery channel is down.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
