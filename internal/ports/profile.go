package ports

import (
	"context"

	"github.com/google/uuid"
)

// ProfileRecord is the subset of the directory profile the identity service needs.
type ProfileRecord struct {
	ProfileID uuid.UUID
	FullName  string
	Email     string
}

// ProfileDirectory resolves the person record behind an account. The directory
// lives in another service; implementations should tolerate its absence and
// return domain.ErrNotFound for unknown profiles.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, profileID uuid.UUID) (ProfileRecord, error)
}
