package application

import (
	"context"

	"github.com/google/uuid"
)

// ListSessions returns the account's sessions with the caller's current one flagged.
func (s *Service) ListSessions(ctx context.Context, accountID, currentSessionID uuid.UUID) ([]SessionItem, error) {
	sessions, err := s.sessions.ListByAccount(ctx, accountID, 100, 0)
	if err != nil {
		return nil, err
	}
	result := make([]SessionItem, 0, len(sessions))
	for _, it := range sessions {
		result = append(result, toSessionItem(it, currentSessionID))
	}
	return result, nil
}
