package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/domain"
)

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func randomHex(bytesLen int) string {
	raw := make([]byte, bytesLen)
	if _, err := rand.Read(raw); err != nil {
		panic(fmt.Sprintf("crypto rand unavailable: %v", err))
	}
	return hex.EncodeToString(raw)
}

// randomDigits draws from crypto/rand without modulo bias; the 6-digit space is
// small enough that brute force is the front-door rate limiter's problem, but
// the code itself must be unpredictable.
func randomDigits(size int) string {
	if size <= 0 {
		size = 6
	}
	limit := big.NewInt(1)
	for i := 0; i < size; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		panic(fmt.Sprintf("crypto rand unavailable: %v", err))
	}
	return fmt.Sprintf("%0*d", size, n)
}

func (s *Service) recordAttempt(ctx context.Context, accountID *uuid.UUID, meta ClientMeta, method, status, reason string) {
	_ = s.loginAttempts.Insert(ctx, domain.LoginAttempt{
		AccountID:     accountID,
		AttemptAt:     s.nowFn(),
		IPAddress:     meta.IPAddress,
		Status:        status,
		FailureReason: reason,
		Method:        method,
		UserAgent:     meta.UserAgent,
	})
}
