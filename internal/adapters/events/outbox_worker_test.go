package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/adapters/events"
	"github.com/campuskit/identity-service/internal/ports"
)

func TestProcessOncePublishesBatch(t *testing.T) {
	t.Parallel()

	outbox := newMemOutbox()
	publisher := &capturePublisher{}
	worker := events.NewOutboxWorker(discardLogger(), outbox, publisher, time.Second, 10, time.Minute, 3, false)

	outbox.add(t, "identity.password_reset.requested", `{"email":"a@example.edu","token":"tok"}`)
	outbox.add(t, "identity.email_verification.requested", `{"email":"b@example.edu","token":"tok"}`)

	if err := worker.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once failed: %v", err)
	}
	if got := len(publisher.published); got != 2 {
		t.Fatalf("expected 2 published events, got %d", got)
	}
	if got := outbox.publishedCount(); got != 2 {
		t.Fatalf("expected 2 records marked published, got %d", got)
	}
}

func TestDeliveryFailureRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	outbox := newMemOutbox()
	publisher := &capturePublisher{err: errors.New("smtp down")}
	worker := events.NewOutboxWorker(discardLogger(), outbox, publisher, time.Second, 10, time.Minute, 3, false)

	outbox.add(t, "identity.password_reset.requested", `{"email":"a@example.edu","token":"tok"}`)

	ctx := context.Background()
	// Two failing passes retry, the third crosses the threshold.
	for i := 0; i < 3; i++ {
		if err := worker.ProcessOnce(ctx); err != nil {
			t.Fatalf("process once %d failed: %v", i, err)
		}
	}

	if got := outbox.deadLetteredCount(); got != 1 {
		t.Fatalf("expected record dead-lettered after max retries, got %d", got)
	}
	if got := outbox.publishedCount(); got != 0 {
		t.Fatalf("nothing should be published, got %d", got)
	}

	// Dead-lettered records are not picked up again.
	publisher.err = nil
	if err := worker.ProcessOnce(ctx); err != nil {
		t.Fatalf("process once after dlq failed: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("dead-lettered record must stay parked")
	}
}

func TestOTPFallbackSurfacesCodeOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, fallback bool) string {
		outbox := newMemOutbox()
		publisher := &capturePublisher{err: errors.New("smtp down")}
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		worker := events.NewOutboxWorker(logger, outbox, publisher, time.Second, 10, time.Minute, 1, fallback)

		outbox.add(t, "identity.otp.issued",
			`{"account_id":"`+uuid.NewString()+`","email":"alice@example.edu","code":"483920"}`)

		if err := worker.ProcessOnce(context.Background()); err != nil {
			t.Fatalf("process once failed: %v", err)
		}
		if got := outbox.deadLetteredCount(); got != 1 {
			t.Fatalf("expected dead-lettered otp event, got %d", got)
		}
		return buf.String()
	}

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()
		logs := run(t, true)
		if !bytes.Contains([]byte(logs), []byte("OTP DELIVERY FALLBACK")) {
			t.Fatalf("expected fallback marker in operator log")
		}
		if !bytes.Contains([]byte(logs), []byte("483920")) {
			t.Fatalf("expected code surfaced in operator log")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		logs := run(t, false)
		if bytes.Contains([]byte(logs), []byte("483920")) {
			t.Fatalf("code must not reach the log when fallback is disabled")
		}
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

type capturePublisher struct {
	mu        sync.Mutex
	err       error
	published []string
}

func (p *capturePublisher) Publish(_ context.Context, eventType, _ string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, eventType)
	return nil
}

type memOutbox struct {
	mu      sync.Mutex
	records map[uuid.UUID]*ports.OutboxRecord
}

func newMemOutbox() *memOutbox {
	return &memOutbox{records: map[uuid.UUID]*ports.OutboxRecord{}}
}

func (m *memOutbox) add(t *testing.T, eventType, payload string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.records[id] = &ports.OutboxRecord{
		OutboxID:     id,
		EventType:    eventType,
		PartitionKey: id.String(),
		Payload:      []byte(payload),
		CreatedAt:    time.Now().UTC(),
	}
}

func (m *memOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.records[id] = &ports.OutboxRecord{
		OutboxID:     id,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		CreatedAt:    event.OccurredAt,
	}
	return nil
}

func (m *memOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []ports.OutboxRecord
	for _, rec := range m.records {
		if len(out) >= limit {
			break
		}
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		if rec.ClaimUntil != nil && rec.ClaimUntil.After(now) {
			continue
		}
		rec.ClaimToken = &claimToken
		until := claimUntil
		rec.ClaimUntil = &until
		out = append(out, *rec)
	}
	return out, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return nil
	}
	rec.PublishedAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return nil
	}
	rec.RetryCount++
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	return nil
}

func (m *memOutbox) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[outboxID]
	if !ok || rec.ClaimToken == nil || *rec.ClaimToken != claimToken {
		return nil
	}
	rec.LastError = &errMsg
	rec.LastErrorAt = &at
	rec.DeadLetteredAt = &at
	rec.ClaimToken = nil
	rec.ClaimUntil = nil
	return nil
}

func (m *memOutbox) publishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.PublishedAt != nil {
			n++
		}
	}
	return n
}

func (m *memOutbox) deadLetteredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.DeadLetteredAt != nil {
			n++
		}
	}
	return n
}
