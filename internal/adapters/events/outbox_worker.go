package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/identity-service/internal/ports"
)

const otpEventType = "identity.otp.issued"

// OutboxWorker pulls unpublished outbox records and delivers them.
// This separates transactional credential writes from channel delivery: a
// stored code or token stays valid whether or not its notification goes out.
type OutboxWorker struct {
	logger      *slog.Logger
	outbox      ports.OutboxRepository
	publisher   ports.EventPublisher
	interval    time.Duration
	batchSize   int
	claimTTL    time.Duration
	maxRetries  int
	otpFallback bool
}

// NewOutboxWorker constructs the outbox delivery loop with sane defaults.
// otpFallback enables the audited operator-log channel for login codes whose
// primary delivery has exhausted its retries.
func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
	otpFallback bool,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:      logger,
		outbox:      outbox,
		publisher:   publisher,
		interval:    interval,
		batchSize:   batchSize,
		claimTTL:    claimTTL,
		maxRetries:  maxRetries,
		otpFallback: otpFallback,
	}
}

// Run executes the periodic delivery loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims and works one batch. Exported so the worker can be driven
// directly in tests and one-shot maintenance runs.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	published := 0
	failed := 0
	deadLettered := 0
	for _, rec := range records {
		if rec.RetryCount >= w.maxRetries {
			deadLettered++
			w.deadLetter(ctx, rec, claimToken, "retry threshold reached before delivery", now)
			continue
		}

		if err := w.publisher.Publish(ctx, rec.EventType, rec.PartitionKey, rec.Payload); err != nil {
			failed++
			retriesAfterFailure := rec.RetryCount + 1
			if retriesAfterFailure >= w.maxRetries {
				deadLettered++
				w.logger.ErrorContext(ctx, "outbox message moved to dlq",
					"module", "events.outbox_worker",
					"layer", "adapter",
					"operation", "deliver_event",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"event_type", rec.EventType,
					"retry_count", retriesAfterFailure,
					"error", err,
				)
				w.deadLetter(ctx, rec, claimToken, err.Error(), now)
				continue
			}

			w.logger.WarnContext(ctx, "outbox delivery failed; retry scheduled",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "deliver_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", retriesAfterFailure,
				"error", err,
			)
			_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
			continue
		}
		published++
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}

func (w *OutboxWorker) deadLetter(ctx context.Context, rec ports.OutboxRecord, claimToken, reason string, now time.Time) {
	if rec.EventType == otpEventType && w.otpFallback {
		w.surfaceOTPToOperators(ctx, rec)
	}
	_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, reason, now)
}

// surfaceOTPToOperators is the deliberate availability-over-confidentiality
// escape hatch: when every delivery attempt for a login code has failed, the
// code is surfaced on the operator log so the login is not silently
// unrecoverable. Config-gated and loudly tagged so audits can find every use.
func (w *OutboxWorker) surfaceOTPToOperators(ctx context.Context, rec ports.OutboxRecord) {
	var payload struct {
		AccountID string `json:"account_id"`
		Email     string `json:"email"`
		Code      string `json:"code"`
	}
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return
	}
	w.logger.WarnContext(ctx, "OTP DELIVERY FALLBACK: code surfaced to operator log",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "otp_operator_fallback",
		"outcome", "fallback",
		"outbox_id", rec.OutboxID,
		"account_id", payload.AccountID,
		"email", payload.Email,
		"otp_code", payload.Code,
	)
}
