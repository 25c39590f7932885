package ports

import "context"

// EventPublisher delivers claimed outbox records to the outside world.
// The worker treats a returned error as retryable until the retry budget runs out.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error
}
