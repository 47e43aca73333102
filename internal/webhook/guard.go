package webhook

import (
	"context"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
)

// GuardResult reports whether an event is new and, for repeats, the stored
// prior outcome so the caller can answer idempotently.
type GuardResult struct {
	IsNew bool
	// EventID is the stored webhook event row id for outcome recording.
	EventID string
	Prior   *domain.WebhookEvent
}

// Guard deduplicates webhook deliveries by (source, event id). The atomicity
// lives in the store's unique constraint, not in-process locking, because
// multiple service instances may receive the same retry concurrently.
type Guard struct {
	events repository.WebhookEventRepository
}

// NewGuard builds the idempotency guard.
func NewGuard(events repository.WebhookEventRepository) *Guard {
	return &Guard{events: events}
}

// CheckAndRecord inserts a PENDING record on first sight and returns
// IsNew=true. On a repeat it returns the previously stored outcome without
// reprocessing.
func (g *Guard) CheckAndRecord(ctx context.Context, source domain.SourceKind, eventID string, payload []byte) (GuardResult, error) {
	event := &domain.WebhookEvent{
		Source:  source,
		EventID: eventID,
		Payload: payload,
	}
	inserted, existing, err := g.events.InsertIfAbsent(ctx, event)
	if err != nil {
		return GuardResult{}, err
	}
	if inserted {
		return GuardResult{IsNew: true, EventID: event.ID}, nil
	}
	return GuardResult{IsNew: false, EventID: existing.ID, Prior: existing}, nil
}

// RecordOutcome stores the final processing result for the event so retries
// can replay it.
func (g *Guard) RecordOutcome(ctx context.Context, eventID string, status domain.WebhookEventStatus, taskID *string, processErr error) error {
	var errorText *string
	if processErr != nil {
		text := processErr.Error()
		errorText = &text
	}
	return g.events.MarkOutcome(ctx, eventID, status, taskID, errorText)
}
