package domain

import "time"

// WebhookEventStatus tracks processing outcome for an ingested event.
type WebhookEventStatus string

const (
	WebhookEventPending   WebhookEventStatus = "PENDING"
	WebhookEventProcessed WebhookEventStatus = "PROCESSED"
	WebhookEventIgnored   WebhookEventStatus = "IGNORED"
	WebhookEventFailed    WebhookEventStatus = "FAILED"
)

// WebhookEvent records one ingested external event. The (Source, EventID)
// pair is unique; a retry with the same pair replays the stored outcome
// instead of reprocessing.
type WebhookEvent struct {
	ID          string
	Source      SourceKind
	EventID     string
	Status      WebhookEventStatus
	Payload     []byte
	TaskID      *string
	ErrorText   *string
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}
