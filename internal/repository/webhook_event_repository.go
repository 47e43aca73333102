package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// WebhookEventRepository stores the ingested-event log. The (source, event_id)
// uniqueness lives in the store so concurrent duplicate deliveries across
// process instances collapse to one row.
type WebhookEventRepository interface {
	// InsertIfAbsent atomically records the event in PENDING state. When the
	// (source, event_id) pair already exists it returns inserted=false and
	// the previously stored record.
	InsertIfAbsent(ctx context.Context, event *domain.WebhookEvent) (inserted bool, existing *domain.WebhookEvent, err error)
	MarkOutcome(ctx context.Context, id string, status domain.WebhookEventStatus, taskID *string, errorText *string) error
	ListBySource(ctx context.Context, source domain.SourceKind, limit, offset int) ([]domain.WebhookEvent, error)
}

type webhookEventRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookEventRepository builds repository.
func NewWebhookEventRepository(pool *pgxpool.Pool) WebhookEventRepository {
	return &webhookEventRepository{pool: pool}
}

const webhookEventColumns = `id, source, event_id, status, payload, task_id, error_text, received_at, processed_at`

func (r *webhookEventRepository) InsertIfAbsent(ctx context.Context, event *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	const insert = `
        INSERT INTO webhook_events (source, event_id, status, payload)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (source, event_id) DO NOTHING
        RETURNING id, received_at`
	rows, err := r.pool.Query(ctx, insert, event.Source, event.EventID, domain.WebhookEventPending, event.Payload)
	if err != nil {
		return false, nil, err
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&event.ID, &event.ReceivedAt); err != nil {
			return false, nil, err
		}
		event.Status = domain.WebhookEventPending
		return true, nil, rows.Err()
	}
	if err := rows.Err(); err != nil {
		return false, nil, err
	}
	rows.Close()

	const lookup = `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE source=$1 AND event_id=$2`
	existing, err := scanWebhookEvent(r.pool.QueryRow(ctx, lookup, event.Source, event.EventID))
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *webhookEventRepository) MarkOutcome(ctx context.Context, id string, status domain.WebhookEventStatus, taskID *string, errorText *string) error {
	const query = `
        UPDATE webhook_events SET status=$1, task_id=$2, error_text=$3, processed_at=$4
        WHERE id=$5`
	_, err := r.pool.Exec(ctx, query, status, taskID, errorText, time.Now(), id)
	return err
}

func (r *webhookEventRepository) ListBySource(ctx context.Context, source domain.SourceKind, limit, offset int) ([]domain.WebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT ` + webhookEventColumns + `
        FROM webhook_events WHERE source=$1 ORDER BY received_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, source, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

func scanWebhookEvent(row taskScanner) (*domain.WebhookEvent, error) {
	var event domain.WebhookEvent
	if err := row.Scan(
		&event.ID,
		&event.Source,
		&event.EventID,
		&event.Status,
		&event.Payload,
		&event.TaskID,
		&event.ErrorText,
		&event.ReceivedAt,
		&event.ProcessedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
