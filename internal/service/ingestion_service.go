package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/config"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/observability"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/webhook"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

// IngestStatus is the outcome of one webhook delivery.
type IngestStatus string

const (
	IngestCreated   IngestStatus = "created"
	IngestUpdated   IngestStatus = "updated"
	IngestDuplicate IngestStatus = "duplicate"
	IngestIgnored   IngestStatus = "ignored"
)

// IngestResult is returned to the delivering system. On a duplicate
// delivery PriorStatus and PriorError replay the stored outcome of the
// first attempt, so the sender can tell a processed repeat from a failed
// one.
type IngestResult struct {
	Status      IngestStatus `json:"status"`
	TaskID      *string      `json:"task_id,omitempty"`
	PriorStatus string       `json:"prior_status,omitempty"`
	PriorError  *string      `json:"prior_error,omitempty"`
}

// IngestionService turns verified webhook deliveries into task mutations.
// The pipeline is verify, dedupe, map, apply; each stage fails closed.
type IngestionService struct {
	guard    *webhook.Guard
	mapper   *webhook.Mapper
	taskSvc  *TaskService
	webhooks config.WebhookConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// IngestionDependencies bundles collaborators.
type IngestionDependencies struct {
	Guard       *webhook.Guard
	Mapper      *webhook.Mapper
	TaskService *TaskService
	Webhooks    config.WebhookConfig
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewIngestionService creates the service.
func NewIngestionService(deps IngestionDependencies) *IngestionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		guard:    deps.Guard,
		mapper:   deps.Mapper,
		taskSvc:  deps.TaskService,
		webhooks: deps.Webhooks,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// Ingest processes one delivery. Signature failures reject before any
// state is touched. Re-deliveries of a processed event return the prior
// outcome without reprocessing.
func (s *IngestionService) Ingest(ctx context.Context, source domain.SourceKind, payload []byte, signature string) (*IngestResult, error) {
	secret := s.webhooks.SecretFor(string(source))
	if !webhook.VerifySignature(payload, signature, secret) {
		s.record(source, "rejected")
		return nil, apperrors.NewUnauthenticated("invalid webhook signature")
	}

	eventID, eventType, err := s.mapper.ParseEvent(payload)
	if err != nil {
		s.record(source, "malformed")
		return nil, apperrors.NewValidationError("malformed webhook payload", nil)
	}

	guarded, err := s.guard.CheckAndRecord(ctx, source, eventID, payload)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !guarded.IsNew {
		s.record(source, "duplicate")
		return priorResult(guarded.Prior), nil
	}

	result, err := s.apply(ctx, source, payload)
	if err != nil {
		_ = s.guard.RecordOutcome(ctx, guarded.EventID, domain.WebhookEventFailed, nil, err)
		s.record(source, "failed")
		return nil, err
	}

	outcome := domain.WebhookEventProcessed
	if result.Status == IngestIgnored {
		outcome = domain.WebhookEventIgnored
	}
	if err := s.guard.RecordOutcome(ctx, guarded.EventID, outcome, result.TaskID, nil); err != nil {
		s.logger.Warn("webhook outcome write failed",
			zap.String("source", string(source)),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
	s.record(source, string(result.Status))
	s.logger.Info("webhook processed",
		zap.String("source", string(source)),
		zap.String("event_type", eventType),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *IngestionService) apply(ctx context.Context, source domain.SourceKind, payload []byte) (*IngestResult, error) {
	command := s.mapper.Map(source, payload)

	switch command.Kind {
	case webhook.CommandCreateTask:
		create := command.Create
		task, err := s.taskSvc.Create(ctx, nil, TaskCreateInput{
			Title:    create.Title,
			Category: create.Category,
			Type:     create.Type,
			Priority: create.Priority,
			Fields:   create.Fields,
			Source:   create.Source,
		})
		if err != nil {
			return nil, err
		}
		return &IngestResult{Status: IngestCreated, TaskID: &task.ID}, nil

	case webhook.CommandUpdateTask:
		update := command.Update
		task, err := s.taskSvc.GetBySource(ctx, update.Source.Kind, update.Source.ExternalID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || apperrors.IsCode(err, "NOT_FOUND") {
				// update for a task never ingested; nothing to act on
				return &IngestResult{Status: IngestIgnored}, nil
			}
			return nil, err
		}
		if update.NewStatus != nil && task.Status != *update.NewStatus {
			updated, err := s.taskSvc.UpdateStatus(ctx, nil, task.ID, *update.NewStatus, update.Note)
			if err != nil {
				return nil, err
			}
			return &IngestResult{Status: IngestUpdated, TaskID: &updated.ID}, nil
		}
		return &IngestResult{Status: IngestIgnored, TaskID: &task.ID}, nil

	default:
		return &IngestResult{Status: IngestIgnored}, nil
	}
}

func priorResult(prior *domain.WebhookEvent) *IngestResult {
	result := &IngestResult{Status: IngestDuplicate}
	if prior != nil {
		result.TaskID = prior.TaskID
		result.PriorStatus = string(prior.Status)
		result.PriorError = prior.ErrorText
	}
	return result
}

func (s *IngestionService) record(source domain.SourceKind, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordWebhook(string(source), outcome)
	}
}
