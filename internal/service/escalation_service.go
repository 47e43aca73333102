package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/config"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/messaging"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/observability"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
)

// EscalationService routes breach notifications to the on-call chat
// channel. Routing comes from the task's playbook when one exists,
// otherwise from the service-wide defaults.
type EscalationService struct {
	playbooks repository.PlaybookRepository
	audits    repository.AuditRepository
	notifier  messaging.Notifier
	routing   config.EscalationConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	PlaybookRepo repository.PlaybookRepository
	AuditRepo    repository.AuditRepository
	Notifier     messaging.Notifier
	Routing      config.EscalationConfig
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewEscalationService creates the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = messaging.NewNoopNotifier(logger)
	}
	return &EscalationService{
		playbooks: deps.PlaybookRepo,
		audits:    deps.AuditRepo,
		notifier:  notifier,
		routing:   deps.Routing,
		metrics:   deps.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Escalate delivers the breach notification for a task. Callers only
// invoke it on a fresh breach signal, so delivery here is single-shot.
// A notifier failure is reported but the breach flag stays set; the
// audit trail records the attempted route either way.
func (s *EscalationService) Escalate(ctx context.Context, task *domain.Task) error {
	route := s.resolveRoute(ctx, task)
	text := breachMessage(task)

	deliverErr := s.notifier.Notify(ctx, route, text)
	if deliverErr != nil {
		s.logger.Error("escalation delivery failed",
			zap.String("task_id", task.ID),
			zap.String("route", route),
			zap.Error(deliverErr),
		)
	} else if s.metrics != nil {
		s.metrics.RecordEscalation()
	}

	entry := &domain.AuditEntry{
		Entity:   "task",
		EntityID: task.ID,
		Action:   domain.AuditActionBreachEscalated,
		Data: map[string]any{
			"route":     route,
			"delivered": deliverErr == nil,
		},
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("escalation audit write failed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}
	return deliverErr
}

func (s *EscalationService) resolveRoute(ctx context.Context, task *domain.Task) string {
	now := s.now()
	if task.PlaybookKey != nil {
		playbook, err := s.playbooks.GetByKey(ctx, *task.PlaybookKey)
		if err != nil {
			s.logger.Warn("playbook lookup failed during escalation",
				zap.String("task_id", task.ID),
				zap.String("playbook_key", *task.PlaybookKey),
				zap.Error(err),
			)
		} else if playbook != nil {
			if route := playbook.RouteAt(now); route != "" {
				return route
			}
		}
	}
	if s.routing.NightRoute != "" && inNightWindow(now.Hour(), s.routing.NightStartHour, s.routing.NightEndHour) {
		return s.routing.NightRoute
	}
	return s.routing.DefaultRoute
}

// inNightWindow handles windows that wrap midnight, e.g. 22..6.
func inNightWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func breachMessage(task *domain.Task) string {
	assignee := "unassigned"
	if task.AssigneeID != nil {
		assignee = *task.AssigneeID
	}
	deadline := "unknown"
	if task.SLAAt != nil {
		deadline = task.SLAAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("SLA breach: [%s] %s (category %s, assignee %s, due %s)",
		task.ExternalKey, task.Title, task.Category, assignee, deadline)
}
