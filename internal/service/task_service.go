package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/events"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

const auditEntityTask = "task"

// mutation retry budget for optimistic-concurrency misses.
const maxMutateAttempts = 3

// Recommender proposes assignees for a task. Implemented by AssignmentService;
// kept as an interface so creation-time auto-assignment has no package cycle.
type Recommender interface {
	Recommend(ctx context.Context, task *domain.Task) (*Recommendation, error)
}

// TaskService is the state machine every task mutation goes through.
// Each mutation is atomic per task via the repository's versioned update.
type TaskService struct {
	tasks       repository.TaskRepository
	playbooks   repository.PlaybookRepository
	assignees   repository.AssigneeRepository
	audit       repository.AuditRepository
	dispatcher  events.Dispatcher
	recommender Recommender
	logger      *zap.Logger
	now         func() time.Time
}

// TaskDependencies bundles repositories for the task service.
type TaskDependencies struct {
	TaskRepo     repository.TaskRepository
	PlaybookRepo repository.PlaybookRepository
	AssigneeRepo repository.AssigneeRepository
	AuditRepo    repository.AuditRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Now          func() time.Time
}

// TaskCreateInput describes task creation payload.
type TaskCreateInput struct {
	Title      string
	Category   string
	Type       domain.TaskType
	Priority   int
	AssigneeID *string
	DueAt      *time.Time
	ProjectID  *string
	Fields     map[string]string
	Source     domain.TaskSource
}

// FollowUpInput describes a follow-up task spawned from a closed or promised item.
type FollowUpInput struct {
	Title    string
	DueAt    *time.Time
	Fields   map[string]string
	Priority int
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		playbooks:  deps.PlaybookRepo,
		assignees:  deps.AssigneeRepo,
		audit:      deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// SetRecommender wires the assignment engine for creation-time auto-assignment.
func (s *TaskService) SetRecommender(r Recommender) {
	s.recommender = r
}

var allowedTransitions = map[domain.TaskStatus][]domain.TaskStatus{
	domain.TaskStatusOpen:       {domain.TaskStatusInProgress, domain.TaskStatusWaiting, domain.TaskStatusBlocked, domain.TaskStatusDone},
	domain.TaskStatusInProgress: {domain.TaskStatusWaiting, domain.TaskStatusBlocked, domain.TaskStatusDone},
	domain.TaskStatusWaiting:    {domain.TaskStatusInProgress, domain.TaskStatusBlocked, domain.TaskStatusDone},
	domain.TaskStatusBlocked:    {domain.TaskStatusOpen, domain.TaskStatusInProgress, domain.TaskStatusWaiting, domain.TaskStatusDone},
	domain.TaskStatusDone:       {},
}

func isValidTransition(current, next domain.TaskStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Create validates the input against the category's playbook, computes the
// SLA deadline, runs auto-assignment when the playbook allows it, and
// persists the task.
func (s *TaskService) Create(ctx context.Context, actorID *string, input TaskCreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	taskType := input.Type
	if taskType == "" {
		taskType = domain.TaskTypeReactive
	}
	priority := input.Priority
	if priority == 0 {
		priority = domain.PriorityDefault
	}
	if priority < domain.PriorityHighest || priority > domain.PriorityLowest {
		return nil, apperrors.NewValidationError("priority must be between 1 and 5", map[string]any{"priority": priority})
	}
	if input.Source.Kind == "" {
		input.Source.Kind = domain.SourceManual
	}

	playbook, err := s.playbookForCategory(ctx, input.Category)
	if err != nil {
		return nil, err
	}
	if playbook != nil {
		if missing := missingFields(playbook.RequiredFields, input.Fields); len(missing) > 0 {
			return nil, apperrors.NewValidationError("missing required fields", map[string]any{"missing": missing})
		}
	}

	now := s.now()
	task := &domain.Task{
		ExternalKey: generateTaskKey(),
		Type:        taskType,
		Title:       title,
		Category:    strings.TrimSpace(input.Category),
		Status:      domain.TaskStatusOpen,
		Priority:    priority,
		AssigneeID:  input.AssigneeID,
		DueAt:       input.DueAt,
		Source:      input.Source,
		Fields:      input.Fields,
		ProjectID:   input.ProjectID,
	}
	if playbook != nil {
		task.PlaybookKey = &playbook.Key
		if playbook.SLA != nil {
			slaAt := now.Add(time.Duration(playbook.SLA.FirstResponseMinutes) * time.Minute)
			task.SLAAt = &slaAt
		}
	}

	autoAssigned := ""
	if task.AssigneeID == nil && playbook != nil && playbook.AutoAssign && s.recommender != nil {
		rec, err := s.recommender.Recommend(ctx, task)
		if err != nil {
			// an empty pool must not block task intake
			s.logger.Warn("auto-assignment skipped", zap.String("category", task.Category), zap.Error(err))
		} else {
			assigneeID := rec.Primary.AssigneeID
			task.AssigneeID = &assigneeID
			autoAssigned = rec.Primary.Reason
		}
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}

	action := domain.AuditActionCreated
	if task.Source.Kind != domain.SourceManual {
		action = "created_from_" + string(task.Source.Kind)
	}
	s.recordAudit(ctx, actorID, task.ID, action, map[string]any{
		"title":    task.Title,
		"category": task.Category,
		"sla_at":   task.SLAAt,
	})
	if autoAssigned != "" {
		s.recordAudit(ctx, nil, task.ID, domain.AuditActionAutoAssigned, map[string]any{
			"assignee_id": task.AssigneeID,
			"reason":      autoAssigned,
		})
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskCreated,
		TaskID:  task.ID,
		ActorID: actorID,
		Payload: events.TaskCreatedPayload{
			Title:    task.Title,
			Category: task.Category,
			Type:     task.Type,
			Priority: task.Priority,
			Source:   task.Source.Kind,
			SLAAt:    task.SLAAt,
		},
	})
	if autoAssigned != "" {
		s.publishEvent(ctx, events.Event{
			Type:   events.EventTaskAssigned,
			TaskID: task.ID,
			Payload: events.TaskAssignedPayload{
				NewAssigneeID: task.AssigneeID,
				Reason:        autoAssigned,
			},
		})
	}
	return task, nil
}

// Get fetches one task.
func (s *TaskService) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", map[string]any{"task_id": taskID})
		}
		return nil, apperrors.MapError(err)
	}
	return task, nil
}

// GetBySource finds the task created from an external object, used by
// webhook update commands.
func (s *TaskService) GetBySource(ctx context.Context, kind domain.SourceKind, externalID string) (*domain.Task, error) {
	task, err := s.tasks.GetBySource(ctx, kind, externalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("task", map[string]any{"source": kind, "external_id": externalID})
		}
		return nil, apperrors.MapError(err)
	}
	return task, nil
}

// List returns tasks matching the filter.
func (s *TaskService) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	tasks, err := s.tasks.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tasks, nil
}

// ListAudit returns the audit trail for a task.
func (s *TaskService) ListAudit(ctx context.Context, taskID string, limit, offset int) ([]domain.AuditEntry, error) {
	entries, err := s.audit.ListByEntity(ctx, auditEntityTask, taskID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// UpdateStatus applies one status transition. Completion is gated on the
// playbook's definition of done; closed tasks are immutable.
func (s *TaskService) UpdateStatus(ctx context.Context, actorID *string, taskID string, newStatus domain.TaskStatus, comment string) (*domain.Task, error) {
	var oldStatus domain.TaskStatus
	task, err := s.mutate(ctx, taskID, func(task *domain.Task) error {
		oldStatus = task.Status
		if task.Status == domain.TaskStatusDone {
			return apperrors.NewInvalidTransition(string(task.Status), string(newStatus))
		}
		if !isValidTransition(task.Status, newStatus) {
			return apperrors.NewInvalidTransition(string(task.Status), string(newStatus))
		}
		if newStatus == domain.TaskStatusDone {
			if err := s.checkDefinitionOfDone(ctx, task); err != nil {
				return err
			}
			// completed tasks drop out of SLA tracking entirely
			task.SLAWarned = false
			task.SLABreached = false
			task.SLAEscalated = false
		}
		task.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := domain.AuditActionUpdated
	switch newStatus {
	case domain.TaskStatusDone:
		action = domain.AuditActionCompleted
	case domain.TaskStatusBlocked:
		action = domain.AuditActionBlocked
	}
	s.recordAudit(ctx, actorID, task.ID, action, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
		"comment":    comment,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskUpdated,
		TaskID:  task.ID,
		ActorID: actorID,
		Payload: events.TaskStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   comment,
		},
	})
	return task, nil
}

// Reassign hands a task to another assignee. The SLA deadline is frozen at
// creation and deliberately untouched here.
func (s *TaskService) Reassign(ctx context.Context, actorID *string, taskID, newAssigneeID, reason string) (*domain.Task, error) {
	assignee, err := s.assignees.GetByID(ctx, newAssigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignee", map[string]any{"assignee_id": newAssigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"assignee_id": newAssigneeID})
	}

	var oldAssignee *string
	task, err := s.mutate(ctx, taskID, func(task *domain.Task) error {
		if task.Status == domain.TaskStatusDone {
			return apperrors.NewConflict("closed tasks cannot be reassigned", map[string]any{"task_id": taskID})
		}
		oldAssignee = task.AssigneeID
		task.AssigneeID = &assignee.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, task.ID, domain.AuditActionHandoff, map[string]any{
		"old_assignee_id": oldAssignee,
		"new_assignee_id": assignee.ID,
		"reason":          reason,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskAssigned,
		TaskID:  task.ID,
		ActorID: actorID,
		Payload: events.TaskAssignedPayload{
			OldAssigneeID: oldAssignee,
			NewAssigneeID: task.AssigneeID,
			Reason:        reason,
		},
	})
	return task, nil
}

// AttachEvidence appends one evidence item; prior entries are never removed.
func (s *TaskService) AttachEvidence(ctx context.Context, actorID *string, taskID string, item domain.EvidenceItem) (*domain.Task, error) {
	if strings.TrimSpace(item.Type) == "" {
		return nil, apperrors.NewValidationError("evidence type required", nil)
	}
	item.AddedAt = s.now()

	task, err := s.mutate(ctx, taskID, func(task *domain.Task) error {
		if task.Status == domain.TaskStatusDone {
			return apperrors.NewConflict("closed tasks are immutable", map[string]any{"task_id": taskID})
		}
		task.Evidence = append(task.Evidence, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, task.ID, domain.AuditActionEvidenceAdded, map[string]any{
		"type": item.Type,
		"url":  item.URL,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskUpdated,
		TaskID:  task.ID,
		ActorID: actorID,
		Payload: map[string]any{"evidence_added": item.Type},
	})
	return task, nil
}

// AddApproval records one approver decision.
func (s *TaskService) AddApproval(ctx context.Context, actorID *string, taskID string, decision domain.ApprovalDecision) (*domain.Task, error) {
	if actorID == nil || *actorID == "" {
		return nil, apperrors.NewValidationError("approver required", nil)
	}
	if decision != domain.ApprovalApproved && decision != domain.ApprovalRejected {
		return nil, apperrors.NewValidationError("decision must be approved or rejected", nil)
	}
	entry := domain.Approval{ApproverID: *actorID, Decision: decision, DecidedAt: s.now()}

	task, err := s.mutate(ctx, taskID, func(task *domain.Task) error {
		if task.Status == domain.TaskStatusDone {
			return apperrors.NewConflict("closed tasks are immutable", map[string]any{"task_id": taskID})
		}
		task.Approvals = append(task.Approvals, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, task.ID, domain.AuditActionApprovalRecorded, map[string]any{
		"decision": decision,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskUpdated,
		TaskID:  task.ID,
		ActorID: actorID,
		Payload: map[string]any{"approval": decision},
	})
	return task, nil
}

// CreateFollowUp spawns a new task tracking unresolved work from an existing
// one. The closed parent is never mutated; the child gets a fresh SLA
// deadline and fresh warn/breach flags.
func (s *TaskService) CreateFollowUp(ctx context.Context, actorID *string, parentTaskID string, input FollowUpInput) (*domain.Task, error) {
	parent, err := s.Get(ctx, parentTaskID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Follow-up: " + parent.Title
	}
	fields := input.Fields
	if fields == nil {
		fields = parent.Fields
	}

	child, err := s.Create(ctx, actorID, TaskCreateInput{
		Title:     title,
		Category:  parent.Category,
		Type:      domain.TaskTypeFollowUp,
		Priority:  input.Priority,
		DueAt:     input.DueAt,
		ProjectID: parent.ProjectID,
		Fields:    fields,
		Source:    domain.TaskSource{Kind: domain.SourceManual},
	})
	if err != nil {
		return nil, err
	}

	// link to the parent after creation; parent id is not part of the
	// create input surface
	child, err = s.mutate(ctx, child.ID, func(task *domain.Task) error {
		task.ParentTaskID = &parent.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, parent.ID, domain.AuditActionFollowUpCreated, map[string]any{
		"followup_task_id": child.ID,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventFollowUpReminder,
		TaskID:  child.ID,
		ActorID: actorID,
		Payload: events.FollowUpPayload{
			ParentTaskID: parent.ID,
			DueAt:        child.DueAt,
		},
	})
	return child, nil
}

// MarkWarned raises the pre-deadline warning flag. Idempotent: returns
// signaled=false when the task is closed or already warned/breached.
func (s *TaskService) MarkWarned(ctx context.Context, taskID string) (*domain.Task, bool, error) {
	signaled := false
	task, err := s.mutate(ctx, taskID, func(task *domain.Task) error {
		if !task.IsOpen() || task.SLAWarned || task.SLABreached {
			return nil
		}
		task.SLAWarned = true
		signaled = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !signaled {
		return task, false, nil
	}

	s.recordAudit(ctx, nil, task.ID, domain.AuditActionSLAWarning, map[string]any{
		"sla_at": task.SLAAt,
	})
	s.publishEvent(ctx, events.Event{
		Type:   events.EventSLAWarning,
		TaskID: task.ID,
		Payload: events.SLASignalPayload{
			SLAAt:    derefTime(task.SLAAt),
			Category: task.Category,
		},
	})
	return task, true, nil
}

// MarkBreached raises the breach flag. The flag is monotonic: once breached
// a task is never re-signaled. Escalation delivery is tracked separately via
// MarkEscalated so a failed dispatch can be retried without re-signaling.
// It does not force BLOCKED; status stays operator-owned.
func (s *TaskService) MarkBreached(ctx context.Context, taskID string) (*domain.Task, bool, error) {
	signaled := false
	task, err := s.mutate(ctx, taskID, func(task *domain.Task) error {
		if !task.IsOpen() || task.SLABreached {
			return nil
		}
		task.SLAWarned = true
		task.SLABreached = true
		signaled = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !signaled {
		return task, false, nil
	}

	s.recordAudit(ctx, nil, task.ID, domain.AuditActionSLABreached, map[string]any{
		"sla_at": task.SLAAt,
	})
	s.publishEvent(ctx, events.Event{
		Type:   events.EventSLABreach,
		TaskID: task.ID,
		Payload: events.SLASignalPayload{
			SLAAt:    derefTime(task.SLAAt),
			Category: task.Category,
		},
	})
	return task, true, nil
}

// MarkEscalated records that the breach notification for the task was
// delivered. Breached tasks without this marker are picked up again by
// the next sweep. Idempotent.
func (s *TaskService) MarkEscalated(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.mutate(ctx, taskID, func(task *domain.Task) error {
		if !task.SLABreached || task.SLAEscalated {
			return nil
		}
		task.SLAEscalated = true
		return nil
	})
}

// mutate runs fn against a fresh read of the task and persists it with the
// version check, retrying on concurrent-writer conflicts. Each attempt
// re-reads and re-validates so no effect is silently overwritten.
func (s *TaskService) mutate(ctx context.Context, taskID string, fn func(*domain.Task) error) (*domain.Task, error) {
	var lastErr error
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		task, err := s.tasks.GetByID(ctx, taskID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("task", map[string]any{"task_id": taskID})
			}
			return nil, apperrors.MapError(err)
		}
		if err := fn(task); err != nil {
			return nil, apperrors.MapError(err)
		}
		if err := s.tasks.UpdateVersioned(ctx, task); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, apperrors.MapError(err)
		}
		return task, nil
	}
	return nil, apperrors.NewStoreUnavailable(lastErr)
}

// checkDefinitionOfDone verifies the playbook's required fields and evidence
// before a task may close.
func (s *TaskService) checkDefinitionOfDone(ctx context.Context, task *domain.Task) error {
	playbook, err := s.playbookForTask(ctx, task)
	if err != nil {
		return err
	}
	if playbook == nil {
		return nil
	}

	missingFieldNames := []string{}
	for _, field := range playbook.RequiredFields {
		if !task.FieldPresent(field) {
			missingFieldNames = append(missingFieldNames, field)
		}
	}
	missingEvidence := []string{}
	for _, evidenceType := range playbook.RequiredEvidence {
		if !task.HasEvidenceType(evidenceType) {
			missingEvidence = append(missingEvidence, evidenceType)
		}
	}
	if len(missingFieldNames) > 0 || len(missingEvidence) > 0 {
		return apperrors.NewDodIncomplete(map[string]any{
			"missing_fields":   missingFieldNames,
			"missing_evidence": missingEvidence,
		})
	}
	return nil
}

func (s *TaskService) playbookForTask(ctx context.Context, task *domain.Task) (*domain.Playbook, error) {
	if task.PlaybookKey != nil {
		playbook, err := s.playbooks.GetByKey(ctx, *task.PlaybookKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil
			}
			return nil, apperrors.MapError(err)
		}
		return playbook, nil
	}
	return s.playbookForCategory(ctx, task.Category)
}

func (s *TaskService) playbookForCategory(ctx context.Context, category string) (*domain.Playbook, error) {
	if strings.TrimSpace(category) == "" {
		return nil, nil
	}
	playbook, err := s.playbooks.GetByCategory(ctx, category)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return playbook, nil
}

func (s *TaskService) recordAudit(ctx context.Context, actorID *string, taskID, action string, data map[string]any) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		Entity:   auditEntityTask,
		EntityID: taskID,
		Action:   action,
		ActorID:  actorID,
		Data:     data,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("audit write failed", zap.String("task_id", taskID), zap.String("action", action), zap.Error(err))
	}
}

func (s *TaskService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func missingFields(required []string, fields map[string]string) []string {
	missing := []string{}
	for _, field := range required {
		if fields[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func generateTaskKey() string {
	return "OPS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
