package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/events"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
)

// fakeTaskRepo is an in-memory TaskRepository with real version semantics.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	// conflictsLeft forces that many version conflicts before updates
	// succeed, to exercise the retry path.
	conflictsLeft int
	loads         map[string]domain.Workload
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks: map[string]domain.Task{},
		loads: map[string]domain.Workload{},
	}
}

func (f *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.Version = 1
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (f *fakeTaskRepo) UpdateVersioned(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tasks[task.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return repository.ErrVersionConflict
	}
	if stored.Version != task.Version {
		return repository.ErrVersionConflict
	}
	task.Version++
	task.UpdatedAt = time.Now()
	f.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	task := cloneTask(stored)
	return &task, nil
}

func (f *fakeTaskRepo) GetByExternalKey(_ context.Context, key string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.tasks {
		if stored.ExternalKey == key {
			task := cloneTask(stored)
			return &task, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTaskRepo) GetBySource(_ context.Context, kind domain.SourceKind, externalID string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *domain.Task
	for _, stored := range f.tasks {
		if stored.Source.Kind != kind || stored.Source.ExternalID != externalID {
			continue
		}
		task := cloneTask(stored)
		if newest == nil || task.CreatedAt.After(newest.CreatedAt) {
			newest = &task
		}
	}
	if newest == nil {
		return nil, pgx.ErrNoRows
	}
	return newest, nil
}

func (f *fakeTaskRepo) ListWithFilter(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Task{}
	for _, stored := range f.tasks {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		if filter.Category != nil && stored.Category != *filter.Category {
			continue
		}
		if filter.AssigneeID != nil && (stored.AssigneeID == nil || *stored.AssigneeID != *filter.AssigneeID) {
			continue
		}
		out = append(out, cloneTask(stored))
	}
	return out, nil
}

func (f *fakeTaskRepo) ListOpenWithDeadline(_ context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Task{}
	for _, stored := range f.tasks {
		if stored.Status != domain.TaskStatusDone && stored.SLAAt != nil {
			out = append(out, cloneTask(stored))
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Workloads(_ context.Context, assigneeIDs []string, _ time.Time) (map[string]domain.Workload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]domain.Workload{}
	for _, id := range assigneeIDs {
		out[id] = f.loads[id]
	}
	return out, nil
}

func cloneTask(task domain.Task) domain.Task {
	task.Evidence = append([]domain.EvidenceItem{}, task.Evidence...)
	task.Approvals = append([]domain.Approval{}, task.Approvals...)
	if task.Fields != nil {
		fields := make(map[string]string, len(task.Fields))
		for k, v := range task.Fields {
			fields[k] = v
		}
		task.Fields = fields
	}
	return task
}

func containsStatus(statuses []domain.TaskStatus, status domain.TaskStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// fakePlaybookRepo serves playbooks keyed by key and by category.
type fakePlaybookRepo struct {
	byKey      map[string]domain.Playbook
	byCategory map[string]string
}

func newFakePlaybookRepo() *fakePlaybookRepo {
	return &fakePlaybookRepo{
		byKey:      map[string]domain.Playbook{},
		byCategory: map[string]string{},
	}
}

func (f *fakePlaybookRepo) add(playbook domain.Playbook) {
	f.byKey[playbook.Key] = playbook
	f.byCategory[playbook.Category] = playbook.Key
}

func (f *fakePlaybookRepo) GetByKey(_ context.Context, key string) (*domain.Playbook, error) {
	playbook, ok := f.byKey[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &playbook, nil
}

func (f *fakePlaybookRepo) GetByCategory(_ context.Context, category string) (*domain.Playbook, error) {
	key, ok := f.byCategory[category]
	if !ok {
		return nil, nil
	}
	playbook := f.byKey[key]
	return &playbook, nil
}

func (f *fakePlaybookRepo) List(_ context.Context) ([]domain.Playbook, error) {
	out := []domain.Playbook{}
	for _, playbook := range f.byKey {
		out = append(out, playbook)
	}
	return out, nil
}

// fakeAssigneeRepo serves a static directory.
type fakeAssigneeRepo struct {
	assignees map[string]domain.Assignee
}

func newFakeAssigneeRepo(assignees ...domain.Assignee) *fakeAssigneeRepo {
	repo := &fakeAssigneeRepo{assignees: map[string]domain.Assignee{}}
	for _, assignee := range assignees {
		repo.assignees[assignee.ID] = assignee
	}
	return repo
}

func (f *fakeAssigneeRepo) GetByID(_ context.Context, id string) (*domain.Assignee, error) {
	assignee, ok := f.assignees[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &assignee, nil
}

func (f *fakeAssigneeRepo) List(_ context.Context, filter repository.AssigneeFilter) ([]domain.Assignee, error) {
	out := []domain.Assignee{}
	for _, assignee := range f.assignees {
		if filter.Role != nil && assignee.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && assignee.Active != *filter.Active {
			continue
		}
		out = append(out, assignee)
	}
	return out, nil
}

// fakeAuditRepo collects entries in memory.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) ListByEntity(_ context.Context, entity, entityID string, _, _ int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.AuditEntry{}
	for _, entry := range f.entries {
		if entry.Entity == entity && entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.Action)
	}
	return out
}

// fakeWebhookEventRepo backs the idempotency guard.
type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	events map[string]domain.WebhookEvent // keyed by source|event_id
	byID   map[string]string
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{
		events: map[string]domain.WebhookEvent{},
		byID:   map[string]string{},
	}
}

func (f *fakeWebhookEventRepo) InsertIfAbsent(_ context.Context, event *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(event.Source) + "|" + event.EventID
	if existing, ok := f.events[key]; ok {
		prior := existing
		return false, &prior, nil
	}
	event.ID = uuid.NewString()
	event.Status = domain.WebhookEventPending
	event.ReceivedAt = time.Now()
	f.events[key] = *event
	f.byID[event.ID] = key
	return true, nil, nil
}

func (f *fakeWebhookEventRepo) MarkOutcome(_ context.Context, id string, status domain.WebhookEventStatus, taskID *string, errorText *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	event := f.events[key]
	event.Status = status
	event.TaskID = taskID
	event.ErrorText = errorText
	f.events[key] = event
	return nil
}

func (f *fakeWebhookEventRepo) ListBySource(_ context.Context, source domain.SourceKind, _, _ int) ([]domain.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.WebhookEvent{}
	for _, event := range f.events {
		if event.Source == source {
			out = append(out, event)
		}
	}
	return out, nil
}

// recordingDispatcher captures published events in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}
func (d *recordingDispatcher) SubscribeAll(events.EventHandler)               {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, event := range d.events {
		out = append(out, event.Type)
	}
	return out
}
