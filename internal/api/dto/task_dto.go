package dto

import (
	"time"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// CreateTaskRequest payload.
type CreateTaskRequest struct {
	Title      string            `json:"title"`
	Category   string            `json:"category"`
	Type       domain.TaskType   `json:"type"`
	Priority   int               `json:"priority"`
	AssigneeID *string           `json:"assignee_id"`
	DueAt      *time.Time        `json:"due_at"`
	ProjectID  *string           `json:"project_id"`
	Fields     map[string]string `json:"fields"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.TaskStatus `json:"status"`
	Comment string            `json:"comment"`
}

// ReassignRequest payload.
type ReassignRequest struct {
	AssigneeID string `json:"assignee_id"`
	Reason     string `json:"reason"`
}

// EvidenceRequest payload.
type EvidenceRequest struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Note string `json:"note"`
}

// ApprovalRequest payload.
type ApprovalRequest struct {
	Decision domain.ApprovalDecision `json:"decision"`
}

// FollowUpRequest payload.
type FollowUpRequest struct {
	Title    string            `json:"title"`
	DueAt    *time.Time        `json:"due_at"`
	Priority int               `json:"priority"`
	Fields   map[string]string `json:"fields"`
}

// BatchAssignRequest payload.
type BatchAssignRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// TaskSummary response.
type TaskSummary struct {
	ID          string            `json:"id"`
	ExternalKey string            `json:"external_key"`
	Type        domain.TaskType   `json:"type"`
	Title       string            `json:"title"`
	Category    string            `json:"category"`
	Status      domain.TaskStatus `json:"status"`
	Priority    int               `json:"priority"`
	AssigneeID  *string           `json:"assignee_id"`
	SLAAt       *time.Time        `json:"sla_at"`
	SLAWarned   bool              `json:"sla_warned"`
	SLABreached bool              `json:"sla_breached"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TaskDetail response.
type TaskDetail struct {
	TaskSummary
	DueAt        *time.Time            `json:"due_at"`
	Source       domain.TaskSource     `json:"source"`
	PlaybookKey  *string               `json:"playbook_key"`
	Fields       map[string]string     `json:"fields"`
	Evidence     []domain.EvidenceItem `json:"evidence"`
	Approvals    []domain.Approval     `json:"approvals"`
	ProjectID    *string               `json:"project_id"`
	ParentTaskID *string               `json:"parent_task_id"`
	Version      int                   `json:"version"`
}

// AuditEntryResponse response.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	ActorID   *string        `json:"actor_id"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTaskSummary maps a domain task to its summary form.
func NewTaskSummary(task *domain.Task) TaskSummary {
	return TaskSummary{
		ID:          task.ID,
		ExternalKey: task.ExternalKey,
		Type:        task.Type,
		Title:       task.Title,
		Category:    task.Category,
		Status:      task.Status,
		Priority:    task.Priority,
		AssigneeID:  task.AssigneeID,
		SLAAt:       task.SLAAt,
		SLAWarned:   task.SLAWarned,
		SLABreached: task.SLABreached,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// NewTaskDetail maps a domain task to its detail form.
func NewTaskDetail(task *domain.Task) TaskDetail {
	return TaskDetail{
		TaskSummary:  NewTaskSummary(task),
		DueAt:        task.DueAt,
		Source:       task.Source,
		PlaybookKey:  task.PlaybookKey,
		Fields:       task.Fields,
		Evidence:     task.Evidence,
		Approvals:    task.Approvals,
		ProjectID:    task.ProjectID,
		ParentTaskID: task.ParentTaskID,
		Version:      task.Version,
	}
}

// NewAuditEntryResponse maps one audit row.
func NewAuditEntryResponse(entry *domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        entry.ID,
		Action:    entry.Action,
		ActorID:   entry.ActorID,
		Data:      entry.Data,
		CreatedAt: entry.CreatedAt,
	}
}
