package events

import (
	"time"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated      EventType = "task_created"
	EventTaskUpdated      EventType = "task_updated"
	EventTaskAssigned     EventType = "task_assigned"
	EventSLAWarning       EventType = "sla_warning"
	EventSLABreach        EventType = "sla_breach"
	EventFollowUpReminder EventType = "followup_reminder"
)

// Event represents a domain event emitted by services. ActorID nil means the
// system (ingestion or the sweep) acted.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    string      `json:"task_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	Title    string            `json:"title"`
	Category string            `json:"category"`
	Type     domain.TaskType   `json:"task_type"`
	Priority int               `json:"priority"`
	Source   domain.SourceKind `json:"source"`
	SLAAt    *time.Time        `json:"sla_at,omitempty"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
	Comment   string            `json:"comment,omitempty"`
}

// TaskAssignedPayload payload.
type TaskAssignedPayload struct {
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	NewAssigneeID *string `json:"new_assignee_id,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// SLASignalPayload payload for warning and breach events.
type SLASignalPayload struct {
	SLAAt    time.Time `json:"sla_at"`
	Category string    `json:"category"`
	Route    string    `json:"route,omitempty"`
}

// FollowUpPayload payload.
type FollowUpPayload struct {
	ParentTaskID string     `json:"parent_task_id"`
	DueAt        *time.Time `json:"due_at,omitempty"`
}
