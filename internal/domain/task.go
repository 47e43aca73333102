package domain

import "time"

// TaskStatus enumerates lifecycle states for tasks.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "OPEN"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusWaiting    TaskStatus = "WAITING"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskType enumerates cadence/origin classes for tasks.
type TaskType string

const (
	TaskTypeDaily    TaskType = "daily"
	TaskTypeWeekly   TaskType = "weekly"
	TaskTypeReactive TaskType = "reactive"
	TaskTypeProject  TaskType = "project"
	TaskTypeFollowUp TaskType = "follow_up"
)

// Task priorities range 1 (highest) to 5 (lowest).
const (
	PriorityHighest = 1
	PriorityDefault = 3
	PriorityLowest  = 5
)

// SourceKind identifies where a task originated.
type SourceKind string

const (
	SourceManual    SourceKind = "manual"
	SourceHostaway  SourceKind = "hostaway"
	SourceBreezeway SourceKind = "breezeway"
)

// TaskSource records external provenance for webhook-born tasks.
type TaskSource struct {
	Kind        SourceKind `json:"kind"`
	ExternalID  string     `json:"external_id,omitempty"`
	ExternalURL string     `json:"external_url,omitempty"`
}

// EvidenceItem is one append-only entry in a task's evidence trail.
type EvidenceItem struct {
	Type    string    `json:"type"`
	URL     string    `json:"url,omitempty"`
	Note    string    `json:"note,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// ApprovalDecision is the outcome of one approval entry.
type ApprovalDecision string

const (
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalRejected ApprovalDecision = "rejected"
)

// Approval records a single approver decision on a task.
type Approval struct {
	ApproverID string           `json:"approver_id"`
	Decision   ApprovalDecision `json:"decision"`
	DecidedAt  time.Time        `json:"decided_at"`
}

// Task is the aggregate for one unit of operations work.
//
// SLAAt is frozen at creation; reopening happens only by spawning a
// follow-up task with a fresh deadline. SLAWarned and SLABreached are
// monotonic flags maintained by the sweep; SLAEscalated is set only after
// the breach notification was actually delivered, so a failed delivery is
// retried on a later sweep. Version guards optimistic concurrency on every
// update.
type Task struct {
	ID           string
	ExternalKey  string
	Type         TaskType
	Title        string
	Category     string
	Status       TaskStatus
	Priority     int
	AssigneeID   *string
	DueAt        *time.Time
	SLAAt        *time.Time
	SLAWarned    bool
	SLABreached  bool
	SLAEscalated bool
	Source       TaskSource
	PlaybookKey  *string
	Fields       map[string]string
	Evidence     []EvidenceItem
	Approvals    []Approval
	ProjectID    *string
	ParentTaskID *string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOpen reports whether the task still participates in SLA evaluation.
func (t *Task) IsOpen() bool {
	return t.Status != TaskStatusDone
}

// FieldPresent reports whether a playbook-required field carries a value.
func (t *Task) FieldPresent(name string) bool {
	if t.Fields == nil {
		return false
	}
	return t.Fields[name] != ""
}

// HasEvidenceType reports whether at least one evidence item of the given type is attached.
func (t *Task) HasEvidenceType(evidenceType string) bool {
	for _, item := range t.Evidence {
		if item.Type == evidenceType {
			return true
		}
	}
	return false
}
