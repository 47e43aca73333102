package domain

import "time"

// Audit actions emitted by the core. Webhook-born creations use
// "created_from_<source>".
const (
	AuditActionCreated            = "created"
	AuditActionUpdated            = "updated"
	AuditActionCompleted          = "completed"
	AuditActionBlocked            = "blocked"
	AuditActionHandoff            = "handoff"
	AuditActionEvidenceAdded      = "evidence_added"
	AuditActionApprovalRecorded   = "approval_recorded"
	AuditActionFollowUpCreated    = "followup_created"
	AuditActionSLAWarning         = "sla_warning"
	AuditActionSLABreached        = "sla_breached"
	AuditActionBreachEscalated    = "sla_breach_escalated"
	AuditActionAutoAssigned       = "auto_assigned"
)

// AuditEntry is an append-only record of one mutating operation.
// ActorID nil means the system (scheduler, ingestion) acted.
type AuditEntry struct {
	ID        string
	Entity    string
	EntityID  string
	Action    string
	ActorID   *string
	Data      map[string]any
	CreatedAt time.Time
}
