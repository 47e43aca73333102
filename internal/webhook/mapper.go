package webhook

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
)

// CommandKind tags the mutation a mapped event requests.
type CommandKind string

const (
	CommandCreateTask CommandKind = "create_task"
	CommandUpdateTask CommandKind = "update_task"
	CommandNoOp       CommandKind = "noop"
)

// CreateTaskCommand carries everything needed to create a task from an event.
type CreateTaskCommand struct {
	Title    string
	Category string
	Type     domain.TaskType
	Priority int
	Fields   map[string]string
	Source   domain.TaskSource
}

// UpdateTaskCommand targets an existing task by its source identity.
type UpdateTaskCommand struct {
	Source    domain.TaskSource
	NewStatus *domain.TaskStatus
	Note      string
}

// TaskCommand is the tagged result of mapping one event. Exactly one of
// Create/Update is set for the matching kind.
type TaskCommand struct {
	Kind   CommandKind
	Create *CreateTaskCommand
	Update *UpdateTaskCommand
}

// inboundEvent is the envelope both sources share.
type inboundEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	ObjectID  string          `json:"object_id"`
	ObjectURL string          `json:"object_url"`
	Data      json.RawMessage `json:"data"`
}

// mapping describes how one (source, eventType) pair becomes a command.
type mapping struct {
	kind     CommandKind
	category string
	taskType domain.TaskType
	priority int
	status   *domain.TaskStatus
	// fields lists the data keys to extract onto the task.
	fields []string
}

func statusPtr(s domain.TaskStatus) *domain.TaskStatus { return &s }

// Event taxonomies per source. Unknown event types deliberately have no
// entry; they map to NoOp, never to an error, so schema drift in an
// external system cannot break ingestion.
var sourceMappings = map[domain.SourceKind]map[string]mapping{
	domain.SourceHostaway: {
		"reservation.cancellation_requested": {
			kind:     CommandCreateTask,
			category: "reservations.cancellation",
			taskType: domain.TaskTypeReactive,
			priority: 2,
			fields:   []string{"reservation_id", "guest_name", "listing_id"},
		},
		"reservation.refund_requested": {
			kind:     CommandCreateTask,
			category: "reservations.refund_request",
			taskType: domain.TaskTypeReactive,
			priority: 1,
			fields:   []string{"reservation_id", "guest_name", "amount"},
		},
		"message.guest_escalation": {
			kind:     CommandCreateTask,
			category: "guest_comms.escalation",
			taskType: domain.TaskTypeReactive,
			priority: 2,
			fields:   []string{"reservation_id", "conversation_id"},
		},
		"reservation.cancelled": {
			kind:   CommandUpdateTask,
			status: statusPtr(domain.TaskStatusDone),
		},
	},
	domain.SourceBreezeway: {
		"task.maintenance_reported": {
			kind:     CommandCreateTask,
			category: "property_care.maintenance",
			taskType: domain.TaskTypeReactive,
			priority: 2,
			fields:   []string{"property_id", "issue_type", "reported_by"},
		},
		"task.cleaning_failed": {
			kind:     CommandCreateTask,
			category: "property_care.cleaning_failure",
			taskType: domain.TaskTypeReactive,
			priority: 1,
			fields:   []string{"property_id", "inspection_id"},
		},
		"task.completed_externally": {
			kind:   CommandUpdateTask,
			status: statusPtr(domain.TaskStatusDone),
		},
	},
}

// Mapper translates verified external events into task-mutation commands.
type Mapper struct {
	logger *zap.Logger
}

// NewMapper constructs the mapper.
func NewMapper(logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{logger: logger}
}

// ParseEvent decodes the shared envelope, returning the event id used by the
// idempotency guard.
func (m *Mapper) ParseEvent(payload []byte) (eventID, eventType string, err error) {
	var envelope inboundEvent
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", "", fmt.Errorf("decode webhook envelope: %w", err)
	}
	if envelope.EventID == "" {
		return "", "", fmt.Errorf("webhook envelope missing event_id")
	}
	return envelope.EventID, envelope.EventType, nil
}

// Map translates one event into a TaskCommand carrying source provenance.
func (m *Mapper) Map(source domain.SourceKind, payload []byte) TaskCommand {
	var envelope inboundEvent
	if err := json.Unmarshal(payload, &envelope); err != nil {
		m.logger.Warn("unparseable webhook payload, ignoring",
			zap.String("source", string(source)), zap.Error(err))
		return TaskCommand{Kind: CommandNoOp}
	}

	table, ok := sourceMappings[source]
	if !ok {
		m.logger.Warn("unknown webhook source, ignoring", zap.String("source", string(source)))
		return TaskCommand{Kind: CommandNoOp}
	}
	rule, ok := table[envelope.EventType]
	if !ok {
		m.logger.Warn("unmapped webhook event type, ignoring",
			zap.String("source", string(source)),
			zap.String("event_type", envelope.EventType))
		return TaskCommand{Kind: CommandNoOp}
	}

	provenance := domain.TaskSource{
		Kind:        source,
		ExternalID:  envelope.ObjectID,
		ExternalURL: envelope.ObjectURL,
	}

	switch rule.kind {
	case CommandCreateTask:
		fields := extractFields(envelope.Data, rule.fields)
		title := fields["title"]
		if title == "" {
			title = fmt.Sprintf("[%s] %s", source, envelope.EventType)
		}
		return TaskCommand{
			Kind: CommandCreateTask,
			Create: &CreateTaskCommand{
				Title:    title,
				Category: rule.category,
				Type:     rule.taskType,
				Priority: rule.priority,
				Fields:   fields,
				Source:   provenance,
			},
		}
	case CommandUpdateTask:
		return TaskCommand{
			Kind: CommandUpdateTask,
			Update: &UpdateTaskCommand{
				Source:    provenance,
				NewStatus: rule.status,
				Note:      envelope.EventType,
			},
		}
	}
	return TaskCommand{Kind: CommandNoOp}
}

// extractFields pulls the whitelisted keys (plus an optional title) out of
// the event's data object, stringifying scalars.
func extractFields(data json.RawMessage, keys []string) map[string]string {
	fields := make(map[string]string, len(keys))
	if len(data) == 0 {
		return fields
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fields
	}
	for _, key := range append([]string{"title"}, keys...) {
		if val, ok := raw[key]; ok {
			fields[key] = stringify(val)
		}
	}
	return fields
}

func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
