package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldPresent(t *testing.T) {
	task := Task{Fields: map[string]string{"reservation_id": "812", "note": ""}}
	assert.True(t, task.FieldPresent("reservation_id"))
	assert.False(t, task.FieldPresent("note"))
	assert.False(t, task.FieldPresent("missing"))

	empty := Task{}
	assert.False(t, empty.FieldPresent("anything"))
}

func TestHasEvidenceType(t *testing.T) {
	task := Task{Evidence: []EvidenceItem{{Type: "photo"}, {Type: "refund_confirmation"}}}
	assert.True(t, task.HasEvidenceType("photo"))
	assert.False(t, task.HasEvidenceType("invoice"))
}

func TestIsOpen(t *testing.T) {
	for _, status := range []TaskStatus{TaskStatusOpen, TaskStatusInProgress, TaskStatusWaiting, TaskStatusBlocked} {
		task := Task{Status: status}
		assert.True(t, task.IsOpen(), string(status))
	}
	done := Task{Status: TaskStatusDone}
	assert.False(t, done.IsOpen())
}

func TestHasAffinityPrefixMatching(t *testing.T) {
	assignee := Assignee{Affinities: []string{"reservations", "guest_comms.escalation"}}
	assert.True(t, assignee.HasAffinity("reservations"))
	assert.True(t, assignee.HasAffinity("reservations.refund_request"))
	assert.True(t, assignee.HasAffinity("guest_comms.escalation"))
	assert.False(t, assignee.HasAffinity("guest_comms"))
	assert.False(t, assignee.HasAffinity("reservationsx.refund"))

	anyone := Assignee{}
	assert.True(t, anyone.HasAffinity("whatever"))
}
