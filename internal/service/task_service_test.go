package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/events"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

type taskServiceFixture struct {
	svc        *TaskService
	tasks      *fakeTaskRepo
	playbooks  *fakePlaybookRepo
	assignees  *fakeAssigneeRepo
	audit      *fakeAuditRepo
	dispatcher *recordingDispatcher
	now        time.Time
}

func newTaskServiceFixture(t *testing.T) *taskServiceFixture {
	t.Helper()
	fx := &taskServiceFixture{
		tasks:      newFakeTaskRepo(),
		playbooks:  newFakePlaybookRepo(),
		assignees:  newFakeAssigneeRepo(),
		audit:      &fakeAuditRepo{},
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.svc = NewTaskService(TaskDependencies{
		TaskRepo:     fx.tasks,
		PlaybookRepo: fx.playbooks,
		AssigneeRepo: fx.assignees,
		AuditRepo:    fx.audit,
		Dispatcher:   fx.dispatcher,
		Now:          func() time.Time { return fx.now },
	})
	return fx
}

func refundPlaybook() domain.Playbook {
	return domain.Playbook{
		ID:             "pb-1",
		Key:            "reservations.refund",
		Category:       "reservations.refund_request",
		RequiredFields: []string{"reservation_id", "guest_name"},
		RequiredEvidence: []string{
			"refund_confirmation",
		},
		SLA: &domain.SLAPolicy{FirstResponseMinutes: 30, BreachEscalateTo: "#escalations"},
	}
}

func TestCreateComputesSLADeadlineFromPlaybook(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.playbooks.add(refundPlaybook())

	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{
		Title:    "Refund for reservation 812",
		Category: "reservations.refund_request",
		Fields:   map[string]string{"reservation_id": "812", "guest_name": "A. Guest"},
	})
	require.NoError(t, err)

	require.NotNil(t, task.SLAAt)
	assert.Equal(t, fx.now.Add(30*time.Minute), *task.SLAAt)
	assert.Equal(t, domain.TaskStatusOpen, task.Status)
	assert.Equal(t, domain.TaskTypeReactive, task.Type)
	assert.Equal(t, domain.PriorityDefault, task.Priority)
	assert.False(t, task.SLAWarned)
	assert.False(t, task.SLABreached)
	require.NotNil(t, task.PlaybookKey)
	assert.Equal(t, "reservations.refund", *task.PlaybookKey)
	assert.Contains(t, task.ExternalKey, "OPS-")
}

func TestCreateRejectsMissingRequiredFields(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.playbooks.add(refundPlaybook())

	_, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{
		Title:    "Refund without details",
		Category: "reservations.refund_request",
		Fields:   map[string]string{"reservation_id": "812"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCreateWithoutPlaybookHasNoDeadline(t *testing.T) {
	fx := newTaskServiceFixture(t)

	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{
		Title:    "Ad-hoc chore",
		Category: "misc",
	})
	require.NoError(t, err)
	assert.Nil(t, task.SLAAt)
	assert.Nil(t, task.PlaybookKey)
}

func TestCreateValidation(t *testing.T) {
	fx := newTaskServiceFixture(t)

	_, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "   "})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "x", Priority: 9})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from    domain.TaskStatus
		to      domain.TaskStatus
		allowed bool
	}{
		{domain.TaskStatusOpen, domain.TaskStatusInProgress, true},
		{domain.TaskStatusOpen, domain.TaskStatusDone, true},
		{domain.TaskStatusInProgress, domain.TaskStatusOpen, false},
		{domain.TaskStatusWaiting, domain.TaskStatusInProgress, true},
		{domain.TaskStatusWaiting, domain.TaskStatusOpen, false},
		{domain.TaskStatusBlocked, domain.TaskStatusOpen, true},
		{domain.TaskStatusDone, domain.TaskStatusOpen, false},
		{domain.TaskStatusDone, domain.TaskStatusInProgress, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, isValidTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	fx := newTaskServiceFixture(t)
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusInProgress, "")
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusOpen, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestCompletionGatedOnDefinitionOfDone(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.playbooks.add(refundPlaybook())

	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{
		Title:    "Refund for reservation 812",
		Category: "reservations.refund_request",
		Fields:   map[string]string{"reservation_id": "812", "guest_name": "A. Guest"},
	})
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusDone, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "DOD_INCOMPLETE"))

	_, err = fx.svc.AttachEvidence(context.Background(), nil, task.ID, domain.EvidenceItem{
		Type: "refund_confirmation",
		URL:  "https://files/refund-812.pdf",
	})
	require.NoError(t, err)

	done, err := fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusDone, "refund sent")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, done.Status)
}

func TestCompletionClearsSLAFlags(t *testing.T) {
	fx := newTaskServiceFixture(t)
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	_, signaled, err := fx.svc.MarkBreached(context.Background(), task.ID)
	require.NoError(t, err)
	require.True(t, signaled)
	_, err = fx.svc.MarkEscalated(context.Background(), task.ID)
	require.NoError(t, err)

	done, err := fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusDone, "")
	require.NoError(t, err)
	assert.False(t, done.SLAWarned)
	assert.False(t, done.SLABreached)
	assert.False(t, done.SLAEscalated)
}

func TestMarkEscalatedRequiresBreach(t *testing.T) {
	fx := newTaskServiceFixture(t)
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	// no effect before the task is breached
	updated, err := fx.svc.MarkEscalated(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, updated.SLAEscalated)

	_, _, err = fx.svc.MarkBreached(context.Background(), task.ID)
	require.NoError(t, err)

	updated, err = fx.svc.MarkEscalated(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, updated.SLAEscalated)
}

func TestClosedTasksAreImmutable(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.assignees.assignees["op-1"] = domain.Assignee{ID: "op-1", Active: true, Role: domain.AssigneeRoleOperator}

	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)
	_, err = fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusDone, "")
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusInProgress, "")
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	_, err = fx.svc.Reassign(context.Background(), nil, task.ID, "op-1", "")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, err = fx.svc.AttachEvidence(context.Background(), nil, task.ID, domain.EvidenceItem{Type: "photo"})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestReassignKeepsDeadlineAndRecordsHandoff(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.playbooks.add(refundPlaybook())
	fx.assignees.assignees["op-1"] = domain.Assignee{ID: "op-1", Active: true, Role: domain.AssigneeRoleOperator}
	fx.assignees.assignees["op-2"] = domain.Assignee{ID: "op-2", Active: true, Role: domain.AssigneeRoleOperator}

	op1 := "op-1"
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{
		Title:      "Refund for reservation 812",
		Category:   "reservations.refund_request",
		AssigneeID: &op1,
		Fields:     map[string]string{"reservation_id": "812", "guest_name": "A. Guest"},
	})
	require.NoError(t, err)
	originalDeadline := *task.SLAAt

	updated, err := fx.svc.Reassign(context.Background(), nil, task.ID, "op-2", "rebalance")
	require.NoError(t, err)
	assert.Equal(t, "op-2", *updated.AssigneeID)
	assert.Equal(t, originalDeadline, *updated.SLAAt)
	assert.Contains(t, fx.audit.actions(), domain.AuditActionHandoff)
}

func TestReassignRejectsInactiveAssignee(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.assignees.assignees["op-gone"] = domain.Assignee{ID: "op-gone", Active: false}

	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	_, err = fx.svc.Reassign(context.Background(), nil, task.ID, "op-gone", "")
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, err = fx.svc.Reassign(context.Background(), nil, task.ID, "nobody", "")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestMutateRetriesOnVersionConflict(t *testing.T) {
	fx := newTaskServiceFixture(t)
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	fx.tasks.conflictsLeft = 2
	updated, err := fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusInProgress, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
}

func TestMutateGivesUpAfterRepeatedConflicts(t *testing.T) {
	fx := newTaskServiceFixture(t)
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	fx.tasks.conflictsLeft = maxMutateAttempts
	_, err = fx.svc.UpdateStatus(context.Background(), nil, task.ID, domain.TaskStatusInProgress, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "STORE_UNAVAILABLE"))
}

func TestMarkWarnedAndBreachedAreMonotonic(t *testing.T) {
	fx := newTaskServiceFixture(t)
	task, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{Title: "work"})
	require.NoError(t, err)

	_, signaled, err := fx.svc.MarkWarned(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, signaled)

	_, signaled, err = fx.svc.MarkWarned(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, signaled)

	_, signaled, err = fx.svc.MarkBreached(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, signaled)

	// once breached, neither signal fires again
	_, signaled, err = fx.svc.MarkBreached(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, signaled)
	_, signaled, err = fx.svc.MarkWarned(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, signaled)
}

func TestFollowUpSpawnsLinkedChildWithFreshDeadline(t *testing.T) {
	fx := newTaskServiceFixture(t)
	fx.playbooks.add(refundPlaybook())

	parent, err := fx.svc.Create(context.Background(), nil, TaskCreateInput{
		Title:    "Refund for reservation 812",
		Category: "reservations.refund_request",
		Fields:   map[string]string{"reservation_id": "812", "guest_name": "A. Guest"},
	})
	require.NoError(t, err)

	fx.now = fx.now.Add(2 * time.Hour)
	child, err := fx.svc.CreateFollowUp(context.Background(), nil, parent.ID, FollowUpInput{
		Title: "Confirm refund landed",
	})
	require.NoError(t, err)

	require.NotNil(t, child.ParentTaskID)
	assert.Equal(t, parent.ID, *child.ParentTaskID)
	assert.Equal(t, domain.TaskTypeFollowUp, child.Type)
	assert.Equal(t, parent.Category, child.Category)
	require.NotNil(t, child.SLAAt)
	assert.Equal(t, fx.now.Add(30*time.Minute), *child.SLAAt)
	assert.False(t, child.SLAWarned)
	assert.False(t, child.SLABreached)
	assert.Contains(t, fx.dispatcher.types(), events.EventFollowUpReminder)
}
