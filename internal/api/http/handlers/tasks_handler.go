package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/api/dto"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/service"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

// actorHeader identifies the operator performing a mutation. Absent
// means the caller is a system integration.
const actorHeader = "X-Actor-ID"

// TasksHandler manages task endpoints.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// Create POST /tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	task, err := h.service.Create(c.UserContext(), actorID(c), service.TaskCreateInput{
		Title:      req.Title,
		Category:   req.Category,
		Type:       req.Type,
		Priority:   req.Priority,
		AssigneeID: req.AssigneeID,
		DueAt:      req.DueAt,
		ProjectID:  req.ProjectID,
		Fields:     req.Fields,
		Source:     domain.TaskSource{Kind: domain.SourceManual},
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// List GET /tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	filter := parseTaskQuery(c)
	tasks, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TaskSummary, 0, len(tasks))
	for i := range tasks {
		items = append(items, dto.NewTaskSummary(&tasks[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	task, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// UpdateStatus PATCH /tasks/:id/status.
func (h *TasksHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	task, err := h.service.UpdateStatus(c.UserContext(), actorID(c), c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// Reassign POST /tasks/:id/reassign.
func (h *TasksHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	task, err := h.service.Reassign(c.UserContext(), actorID(c), c.Params("id"), req.AssigneeID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// AttachEvidence POST /tasks/:id/evidence.
func (h *TasksHandler) AttachEvidence(c *fiber.Ctx) error {
	var req dto.EvidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Type == "" {
		return apperrors.NewValidationError("type required", nil)
	}
	task, err := h.service.AttachEvidence(c.UserContext(), actorID(c), c.Params("id"), domain.EvidenceItem{
		Type: req.Type,
		URL:  req.URL,
		Note: req.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// AddApproval POST /tasks/:id/approvals.
func (h *TasksHandler) AddApproval(c *fiber.Ctx) error {
	var req dto.ApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.service.AddApproval(c.UserContext(), actorID(c), c.Params("id"), req.Decision)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// CreateFollowUp POST /tasks/:id/followup.
func (h *TasksHandler) CreateFollowUp(c *fiber.Ctx) error {
	var req dto.FollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Title == "" {
		return apperrors.NewValidationError("title required", nil)
	}
	task, err := h.service.CreateFollowUp(c.UserContext(), actorID(c), c.Params("id"), service.FollowUpInput{
		Title:    req.Title,
		DueAt:    req.DueAt,
		Priority: req.Priority,
		Fields:   req.Fields,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// ListAudit GET /tasks/:id/audit.
func (h *TasksHandler) ListAudit(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	entries, err := h.service.ListAudit(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewAuditEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func actorID(c *fiber.Ctx) *string {
	actor := strings.TrimSpace(c.Get(actorHeader))
	if actor == "" {
		return nil
	}
	return &actor
}

func parseTaskQuery(c *fiber.Ctx) repository.TaskFilter {
	filter := repository.TaskFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			filter.Statuses = append(filter.Statuses, domain.TaskStatus(strings.ToUpper(raw)))
		}
	}
	for _, raw := range strings.Split(c.Query("type"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			// stored task_type values are lowercase, unlike statuses
			filter.Types = append(filter.Types, domain.TaskType(strings.ToLower(raw)))
		}
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if project := c.Query("project_id"); project != "" {
		filter.ProjectID = &project
	}
	if source := c.Query("source"); source != "" {
		kind := domain.SourceKind(strings.ToLower(source))
		filter.SourceKind = &kind
	}
	return filter
}
