package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/api/dto"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/service"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

// AssignmentsHandler manages workload-scoring endpoints.
type AssignmentsHandler struct {
	assignments *service.AssignmentService
	tasks       *service.TaskService
}

// NewAssignmentsHandler constructs handler.
func NewAssignmentsHandler(assignments *service.AssignmentService, tasks *service.TaskService) *AssignmentsHandler {
	return &AssignmentsHandler{assignments: assignments, tasks: tasks}
}

// Recommend GET /tasks/:id/assign/recommend.
func (h *AssignmentsHandler) Recommend(c *fiber.Ctx) error {
	task, err := h.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	rec, err := h.assignments.Recommend(c.UserContext(), task)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rec})
}

// AutoAssign POST /tasks/:id/assign/auto.
func (h *AssignmentsHandler) AutoAssign(c *fiber.Ctx) error {
	task, rec, err := h.assignments.AutoAssign(c.UserContext(), actorID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"task":           dto.NewTaskDetail(task),
		"recommendation": rec,
	}})
}

// RecommendBatch POST /tasks/assign/batch.
func (h *AssignmentsHandler) RecommendBatch(c *fiber.Ctx) error {
	var req dto.BatchAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	results, err := h.assignments.RecommendBatch(c.UserContext(), req.TaskIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": results})
}
