package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/repository"
)

type TaskHandler struct {
	tr repository.TaskRepository
}

func NewTaskHandler(tr repository.TaskRepository) *TaskHandler {
	return &TaskHandler{tr: tr}
}

const taskListLimit = 200

func (h *TaskHandler) List(c *fiber.Ctx) error {
	status := models.TaskStatus(c.Query("status", string(models.TaskStatusPending)))
	switch status {
	case models.TaskStatusPending, models.TaskStatusProcessing,
		models.TaskStatusCompleted, models.TaskStatusFailed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown status",
		})
	}

	tasks, err := h.tr.ListByStatus(c.Context(), status, taskListLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"tasks": tasks})
}

// Retry puts a failed task back on the schedule for immediate pickup.
func (h *TaskHandler) Retry(c *fiber.Ctx) error {
	id := c.Params("id")

	task, err := h.tr.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "task not found",
		})
	}
	if task.Status != models.TaskStatusFailed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "only failed tasks can be retried",
		})
	}

	if err := h.tr.Reschedule(c.Context(), id, time.Now(), "manual retry"); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	if err := h.tr.Remove(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
