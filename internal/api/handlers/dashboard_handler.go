package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/scheduler"
	"github.com/mediaflux/hub/internal/service"
)

type DashboardHandler struct {
	sched   *scheduler.Scheduler
	content service.ContentService
	proxies service.ProxyService
	lr      repository.SystemLogRepository
}

func NewDashboardHandler(sched *scheduler.Scheduler, content service.ContentService,
	proxies service.ProxyService, lr repository.SystemLogRepository) *DashboardHandler {
	return &DashboardHandler{sched: sched, content: content, proxies: proxies, lr: lr}
}

const recentLogLimit = 100

func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	proxyStats, err := h.proxies.Statistics(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	contentStats, err := h.content.Statistics(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"scheduler": h.sched.Stats(),
		"proxies":   proxyStats,
		"content":   contentStats,
	})
}

func (h *DashboardHandler) Logs(c *fiber.Ctx) error {
	logs, err := h.lr.ListRecent(c.Context(), recentLogLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"logs": logs})
}

func (h *DashboardHandler) StartScheduler(c *fiber.Ctx) error {
	if err := h.sched.Start(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"running": true})
}

func (h *DashboardHandler) StopScheduler(c *fiber.Ctx) error {
	h.sched.Stop()
	return c.JSON(fiber.Map{"running": false})
}

// GenerateNow triggers schedule generation outside the weekly timer.
func (h *DashboardHandler) GenerateNow(c *fiber.Ctx) error {
	go h.sched.GenerateWeeklySchedule()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": true})
}

// Rescan triggers a content folder rescan outside the periodic timer.
func (h *DashboardHandler) Rescan(c *fiber.Ctx) error {
	folders, err := h.content.ScanFolders(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"folders": folders})
}
