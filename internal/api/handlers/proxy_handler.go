package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/service"
)

type ProxyHandler struct {
	pr      repository.ProxyRepository
	proxies service.ProxyService
}

func NewProxyHandler(pr repository.ProxyRepository, proxies service.ProxyService) *ProxyHandler {
	return &ProxyHandler{pr: pr, proxies: proxies}
}

func (h *ProxyHandler) List(c *fiber.Ctx) error {
	proxies, err := h.pr.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"proxies": proxies})
}

// Sync reloads the proxy pool from the configured proxy file.
func (h *ProxyHandler) Sync(c *fiber.Ctx) error {
	added, updated, err := h.proxies.SyncFromFile(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"added": added, "updated": updated})
}

// Test probes every proxy concurrently and reports reachability per proxy.
func (h *ProxyHandler) Test(c *fiber.Ctx) error {
	results, err := h.proxies.TestAll(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"results": results})
}

func (h *ProxyHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.proxies.Statistics(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(stats)
}
