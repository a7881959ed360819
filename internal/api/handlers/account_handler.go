package handlers

import (
	"log/slog"
	"math/rand"

	"github.com/gofiber/fiber/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/mediaflux/hub/configs"
	"github.com/mediaflux/hub/internal/antiban"
	"github.com/mediaflux/hub/internal/models"
	"github.com/mediaflux/hub/internal/repository"
	"github.com/mediaflux/hub/internal/service"
	"github.com/mediaflux/hub/internal/transfer"
	"github.com/mediaflux/hub/pkg/utils"
)

type AccountHandler struct {
	cfg     config.Config
	ar      repository.AccountRepository
	proxies service.ProxyService
	rng     *rand.Rand
}

func NewAccountHandler(cfg config.Config, ar repository.AccountRepository, proxies service.ProxyService, rng *rand.Rand) *AccountHandler {
	return &AccountHandler{cfg: cfg, ar: ar, proxies: proxies, rng: rng}
}

// Create registers an account. The access token is stored encrypted and the
// daily quota comes from the account's age tier.
func (h *AccountHandler) Create(c *fiber.Ctx) error {
	var req transfer.AccountCreation
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}
	if req.Username == "" || req.AccessToken == "" || req.InstagramAccountID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username, access_token and instagram_account_id are required",
		})
	}

	existing, err := h.ar.GetByUsername(c.Context(), req.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "account already exists",
		})
	}

	encrypted, err := utils.Encrypt([]byte(req.AccessToken), []byte(h.cfg.SecretKey))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	nid, err := gonanoid.New()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	acc := &models.Account{
		ID:                 "acc_" + nid,
		Username:           req.Username,
		AccessToken:        encrypted,
		InstagramAccountID: req.InstagramAccountID,
		UserAgent:          service.RandomUserAgent(h.rng),
		DailyLimit:         antiban.QuotaForAccountAge(req.AccountAgeDays),
		Status:             models.AccountStatusActive,
	}

	id, err := h.ar.Create(c.Context(), acc)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, err := h.proxies.Assign(c.Context(), id); err != nil {
		// The account can still post through the direct route.
		slog.Info(err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          id,
		"daily_limit": acc.DailyLimit,
	})
}

func (h *AccountHandler) List(c *fiber.Ctx) error {
	accounts, err := h.ar.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

func (h *AccountHandler) UpdateStatus(c *fiber.Ctx) error {
	var req transfer.StatusUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	status := models.AccountStatus(req.Status)
	switch status {
	case models.AccountStatusActive, models.AccountStatusLimited,
		models.AccountStatusBanned, models.AccountStatusError:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown status",
		})
	}

	if err := h.ar.SetStatus(c.Context(), c.Params("id"), status); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *AccountHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")

	acc, err := h.ar.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if acc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "account not found",
		})
	}

	if acc.ProxyURL != "" {
		if err := h.proxies.Release(c.Context(), acc.ProxyURL); err != nil {
			slog.Info(err.Error())
		}
	}

	if err := h.ar.Remove(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
