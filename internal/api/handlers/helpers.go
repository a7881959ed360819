package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func GetAdminUser(c *fiber.Ctx) string {
	user, _ := c.Locals("admin_user").(string)
	return user
}
