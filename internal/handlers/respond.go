// Package handlers exposes the upload queue over HTTP with fiber.
// Browser form posts get a 303 back to the page; other clients get JSON.
package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// wantsPage reports whether the request came from the HTML page
func wantsPage(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML)
}

// respond redirects page requests to "/" and writes JSON otherwise
func respond(c *fiber.Ctx, status int, body any) error {
	if wantsPage(c) {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Status(status).JSON(body)
}

func errorBody(message, code string) fiber.Map {
	return fiber.Map{
		"error": message,
		"code":  code,
	}
}
