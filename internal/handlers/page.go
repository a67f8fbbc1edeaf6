package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/queue"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/render"
)

// PageHandler renders the HTML page
type PageHandler struct {
	ctrl *queue.Controller
}

// NewPageHandler creates a page handler
func NewPageHandler(ctrl *queue.Controller) *PageHandler {
	return &PageHandler{ctrl: ctrl}
}

// Handle writes the page for the current state
func (h *PageHandler) Handle(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return render.Page(c, render.Build(h.ctrl.Snapshot()))
}
