package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/notifications"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/queue"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/render"
)

// QueueHandler serves queue mutations, runs and the view state
type QueueHandler struct {
	ctrl    *queue.Controller
	notes   *notifications.Service
	baseCtx context.Context
}

// NewQueueHandler creates a queue handler. Runs started through it live as
// long as baseCtx.
func NewQueueHandler(baseCtx context.Context, ctrl *queue.Controller, notes *notifications.Service) *QueueHandler {
	return &QueueHandler{
		ctrl:    ctrl,
		notes:   notes,
		baseCtx: baseCtx,
	}
}

// State returns the current view as JSON
func (h *QueueHandler) State(c *fiber.Ctx) error {
	return c.JSON(render.Build(h.ctrl.Snapshot()))
}

// Remove drops one file from the queue
func (h *QueueHandler) Remove(c *fiber.Ctx) error {
	removed := h.ctrl.RemoveFile(c.Params("id"))
	return respond(c, fiber.StatusOK, fiber.Map{"removed": removed})
}

// Clear empties the queue
func (h *QueueHandler) Clear(c *fiber.Ctx) error {
	cleared := h.ctrl.ClearQueue()
	return respond(c, fiber.StatusOK, fiber.Map{"cleared": cleared})
}

// Run starts a transcription run in the background
func (h *QueueHandler) Run(c *fiber.Ctx) error {
	err := h.ctrl.StartRunAsync(h.baseCtx)
	switch {
	case errors.Is(err, queue.ErrRunActive):
		return respond(c, fiber.StatusConflict, errorBody("A transcription run is already in progress", "ERR_RUN_ACTIVE"))
	case errors.Is(err, queue.ErrQueueEmpty):
		return respond(c, fiber.StatusConflict, errorBody("No files in the queue", "ERR_QUEUE_EMPTY"))
	case err != nil:
		return respond(c, fiber.StatusInternalServerError, errorBody(err.Error(), "ERR_RUN_FAILED"))
	}

	state := h.ctrl.Snapshot()
	return respond(c, fiber.StatusAccepted, fiber.Map{
		"status":      "started",
		"total_files": state.Run.TotalFiles,
	})
}

// Dismiss removes a notification before it expires
func (h *QueueHandler) Dismiss(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return respond(c, fiber.StatusBadRequest, errorBody("Invalid notification id", "ERR_INVALID_ID"))
	}
	dismissed := h.notes.Dismiss(id)
	return respond(c, fiber.StatusOK, fiber.Map{"dismissed": dismissed})
}
