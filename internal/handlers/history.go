package handlers

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryHandler serves archived transcripts. A nil database means the archive is disabled.
type HistoryHandler struct {
	db *storage.MetadataDB
}

// NewHistoryHandler creates a history handler
func NewHistoryHandler(db *storage.MetadataDB) *HistoryHandler {
	return &HistoryHandler{db: db}
}

// List returns the most recent records, newest first
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	if h.db == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorBody("Transcript archive is disabled", "ERR_ARCHIVE_DISABLED"))
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	records, err := h.db.ListTranscripts(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error(), "ERR_DB"))
	}
	return c.JSON(records)
}

// Text returns the stored transcript text of one record
func (h *HistoryHandler) Text(c *fiber.Ctx) error {
	if h.db == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorBody("Transcript archive is disabled", "ERR_ARCHIVE_DISABLED"))
	}

	rec, err := h.db.GetTranscript(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(errorBody("Transcript not found", "ERR_NOT_FOUND"))
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody(err.Error(), "ERR_DB"))
	}

	if rec.LocalPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(errorBody("Transcript file path not found", "ERR_NOT_FOUND"))
	}

	content, err := os.ReadFile(rec.LocalPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody("Failed to read transcript file", "ERR_READ_FAILED"))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(content)
}
