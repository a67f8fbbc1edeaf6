package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/queue"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/storage"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// UploadHandler adds browser-selected files to the queue
type UploadHandler struct {
	ctrl      *queue.Controller
	spool     *storage.Spool
	notifier  queue.Notifier
	maxSizeMB int
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(ctrl *queue.Controller, spool *storage.Spool, notifier queue.Notifier, maxSizeMB int, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		ctrl:      ctrl,
		spool:     spool,
		notifier:  notifier,
		maxSizeMB: maxSizeMB,
		log:       logger,
	}
}

type rejection struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

// Handle spools every file of the multipart form and hands the batch to the queue.
// Both "files" and "file" fields are accepted.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody("No file uploaded", "ERR_NO_FILE"))
	}

	headers := append(append([]*multipart.FileHeader(nil), form.File["files"]...), form.File["file"]...)
	if len(headers) == 0 {
		return respond(c, fiber.StatusBadRequest, errorBody("No file uploaded", "ERR_NO_FILE"))
	}

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	var (
		batch    []queue.RawFile
		rejected []rejection
	)
	for _, fh := range headers {
		payload, size, err := h.spoolFile(fh, maxSize)
		if errors.Is(err, storage.ErrTooLarge) {
			msg := fmt.Sprintf("File \"%s\" is too large (max %dMB)", fh.Filename, h.maxSizeMB)
			rejected = append(rejected, rejection{Filename: fh.Filename, Reason: "too_large", Message: msg})
			h.notifier.Notify(types.LevelError, msg)
			continue
		}
		if err != nil {
			h.log.Error().Err(err).Str("file", fh.Filename).Msg("failed to save uploaded file")
			for _, raw := range batch {
				raw.Payload.Release()
			}
			return respond(c, fiber.StatusInternalServerError, errorBody("Failed to save file", "ERR_SAVE_FAILED"))
		}

		batch = append(batch, queue.RawFile{
			Name:       fh.Filename,
			Size:       size,
			MimeType:   fh.Header.Get(fiber.HeaderContentType),
			SourceType: types.SourceUpload,
			Payload:    payload,
		})
	}

	result := h.ctrl.AddFiles(batch)
	for _, rej := range result.Rejected {
		rejected = append(rejected, rejection{Filename: rej.Filename, Reason: string(rej.Reason), Message: rej.Error()})
	}

	status := fiber.StatusOK
	if len(result.Accepted) == 0 {
		status = fiber.StatusBadRequest
	}
	return respond(c, status, fiber.Map{
		"accepted": result.Accepted,
		"rejected": rejected,
	})
}

func (h *UploadHandler) spoolFile(fh *multipart.FileHeader, maxSize int64) (*storage.SpoolPayload, int64, error) {
	if fh.Size > maxSize {
		return nil, 0, storage.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return h.spool.Store(fh.Filename, f, maxSize)
}
