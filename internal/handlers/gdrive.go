package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/queue"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/storage"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

const defaultDriveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

var (
	driveFilePath = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDParam  = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveDirectID = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// GDriveHandler downloads shared Google Drive files into the queue
type GDriveHandler struct {
	ctrl        *queue.Controller
	spool       *storage.Spool
	maxSize     int64
	client      *http.Client
	downloadURL string
	log         zerolog.Logger
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(ctrl *queue.Controller, spool *storage.Spool, maxSizeMB int, logger zerolog.Logger) *GDriveHandler {
	return &GDriveHandler{
		ctrl:        ctrl,
		spool:       spool,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		client:      &http.Client{Timeout: 10 * time.Minute},
		downloadURL: defaultDriveDownloadURL,
		log:         logger,
	}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL  string `json:"url" form:"url"`
	Name string `json:"name" form:"name"`
}

// Handle downloads the linked file and adds it to the queue
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, errorBody("Invalid request body", "ERR_INVALID_BODY"))
	}

	if strings.TrimSpace(req.URL) == "" {
		return respond(c, fiber.StatusBadRequest, errorBody("URL is required", "ERR_NO_URL"))
	}

	fileID := extractGDriveFileID(strings.TrimSpace(req.URL))
	if fileID == "" {
		return respond(c, fiber.StatusBadRequest, errorBody("Invalid Google Drive URL", "ERR_INVALID_URL"))
	}

	h.log.Info().Str("drive_id", fileID).Msg("downloading from Google Drive")

	httpReq, err := http.NewRequestWithContext(c.UserContext(), http.MethodGet, fmt.Sprintf(h.downloadURL, fileID), nil)
	if err != nil {
		return respond(c, fiber.StatusInternalServerError, errorBody("Failed to download file from Google Drive", "ERR_DOWNLOAD_FAILED"))
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.log.Error().Err(err).Str("drive_id", fileID).Msg("Google Drive download failed")
		return respond(c, fiber.StatusBadGateway, errorBody("Failed to download file from Google Drive", "ERR_DOWNLOAD_FAILED"))
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get(fiber.HeaderContentType)
	// Drive answers private files and large-file scan warnings with an HTML page
	if resp.StatusCode != http.StatusOK || strings.HasPrefix(contentType, fiber.MIMETextHTML) {
		return respond(c, fiber.StatusBadRequest, errorBody("File not accessible (may be private or doesn't exist)", "ERR_FILE_NOT_ACCESSIBLE"))
	}

	name := driveFileName(req.Name, resp.Header.Get(fiber.HeaderContentDisposition), fileID)
	payload, size, err := h.spool.Store(name, resp.Body, h.maxSize)
	if errors.Is(err, storage.ErrTooLarge) {
		return respond(c, fiber.StatusRequestEntityTooLarge, errorBody(fmt.Sprintf("File too large (max %dMB)", h.maxSize/(1024*1024)), "ERR_FILE_TOO_LARGE"))
	}
	if err != nil {
		h.log.Error().Err(err).Str("drive_id", fileID).Msg("failed to save downloaded file")
		return respond(c, fiber.StatusInternalServerError, errorBody("Failed to save downloaded file", "ERR_SAVE_FAILED"))
	}

	result := h.ctrl.AddFiles([]queue.RawFile{{
		Name:       name,
		Size:       size,
		MimeType:   contentType,
		SourceType: types.SourceGDrive,
		Payload:    payload,
	}})
	if len(result.Rejected) > 0 {
		return respond(c, fiber.StatusBadRequest, errorBody(result.Rejected[0].Error(), "ERR_REJECTED"))
	}

	return respond(c, fiber.StatusOK, fiber.Map{
		"file":    result.Accepted[0],
		"status":  "queued",
		"message": "Google Drive file downloaded and added to the queue",
	})
}

// driveFileName picks the queue name: the requested name, then the name Drive
// reports, then a generated one. Names without an extension get ".mp3".
func driveFileName(requested, disposition, fileID string) string {
	name := strings.TrimSpace(requested)
	if name == "" && disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			name = filepath.Base(params["filename"])
		}
	}
	if name == "" || name == "." {
		name = "gdrive_" + fileID
	}
	if filepath.Ext(name) == "" {
		name += ".mp3"
	}
	return name
}

// extractGDriveFileID extracts the file ID from various Google Drive URL formats
func extractGDriveFileID(url string) string {
	// https://drive.google.com/file/d/{ID}/view
	if matches := driveFilePath.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	// https://drive.google.com/open?id={ID}
	if matches := driveIDParam.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	if matches := driveDirectID.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}

	return ""
}
