package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/queue"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/storage"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

const (
	ytDlpBinary        = "yt-dlp"
	youtubeAudioFormat = "mp3"
	captureTimeout     = 30 * time.Minute
)

// YouTubeHandler captures the audio track of a video into the queue
type YouTubeHandler struct {
	ctrl          *queue.Controller
	spool         *storage.Spool
	notifier      queue.Notifier
	maxSize       int64
	baseCtx       context.Context
	log           zerolog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewYouTubeHandler creates a new YouTube handler. Captures outlive the
// request and stop with baseCtx.
func NewYouTubeHandler(baseCtx context.Context, ctrl *queue.Controller, spool *storage.Spool, notifier queue.Notifier, maxSizeMB int, logger zerolog.Logger) *YouTubeHandler {
	return &YouTubeHandler{
		ctrl:     ctrl,
		spool:    spool,
		notifier: notifier,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		baseCtx:  baseCtx,
		log:      logger,
	}
}

// YouTubeRequest represents the request body
type YouTubeRequest struct {
	URL  string `json:"url" form:"url"`
	Name string `json:"name" form:"name"`
}

// Handle validates the link and starts the capture in the background
func (h *YouTubeHandler) Handle(c *fiber.Ctx) error {
	var req YouTubeRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, fiber.StatusBadRequest, errorBody("Invalid request body", "ERR_INVALID_BODY"))
	}

	link := strings.TrimSpace(req.URL)
	if link == "" {
		return respond(c, fiber.StatusBadRequest, errorBody("URL is required", "ERR_NO_URL"))
	}
	if u, err := url.Parse(link); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return respond(c, fiber.StatusBadRequest, errorBody("Invalid video URL", "ERR_INVALID_URL"))
	}

	name := youtubeFileName(req.Name)
	go func() {
		ctx, cancel := context.WithTimeout(h.baseCtx, captureTimeout)
		defer cancel()
		if err := h.captureAndQueue(ctx, link, name); err != nil {
			h.log.Error().Err(err).Str("url", link).Msg("YouTube capture failed")
			h.notifier.Notify(types.LevelError, fmt.Sprintf("YouTube capture failed for \"%s\"", name))
		}
	}()

	return respond(c, fiber.StatusAccepted, fiber.Map{
		"status":  "capturing",
		"name":    name,
		"message": "YouTube audio capture started (this may take a few minutes for long videos)",
	})
}

// captureAndQueue downloads the audio with yt-dlp into the spool and adds it to the queue
func (h *YouTubeHandler) captureAndQueue(ctx context.Context, link, name string) error {
	base := h.spool.Reserve()
	output := base + "." + youtubeAudioFormat

	h.log.Info().Str("url", link).Msg("capturing YouTube audio")
	err := h.run(ctx, ytDlpBinary,
		"-x",
		"--audio-format", youtubeAudioFormat,
		"--no-playlist",
		"-o", base+".%(ext)s",
		link,
	)
	if err != nil {
		removeCaptures(base)
		return err
	}

	payload, size, err := h.spool.Adopt(output, h.maxSize)
	if err != nil {
		removeCaptures(base)
		if errors.Is(err, storage.ErrTooLarge) {
			return fmt.Errorf("captured audio exceeds %dMB: %w", h.maxSize/(1024*1024), err)
		}
		return err
	}

	result := h.ctrl.AddFiles([]queue.RawFile{{
		Name:       name,
		Size:       size,
		MimeType:   "audio/mpeg",
		SourceType: types.SourceYouTube,
		Payload:    payload,
	}})
	if len(result.Rejected) > 0 {
		return result.Rejected[0]
	}
	h.log.Info().Str("file", name).Int64("bytes", size).Msg("YouTube audio queued")
	return nil
}

func (h *YouTubeHandler) run(ctx context.Context, name string, args ...string) error {
	if h.commandRunner != nil {
		return h.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// removeCaptures deletes whatever yt-dlp left behind for base
func removeCaptures(base string) {
	matches, _ := filepath.Glob(base + ".*")
	for _, m := range matches {
		os.Remove(m)
	}
}

func youtubeFileName(requested string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = "youtube_video"
	}
	if !strings.EqualFold(filepath.Ext(name), "."+youtubeAudioFormat) {
		name += "." + youtubeAudioFormat
	}
	return name
}
