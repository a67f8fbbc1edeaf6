package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handlers groups every route handler of the server
type Handlers struct {
	Page    *PageHandler
	Queue   *QueueHandler
	Upload  *UploadHandler
	GDrive  *GDriveHandler
	YouTube *YouTubeHandler
	History *HistoryHandler
	Stream  *StreamHub
}

// Register mounts the page, queue, source and history routes
func (h *Handlers) Register(app fiber.Router) {
	app.Get("/", h.Page.Handle)
	app.Get("/state", h.Queue.State)

	app.Post("/files", h.Upload.Handle)
	app.Delete("/files/:id", h.Queue.Remove)
	app.Post("/files/clear", h.Queue.Clear)
	app.Post("/files/:id/remove", h.Queue.Remove)
	app.Delete("/files", h.Queue.Clear)
	app.Post("/run", h.Queue.Run)
	app.Post("/notifications/:id/dismiss", h.Queue.Dismiss)

	app.Post("/gdrive", h.GDrive.Handle)
	app.Post("/youtube", h.YouTube.Handle)

	app.Get("/transcripts", h.History.List)
	app.Get("/transcripts/:id/text", h.History.Text)

	app.Use("/ws", h.Stream.Upgrade)
	app.Get("/ws/stream", websocket.New(h.Stream.Handle))
}
