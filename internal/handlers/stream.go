package handlers

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/render"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// StreamHub pushes the rendered view to every connected websocket
type StreamHub struct {
	mu       sync.Mutex
	clients  map[chan []byte]struct{}
	snapshot func() types.State
	log      zerolog.Logger
}

// NewStreamHub creates a hub rendering views from snapshot
func NewStreamHub(snapshot func() types.State, logger zerolog.Logger) *StreamHub {
	return &StreamHub{
		clients:  make(map[chan []byte]struct{}),
		snapshot: snapshot,
		log:      logger,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route
func (h *StreamHub) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Broadcast renders the current state and queues it for every client.
// Slow clients only ever see the latest view.
func (h *StreamHub) Broadcast() {
	msg, err := h.render()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode view")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		offer(ch, msg)
	}
}

// Clients returns the number of connected clients
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle serves one websocket connection until the client goes away
func (h *StreamHub) Handle(c *websocket.Conn) {
	defer c.Close()

	ch, unsubscribe := h.subscribe()
	defer unsubscribe()

	h.log.Debug().Str("remote", c.RemoteAddr().String()).Msg("view stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if msg, err := h.render(); err == nil {
		offer(ch, msg)
	}

	for {
		select {
		case msg := <-ch:
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug().Err(err).Msg("view stream write failed")
				return
			}
		case <-closed:
			h.log.Debug().Msg("view stream closed")
			return
		}
	}
}

func (h *StreamHub) subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

func (h *StreamHub) render() ([]byte, error) {
	return json.Marshal(render.Build(h.snapshot()))
}

// offer replaces any pending message with msg without blocking
func offer(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}
