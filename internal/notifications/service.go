// Package notifications keeps the transient messages shown to the user.
// Each notification expires after a fixed TTL and can be dismissed early.
package notifications

import (
	"strings"
	"sync"
	"time"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 5 * time.Second

const defaultMaxItems = 50

// Service stores active notifications in arrival order
type Service struct {
	mu       sync.Mutex
	nextID   int64
	ttl      time.Duration
	maxItems int
	items    []types.Notification
	now      func() time.Time
	onChange func()
}

// NewService creates a notification store. A non-positive ttl falls back to DefaultTTL.
func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		ttl:      ttl,
		maxItems: defaultMaxItems,
		now:      time.Now,
	}
}

// OnChange registers a callback fired when a notification expires or is dismissed
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Notify records a new notification and schedules its expiry
func (s *Service) Notify(level types.NotificationLevel, message string) types.Notification {
	s.mu.Lock()
	now := s.now()
	s.nextID++
	n := types.Notification{
		ID:        s.nextID,
		Level:     level,
		Message:   strings.TrimSpace(message),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.items = append(s.items, n)
	if len(s.items) > s.maxItems {
		trim := len(s.items) - s.maxItems
		s.items = append([]types.Notification(nil), s.items[trim:]...)
	}
	s.mu.Unlock()

	time.AfterFunc(s.ttl, s.changed)
	return n
}

// Active returns the notifications that have not expired yet
func (s *Service) Active() []types.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.items[:0]
	for _, n := range s.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	s.items = kept

	out := make([]types.Notification, len(kept))
	copy(out, kept)
	return out
}

// Dismiss removes one notification by id and reports whether it existed
func (s *Service) Dismiss(id int64) bool {
	s.mu.Lock()
	found := false
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.changed()
	}
	return found
}

func (s *Service) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
