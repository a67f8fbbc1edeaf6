package cleanup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler deletes stale spool files that no queue entry owns anymore
type Scheduler struct {
	dir      string
	interval time.Duration
	maxAge   time.Duration
	inUse    func() []string
	log      zerolog.Logger
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a cleanup scheduler. inUse returns paths that must be kept.
func NewScheduler(dir string, intervalMinutes, maxAgeHours int, inUse func() []string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		dir:      dir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		inUse:    inUse,
		log:      logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately and then on every interval
func (s *Scheduler) Start() {
	s.log.Info().Str("dir", s.dir).Msg("running initial spool cleanup")
	s.CleanOldFiles()

	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.CleanOldFiles()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.Info().Dur("interval", s.interval).Dur("max_age", s.maxAge).Msg("cleanup scheduler started")
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info().Msg("cleanup scheduler stopped")
	})
}

// CleanOldFiles removes files older than maxAge and returns how many were deleted
func (s *Scheduler) CleanOldFiles() int {
	now := s.now()
	keep := make(map[string]bool)
	if s.inUse != nil {
		for _, p := range s.inUse() {
			keep[filepath.Clean(p)] = true
		}
	}

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		// hidden files hold spool bookkeeping such as the lock
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") || keep[filepath.Clean(path)] {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}

		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to delete stale spool file")
			return nil
		}
		deletedCount++
		deletedSize += size
		s.log.Debug().Str("file", filepath.Base(path)).Dur("age", age.Round(time.Minute)).Int64("size_kb", size/1024).Msg("deleted stale spool file")
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("error during cleanup")
	}

	if deletedCount > 0 {
		s.log.Info().Int("files", deletedCount).Float64("freed_mb", float64(deletedSize)/(1024*1024)).Msg("cleanup complete")
	}
	return deletedCount
}
