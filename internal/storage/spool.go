package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ErrTooLarge is returned when a spooled payload exceeds the size limit
var ErrTooLarge = errors.New("file exceeds size limit")

// ErrSpoolLocked is returned when another process owns the spool directory
var ErrSpoolLocked = errors.New("spool directory is in use by another process")

const lockFileName = ".spool.lock"

// Spool keeps uploaded audio on disk until its queue entry is destroyed
type Spool struct {
	dir  string
	lock *flock.Flock
}

// NewSpool creates the spool directory if needed
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}
	return &Spool{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockFileName)),
	}, nil
}

// Lock claims the spool directory for this process
func (s *Spool) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire spool lock: %w", err)
	}
	if !ok {
		return ErrSpoolLocked
	}
	return nil
}

// Unlock releases the spool directory
func (s *Spool) Unlock() error {
	return s.lock.Unlock()
}

// Dir returns the spool directory
func (s *Spool) Dir() string {
	return s.dir
}

// Store copies r into a new spool file. A positive limit caps the size.
func (s *Spool) Store(filename string, r io.Reader, limit int64) (*SpoolPayload, int64, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.dir, uuid.New().String()+ext)

	out, err := os.Create(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create spool file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(out, src)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		os.Remove(path)
		return nil, 0, fmt.Errorf("failed to write spool file: %w", copyErr)
	case closeErr != nil:
		os.Remove(path)
		return nil, 0, fmt.Errorf("failed to close spool file: %w", closeErr)
	case limit > 0 && n > limit:
		os.Remove(path)
		return nil, 0, ErrTooLarge
	}

	return &SpoolPayload{path: path}, n, nil
}

// SpoolPayload is audio content backed by a spool file
type SpoolPayload struct {
	path string
}

// Path returns the backing file
func (p *SpoolPayload) Path() string {
	return p.path
}

// Open opens the spool file for reading
func (p *SpoolPayload) Open() (io.ReadCloser, error) {
	return os.Open(p.path)
}

// Release deletes the spool file
func (p *SpoolPayload) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Reserve returns a fresh spool path for an external writer such as yt-dlp
func (s *Spool) Reserve() string {
	return filepath.Join(s.dir, uuid.New().String())
}

// Adopt takes ownership of a file already written inside the spool directory
func (s *Spool) Adopt(path string, limit int64) (*SpoolPayload, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat spool file: %w", err)
	}
	if limit > 0 && info.Size() > limit {
		os.Remove(path)
		return nil, 0, ErrTooLarge
	}
	return &SpoolPayload{path: path}, info.Size(), nil
}
