package queue

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// Payload is the opaque audio content of a queued file
type Payload interface {
	Open() (io.ReadCloser, error)
	Release() error
}

// pathPayload is implemented by payloads backed by a file on disk
type pathPayload interface {
	Path() string
}

// BytesPayload keeps the audio in memory
type BytesPayload []byte

// Open returns a reader over the bytes
func (p BytesPayload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p)), nil
}

// Release is a no-op for in-memory payloads
func (p BytesPayload) Release() error {
	return nil
}

// RawFile is a user-selected file before validation
type RawFile struct {
	Name       string
	Size       int64
	MimeType   string
	SourceType string
	Payload    Payload
}

// Entry is one file owned by the controller queue
type Entry struct {
	ID         string
	Name       string
	Size       int64
	MimeType   string
	SourceType string
	Status     types.FileStatus
	CreatedAt  time.Time
	payload    Payload
}

// NewEntry creates a pending entry with a generated id
func NewEntry(raw RawFile) *Entry {
	source := raw.SourceType
	if source == "" {
		source = types.SourceUpload
	}
	return &Entry{
		ID:         generateFileID(),
		Name:       raw.Name,
		Size:       raw.Size,
		MimeType:   raw.MimeType,
		SourceType: source,
		Status:     types.StatusPending,
		CreatedAt:  time.Now(),
		payload:    raw.Payload,
	}
}

// View returns the render-facing copy of the entry
func (e *Entry) View() types.QueuedFile {
	return types.QueuedFile{
		ID:         e.ID,
		Name:       e.Name,
		Size:       e.Size,
		MimeType:   e.MimeType,
		SourceType: e.SourceType,
		Status:     e.Status,
		CreatedAt:  e.CreatedAt,
	}
}

// open returns a reader over the payload
func (e *Entry) open() (io.ReadCloser, error) {
	if e.payload == nil {
		return nil, fmt.Errorf("file %q has no content", e.Name)
	}
	return e.payload.Open()
}

// release frees the payload once the entry leaves the queue
func (e *Entry) release() error {
	if e.payload == nil {
		return nil
	}
	return e.payload.Release()
}

// generateFileID builds "file_<unix millis>_<random suffix>"
func generateFileID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("file_%d_%s", time.Now().UnixMilli(), suffix)
}
