package types

import "time"

// FileStatus is the lifecycle state of one queued file
type FileStatus string

// File status constants
const (
	StatusPending    FileStatus = "pending"
	StatusProcessing FileStatus = "processing"
	StatusSuccess    FileStatus = "success"
	StatusError      FileStatus = "error"
)

// Source type constants
const (
	SourceUpload  = "upload"
	SourceGDrive  = "gdrive"
	SourceYouTube = "youtube"
)

// NotificationLevel classifies transient user-facing notifications
type NotificationLevel string

// Notification level constants
const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelWarning NotificationLevel = "warning"
	LevelInfo    NotificationLevel = "info"
)

// QueuedFile is the render-facing view of one entry in the upload queue
type QueuedFile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	MimeType   string     `json:"mime_type,omitempty"`
	SourceType string     `json:"source_type"`
	Status     FileStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TranscriptionResult is the outcome of one submission attempt
type TranscriptionResult struct {
	FileID      string    `json:"file_id"`
	Filename    string    `json:"filename"`
	Text        string    `json:"text,omitempty"`
	Error       string    `json:"error,omitempty"`
	Success     bool      `json:"success"`
	DocxSent    bool      `json:"docx_sent,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Content returns the transcription text on success and the error message otherwise
func (r TranscriptionResult) Content() string {
	if r.Success {
		return r.Text
	}
	return r.Error
}

// RunState tracks the single transcription session
type RunState struct {
	IsProcessing   bool `json:"is_processing"`
	ProcessedCount int  `json:"processed_count"`
	TotalFiles     int  `json:"total_files"`
}

// ProgressLine is the per-file status line shown in the progress section
type ProgressLine struct {
	FileID  string     `json:"file_id"`
	Name    string     `json:"name"`
	Status  FileStatus `json:"status"`
	Message string     `json:"message"`
}

// Notification is a transient, dismissible message
type Notification struct {
	ID        int64             `json:"id"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// State is a point-in-time copy of everything the UI renders
type State struct {
	Files           []QueuedFile          `json:"files"`
	Results         []TranscriptionResult `json:"results"`
	Run             RunState              `json:"run"`
	Progress        []ProgressLine        `json:"progress"`
	ProgressVisible bool                  `json:"progress_visible"`
	Notifications   []Notification        `json:"notifications"`
}
