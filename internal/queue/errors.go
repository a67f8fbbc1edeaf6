package queue

import (
	"errors"
	"fmt"
)

// ErrRunActive is returned when a run is requested while one is in progress.
var ErrRunActive = errors.New("transcription run already active")

// ErrQueueEmpty is returned when a run is requested with nothing queued.
var ErrQueueEmpty = errors.New("queue is empty")

// ErrRunAborted wraps failures that stopped a run before the queue was drained.
var ErrRunAborted = errors.New("transcription run aborted")

// ValidationReason explains why a file was kept out of the queue
type ValidationReason string

const (
	ReasonUnsupported ValidationReason = "unsupported_format"
	ReasonDuplicate   ValidationReason = "duplicate"
)

// ValidationError reports a rejected file. It never stops the rest of a batch.
type ValidationError struct {
	Filename string
	Reason   ValidationReason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonDuplicate:
		return fmt.Sprintf("File \"%s\" is already added", e.Filename)
	default:
		return fmt.Sprintf("File \"%s\" is not a supported audio format", e.Filename)
	}
}
