package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

const driveAttempts = 3

// TranscriptUploader pushes a finished transcript to remote storage
type TranscriptUploader interface {
	Upload(ctx context.Context, file types.QueuedFile, result types.TranscriptionResult) (string, error)
}

// Archive records completed results: transcript files on disk, optional
// Google Drive copies and a sqlite history row per attempt
type Archive struct {
	local   *LocalStorage
	db      *MetadataDB
	drive   TranscriptUploader
	log     zerolog.Logger
	backoff func(attempt int) time.Duration
}

// NewArchive wires the archive; local, db and drive may each be nil
func NewArchive(local *LocalStorage, db *MetadataDB, drive TranscriptUploader, logger zerolog.Logger) *Archive {
	return &Archive{
		local: local,
		db:    db,
		drive: drive,
		log:   logger,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * time.Second
		},
	}
}

// Record archives one result. Drive failures are logged, local and database
// failures are returned.
func (a *Archive) Record(ctx context.Context, file types.QueuedFile, result types.TranscriptionResult) error {
	rec := Record{
		RecordID:   uuid.New().String(),
		FileID:     file.ID,
		Filename:   file.Name,
		SourceType: file.SourceType,
		Success:    result.Success,
		Message:    result.Error,
		DocxSent:   result.DocxSent,
		CreatedAt:  result.CompletedAt,
	}

	var errs []error
	if result.Success {
		rec.WordCount = len(strings.Fields(result.Text))

		if a.local != nil {
			localPath, err := a.local.SaveTranscript(file, result)
			if err != nil {
				errs = append(errs, fmt.Errorf("local save: %w", err))
			}
			rec.LocalPath = localPath
		}

		if a.drive != nil {
			rec.GDriveURL = a.uploadWithRetry(ctx, file, result)
		}
	}

	if a.db != nil {
		if err := a.db.SaveTranscript(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// uploadWithRetry tries the Drive upload a few times with growing pauses
func (a *Archive) uploadWithRetry(ctx context.Context, file types.QueuedFile, result types.TranscriptionResult) string {
	var err error
	for attempt := 1; attempt <= driveAttempts; attempt++ {
		var url string
		url, err = a.drive.Upload(ctx, file, result)
		if err == nil {
			return url
		}
		a.log.Warn().Err(err).Str("file", file.Name).Int("attempt", attempt).Msg("Google Drive upload failed")
		if attempt == driveAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(a.backoff(attempt)):
		}
	}
	a.log.Warn().Str("file", file.Name).Msg("Google Drive upload gave up, transcript kept locally")
	return ""
}
