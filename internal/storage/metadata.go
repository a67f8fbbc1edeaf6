package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no transcript record matches
var ErrNotFound = errors.New("transcript not found")

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one archived transcription attempt
type Record struct {
	RecordID   string    `json:"record_id"`
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	SourceType string    `json:"source_type"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	WordCount  int       `json:"word_count"`
	DocxSent   bool      `json:"docx_sent"`
	LocalPath  string    `json:"local_path,omitempty"`
	GDriveURL  string    `json:"gdrive_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens (or creates) the history database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL UNIQUE,
		file_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		source_type TEXT NOT NULL,
		success INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		docx_sent INTEGER NOT NULL DEFAULT 0,
		local_path TEXT NOT NULL DEFAULT '',
		gdrive_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON transcripts(created_at);
	CREATE INDEX IF NOT EXISTS idx_filename ON transcripts(filename);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveTranscript inserts one record
func (mdb *MetadataDB) SaveTranscript(ctx context.Context, rec Record) error {
	query := `
	INSERT INTO transcripts (record_id, file_id, filename, source_type, success, message, word_count, docx_sent, local_path, gdrive_url, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := mdb.db.ExecContext(ctx, query,
		rec.RecordID, rec.FileID, rec.Filename, rec.SourceType, boolToInt(rec.Success), rec.Message,
		rec.WordCount, boolToInt(rec.DocxSent), rec.LocalPath, rec.GDriveURL,
		rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save transcript metadata: %w", err)
	}

	return nil
}

// GetTranscript retrieves one record by id
func (mdb *MetadataDB) GetTranscript(ctx context.Context, recordID string) (*Record, error) {
	query := `
	SELECT record_id, file_id, filename, source_type, success, message, word_count, docx_sent, local_path, gdrive_url, created_at
	FROM transcripts WHERE record_id = ?
	`

	rec, err := scanRecord(mdb.db.QueryRowContext(ctx, query, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return rec, nil
}

// ListTranscripts returns the newest records first
func (mdb *MetadataDB) ListTranscripts(ctx context.Context, limit int) ([]Record, error) {
	query := `
	SELECT record_id, file_id, filename, source_type, success, message, word_count, docx_sent, local_path, gdrive_url, created_at
	FROM transcripts ORDER BY created_at DESC, id DESC LIMIT ?
	`

	rows, err := mdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec               Record
		success, docxSent int
		createdAt         string
	)
	err := row.Scan(&rec.RecordID, &rec.FileID, &rec.Filename, &rec.SourceType, &success, &rec.Message,
		&rec.WordCount, &docxSent, &rec.LocalPath, &rec.GDriveURL, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Success = success != 0
	rec.DocxSent = docxSent != 0
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
