package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// SaveTranscript saves the transcript and metadata to local disk
func (ls *LocalStorage) SaveTranscript(file types.QueuedFile, result types.TranscriptionResult) (string, error) {
	// Dated directory structure: outputs/2025/01/23/
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20250123_143022_podcast_episode.txt
	baseFilename := transcriptBaseName(now, file.Name)
	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(result.Text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	metaJSON, err := json.MarshalIndent(transcriptMetadata(file, result, txtPath), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}

func transcriptMetadata(file types.QueuedFile, result types.TranscriptionResult, localPath string) map[string]interface{} {
	meta := map[string]interface{}{
		"file_id":      file.ID,
		"filename":     file.Name,
		"size_bytes":   file.Size,
		"source_type":  file.SourceType,
		"word_count":   len(strings.Fields(result.Text)),
		"docx_sent":    result.DocxSent,
		"completed_at": result.CompletedAt,
	}
	if localPath != "" {
		meta["local_path"] = localPath
	}
	return meta
}

// transcriptBaseName builds "<timestamp>_<name without extension>"
func transcriptBaseName(t time.Time, filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	return fmt.Sprintf("%s_%s", t.Format("20060102_150405"), sanitizeFilename(name))
}

// sanitizeFilename replaces path separators and reserved characters
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	result := strings.TrimSpace(replacer.Replace(name))
	if result == "" || result == "." || result == ".." {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
