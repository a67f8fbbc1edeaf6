// Package render turns controller state into what the user sees.
// Build is a pure function of types.State; Page writes a View as HTML.
package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// TranslationLanguages are announced on every successful result
var TranslationLanguages = []string{"Portuguese", "English", "Polish", "Ukrainian", "Russian"}

// View is the complete render model of the page
type View struct {
	Files         []FileRow            `json:"files"`
	Controls      Controls             `json:"controls"`
	Progress      Progress             `json:"progress"`
	Results       []ResultBlock        `json:"results"`
	Notifications []types.Notification `json:"notifications"`
}

// FileRow is one line of the file list
type FileRow struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Size      string           `json:"size"`
	Bytes     int64            `json:"bytes"`
	Status    types.FileStatus `json:"status"`
	Icon      string           `json:"icon"`
	Removable bool             `json:"removable"`
}

// Controls holds the enabled state of the queue buttons
type Controls struct {
	Visible      bool `json:"visible"`
	StartEnabled bool `json:"start_enabled"`
	ClearEnabled bool `json:"clear_enabled"`
}

// Progress is the per-file and aggregate progress section
type Progress struct {
	Visible   bool                 `json:"visible"`
	Lines     []types.ProgressLine `json:"lines"`
	Processed int                  `json:"processed"`
	Total     int                  `json:"total"`
	Percent   float64              `json:"percent"`
	Text      string               `json:"text"`
}

// ResultBlock is one rendered transcription result
type ResultBlock struct {
	FileID    string   `json:"file_id"`
	Filename  string   `json:"filename"`
	Content   string   `json:"content"`
	Success   bool     `json:"success"`
	Badge     string   `json:"badge"`
	Languages []string `json:"languages,omitempty"`
	DocxSent  bool     `json:"docx_sent,omitempty"`
}

// Build derives the view from state
func Build(state types.State) View {
	busy := state.Run.IsProcessing
	hasFiles := len(state.Files) > 0

	view := View{
		Files: make([]FileRow, 0, len(state.Files)),
		Controls: Controls{
			Visible:      hasFiles,
			StartEnabled: hasFiles && !busy,
			ClearEnabled: !busy,
		},
		Progress: Progress{
			Visible:   state.ProgressVisible,
			Lines:     append([]types.ProgressLine(nil), state.Progress...),
			Processed: state.Run.ProcessedCount,
			Total:     state.Run.TotalFiles,
			Percent:   Percent(state.Run.ProcessedCount, state.Run.TotalFiles),
		},
		Results:       make([]ResultBlock, 0, len(state.Results)),
		Notifications: append([]types.Notification(nil), state.Notifications...),
	}
	if state.Run.TotalFiles > 0 {
		view.Progress.Text = ProgressText(state.Run.ProcessedCount, state.Run.TotalFiles)
	}

	for _, f := range state.Files {
		view.Files = append(view.Files, FileRow{
			ID:        f.ID,
			Name:      f.Name,
			Size:      FormatFileSize(f.Size),
			Bytes:     f.Size,
			Status:    f.Status,
			Icon:      StatusIcon(f.Status),
			Removable: !busy,
		})
	}

	for _, r := range state.Results {
		block := ResultBlock{
			FileID:   r.FileID,
			Filename: r.Filename,
			Content:  r.Content(),
			Success:  r.Success,
			Badge:    "Error",
		}
		if r.Success {
			block.Badge = "Success"
			block.Languages = TranslationLanguages
			block.DocxSent = r.DocxSent
		}
		view.Results = append(view.Results, block)
	}

	return view
}

// ProgressText is the aggregate counter label
func ProgressText(processed, total int) string {
	return fmt.Sprintf("%d / %d files processed", processed, total)
}

// Percent returns processed/total as a percentage, 0 when nothing is queued
func Percent(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(processed) / float64(total) * 100
}

// StatusIcon maps a file status to its list icon
func StatusIcon(status types.FileStatus) string {
	switch status {
	case types.StatusProcessing:
		return "🔄"
	case types.StatusSuccess:
		return "✅"
	case types.StatusError:
		return "❌"
	default:
		return "⏳"
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with up to two decimals, e.g. "1.5 KB"
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}
