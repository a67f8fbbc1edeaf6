package transcription

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the audio extensions accepted without an audio/* MIME type
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}

// IsSupportedAudio reports whether a file is accepted for transcription.
// Either the declared MIME type starts with audio/ or the name carries one of
// the supported extensions.
func IsSupportedAudio(filename, mimeType string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "audio/") {
		return true
	}
	return ValidateAudioFormat(filename)
}

// ValidateAudioFormat checks if the file extension is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedExtensions {
		if ext == format {
			return true
		}
	}
	return false
}
