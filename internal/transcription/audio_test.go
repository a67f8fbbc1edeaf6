package transcription

import "testing"

// TestIsSupportedAudio checks the MIME-or-extension acceptance rule.
func TestIsSupportedAudio(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		mimeType string
		want     bool
	}{
		{"mp3 extension", "song.mp3", "", true},
		{"uppercase extension", "VOICE.WAV", "", true},
		{"flac without mime", "take.flac", "application/octet-stream", true},
		{"audio mime unknown ext", "memo.opus", "audio/opus", true},
		{"audio mime mixed case", "memo.bin", "Audio/Webm", true},
		{"text file", "b.txt", "text/plain", false},
		{"video mime", "clip.mp4", "video/mp4", false},
		{"no extension", "README", "", false},
		{"extension only in middle", "mp3.notes", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSupportedAudio(tc.filename, tc.mimeType); got != tc.want {
				t.Fatalf("IsSupportedAudio(%q, %q) = %v, want %v", tc.filename, tc.mimeType, got, tc.want)
			}
		})
	}
}
