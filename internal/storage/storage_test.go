package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// TestSpoolStoreAndRelease verifies payload round trip and deletion.
func TestSpoolStoreAndRelease(t *testing.T) {
	spool, err := NewSpool(filepath.Join(t.TempDir(), "spool"))
	if err != nil {
		t.Fatalf("NewSpool() error = %v", err)
	}

	payload, n, err := spool.Store("Meeting.MP3", strings.NewReader("ID3data"), 0)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if n != 7 || filepath.Ext(payload.Path()) != ".mp3" {
		t.Fatalf("stored %d bytes at %s", n, payload.Path())
	}

	rc, err := payload.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "ID3data" {
		t.Fatalf("data = %q", data)
	}

	if err := payload.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(payload.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("spool file still present: %v", err)
	}
	if err := payload.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
}

// TestSpoolStoreRejectsOversize removes partial files above the limit.
func TestSpoolStoreRejectsOversize(t *testing.T) {
	dir := t.TempDir()
	spool, err := NewSpool(dir)
	if err != nil {
		t.Fatalf("NewSpool() error = %v", err)
	}

	if _, _, err := spool.Store("big.wav", strings.NewReader("0123456789"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Store() error = %v, want %v", err, ErrTooLarge)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, got %d", len(entries))
	}

	if _, n, err := spool.Store("ok.wav", strings.NewReader("01234"), 5); err != nil || n != 5 {
		t.Fatalf("Store() at limit = %d, %v", n, err)
	}
}

// TestSpoolLockIsExclusive keeps a second owner out of the directory.
func TestSpoolLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := NewSpool(dir)
	if err != nil {
		t.Fatalf("NewSpool() error = %v", err)
	}
	if err := first.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	second, _ := NewSpool(dir)
	if err := second.Lock(); !errors.Is(err, ErrSpoolLocked) {
		t.Fatalf("second Lock() error = %v, want %v", err, ErrSpoolLocked)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if err := second.Lock(); err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	second.Unlock()
}

// TestSanitizeFilename checks reserved characters and empty names.
func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"podcast episode": "podcast episode",
		"a/b\\c:d":        "a_b_c_d",
		`what?"<>|*`:      "what______",
		"  ":              "untitled",
		"..":              "untitled",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := sanitizeFilename(strings.Repeat("x", 150)); len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
}

// TestLocalStorageSaveTranscript writes the dated transcript and metadata files.
func TestLocalStorageSaveTranscript(t *testing.T) {
	root := t.TempDir()
	ls := NewLocalStorage(root)
	ls.now = func() time.Time { return time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC) }

	file := types.QueuedFile{ID: "file_1", Name: "podcast episode.mp3", Size: 42, SourceType: types.SourceUpload}
	result := types.TranscriptionResult{FileID: "file_1", Filename: file.Name, Text: "hello there world", Success: true, DocxSent: true}

	path, err := ls.SaveTranscript(file, result)
	if err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}
	want := filepath.Join(root, "2025", "01", "23", "20250123_143022_podcast episode.txt")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	text, _ := os.ReadFile(path)
	if string(text) != "hello there world" {
		t.Fatalf("text = %q", text)
	}

	metaRaw, err := os.ReadFile(strings.TrimSuffix(path, ".txt") + "_meta.json")
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if meta["word_count"] != float64(3) || meta["docx_sent"] != true || meta["local_path"] != path {
		t.Fatalf("meta = %v", meta)
	}
}

// TestMetadataDBSaveGetList checks history persistence and ordering.
func TestMetadataDBSaveGetList(t *testing.T) {
	ctx := context.Background()
	db, err := NewMetadataDB(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("NewMetadataDB() error = %v", err)
	}
	defer db.Close()

	base := time.Date(2025, 1, 23, 10, 0, 0, 0, time.UTC)
	first := Record{RecordID: "r1", FileID: "f1", Filename: "a.mp3", SourceType: "upload", Success: true, WordCount: 2, DocxSent: true, LocalPath: "/out/a.txt", CreatedAt: base}
	second := Record{RecordID: "r2", FileID: "f2", Filename: "b.mp3", SourceType: "gdrive", Message: "bad audio", CreatedAt: base.Add(time.Minute)}

	for _, rec := range []Record{first, second} {
		if err := db.SaveTranscript(ctx, rec); err != nil {
			t.Fatalf("SaveTranscript(%s) error = %v", rec.RecordID, err)
		}
	}
	if err := db.SaveTranscript(ctx, first); err == nil {
		t.Fatal("duplicate record id should fail")
	}

	got, err := db.GetTranscript(ctx, "r1")
	if err != nil {
		t.Fatalf("GetTranscript() error = %v", err)
	}
	if !got.Success || !got.DocxSent || got.LocalPath != "/out/a.txt" || !got.CreatedAt.Equal(base) {
		t.Fatalf("record = %+v", got)
	}

	if _, err := db.GetTranscript(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing error = %v, want %v", err, ErrNotFound)
	}

	list, err := db.ListTranscripts(ctx, 10)
	if err != nil {
		t.Fatalf("ListTranscripts() error = %v", err)
	}
	if len(list) != 2 || list[0].RecordID != "r2" || list[1].RecordID != "r1" {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Success || list[0].Message != "bad audio" {
		t.Fatalf("failure record = %+v", list[0])
	}
}

// fakeUploader fails a fixed number of times before succeeding.
type fakeUploader struct {
	failures int
	calls    int
}

func (f *fakeUploader) Upload(context.Context, types.QueuedFile, types.TranscriptionResult) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("drive unavailable")
	}
	return "https://drive.google.com/file/d/abc/view", nil
}

// TestArchiveRecord checks the full archive path with Drive retries.
func TestArchiveRecord(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	db, err := NewMetadataDB(filepath.Join(root, "t.db"))
	if err != nil {
		t.Fatalf("NewMetadataDB() error = %v", err)
	}
	defer db.Close()

	uploader := &fakeUploader{failures: 2}
	archive := NewArchive(NewLocalStorage(filepath.Join(root, "out")), db, uploader, zerolog.Nop())
	archive.backoff = func(int) time.Duration { return 0 }

	file := types.QueuedFile{ID: "f1", Name: "a.mp3", SourceType: types.SourceUpload}
	ok := types.TranscriptionResult{FileID: "f1", Filename: "a.mp3", Text: "one two", Success: true, CompletedAt: time.Now()}
	failed := types.TranscriptionResult{FileID: "f1", Filename: "a.mp3", Error: "bad audio", CompletedAt: time.Now().Add(time.Second)}

	if err := archive.Record(ctx, file, ok); err != nil {
		t.Fatalf("Record(success) error = %v", err)
	}
	if err := archive.Record(ctx, file, failed); err != nil {
		t.Fatalf("Record(failure) error = %v", err)
	}
	if uploader.calls != 3 {
		t.Fatalf("drive calls = %d, want 3", uploader.calls)
	}

	list, err := db.ListTranscripts(ctx, 10)
	if err != nil {
		t.Fatalf("ListTranscripts() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("records = %d, want 2", len(list))
	}
	okRec, failRec := list[1], list[0]
	if okRec.GDriveURL == "" || okRec.LocalPath == "" || okRec.WordCount != 2 {
		t.Fatalf("success record = %+v", okRec)
	}
	if failRec.LocalPath != "" || failRec.Message != "bad audio" {
		t.Fatalf("failure record = %+v", failRec)
	}
}

// TestArchiveDriveGivesUp keeps the local copy when Drive keeps failing.
func TestArchiveDriveGivesUp(t *testing.T) {
	uploader := &fakeUploader{failures: 10}
	archive := NewArchive(NewLocalStorage(t.TempDir()), nil, uploader, zerolog.Nop())
	archive.backoff = func(int) time.Duration { return 0 }

	err := archive.Record(context.Background(), types.QueuedFile{ID: "f1", Name: "a.mp3"},
		types.TranscriptionResult{Text: "x", Success: true})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if uploader.calls != driveAttempts {
		t.Fatalf("drive calls = %d, want %d", uploader.calls, driveAttempts)
	}
}
