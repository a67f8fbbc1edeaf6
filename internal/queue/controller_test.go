package queue

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/transcription"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// fakeTranscriber delegates to injected behavior and records call order.
type fakeTranscriber struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, filename string, body string) (*transcription.Response, error)
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (*transcription.Response, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, filename)
	f.mu.Unlock()
	if f.fn == nil {
		return &transcription.Response{Transcription: "text of " + filename}, nil
	}
	return f.fn(ctx, filename, string(data))
}

func (f *fakeTranscriber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingNotifier keeps every notification in order.
type recordingNotifier struct {
	mu    sync.Mutex
	items []types.Notification
}

func (r *recordingNotifier) Notify(level types.NotificationLevel, message string) types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := types.Notification{ID: int64(len(r.items) + 1), Level: level, Message: message}
	r.items = append(r.items, n)
	return n
}

func (r *recordingNotifier) Active() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notification(nil), r.items...)
}

func (r *recordingNotifier) count(level types.NotificationLevel) int {
	n := 0
	for _, item := range r.Active() {
		if item.Level == level {
			n++
		}
	}
	return n
}

func (r *recordingNotifier) last() types.Notification {
	items := r.Active()
	if len(items) == 0 {
		return types.Notification{}
	}
	return items[len(items)-1]
}

// trackingPayload counts releases.
type trackingPayload struct {
	data     string
	released atomic.Int32
}

func (p *trackingPayload) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(p.data)), nil
}

func (p *trackingPayload) Release() error {
	p.released.Add(1)
	return nil
}

// recordingSink collects archived results.
type recordingSink struct {
	mu      sync.Mutex
	results []types.TranscriptionResult
}

func (s *recordingSink) Record(_ context.Context, _ types.QueuedFile, result types.TranscriptionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func newTestController(tr Transcriber) (*Controller, *recordingNotifier) {
	notifier := &recordingNotifier{}
	ctrl := NewController(tr, notifier, Options{})
	ctrl.afterFunc = func(time.Duration, func()) {}
	return ctrl, notifier
}

func audioFile(name string, data string) RawFile {
	return RawFile{Name: name, Size: int64(len(data)), MimeType: "audio/mpeg", Payload: BytesPayload(data)}
}

func waitIdle(t *testing.T, ctrl *Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.IsProcessing() {
		if time.Now().After(deadline) {
			t.Fatal("run did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestAddFilesArrivalOrder verifies accepted files keep their selection order.
func TestAddFilesArrivalOrder(t *testing.T) {
	ctrl, notifier := newTestController(&fakeTranscriber{})

	res := ctrl.AddFiles([]RawFile{
		audioFile("one.mp3", "1"),
		{Name: "two.WAV", Size: 2, Payload: BytesPayload("22")},
		{Name: "three.opus", Size: 3, MimeType: "audio/opus", Payload: BytesPayload("333")},
	})
	if len(res.Accepted) != 3 || len(res.Rejected) != 0 {
		t.Fatalf("accepted=%d rejected=%d", len(res.Accepted), len(res.Rejected))
	}

	state := ctrl.Snapshot()
	want := []string{"one.mp3", "two.WAV", "three.opus"}
	for i, f := range state.Files {
		if f.Name != want[i] {
			t.Fatalf("files[%d] = %q, want %q", i, f.Name, want[i])
		}
		if f.Status != types.StatusPending {
			t.Fatalf("files[%d] status = %s, want pending", i, f.Status)
		}
		if !strings.HasPrefix(f.ID, "file_") {
			t.Fatalf("files[%d] id = %q", i, f.ID)
		}
		if f.SourceType != types.SourceUpload {
			t.Fatalf("files[%d] source = %q", i, f.SourceType)
		}
	}
	if notifier.last().Message != "Added 3 file(s) successfully" {
		t.Fatalf("last notification = %+v", notifier.last())
	}
}

// TestAddFilesRejectsDuplicate covers the same name and size within one batch.
func TestAddFilesRejectsDuplicate(t *testing.T) {
	ctrl, notifier := newTestController(&fakeTranscriber{})
	dup := &trackingPayload{data: "abc"}

	res := ctrl.AddFiles([]RawFile{
		audioFile("a.mp3", "abc"),
		{Name: "a.mp3", Size: 3, MimeType: "audio/mpeg", Payload: dup},
	})

	if got := len(ctrl.Snapshot().Files); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Reason != ReasonDuplicate {
		t.Fatalf("rejected = %+v", res.Rejected)
	}
	if got := notifier.count(types.LevelWarning); got != 1 {
		t.Fatalf("warnings = %d, want 1", got)
	}
	if dup.released.Load() != 1 {
		t.Fatal("expected rejected payload to be released")
	}

	// same name with a different size is a different file
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "abcd")})
	if got := len(ctrl.Snapshot().Files); got != 2 {
		t.Fatalf("queue length = %d, want 2", got)
	}
}

// TestAddFilesRejectsUnsupported covers a non-audio file.
func TestAddFilesRejectsUnsupported(t *testing.T) {
	ctrl, notifier := newTestController(&fakeTranscriber{})

	res := ctrl.AddFiles([]RawFile{{Name: "b.txt", Size: 4, MimeType: "text/plain", Payload: BytesPayload("text")}})

	if got := len(ctrl.Snapshot().Files); got != 0 {
		t.Fatalf("queue length = %d, want 0", got)
	}
	if got := notifier.count(types.LevelError); got != 1 {
		t.Fatalf("errors = %d, want 1", got)
	}
	if notifier.count(types.LevelSuccess) != 0 {
		t.Fatal("no success notification expected for an empty batch")
	}
	if res.Rejected[0].Error() != `File "b.txt" is not a supported audio format` {
		t.Fatalf("message = %q", res.Rejected[0].Error())
	}
}

// TestStartRunNoopOnEmptyQueue checks the empty queue guard.
func TestStartRunNoopOnEmptyQueue(t *testing.T) {
	tr := &fakeTranscriber{}
	ctrl, _ := newTestController(tr)

	if err := ctrl.StartRun(context.Background()); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("StartRun() error = %v, want %v", err, ErrQueueEmpty)
	}
	state := ctrl.Snapshot()
	if state.Run != (types.RunState{}) || state.ProgressVisible {
		t.Fatalf("state changed: %+v", state)
	}
	if len(tr.Calls()) != 0 {
		t.Fatal("transcriber should not be called")
	}
}

// TestStartRunSuccess covers a single file transcribed as "hello".
func TestStartRunSuccess(t *testing.T) {
	tr := &fakeTranscriber{fn: func(_ context.Context, _ string, body string) (*transcription.Response, error) {
		if body != "ID3" {
			t.Errorf("body = %q", body)
		}
		return &transcription.Response{Transcription: "hello", DocxSent: true}, nil
	}}
	ctrl, notifier := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "ID3")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	state := ctrl.Snapshot()
	if state.Files[0].Status != types.StatusSuccess {
		t.Fatalf("status = %s, want success", state.Files[0].Status)
	}
	if len(state.Results) != 1 || !state.Results[0].Success || state.Results[0].Text != "hello" || !state.Results[0].DocxSent {
		t.Fatalf("results = %+v", state.Results)
	}
	if state.Run.IsProcessing || state.Run.ProcessedCount != 1 || state.Run.TotalFiles != 1 {
		t.Fatalf("run = %+v", state.Run)
	}
	if state.Progress[0].Message != "Completed successfully" {
		t.Fatalf("progress = %+v", state.Progress)
	}
	if notifier.last().Message != "Successfully processed 1 files!" {
		t.Fatalf("last notification = %+v", notifier.last())
	}
}

// TestStartRunServerError covers an explicit error body.
func TestStartRunServerError(t *testing.T) {
	tr := &fakeTranscriber{fn: func(context.Context, string, string) (*transcription.Response, error) {
		return nil, &transcription.SubmissionError{Message: "bad audio", StatusCode: 500}
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "x")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	state := ctrl.Snapshot()
	if state.Files[0].Status != types.StatusError {
		t.Fatalf("status = %s, want error", state.Files[0].Status)
	}
	if state.Results[0].Success || state.Results[0].Error != "bad audio" {
		t.Fatalf("result = %+v", state.Results[0])
	}
	if state.Progress[0].Message != "Error: bad audio" {
		t.Fatalf("progress = %q", state.Progress[0].Message)
	}
	if state.Run.IsProcessing {
		t.Fatal("run should be finished")
	}
}

// TestStartRunTransportFailure keeps the failure description as the message.
func TestStartRunTransportFailure(t *testing.T) {
	tr := &fakeTranscriber{fn: func(context.Context, string, string) (*transcription.Response, error) {
		return nil, errors.New("network down")
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "x")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	state := ctrl.Snapshot()
	if state.Results[0].Error != "network down" || state.Files[0].Status != types.StatusError {
		t.Fatalf("state = %+v", state)
	}
}

// TestStartRunMissingTranscription uses the default message.
func TestStartRunMissingTranscription(t *testing.T) {
	tr := &fakeTranscriber{fn: func(context.Context, string, string) (*transcription.Response, error) {
		return &transcription.Response{}, nil
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "x")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if got := ctrl.Snapshot().Results[0].Error; got != transcription.DefaultErrorMessage {
		t.Fatalf("error = %q", got)
	}
}

// TestStartRunSequentialOrder checks one request at a time and ordered results.
func TestStartRunSequentialOrder(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	delays := map[string]time.Duration{"a.mp3": 30 * time.Millisecond, "b.mp3": 0, "c.mp3": 10 * time.Millisecond}
	tr := &fakeTranscriber{fn: func(_ context.Context, name string, _ string) (*transcription.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(delays[name])
		if name == "b.mp3" {
			return nil, errors.New("boom")
		}
		return &transcription.Response{Transcription: name}, nil
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1"), audioFile("b.mp3", "2"), audioFile("c.mp3", "3")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if maxInFlight.Load() != 1 {
		t.Fatalf("max in-flight = %d, want 1", maxInFlight.Load())
	}

	state := ctrl.Snapshot()
	wantOrder := []string{"a.mp3", "b.mp3", "c.mp3"}
	for i, r := range state.Results {
		if r.Filename != wantOrder[i] {
			t.Fatalf("results[%d] = %q, want %q", i, r.Filename, wantOrder[i])
		}
	}
	if state.Run.ProcessedCount != state.Run.TotalFiles {
		t.Fatalf("run = %+v", state.Run)
	}
	for _, f := range state.Files {
		if f.Status != types.StatusSuccess && f.Status != types.StatusError {
			t.Fatalf("file %s left in %s", f.Name, f.Status)
		}
	}
	if state.Files[1].Status != types.StatusError {
		t.Fatal("failed file should not abort the run")
	}
}

// TestRunGuardsQueueMutation checks remove, clear and start during an active run.
func TestRunGuardsQueueMutation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	tr := &fakeTranscriber{fn: func(context.Context, string, string) (*transcription.Response, error) {
		close(started)
		<-release
		return &transcription.Response{Transcription: "ok"}, nil
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1")})
	id := ctrl.Snapshot().Files[0].ID

	if err := ctrl.StartRunAsync(context.Background()); err != nil {
		t.Fatalf("StartRunAsync() error = %v", err)
	}
	<-started

	before := ctrl.Snapshot()
	if err := ctrl.StartRun(context.Background()); !errors.Is(err, ErrRunActive) {
		t.Fatalf("StartRun() error = %v, want %v", err, ErrRunActive)
	}
	if ctrl.RemoveFile(id) {
		t.Fatal("RemoveFile should be rejected during a run")
	}
	if ctrl.ClearQueue() {
		t.Fatal("ClearQueue should be rejected during a run")
	}
	after := ctrl.Snapshot()
	if len(after.Files) != 1 || after.Run != before.Run {
		t.Fatalf("state changed during run: %+v", after)
	}

	close(release)
	waitIdle(t, ctrl)

	if !ctrl.RemoveFile(id) {
		t.Fatal("RemoveFile should succeed after the run")
	}
	if len(ctrl.Snapshot().Files) != 0 {
		t.Fatal("expected empty queue")
	}
}

// TestRemoveAndClearReleasePayloads verifies payload ownership ends with the entry.
func TestRemoveAndClearReleasePayloads(t *testing.T) {
	ctrl, notifier := newTestController(&fakeTranscriber{})
	p1 := &trackingPayload{data: "1"}
	p2 := &trackingPayload{data: "22"}
	ctrl.AddFiles([]RawFile{
		{Name: "a.mp3", Size: 1, Payload: p1},
		{Name: "b.mp3", Size: 2, Payload: p2},
	})

	if ctrl.RemoveFile("missing") {
		t.Fatal("unknown id should be a no-op")
	}
	if !ctrl.RemoveFile(ctrl.Snapshot().Files[0].ID) {
		t.Fatal("expected removal")
	}
	if p1.released.Load() != 1 || p2.released.Load() != 0 {
		t.Fatal("only the removed payload should be released")
	}
	if notifier.last().Message != "File removed" {
		t.Fatalf("last notification = %+v", notifier.last())
	}

	if !ctrl.ClearQueue() {
		t.Fatal("expected clear")
	}
	if p2.released.Load() != 1 || len(ctrl.Snapshot().Files) != 0 {
		t.Fatal("clear should release and empty the queue")
	}
}

// TestStartRunPanicAbortsRemaining checks that an unexpected failure stops the run cleanly.
func TestStartRunPanicAbortsRemaining(t *testing.T) {
	tr := &fakeTranscriber{fn: func(_ context.Context, name string, _ string) (*transcription.Response, error) {
		if name == "b.mp3" {
			panic("decoder exploded")
		}
		return &transcription.Response{Transcription: "ok"}, nil
	}}
	ctrl, notifier := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1"), audioFile("b.mp3", "2"), audioFile("c.mp3", "3")})

	err := ctrl.StartRun(context.Background())
	if !errors.Is(err, ErrRunAborted) {
		t.Fatalf("StartRun() error = %v, want %v", err, ErrRunAborted)
	}

	state := ctrl.Snapshot()
	if state.Run.IsProcessing {
		t.Fatal("isProcessing should be reset")
	}
	if state.Run.ProcessedCount != 1 {
		t.Fatalf("processed = %d, want 1", state.Run.ProcessedCount)
	}
	if state.Files[1].Status != types.StatusError || state.Files[2].Status != types.StatusPending {
		t.Fatalf("statuses = %s, %s", state.Files[1].Status, state.Files[2].Status)
	}
	if got := tr.Calls(); len(got) != 2 {
		t.Fatalf("calls = %v, want 2", got)
	}
	last := notifier.last()
	if last.Level != types.LevelError || last.Message != "An error occurred during processing" {
		t.Fatalf("last notification = %+v", last)
	}
}

// TestStartRunCancelledContext aborts before the next file.
func TestStartRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTranscriber{fn: func(context.Context, string, string) (*transcription.Response, error) {
		cancel()
		return &transcription.Response{Transcription: "ok"}, nil
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1"), audioFile("b.mp3", "2")})

	if err := ctrl.StartRun(ctx); !errors.Is(err, ErrRunAborted) {
		t.Fatalf("StartRun() error = %v, want %v", err, ErrRunAborted)
	}
	if got := len(tr.Calls()); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if ctrl.IsProcessing() {
		t.Fatal("isProcessing should be reset")
	}
}

// TestNewRunResetsResults checks results and statuses are rebuilt per run.
func TestNewRunResetsResults(t *testing.T) {
	fail := true
	tr := &fakeTranscriber{fn: func(context.Context, string, string) (*transcription.Response, error) {
		if fail {
			return nil, errors.New("offline")
		}
		return &transcription.Response{Transcription: "second time lucky"}, nil
	}}
	ctrl, _ := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	fail = false
	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	state := ctrl.Snapshot()
	if len(state.Results) != 1 || !state.Results[0].Success {
		t.Fatalf("results = %+v", state.Results)
	}
	if len(state.Progress) != 1 || state.Progress[0].Message != "Completed successfully" {
		t.Fatalf("progress = %+v", state.Progress)
	}
}

// TestProgressHiddenAfterDelay verifies the delayed hide and the change hook.
func TestProgressHiddenAfterDelay(t *testing.T) {
	ctrl, _ := newTestController(&fakeTranscriber{})
	var hide func()
	var delay time.Duration
	ctrl.afterFunc = func(d time.Duration, f func()) {
		delay = d
		hide = f
	}
	var changes atomic.Int32
	ctrl.OnChange(func() { changes.Add(1) })

	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1")})
	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if !ctrl.Snapshot().ProgressVisible {
		t.Fatal("progress should stay visible until the delay elapses")
	}
	if delay != DefaultHideDelay || hide == nil {
		t.Fatalf("hide scheduled with %v", delay)
	}

	hide()
	if ctrl.Snapshot().ProgressVisible {
		t.Fatal("progress should be hidden")
	}
	if changes.Load() < 5 {
		t.Fatalf("change hook fired %d times", changes.Load())
	}
}

// TestSinkReceivesResults verifies every result reaches the archive sink.
func TestSinkReceivesResults(t *testing.T) {
	sink := &recordingSink{}
	tr := &fakeTranscriber{fn: func(_ context.Context, name string, _ string) (*transcription.Response, error) {
		if name == "b.mp3" {
			return nil, errors.New("nope")
		}
		return &transcription.Response{Transcription: "ok"}, nil
	}}
	ctrl := NewController(tr, &recordingNotifier{}, Options{Sink: sink})
	ctrl.afterFunc = func(time.Duration, func()) {}
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1"), audioFile("b.mp3", "2")})

	if err := ctrl.StartRun(context.Background()); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if len(sink.results) != 2 || !sink.results[0].Success || sink.results[1].Success {
		t.Fatalf("sink results = %+v", sink.results)
	}
}

// diskPayload reports a backing path like a spool file.
type diskPayload struct {
	BytesPayload
	path string
}

func (p diskPayload) Path() string { return p.path }

// TestSpooledPathsListsDiskPayloads skips in-memory payloads.
func TestSpooledPathsListsDiskPayloads(t *testing.T) {
	ctrl, _ := newTestController(&fakeTranscriber{})
	ctrl.AddFiles([]RawFile{
		audioFile("mem.mp3", "1"),
		{Name: "disk.mp3", Size: 2, MimeType: "audio/mpeg", Payload: diskPayload{BytesPayload: BytesPayload("22"), path: "/spool/abc.mp3"}},
	})

	paths := ctrl.SpooledPaths()
	if len(paths) != 1 || paths[0] != "/spool/abc.mp3" {
		t.Fatalf("paths = %v", paths)
	}
}

// TestRunProcessesFilesAddedMidRun verifies the run drains files queued while it is active.
func TestRunProcessesFilesAddedMidRun(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	tr := &fakeTranscriber{fn: func(_ context.Context, filename string, _ string) (*transcription.Response, error) {
		if filename == "a.mp3" {
			started <- struct{}{}
			<-release
		}
		return &transcription.Response{Transcription: "text of " + filename}, nil
	}}
	ctrl, notifier := newTestController(tr)
	ctrl.AddFiles([]RawFile{audioFile("a.mp3", "1")})

	if err := ctrl.StartRunAsync(context.Background()); err != nil {
		t.Fatalf("StartRunAsync() error = %v", err)
	}
	<-started

	added := ctrl.AddFiles([]RawFile{audioFile("b.mp3", "22")})
	if len(added.Accepted) != 1 {
		t.Fatalf("mid-run add rejected: %+v", added.Rejected)
	}
	close(release)
	waitIdle(t, ctrl)

	state := ctrl.Snapshot()
	for _, f := range state.Files {
		if f.Status != types.StatusSuccess {
			t.Fatalf("file %s status = %s, want success", f.Name, f.Status)
		}
	}
	if state.Run.ProcessedCount != 2 || state.Run.TotalFiles != 2 {
		t.Fatalf("run = %+v", state.Run)
	}
	if got := tr.Calls(); len(got) != 2 || got[0] != "a.mp3" || got[1] != "b.mp3" {
		t.Fatalf("calls = %v", got)
	}
	if len(state.Results) != 2 || state.Results[1].Filename != "b.mp3" {
		t.Fatalf("results = %+v", state.Results)
	}
	if last := notifier.last(); last.Message != "Successfully processed 2 files!" {
		t.Fatalf("last notification = %q", last.Message)
	}
}
