package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/transcribe-uploader/internal/transcription"
	"github.com/codebuildervaibhav/transcribe-uploader/internal/types"
)

// DefaultHideDelay is how long the progress section stays visible after a run
const DefaultHideDelay = 2 * time.Second

// Progress line messages
const (
	msgProcessing = "Processing..."
	msgCompleted  = "Completed successfully"
	msgRunFailed  = "An error occurred during processing"
)

// Transcriber submits one file to the remote transcription service
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (*transcription.Response, error)
}

// Notifier shows transient messages to the user
type Notifier interface {
	Notify(level types.NotificationLevel, message string) types.Notification
	Active() []types.Notification
}

// ResultSink receives every completed result (archive, history)
type ResultSink interface {
	Record(ctx context.Context, file types.QueuedFile, result types.TranscriptionResult) error
}

// Options configures a Controller
type Options struct {
	HideDelay time.Duration
	Sink      ResultSink
	Logger    zerolog.Logger
}

// AddResult reports what AddFiles did with a batch
type AddResult struct {
	Accepted []types.QueuedFile
	Rejected []*ValidationError
}

// Controller owns the upload queue and runs transcription sessions.
// Files are submitted strictly one after another in queue order.
type Controller struct {
	mu              sync.Mutex
	entries         []*Entry
	results         []types.TranscriptionResult
	run             types.RunState
	progress        []types.ProgressLine
	progressVisible bool
	runGen          uint64

	transcriber Transcriber
	notifier    Notifier
	sink        ResultSink
	log         zerolog.Logger
	hideDelay   time.Duration
	afterFunc   func(d time.Duration, f func())

	hookMu   sync.RWMutex
	onChange func()
}

// NewController creates an idle controller with an empty queue
func NewController(transcriber Transcriber, notifier Notifier, opts Options) *Controller {
	hideDelay := opts.HideDelay
	if hideDelay <= 0 {
		hideDelay = DefaultHideDelay
	}
	return &Controller{
		transcriber: transcriber,
		notifier:    notifier,
		sink:        opts.Sink,
		log:         opts.Logger,
		hideDelay:   hideDelay,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// OnChange registers the render hook invoked after every state transition
func (c *Controller) OnChange(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onChange = fn
}

// changed fires the render hook; never call it while holding c.mu
func (c *Controller) changed() {
	c.hookMu.RLock()
	fn := c.onChange
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// AddFiles validates a batch and appends accepted files in arrival order.
// A file is rejected when it is not audio, or when an entry with the same
// name and size is already queued (earlier files of the batch included).
func (c *Controller) AddFiles(files []RawFile) AddResult {
	var result AddResult

	c.mu.Lock()
	for _, raw := range files {
		if !transcription.IsSupportedAudio(raw.Name, raw.MimeType) {
			result.Rejected = append(result.Rejected, &ValidationError{Filename: raw.Name, Reason: ReasonUnsupported})
			c.discard(raw)
			continue
		}
		if c.hasDuplicateLocked(raw.Name, raw.Size) {
			result.Rejected = append(result.Rejected, &ValidationError{Filename: raw.Name, Reason: ReasonDuplicate})
			c.discard(raw)
			continue
		}

		entry := NewEntry(raw)
		c.entries = append(c.entries, entry)
		result.Accepted = append(result.Accepted, entry.View())
	}
	c.mu.Unlock()

	for _, rej := range result.Rejected {
		level := types.LevelError
		if rej.Reason == ReasonDuplicate {
			level = types.LevelWarning
		}
		c.log.Warn().Str("file", rej.Filename).Str("reason", string(rej.Reason)).Msg("file rejected")
		c.notify(level, rej.Error())
	}
	if n := len(result.Accepted); n > 0 {
		c.log.Info().Int("count", n).Msg("files added to queue")
		c.notify(types.LevelSuccess, fmt.Sprintf("Added %d file(s) successfully", n))
	}

	c.changed()
	return result
}

// RemoveFile drops one entry by id. It is a no-op while a run is active.
func (c *Controller) RemoveFile(id string) bool {
	c.mu.Lock()
	if c.run.IsProcessing {
		c.mu.Unlock()
		return false
	}

	var removed *Entry
	for i, e := range c.entries {
		if e.ID == id {
			removed = e
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if removed == nil {
		return false
	}
	c.releaseEntry(removed)
	c.notify(types.LevelInfo, "File removed")
	c.changed()
	return true
}

// ClearQueue empties the queue. It is a no-op while a run is active.
func (c *Controller) ClearQueue() bool {
	c.mu.Lock()
	if c.run.IsProcessing {
		c.mu.Unlock()
		return false
	}
	cleared := c.entries
	c.entries = nil
	c.mu.Unlock()

	for _, e := range cleared {
		c.releaseEntry(e)
	}
	c.notify(types.LevelInfo, "All files cleared")
	c.changed()
	return true
}

// StartRun processes every queued file and returns when the run is over.
// ErrRunActive and ErrQueueEmpty leave all state untouched.
func (c *Controller) StartRun(ctx context.Context) error {
	gen, err := c.beginRun()
	if err != nil {
		return err
	}
	return c.execute(ctx, gen)
}

// StartRunAsync claims the run synchronously and processes the queue in the background
func (c *Controller) StartRunAsync(ctx context.Context) error {
	gen, err := c.beginRun()
	if err != nil {
		return err
	}
	go func() {
		if err := c.execute(ctx, gen); err != nil {
			c.log.Error().Err(err).Msg("transcription run aborted")
		}
	}()
	return nil
}

// IsProcessing reports whether a run is active
func (c *Controller) IsProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run.IsProcessing
}

// Snapshot returns a copy of the full state for rendering
func (c *Controller) Snapshot() types.State {
	c.mu.Lock()
	state := types.State{
		Files:           make([]types.QueuedFile, 0, len(c.entries)),
		Results:         append([]types.TranscriptionResult(nil), c.results...),
		Run:             c.run,
		Progress:        append([]types.ProgressLine(nil), c.progress...),
		ProgressVisible: c.progressVisible,
	}
	for _, e := range c.entries {
		state.Files = append(state.Files, e.View())
	}
	c.mu.Unlock()

	if c.notifier != nil {
		state.Notifications = c.notifier.Active()
	}
	return state
}

// SpooledPaths lists the on-disk files still owned by queued entries
func (c *Controller) SpooledPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var paths []string
	for _, e := range c.entries {
		if p, ok := e.payload.(pathPayload); ok {
			paths = append(paths, p.Path())
		}
	}
	return paths
}

// beginRun claims the run and resets run state
func (c *Controller) beginRun() (uint64, error) {
	c.mu.Lock()
	if c.run.IsProcessing {
		c.mu.Unlock()
		return 0, ErrRunActive
	}
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return 0, ErrQueueEmpty
	}

	c.runGen++
	gen := c.runGen
	c.run = types.RunState{
		IsProcessing:   true,
		ProcessedCount: 0,
		TotalFiles:     len(c.entries),
	}
	c.results = nil
	c.progress = nil
	c.progressVisible = true
	for _, e := range c.entries {
		e.Status = types.StatusPending
	}
	total := len(c.entries)
	c.mu.Unlock()

	c.log.Info().Uint64("run", gen).Int("files", total).Msg("transcription run started")
	c.changed()
	return gen, nil
}

// execute walks the queue in order until it is drained, including files
// added while the run is active. A panic or a cancelled context aborts the
// remaining files; run state is reset either way.
func (c *Controller) execute(ctx context.Context, gen uint64) (err error) {
	var current *Entry
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Uint64("run", gen).
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("panic during transcription run")
			err = fmt.Errorf("%w: panic: %v", ErrRunAborted, r)
		}
		c.finishRun(gen, current, err)
	}()

	for i := 0; ; i++ {
		entry := c.nextEntry(i)
		if entry == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrRunAborted, ctxErr)
		}
		current = entry
		c.processFile(ctx, entry)
		current = nil
	}
}

// nextEntry returns the i-th queued entry, or nil when the queue is drained.
// Entries past the initial total were added mid-run and grow TotalFiles.
func (c *Controller) nextEntry(i int) *Entry {
	c.mu.Lock()
	if i >= len(c.entries) {
		c.mu.Unlock()
		return nil
	}
	entry := c.entries[i]
	grew := i >= c.run.TotalFiles
	if grew {
		c.run.TotalFiles = i + 1
	}
	c.mu.Unlock()

	if grew {
		c.log.Info().Str("file_id", entry.ID).Int("total", i+1).Msg("file added to active run")
		c.changed()
	}
	return entry
}

// processFile submits one entry. Submission failures are recorded on the
// entry and never returned.
func (c *Controller) processFile(ctx context.Context, entry *Entry) {
	c.mu.Lock()
	entry.Status = types.StatusProcessing
	c.setProgressLocked(entry, msgProcessing)
	c.mu.Unlock()
	c.changed()

	c.log.Info().Str("file_id", entry.ID).Str("file", entry.Name).Msg("submitting file")
	resp, err := c.submit(ctx, entry)

	result := types.TranscriptionResult{
		FileID:      entry.ID,
		Filename:    entry.Name,
		CompletedAt: time.Now(),
	}
	if err != nil {
		result.Error = failureMessage(err)
		c.log.Warn().Str("file_id", entry.ID).Str("file", entry.Name).Err(err).Msg("transcription failed")
	} else {
		result.Success = true
		result.Text = resp.Transcription
		result.DocxSent = resp.DocxSent
		c.log.Info().Str("file_id", entry.ID).Str("file", entry.Name).Bool("docx_sent", resp.DocxSent).Msg("transcription completed")
	}

	c.mu.Lock()
	if result.Success {
		entry.Status = types.StatusSuccess
		c.setProgressLocked(entry, msgCompleted)
	} else {
		entry.Status = types.StatusError
		c.setProgressLocked(entry, "Error: "+result.Error)
	}
	c.results = append(c.results, result)
	c.run.ProcessedCount++
	view := entry.View()
	c.mu.Unlock()
	c.changed()

	if c.sink != nil {
		if err := c.sink.Record(ctx, view, result); err != nil {
			c.log.Warn().Str("file_id", entry.ID).Err(err).Msg("failed to archive result")
		}
	}
}

// submit opens the payload and hands it to the transcriber
func (c *Controller) submit(ctx context.Context, entry *Entry) (*transcription.Response, error) {
	rc, err := entry.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	resp, err := c.transcriber.Transcribe(ctx, entry.Name, rc)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Transcription == "" {
		msg := transcription.DefaultErrorMessage
		if resp != nil && strings.TrimSpace(resp.Error) != "" {
			msg = resp.Error
		}
		return nil, &transcription.SubmissionError{Filename: entry.Name, Message: msg}
	}
	return resp, nil
}

// finishRun resets run state, reports the outcome and schedules hiding the progress section
func (c *Controller) finishRun(gen uint64, inFlight *Entry, runErr error) {
	c.mu.Lock()
	if inFlight != nil && inFlight.Status == types.StatusProcessing {
		inFlight.Status = types.StatusError
		c.setProgressLocked(inFlight, "Error: "+msgRunFailed)
	}
	c.run.IsProcessing = false
	processed := c.run.ProcessedCount
	total := c.run.TotalFiles
	c.mu.Unlock()

	if runErr != nil {
		c.log.Error().Err(runErr).Uint64("run", gen).Int("processed", processed).Int("total", total).Msg("transcription run failed")
		c.notify(types.LevelError, msgRunFailed)
	} else {
		c.log.Info().Uint64("run", gen).Int("processed", processed).Int("total", total).Msg("transcription run completed")
		c.notify(types.LevelSuccess, fmt.Sprintf("Successfully processed %d files!", processed))
	}
	c.changed()

	c.afterFunc(c.hideDelay, func() {
		c.mu.Lock()
		hide := c.runGen == gen && !c.run.IsProcessing
		if hide {
			c.progressVisible = false
		}
		c.mu.Unlock()
		if hide {
			c.changed()
		}
	})
}

// setProgressLocked creates or updates the progress line of an entry
func (c *Controller) setProgressLocked(entry *Entry, message string) {
	for i := range c.progress {
		if c.progress[i].FileID == entry.ID {
			c.progress[i].Status = entry.Status
			c.progress[i].Message = message
			return
		}
	}
	c.progress = append(c.progress, types.ProgressLine{
		FileID:  entry.ID,
		Name:    entry.Name,
		Status:  entry.Status,
		Message: message,
	})
}

func (c *Controller) hasDuplicateLocked(name string, size int64) bool {
	for _, e := range c.entries {
		if e.Name == name && e.Size == size {
			return true
		}
	}
	return false
}

// discard releases the payload of a rejected file
func (c *Controller) discard(raw RawFile) {
	if raw.Payload == nil {
		return
	}
	if err := raw.Payload.Release(); err != nil {
		c.log.Warn().Str("file", raw.Name).Err(err).Msg("failed to release rejected payload")
	}
}

func (c *Controller) releaseEntry(e *Entry) {
	if err := e.release(); err != nil {
		c.log.Warn().Str("file_id", e.ID).Err(err).Msg("failed to release payload")
	}
}

func (c *Controller) notify(level types.NotificationLevel, message string) {
	if c.notifier != nil {
		c.notifier.Notify(level, message)
	}
}

// failureMessage extracts the user-facing text of a submission failure
func failureMessage(err error) string {
	var subErr *transcription.SubmissionError
	if errors.As(err, &subErr) && strings.TrimSpace(subErr.Message) != "" {
		return subErr.Message
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return transcription.DefaultErrorMessage
}
