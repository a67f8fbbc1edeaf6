package logging

import "sync"

// DefaultBufferLines is how many log lines the in-memory buffer keeps
const DefaultBufferLines = 1000

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines    []string
	maxLines int
	mu       sync.Mutex
}

// NewLogBuffer creates a buffer holding at most maxLines entries
func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = DefaultBufferLines
	}
	return &LogBuffer{
		lines:    make([]string, 0, maxLines),
		maxLines: maxLines,
	}
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	if len(lb.lines) > lb.maxLines {
		lb.lines = append([]string(nil), lb.lines[len(lb.lines)-lb.maxLines:]...)
	}

	return len(p), nil
}

// GetLogs returns a copy of the buffered lines, oldest first
func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
