package app

import (
	"strings"
	"sync"
	"time"
)

const defaultLogLines = 500

// Entry is one captured log line.
type Entry struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// LogBuffer is an io.Writer that retains the most recent log lines so
// they can be served over the API. Tee the daemon logger into it with
// io.MultiWriter. One Write call is assumed to carry one line, which
// holds for the standard log package.
type LogBuffer struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	notify  func(Entry)
}

// NewLogBuffer returns a buffer retaining up to max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = defaultLogLines
	}
	return &LogBuffer{max: max}
}

// SetNotify registers a hook invoked with each captured entry. The hook
// runs outside the buffer lock and must not write back through a logger
// that feeds this buffer.
func (b *LogBuffer) SetNotify(fn func(Entry)) {
	b.mu.Lock()
	b.notify = fn
	b.mu.Unlock()
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line == "" {
		return len(p), nil
	}
	e := Entry{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:   detectLevel(line),
		Message: line,
	}

	b.mu.Lock()
	b.entries = append(b.entries, e)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
	fn := b.notify
	b.mu.Unlock()

	if fn != nil {
		fn(e)
	}
	return len(p), nil
}

// Entries returns a copy of the buffered lines, oldest first.
func (b *LogBuffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// detectLevel guesses a severity from the message text. The standard
// log package has no levels, so this leans on wording conventions used
// throughout the daemon.
func detectLevel(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed"):
		return "error"
	case strings.Contains(lower, "warn") || strings.Contains(lower, "retrying") || strings.Contains(lower, "stale"):
		return "warn"
	default:
		return "info"
	}
}
