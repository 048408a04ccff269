package engine

import (
	"fmt"
	"strings"
	"time"

	"pharmacy-invoice-service/internal/normalizer"

	"github.com/google/uuid"
)

// LogEntry is one line of the validation log. Row is 0 for file-level
// messages and the 1-based sheet row otherwise.
type LogEntry struct {
	Row     int
	Field   string
	Message string
}

// ValidationLog is the human-readable record of one file's run. It is
// attached to the outcome notification so the sender can fix their
// export without access to the service.
type ValidationLog struct {
	ID        uuid.UUID
	Locator   string
	StartedAt time.Time
	entries   []LogEntry
}

// NewValidationLog opens a log for one file.
func NewValidationLog(locator string) *ValidationLog {
	return &ValidationLog{
		ID:        uuid.New(),
		Locator:   locator,
		StartedAt: time.Now().UTC(),
	}
}

// Infof appends a file-level message.
func (l *ValidationLog) Infof(format string, args ...interface{}) {
	l.entries = append(l.entries, LogEntry{Message: fmt.Sprintf(format, args...)})
}

// AddRowError appends a row-level finding.
func (l *ValidationLog) AddRowError(rowErr normalizer.RowError) {
	l.entries = append(l.entries, LogEntry{
		Row:     rowErr.Row,
		Field:   rowErr.Field,
		Message: rowErr.Message,
	})
}

// Entries returns the log lines in the order they were recorded.
func (l *ValidationLog) Entries() []LogEntry {
	return l.entries
}

// HasRowErrors reports whether any row-level finding was recorded.
func (l *ValidationLog) HasRowErrors() bool {
	for _, entry := range l.entries {
		if entry.Row > 0 {
			return true
		}
	}
	return false
}

// Render produces the attachment text.
func (l *ValidationLog) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invoice run %s\n", l.ID)
	fmt.Fprintf(&b, "file: %s\n", l.Locator)
	fmt.Fprintf(&b, "started: %s\n\n", l.StartedAt.Format(time.RFC3339))

	for _, entry := range l.entries {
		if entry.Row > 0 {
			fmt.Fprintf(&b, "row %d [%s]: %s\n", entry.Row, entry.Field, entry.Message)
		} else {
			fmt.Fprintf(&b, "%s\n", entry.Message)
		}
	}
	return b.String()
}
