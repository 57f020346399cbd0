// Package progress appends timestamped milestone lines to a log file.
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ncruces/go-strftime"
)

// TimestampFormat renders e.g. "2023-Sep-02-18:53:26".
const TimestampFormat = "%Y-%b-%d-%H:%M:%S"

// Log is an append-only progress file. Each Log call opens the file in
// append mode, so lines from earlier runs are never truncated.
type Log struct {
	Path string
	Now  func() time.Time // defaults to time.Now

	mu sync.Mutex
}

// New returns a progress log writing to path.
func New(path string) *Log {
	return &Log{Path: path}
}

// Line formats one entry without the trailing newline.
func Line(t time.Time, message string) string {
	return strftime.Format(TimestampFormat, t) + " : " + message
}

// Log appends "<timestamp> : <message>".
func (l *Log) Log(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	if dir := filepath.Dir(l.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, Line(now(), message)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
