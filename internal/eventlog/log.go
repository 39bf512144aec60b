// Package eventlog keeps a bounded, newest-first record of session
// transitions for the diagnostics panel. It is in-memory only and lives for
// the process lifetime.
package eventlog

import (
	"fmt"
	"sync"
	"time"
)

// DefaultCap bounds the number of retained entries.
const DefaultCap = 50

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type Log struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
}

func New(cap int) *Log {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Log{cap: cap}
}

// Append prepends a timestamped entry and truncates to the bound.
func (l *Log) Append(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := make([]Entry, 0, len(l.entries)+1)
	next = append(next, Entry{Timestamp: time.Now().UTC(), Message: message})
	next = append(next, l.entries...)
	if len(next) > l.cap {
		next = next[:l.cap]
	}
	l.entries = next
}

func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Snapshot returns a copy of the entries, newest first.
func (l *Log) Snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
