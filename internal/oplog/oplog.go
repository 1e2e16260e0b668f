// Package oplog collects the operator-facing progress log returned by uploads
// and maintenance operations.
package oplog

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func ParseSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeveritySuccess, SeverityWarning, SeverityError:
		return Severity(raw)
	default:
		return SeverityInfo
	}
}

type Entry struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Log is an append-only, ordered list of entries mirrored to zap.
type Log struct {
	mu      sync.Mutex
	now     func() time.Time
	zap     *zap.Logger
	entries []Entry
	sink    func(Entry)
}

func New(log *zap.Logger, now func() time.Time) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Log{zap: log, now: now}
}

// OnEntry registers a callback invoked for every appended entry, used by the
// CLIs to stream progress to the terminal.
func (l *Log) OnEntry(fn func(Entry)) {
	l.mu.Lock()
	l.sink = fn
	l.mu.Unlock()
}

func (l *Log) Add(severity Severity, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	l.mu.Lock()
	entry := Entry{Time: l.now(), Severity: severity, Message: msg}
	l.entries = append(l.entries, entry)
	sink := l.sink
	l.mu.Unlock()

	switch severity {
	case SeverityError:
		l.zap.Error(msg)
	case SeverityWarning:
		l.zap.Warn(msg)
	default:
		l.zap.Info(msg, zap.String("severity", string(severity)))
	}
	if sink != nil {
		sink(entry)
	}
}

func (l *Log) Info(format string, args ...any)    { l.Add(SeverityInfo, format, args...) }
func (l *Log) Success(format string, args ...any) { l.Add(SeveritySuccess, format, args...) }
func (l *Log) Warn(format string, args ...any)    { l.Add(SeverityWarning, format, args...) }
func (l *Log) Error(format string, args ...any)   { l.Add(SeverityError, format, args...) }

// Entries returns a copy of the log in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Messages is a convenience for tests and terminal output.
func (l *Log) Messages() []string {
	entries := l.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
