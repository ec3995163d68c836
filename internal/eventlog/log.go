// Package eventlog is the process-wide status and error log.
//
// A Log is constructed once by the application and injected into every
// component that reports status. Each message is formatted as
//
//	2006-01-02 15:04:05.000000: [task] LEVEL: message
//
// and fanned out to the configured sinks (console always, file and UI
// optionally). ERROR messages are additionally retained in a bounded FIFO
// so a poller can retrieve them later.
//
// All methods are safe for concurrent use. Sinks are called with the log's
// lock held and must not call back into the Log.
package eventlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// MaxErrors is the capacity of the error ring. The oldest entry is evicted first.
const MaxErrors = 100

const timestampLayout = "2006-01-02 15:04:05.000000"

// Entry is one formatted log message.
type Entry struct {
	Time    time.Time
	Task    string
	Level   Level
	Message string
}

// String renders the entry in the fixed line format.
func (e Entry) String() string {
	task := ""
	if e.Task != "" {
		task = "[" + e.Task + "] "
	}
	return fmt.Sprintf("%s: %s%s: %s", e.Time.Format(timestampLayout), task, e.Level, e.Message)
}

// Sink receives every emitted line (without trailing newline).
type Sink interface {
	WriteLine(line string) error
}

// Log is the shared logging service.
type Log struct {
	mu    sync.Mutex
	level Level
	errs  []Entry
	sinks []Sink // sinks[0] is the console
	file  *fileSink
	now   func() time.Time
}

// Option configures a Log at construction.
type Option func(*Log)

// WithConsole replaces stdout as the console sink destination.
func WithConsole(w io.Writer) Option {
	return func(l *Log) { l.sinks[0] = NewWriterSink(w) }
}

// WithLevel sets the initial emission threshold.
func WithLevel(level Level) Option {
	return func(l *Log) { l.level = level }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates a Log writing to stdout at INFO.
func New(opts ...Option) *Log {
	l := &Log{
		level: LevelInfo,
		sinks: []Sink{NewWriterSink(os.Stdout)},
		now:   time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetLevel changes the emission threshold.
func (l *Log) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current emission threshold.
func (l *Log) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// DebugEnabled reports whether DEBUG messages are emitted.
func (l *Log) DebugEnabled() bool {
	return l.Level() <= LevelDebug
}

// AddSink registers an additional sink.
func (l *Log) AddSink(s Sink) {
	if s == nil {
		return
	}
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// RemoveSink unregisters a sink previously added. The console cannot be removed.
func (l *Log) RemoveSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 1; i < len(l.sinks); i++ {
		if l.sinks[i] == s {
			l.sinks = append(l.sinks[:i], l.sinks[i+1:]...)
			return
		}
	}
}

// ---- emission ----

func (l *Log) Debugf(format string, args ...any) { l.write(LevelDebug, "", format, args) }
func (l *Log) Infof(format string, args ...any)  { l.write(LevelInfo, "", format, args) }
func (l *Log) Errorf(format string, args ...any) { l.write(LevelError, "", format, args) }

// Log emits a preformatted message at level.
func (l *Log) Log(level Level, msg string) {
	l.write(level, "", "%s", []any{msg})
}

// Header emits a DEBUG banner.
func (l *Log) Header(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.Debugf("")
	l.Debugf("=========================================================")
	l.Debugf(format, args...)
	l.Debugf("=========================================================")
	l.Debugf("")
}

func (l *Log) write(level Level, task, format string, args []any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	e := Entry{Level: level, Task: task, Message: msg}

	l.mu.Lock()
	defer l.mu.Unlock()

	e.Time = l.now()

	if level == LevelError {
		l.pushErrorLocked(e)
	}
	if level < l.level {
		return
	}
	l.emitLocked(e)
}

// emitLocked fans out one entry. A failing sink is reported as an ERROR to
// the remaining sinks only; failures while reporting are ignored.
func (l *Log) emitLocked(e Entry) {
	line := e.String()
	for i, s := range l.sinks {
		err := s.WriteLine(line)
		if err == nil {
			continue
		}

		report := Entry{
			Time:    e.Time,
			Level:   LevelError,
			Message: fmt.Sprintf("log sink %d failed: %v", i, err),
		}
		l.pushErrorLocked(report)
		reportLine := report.String()
		for j, other := range l.sinks {
			if j != i {
				_ = other.WriteLine(reportLine)
			}
		}
	}
}

// ---- error ring ----

func (l *Log) pushErrorLocked(e Entry) {
	l.errs = append(l.errs, e)
	if over := len(l.errs) - MaxErrors; over > 0 {
		l.errs = append(l.errs[:0], l.errs[over:]...)
	}
}

// HasError reports whether the ring holds any entry.
func (l *Log) HasError() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs) > 0
}

// ErrorCount returns the number of retained errors.
func (l *Log) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

// PopError removes and returns the oldest retained error.
func (l *Log) PopError() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return Entry{}, false
	}
	e := l.errs[0]
	l.errs = append(l.errs[:0], l.errs[1:]...)
	return e, true
}

// DrainErrors removes and returns every retained error in insertion order.
func (l *Log) DrainErrors() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return nil
	}
	out := make([]Entry, len(l.errs))
	copy(out, l.errs)
	l.errs = l.errs[:0]
	return out
}

// ---- tasks ----

// Task is a view of the Log that tags every line with a goroutine role,
// e.g. "acq-0" or "temperature".
type Task struct {
	log  *Log
	name string
}

// Task returns a tagged view of the Log.
func (l *Log) Task(name string) *Task {
	return &Task{log: l, name: name}
}

func (t *Task) Debugf(format string, args ...any) { t.log.write(LevelDebug, t.name, format, args) }
func (t *Task) Infof(format string, args ...any)  { t.log.write(LevelInfo, t.name, format, args) }
func (t *Task) Errorf(format string, args ...any) { t.log.write(LevelError, t.name, format, args) }

// Name returns the task tag.
func (t *Task) Name() string { return t.name }
