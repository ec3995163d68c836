package eventlog

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ---- writer sink (console) ----

// WriterSink writes one line per message to an io.Writer.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteLine(line string) error {
	_, err := io.WriteString(s.w, line+"\n")
	return err
}

// ---- file sink ----

// Rotation bounds the log file. Zero values use lumberjack defaults
// (100 MB, keep everything).
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// fileSink appends lines through lumberjack. Every line is a single
// unbuffered write, so it is on disk when WriteLine returns.
type fileSink struct {
	path string
	lj   *lumberjack.Logger
}

func (s *fileSink) WriteLine(line string) error {
	_, err := s.lj.Write([]byte(line + "\n"))
	return err
}

// SetFile starts appending to path. An open failure is logged as an ERROR
// and returned; the previous file sink, if any, stays active.
func (l *Log) SetFile(path string, rot Rotation) error {
	if err := checkFileWritable(path); err != nil {
		l.Errorf("can't set log pathname %s: %v", path, err)
		return err
	}

	fs := &fileSink{
		path: path,
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAge:     rot.MaxAgeDays,
			Compress:   rot.Compress,
		},
	}

	l.mu.Lock()
	old := l.file
	if old != nil {
		l.replaceSinkLocked(old, fs)
	} else {
		l.sinks = append(l.sinks, fs)
	}
	l.file = fs
	l.mu.Unlock()

	if old != nil {
		_ = old.lj.Close()
	}

	l.Debugf("log path set to %s", path)
	return nil
}

// FilePath returns the active log file path, or "".
func (l *Log) FilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.path
}

// Close stops the file sink.
func (l *Log) Close() error {
	l.mu.Lock()
	fs := l.file
	if fs != nil {
		l.replaceSinkLocked(fs, nil)
		l.file = nil
	}
	l.mu.Unlock()

	if fs == nil {
		return nil
	}
	return fs.lj.Close()
}

func (l *Log) replaceSinkLocked(old, repl Sink) {
	for i, s := range l.sinks {
		if s != old {
			continue
		}
		if repl == nil {
			l.sinks = append(l.sinks[:i], l.sinks[i+1:]...)
		} else {
			l.sinks[i] = repl
		}
		return
	}
}

// checkFileWritable surfaces permission and path errors up front; lumberjack would
// only report them on the first write.
func checkFileWritable(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// ---- UI sink ----

// UISink hands lines to a presentation layer through a buffered channel.
// WriteLine never blocks: when the consumer lags, lines are dropped and counted.
type UISink struct {
	ch      chan string
	dropped atomic.Uint64
}

// NewUISink creates a UI sink buffering up to size lines.
func NewUISink(size int) *UISink {
	if size <= 0 {
		size = 256
	}
	return &UISink{ch: make(chan string, size)}
}

func (s *UISink) WriteLine(line string) error {
	select {
	case s.ch <- line:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Lines is drained by the consumer on its own goroutine.
func (s *UISink) Lines() <-chan string { return s.ch }

// Dropped returns how many lines were discarded.
func (s *UISink) Dropped() uint64 { return s.dropped.Load() }
