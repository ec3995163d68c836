package eventlog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 3, 1, 12, 30, 45, 123456000, time.UTC)
	return func() time.Time { return t0 }
}

func newTestLog(level Level) (*Log, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(WithConsole(&buf), WithLevel(level), WithClock(fixedClock())), &buf
}

func TestLineFormat(t *testing.T) {
	l, buf := newTestLog(LevelDebug)

	l.Infof("found %d spectrometers", 2)
	l.Task("acq-1").Errorf("read failed")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-03-01 12:30:45.123456: INFO: found 2 spectrometers", lines[0])
	assert.Equal(t, "2024-03-01 12:30:45.123456: [acq-1] ERROR: read failed", lines[1])
}

func TestLevelFilter(t *testing.T) {
	l, buf := newTestLog(LevelInfo)

	l.Debugf("hidden")
	l.Infof("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	l.SetLevel(LevelError)
	l.Infof("now hidden")
	l.Errorf("still shown")
	assert.NotContains(t, buf.String(), "now hidden")
	assert.Contains(t, buf.String(), "still shown")
}

func TestErrorRing_RetainedEvenWhenFilteredOut(t *testing.T) {
	l, buf := newTestLog(LevelError + 1)

	l.Errorf("quiet failure")

	assert.Empty(t, buf.String())
	require.True(t, l.HasError())
	e, ok := l.PopError()
	require.True(t, ok)
	assert.Equal(t, "quiet failure", e.Message)
}

func TestErrorRing_EvictsOldestFirst(t *testing.T) {
	l, _ := newTestLog(LevelInfo)

	for i := 0; i < MaxErrors+1; i++ {
		l.Errorf("error %d", i)
	}

	assert.Equal(t, MaxErrors, l.ErrorCount())

	got := l.DrainErrors()
	require.Len(t, got, MaxErrors)
	assert.Equal(t, "error 1", got[0].Message)
	assert.Equal(t, fmt.Sprintf("error %d", MaxErrors), got[MaxErrors-1].Message)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, fmt.Sprintf("error %d", i+1), got[i].Message)
	}

	assert.Equal(t, 0, l.ErrorCount())
	assert.Nil(t, l.DrainErrors())
}

func TestErrorRing_PopOldest(t *testing.T) {
	l, _ := newTestLog(LevelInfo)
	l.Errorf("first")
	l.Errorf("second")

	e, ok := l.PopError()
	require.True(t, ok)
	assert.Equal(t, "first", e.Message)

	e, ok = l.PopError()
	require.True(t, ok)
	assert.Equal(t, "second", e.Message)

	_, ok = l.PopError()
	assert.False(t, ok)
}

func TestInfoNotRetained(t *testing.T) {
	l, _ := newTestLog(LevelDebug)
	l.Infof("info")
	l.Debugf("debug")
	assert.False(t, l.HasError())
}

func TestConcurrentErrors(t *testing.T) {
	l, _ := newTestLog(LevelError + 1)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Errorf("e")
				if i%10 == 0 {
					l.PopError()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, l.ErrorCount(), MaxErrors)
}

type failingSink struct{ calls int }

func (f *failingSink) WriteLine(string) error {
	f.calls++
	return errors.New("disk full")
}

func TestSinkFailureReportedNotFatal(t *testing.T) {
	l, buf := newTestLog(LevelInfo)
	bad := &failingSink{}
	l.AddSink(bad)

	l.Infof("hello")

	assert.Equal(t, 1, bad.calls, "failing sink must not receive its own failure report")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "ERROR: log sink 1 failed: disk full")

	e, ok := l.PopError()
	require.True(t, ok)
	assert.Contains(t, e.Message, "disk full")
}

func TestRemoveSink(t *testing.T) {
	l, _ := newTestLog(LevelInfo)
	ui := NewUISink(4)
	l.AddSink(ui)
	l.Infof("one")
	l.RemoveSink(ui)
	l.Infof("two")

	require.Len(t, ui.Lines(), 1)
	assert.Contains(t, <-ui.Lines(), "one")
}

func TestUISink_NeverBlocks(t *testing.T) {
	l, _ := newTestLog(LevelInfo)
	ui := NewUISink(2)
	l.AddSink(ui)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			l.Infof("line %d", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked on a full UI sink")
	}

	assert.Equal(t, uint64(8), ui.Dropped())
	assert.Contains(t, <-ui.Lines(), "line 0")
	assert.Contains(t, <-ui.Lines(), "line 1")
}

func TestSetFile_AppendsAndFlushesPerLine(t *testing.T) {
	l, _ := newTestLog(LevelInfo)
	path := filepath.Join(t.TempDir(), "logs", "coordinator.log")

	require.NoError(t, l.SetFile(path, Rotation{}))
	defer l.Close()

	l.Infof("written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO: written\n")
	assert.Equal(t, path, l.FilePath())
}

func TestSetFile_FailureIsLoggedNotFatal(t *testing.T) {
	l, buf := newTestLog(LevelInfo)
	dir := t.TempDir()

	// a directory cannot be opened as a log file
	err := l.SetFile(dir, Rotation{})
	require.Error(t, err)

	assert.Contains(t, buf.String(), "ERROR: can't set log pathname")
	assert.True(t, l.HasError())
	assert.Equal(t, "", l.FilePath())

	l.Infof("still alive")
	assert.Contains(t, buf.String(), "still alive")
}

func TestHexdumpLines(t *testing.T) {
	buf := make([]byte, 17)
	for i := range buf {
		buf[i] = byte(i)
	}

	lines := HexdumpLines(buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "0000: 00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f", lines[0])
	assert.Equal(t, "0010: 10", lines[1])

	assert.Empty(t, HexdumpLines(nil))
}

func TestHexdumpOnlyAtDebug(t *testing.T) {
	l, buf := newTestLog(LevelInfo)
	l.Hexdump([]byte{1, 2, 3}, "  buf[0]: ")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	l.Hexdump([]byte{1, 2, 3}, "  buf[0]: ")
	assert.Contains(t, buf.String(), "DEBUG:   buf[0]: 0000: 01 02 03")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" error ", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}
