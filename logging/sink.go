package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vinayprograms/echobeat/errors"
)

// Rotation limits for the log file.
const (
	maxSizeMB  = 5
	maxBackups = 10
	maxAgeDays = 30
)

// SinkConfig configures a Sink.
type SinkConfig struct {
	// Dir is the directory the log file is created in.
	Dir string

	// Prefix starts the file name, e.g. "echobeat-initiator".
	Prefix string

	// Console mirrors every line to Stdout.
	Console bool

	// Stdout overrides the console stream (default: os.Stdout).
	Stdout io.Writer

	// Banner is written as the first record of the file.
	Banner string

	// Now overrides the clock used for the file name.
	Now func() time.Time
}

// Sink is the append-only, process-owned log destination. Every write goes
// to the log file and, when enabled, to the console.
type Sink struct {
	mu      sync.Mutex
	path    string
	file    *lumberjack.Logger
	console io.Writer
	closed  bool
}

// FileName returns "<prefix><YYYY-MM-DD>_<unix seconds>.log" for t.
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s%s_%d.log", prefix, t.Format("2006-01-02"), t.Unix())
}

// OpenSink creates the log file and writes the banner. Any failure is a
// fatal LOG_SINK error: a role must not run without its log.
func OpenSink(cfg SinkConfig) (*Sink, error) {
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName(cfg.Prefix, now()))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.LogSink(path, err)
	}

	s := &Sink{
		path: path,
		file: &lumberjack.Logger{
			Filename:   filepath.ToSlash(path),
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
	}
	if cfg.Console {
		s.console = cfg.Stdout
		if s.console == nil {
			s.console = os.Stdout
		}
	}

	// lumberjack opens the file lazily; force it now so an unwritable
	// directory surfaces at startup.
	banner := cfg.Banner
	if banner == "" {
		banner = "log opened"
	}
	if _, err := s.Write([]byte(formatLine(now(), LevelInfo, "", banner, nil))); err != nil {
		_ = s.file.Close()
		return nil, errors.LogSink(path, err)
	}
	return s, nil
}

// Path returns the log file path.
func (s *Sink) Path() string {
	return s.path
}

// Write appends p to the file and mirrors it to the console.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, os.ErrClosed
	}
	n, err := s.file.Write(p)
	if err != nil {
		return n, err
	}
	if s.console != nil {
		// Console failures never block the durable record.
		_, _ = s.console.Write(p)
	}
	return n, nil
}

// Close flushes and releases the log file. Closing twice is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
