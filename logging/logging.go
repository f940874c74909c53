// Package logging provides the event log of the heartbeat roles.
// Records are appended to a per-invocation file (see Sink) and mirrored to
// the console; each line reads "<timestamp> - <LEVEL> [component] message k=v".
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// TimestampFormat is the ISO-like UTC timestamp that starts every record.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(s))
	if _, ok := levelPriority[level]; !ok {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger writes levelled records. Loggers derived with WithComponent or
// WithConn share the output and its lock.
type Logger struct {
	out       *output
	minLevel  Level
	component string
	connID    string
	now       func() time.Time
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

// New creates a Logger writing to w (stdout when nil).
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		out:      &output{w: w},
		minLevel: LevelInfo,
		now:      time.Now,
	}
}

// WithComponent returns a logger tagging records with component.
func (l *Logger) WithComponent(component string) *Logger {
	c := *l
	c.component = component
	return &c
}

// WithConn returns a logger tagging records with a connection id.
func (l *Logger) WithConn(id string) *Logger {
	c := *l
	c.connID = id
	return &c
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats fields as sorted key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return " " + strings.Join(parts, " ")
}

func formatLine(t time.Time, level Level, component, msg string, fields map[string]interface{}) string {
	ts := t.UTC().Format(TimestampFormat)
	if component != "" {
		return fmt.Sprintf("%s - %-5s [%s] %s%s\n", ts, level, component, msg, formatFields(fields))
	}
	return fmt.Sprintf("%s - %-5s %s%s\n", ts, level, msg, formatFields(fields))
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	merged := make(map[string]interface{})
	if len(fields) > 0 {
		for k, v := range fields[0] {
			merged[k] = v
		}
	}
	if l.connID != "" {
		merged["conn"] = l.connID
	}

	line := formatLine(l.now(), level, l.component, msg, merged)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write([]byte(line))
}

// --- Protocol event helpers ---

// ConnectAttempt logs a dial towards endpoint. Every attempt is an INFO
// record: it marks the Disconnected -> Connecting transition.
func (l *Logger) ConnectAttempt(endpoint string, attempt int) {
	l.Info("connecting", map[string]interface{}{
		"endpoint": endpoint,
		"attempt":  attempt,
	})
}

// ConnectFailed logs a failed dial. reason is the failure category
// ("server not responding", "unexpected socket error").
func (l *Logger) ConnectFailed(reason string, err error) {
	l.Warn(reason, map[string]interface{}{
		"error": err,
	})
}

// RetryScheduled logs the pause before the next dial.
func (l *Logger) RetryScheduled(retryIn time.Duration) {
	l.Info(fmt.Sprintf("... try again in %s", retryIn))
}

// Connected logs an established connection.
func (l *Logger) Connected(remote string) {
	l.Info("connected", map[string]interface{}{
		"remote": remote,
	})
}

// Sent logs bytes written to the peer.
func (l *Logger) Sent(data []byte) {
	l.Info(fmt.Sprintf("sent: %q", data))
}

// Received logs bytes read from the peer.
func (l *Logger) Received(data []byte) {
	l.Info(fmt.Sprintf("received: %q", data))
}

// Closed logs a connection teardown and its reason.
func (l *Logger) Closed(reason string) {
	l.Info("connection closed", map[string]interface{}{
		"reason": reason,
	})
}
