// Package rtlog implements the structured logger backing `/log` (spec.md
// §4.3) and guard/pipeline trace diagnostics. No third-party logging
// library appears anywhere in the example corpus this module was built
// from, so this hand-rolled leveled logger follows that same
// ambient pattern rather than introducing one.
package rtlog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is one structured log record.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Formatter renders an Entry to a line of text.
type Formatter interface {
	Format(e Entry) string
}

// TextFormatter renders human-readable lines, mlld's default for `/log`.
type TextFormatter struct{ ShowTimestamp bool }

func (f TextFormatter) Format(e Entry) string {
	var parts []string
	if f.ShowTimestamp {
		parts = append(parts, e.Time.Format("2006-01-02T15:04:05.000Z07:00"))
	}
	parts = append(parts, fmt.Sprintf("[%s]", e.Level))
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("(%s)", e.Component))
	}
	parts = append(parts, e.Message)
	if len(e.Fields) > 0 {
		var kv []string
		for k, v := range e.Fields {
			kv = append(kv, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, strings.Join(kv, " "))
	}
	return strings.Join(parts, " ")
}

// JSONFormatter renders newline-delimited JSON, used for host-level
// structured capture of a run (e.g. state writes, guard trace export).
type JSONFormatter struct{}

func (JSONFormatter) Format(e Entry) string {
	data, _ := json.Marshal(e)
	return string(data)
}

// Logger is a leveled, field-carrying logger. Per spec.md §4.3, `/log`
// output is routed to stderr by default; Logger's zero value writes
// nowhere so callers must supply a sink (typically the Runtime's
// configured stderr writer, §6).
type Logger struct {
	mu        sync.Mutex
	level     Level
	out       io.Writer
	formatter Formatter
	component string
	fields    map[string]any
}

// New creates a Logger writing to out at Info level and above.
func New(out io.Writer, component string) *Logger {
	return &Logger{
		level:     Info,
		out:       out,
		formatter: TextFormatter{ShowTimestamp: true},
		component: component,
		fields:    map[string]any{},
	}
}

// SetLevel sets the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetFormatter overrides the line formatter (e.g. JSONFormatter for
// machine-consumed runs).
func (l *Logger) SetFormatter(f Formatter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.formatter = f
}

// With returns a child Logger carrying additional fields, without
// mutating the receiver — callers attach per-stage/per-guard context
// (pipelineId, stageIndex, guardName) without cross-talk between calls.
func (l *Logger) With(fields map[string]any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, out: l.out, formatter: l.formatter, component: l.component, fields: merged}
}

func (l *Logger) log(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level || l.out == nil {
		return
	}
	entry := Entry{Time: time.Now(), Level: level, Message: msg, Component: l.component, Fields: l.fields}
	fmt.Fprintln(l.out, l.formatter.Format(entry))
}

func (l *Logger) Tracef(format string, args ...any) { l.log(Trace, fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, fmt.Sprintf(format, args...)) }

// Log emits msg at level verbatim, the path `/log expr` uses once the
// expression has been reduced to text.
func (l *Logger) Log(level Level, msg string) { l.log(level, msg) }
