package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Level is the minimum severity a logger will emit.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown values fall back
// to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled, optionally structured log lines to the
// standard logger. With JSON format each line is a single JSON object,
// otherwise a human-readable line with sorted key=value fields.
type Logger struct {
	level Level
	json  bool
}

// NewLogger creates a logger for the given level and format
// ("json" or anything else for human-readable output).
func NewLogger(level, format string) *Logger {
	return &Logger{
		level: ParseLevel(level),
		json:  strings.EqualFold(format, "json"),
	}
}

// LogDebug logs a debug message with structured fields.
func (l *Logger) LogDebug(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit(LevelDebug, "debug", message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *Logger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit(LevelInfo, "info", message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *Logger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit(LevelWarn, "warning", message, fields)
}

// LogError logs an error message with structured fields.
func (l *Logger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.emit(LevelError, "error", message, fields)
}

func (l *Logger) emit(level Level, name, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	if l.json {
		entry := map[string]interface{}{
			"level":     name,
			"message":   message,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf(`{"level":"error","message":"failed to marshal log entry: %v"}`, err)
			return
		}
		log.Print(string(data))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(name), message)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	log.Print(b.String())
}
