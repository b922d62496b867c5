package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// FileLoggerConfig holds configuration for file logging
type FileLoggerConfig struct {
	// Path is the log file path
	Path string
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// MaxSizeMB is the maximum size in megabytes before rotation (0 = lumberjack default of 100MB)
	MaxSizeMB int
	// MaxBackups is the maximum number of rotated files to retain
	MaxBackups int
	// MaxAgeDays is the maximum age in days to retain a rotated file
	MaxAgeDays int
}

// FileLogger implements Logger interface with file output, rotated by lumberjack.
type FileLogger struct {
	config FileLoggerConfig
	writer *lumberjack.Logger
	mu     sync.Mutex
	fields Fields
}

// NewFileLogger creates a new file logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &FileLogger{
		config: config,
		writer: &lumberjack.Logger{
			Filename:   config.Path,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
		},
	}, nil
}

// Debug logs a debug message
func (l *FileLogger) Debug(ctx context.Context, msg string, fields Fields) {
	if l.config.Level <= DebugLevel {
		l.log(DebugLevel, msg, nil, fields)
	}
}

// Info logs an info message
func (l *FileLogger) Info(ctx context.Context, msg string, fields Fields) {
	if l.config.Level <= InfoLevel {
		l.log(InfoLevel, msg, nil, fields)
	}
}

// Warn logs a warning message
func (l *FileLogger) Warn(ctx context.Context, msg string, fields Fields) {
	if l.config.Level <= WarnLevel {
		l.log(WarnLevel, msg, nil, fields)
	}
}

// Error logs an error message
func (l *FileLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	if l.config.Level <= ErrorLevel {
		l.log(ErrorLevel, msg, err, fields)
	}
}

// WithFields returns a logger with additional fields
func (l *FileLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields)
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &FileLogger{
		config: l.config,
		writer: l.writer,
		fields: newFields,
	}
}

// Close flushes and closes the logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}

// log writes a log entry
func (l *FileLogger) log(level Level, msg string, err error, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	allFields := make(Fields)
	for k, v := range l.fields {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}

	var line []byte
	var writeErr error

	if l.config.Format == FormatJSON {
		line, writeErr = l.formatJSON(level, msg, err, allFields)
	} else {
		line, writeErr = l.formatText(level, msg, err, allFields)
	}

	if writeErr != nil {
		return
	}

	var w io.Writer = l.writer
	w.Write(line)
}

// formatJSON formats a log entry as JSON
func (l *FileLogger) formatJSON(level Level, msg string, err error, fields Fields) ([]byte, error) {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     levelString(level),
		"message":   msg,
	}

	if err != nil {
		entry["error"] = err.Error()
	}

	for k, v := range fields {
		entry[k] = v
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		return nil, jsonErr
	}

	return append(data, '\n'), nil
}

// formatText formats a log entry as plain text
func (l *FileLogger) formatText(level Level, msg string, err error, fields Fields) ([]byte, error) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	levelStr := levelString(level)

	line := fmt.Sprintf("%s [%s] %s", timestamp, levelStr, msg)

	if err != nil {
		line += fmt.Sprintf(" error=%q", err.Error())
	}

	for k, v := range fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}

	return []byte(line + "\n"), nil
}

// levelString returns the string representation of a log level
func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel
	case "info", "INFO":
		return InfoLevel
	case "warn", "WARN", "warning", "WARNING":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LevelString returns level as string (exported version)
func LevelString(level Level) string {
	return levelString(level)
}
