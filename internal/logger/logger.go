// Package logger writes per-run, timestamped log files used by the CLI and
// the MCP server. Stdout stays clean for command output; diagnostics go to
// the file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Logger provides logging functionality.
type Logger struct {
	*log.Logger
	file    *os.File
	verbose bool
}

// NewLogger creates a new logger writing to a timestamped file under logDir.
func NewLogger(logDir string, verbose bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("jmxgen_%s.log", timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	return &Logger{
		Logger:  log.New(file, "", log.LstdFlags),
		file:    file,
		verbose: verbose,
	}, nil
}

// Discard returns a logger that writes nowhere, for callers that do not
// want a log file.
func Discard() *Logger {
	return &Logger{Logger: log.New(io.Discard, "", 0)}
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.Printf("INFO: "+format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.Printf("ERROR: "+format, args...)
}

// Debug logs a debug message. Dropped unless verbose is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.verbose {
		l.Printf("DEBUG: "+format, args...)
	}
}

// LogLLMInteraction logs one request/response exchange with the drafting
// assistant.
func (l *Logger) LogLLMInteraction(operation string, input interface{}, output interface{}, err error) {
	l.Printf("LLM Operation: %s\n", operation)
	l.Printf("Input: %+v\n", input)
	if err != nil {
		l.Printf("Error: %v\n", err)
	} else {
		l.Printf("Output: %+v\n", output)
	}
	l.Println("---")
}
