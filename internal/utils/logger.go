// Package utils provides the logger and small helpers shared across the proxy.
package utils

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ANSI colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Logger writes leveled, timestamped log lines.
type Logger struct {
	mu    sync.Mutex
	debug bool
}

var (
	defaultLogger *Logger
	loggerOnce    sync.Once
)

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		defaultLogger = &Logger{}
	})
	return defaultLogger
}

// SetDebug toggles debug output.
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = enabled
}

func (l *Logger) log(level, color, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stderr, "%s[%s] [%s]%s %s\n", color, timestamp, level, colorReset, message)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log("INFO", colorCyan, format, args...)
}

// Success logs a success message.
func (l *Logger) Success(format string, args ...interface{}) {
	l.log("OK", colorGreen, format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log("WARN", colorYellow, format, args...)
}

// Error logs an error.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log("ERROR", colorRed, format, args...)
}

// Debug logs a debug message when debug output is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	enabled := l.debug
	l.mu.Unlock()
	if enabled {
		l.log("DEBUG", colorGray, format, args...)
	}
}

// Package-level helpers that write through the default logger.

func Info(format string, args ...interface{})    { GetLogger().Info(format, args...) }
func Success(format string, args ...interface{}) { GetLogger().Success(format, args...) }
func Warn(format string, args ...interface{})    { GetLogger().Warn(format, args...) }
func Error(format string, args ...interface{})   { GetLogger().Error(format, args...) }
func Debug(format string, args ...interface{})   { GetLogger().Debug(format, args...) }
