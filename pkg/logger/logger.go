// Package logger provides the run-wide log used by screens, fixtures and API clients.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.SugaredLogger
	logFile      *os.File
	mu           sync.Mutex
)

// Options tunes the logger beyond the log file.
type Options struct {
	Verbose bool      // emit debug entries
	Mirror  io.Writer // optional second sink (stderr in --verbose runs)
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(logPath, Options{})
}

// InitWithOptions initializes the global logger with a log file and extra sinks.
func InitWithOptions(logPath string, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	logFile = f

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level),
	}
	if opts.Mirror != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(opts.Mirror), level))
	}

	globalLogger = zap.New(zapcore.NewTee(cores...)).Sugar()
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		_ = globalLogger.Sync()
		globalLogger = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Infof(format, v...)
	}
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Debugf(format, v...)
	}
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Errorf(format, v...)
	}
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.Warnf(format, v...)
	}
}

// Named returns a child logger tagged with a component name, e.g. "API" or "Карта Жителя".
// Returns a no-op logger before Init.
func Named(name string) *zap.SugaredLogger {
	if l := current(); l != nil {
		return l.Named(name)
	}
	return zap.NewNop().Sugar()
}

// GetWriter returns the underlying writer for use by child processes (adb).
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

func current() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}
