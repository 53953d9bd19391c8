// Package logging is the project-wide logger. Plain stdlib log underneath,
// with a global off switch so library consumers can silence us entirely.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
)

var (
	disabled = false
	logger   = log.New(os.Stderr, "", log.LstdFlags)
)

// Disable silences all output. The protocol audit stream rides the default
// slog logger, so its level is raised too; errors still surface.
func Disable() {
	disabled = true
	slog.SetLogLoggerLevel(slog.LevelError)
}

// Enable restores output after Disable.
func Enable() {
	disabled = false
	slog.SetLogLoggerLevel(slog.LevelInfo)
}

// SetOutput redirects log output. Tests use this to capture lines.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func emit(level string, v ...any) {
	if disabled {
		return
	}
	logger.Println(append([]any{level}, v...)...)
}

func emitf(level, format string, v ...any) {
	if disabled {
		return
	}
	logger.Printf(level+" "+format, v...)
}

// Info logs an informational message.
func Info(v ...any) { emit("INFO", v...) }

// Infof logs a formatted informational message.
func Infof(format string, v ...any) { emitf("INFO", format, v...) }

// Warn logs a warning.
func Warn(v ...any) { emit("WARN", v...) }

// Warnf logs a formatted warning.
func Warnf(format string, v ...any) { emitf("WARN", format, v...) }

// Error logs an error message.
func Error(v ...any) { emit("ERROR", v...) }

// Errorf logs a formatted error message.
func Errorf(format string, v ...any) { emitf("ERROR", format, v...) }

// Debug logs a debug message.
func Debug(v ...any) { emit("DEBUG", v...) }

// Debugf logs a formatted debug message.
func Debugf(format string, v ...any) { emitf("DEBUG", format, v...) }

// Logger is a component-scoped logger for embedding in structs. The scope
// name is prefixed to every line.
type Logger struct {
	scope string
}

// For returns a Logger scoped to the given component name.
func For(component string) Logger {
	return Logger{scope: "[" + component + "]"}
}

func (l Logger) Info(v ...any) { emit("INFO "+l.scope, v...) }

func (l Logger) Infof(format string, v ...any) { emitf("INFO "+l.scope, format, v...) }

func (l Logger) Warn(v ...any) { emit("WARN "+l.scope, v...) }

func (l Logger) Warnf(format string, v ...any) { emitf("WARN "+l.scope, format, v...) }

func (l Logger) Error(v ...any) { emit("ERROR "+l.scope, v...) }

func (l Logger) Errorf(format string, v ...any) { emitf("ERROR "+l.scope, format, v...) }

func (l Logger) Debugf(format string, v ...any) { emitf("DEBUG "+l.scope, format, v...) }
