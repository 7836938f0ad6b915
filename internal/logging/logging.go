// Package logging is a thin wrapper over the standard logger with a global
// disable switch, so the interactive CLI can keep its output clean while
// serve mode stays chatty.
package logging

import (
	"log"
	"os"
)

var (
	disabled = false
	logger   = log.New(os.Stdout, "", log.LstdFlags)
)

// Disable turns off all logging.
func Disable() { disabled = true }

// Enable turns logging back on.
func Enable() { disabled = false }

func output(v []any) {
	if !disabled {
		logger.Println(v...)
	}
}

func outputf(format string, v []any) {
	if !disabled {
		logger.Printf(format, v...)
	}
}

// Info logs an info message.
func Info(v ...any) { output(v) }

// Infof logs a formatted info message.
func Infof(format string, v ...any) { outputf(format, v) }

// Warn logs a warning message.
func Warn(v ...any) { output(v) }

// Warnf logs a formatted warning message.
func Warnf(format string, v ...any) { outputf(format, v) }

// Error logs an error message.
func Error(v ...any) { output(v) }

// Errorf logs a formatted error message.
func Errorf(format string, v ...any) { outputf(format, v) }

// Debug logs a debug message (same as Info when enabled).
func Debug(v ...any) { output(v) }

// Debugf logs a formatted debug message.
func Debugf(format string, v ...any) { outputf(format, v) }

// Logger is an embeddable handle delegating to the package logger.
type Logger struct{}

func (Logger) Info(v ...any)                 { Info(v...) }
func (Logger) Infof(format string, v ...any) { Infof(format, v...) }
func (Logger) Error(v ...any)                { Error(v...) }
func (Logger) Errorf(format string, v ...any) {
	Errorf(format, v...)
}
