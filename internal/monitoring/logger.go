// Package monitoring holds the diagnostic logger shared by the hardware
// packages. Commands log with the standard logger directly.
package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc func(format string, v ...any)

var logger atomic.Pointer[logFunc]

func init() { RestoreLogger() }

// Logf writes a diagnostic line through the current logger. It defaults to
// log.Printf.
func Logf(format string, v ...any) {
	(*logger.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		f = func(string, ...any) {}
	}
	lf := logFunc(f)
	logger.Store(&lf)
}

// RestoreLogger goes back to log.Printf.
func RestoreLogger() {
	SetLogger(log.Printf)
}
