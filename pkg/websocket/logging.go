package websocket

import (
	"io"
	"log"
	"os"
)

// newLogger returns a *log.Logger writing to stderr with date/time/micro-
// second precision. Each ConnectionManager gets its own instance.
func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// newLoggerTo is the same as newLogger but writes to an arbitrary
// destination instead of stderr. Nothing in the package calls it;
// ConnectionManager always uses newLogger.
func newLoggerTo(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}
