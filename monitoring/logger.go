package monitoring

import (
	"io"
	"log"
	"os"
	"sync"
)

// ImportLogger prints loader messages. Verbose output is dropped unless enabled.
// Safe for concurrent use.
type ImportLogger struct {
	mu      sync.Mutex
	out     *log.Logger
	verbose bool
}

// NewImportLogger writes to stderr with timestamps
func NewImportLogger(verbose bool) *ImportLogger {
	return NewImportLoggerTo(os.Stderr, verbose)
}

func NewImportLoggerTo(w io.Writer, verbose bool) *ImportLogger {
	return &ImportLogger{
		out:     log.New(w, "", log.LstdFlags),
		verbose: verbose,
	}
}

// NullLogger discards everything, for tests
func NullLogger() *ImportLogger {
	return NewImportLoggerTo(io.Discard, false)
}

func (l *ImportLogger) Info(msg string) {
	l.print(msg)
}

func (l *ImportLogger) Infof(format string, args ...interface{}) {
	l.printf(format, args...)
}

func (l *ImportLogger) Verbose(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.printf("[VERBOSE] "+format, args...)
}

// Error logs msg together with the failure detail
func (l *ImportLogger) Error(msg string, detail string) {
	if detail == "" {
		l.print("ERROR: " + msg)
		return
	}
	l.printf("ERROR: %s: %s", msg, detail)
}

func (l *ImportLogger) Warn(format string, args ...interface{}) {
	l.printf("WARNING: "+format, args...)
}

func (l *ImportLogger) print(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Println(msg)
}

func (l *ImportLogger) printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf(format, args...)
}
