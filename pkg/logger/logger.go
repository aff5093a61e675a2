package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu   sync.RWMutex
	base = newBase(os.Stderr)
)

func newBase(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "callbridge",
	})
	if os.Getenv("DEBUG") == "1" {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// SetOutput redirects all log output to w
// Used by tests to capture log lines
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	lvl := base.GetLevel()
	base = newBase(w)
	base.SetLevel(lvl)
}

// SetLevel changes the minimum level; accepts debug, info, warn, error
func SetLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		current().Warnf("unknown log level %q, keeping %s", level, current().GetLevel())
		return
	}
	current().SetLevel(lvl)
}

// Debug logs verbose diagnostics, hidden unless the level is debug
func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Info logs informational messages
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warn logs warning messages
func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Error logs error messages
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Fatal logs fatal error messages and exits with status 1
func Fatal(format string, v ...interface{}) {
	current().Fatalf(format, v...)
}
