package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared across the service. It has no external deps and
// writes RFC3339-stamped lines; components get a named scope via For.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu  sync.RWMutex
	out = log.New(os.Stdout, "", 0)
	min = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn,
// error, fatal). Unknown input falls back to info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		min = LevelDebug
	case "warn", "warning":
		min = LevelWarn
	case "error":
		min = LevelError
	case "fatal":
		min = LevelFatal
	default:
		min = LevelInfo
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", 0)
}

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch min {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "info"
	}
}

func enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= min
}

func emit(l Level, scope, name, format string, v ...interface{}) {
	if !enabled(l) {
		return
	}
	stamp := time.Now().Format(time.RFC3339)
	prefix := fmt.Sprintf("%s [%s] ", stamp, name)
	if scope != "" {
		prefix += scope + ": "
	}
	mu.RLock()
	w := out
	mu.RUnlock()
	w.Printf(prefix+format, v...)
}

func Debugf(format string, v ...interface{}) { emit(LevelDebug, "", "DEBUG", format, v...) }
func Infof(format string, v ...interface{})  { emit(LevelInfo, "", "INFO", format, v...) }
func Warnf(format string, v ...interface{})  { emit(LevelWarn, "", "WARN", format, v...) }
func Errorf(format string, v ...interface{}) { emit(LevelError, "", "ERROR", format, v...) }

func Fatalf(format string, v ...interface{}) {
	emit(LevelFatal, "", "FATAL", format, v...)
	os.Exit(1)
}

// Scoped prefixes every line with a component name.
type Scoped struct{ scope string }

// For returns a logger scoped to the given component, e.g. logger.For("lock").
func For(scope string) Scoped { return Scoped{scope: scope} }

func (s Scoped) Debugf(format string, v ...interface{}) {
	emit(LevelDebug, s.scope, "DEBUG", format, v...)
}
func (s Scoped) Infof(format string, v ...interface{}) {
	emit(LevelInfo, s.scope, "INFO", format, v...)
}
func (s Scoped) Warnf(format string, v ...interface{}) {
	emit(LevelWarn, s.scope, "WARN", format, v...)
}
func (s Scoped) Errorf(format string, v ...interface{}) {
	emit(LevelError, s.scope, "ERROR", format, v...)
}
