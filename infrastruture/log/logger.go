// Package logger provides the leveled console logger handed to every component.
package logger

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var (
	ErrNilWriter    = errors.New("logger writer is nil")
	ErrEmptyPrefix  = errors.New("logger prefix is empty")
	ErrUnknownLevel = errors.New("unknown log level")
)

var levelTags = map[Level]*color.Color{
	LevelDebug:   color.New(color.FgWhite),
	LevelInfo:    color.New(color.FgGreen),
	LevelWarning: color.New(color.FgYellow),
	LevelError:   color.New(color.FgRed, color.Bold),
}

var levelNames = map[Level]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

// minLevel is shared by every logger so one LOG_LEVEL setting gates the whole process.
var (
	minLevel   = LevelInfo
	minLevelMu sync.RWMutex
)

// Logger writes "[PREFIX] [LEVEL] message" lines with a colored prefix.
type Logger struct {
	prefix string
	out    io.Writer
	mu     sync.Mutex
}

// New creates a Logger that writes to w, rendering prefix in the given color.
func New(prefix string, c color.Attribute, w io.Writer) (*Logger, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}

	return &Logger{
		prefix: color.New(c, color.Bold).Sprintf("[%s]", prefix),
		out:    w,
	}, nil
}

// SetLevel sets the minimum level written by all loggers from its name.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}

	minLevelMu.Lock()
	minLevel = lvl
	minLevelMu.Unlock()
	return nil
}

// ParseLevel maps debug, info, warning and error to their Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

func enabled(lvl Level) bool {
	minLevelMu.RLock()
	defer minLevelMu.RUnlock()
	return lvl >= minLevel
}

func (l *Logger) Debug(msg string)   { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)    { l.log(LevelInfo, msg) }
func (l *Logger) Warning(msg string) { l.log(LevelWarning, msg) }
func (l *Logger) Error(msg string)   { l.log(LevelError, msg) }

func (l *Logger) log(lvl Level, msg string) {
	if !enabled(lvl) {
		return
	}

	tag := levelTags[lvl].Sprintf("[%s]", levelNames[lvl])
	line := fmt.Sprintf("%s %s %s %s\n", time.Now().Format("2006/01/02 15:04:05"), l.prefix, tag, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}
