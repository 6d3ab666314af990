// Package vlog is a small leveled logger in the key/value call-site style
// used throughout the node: log.Info("message", "key", value, "key2", value2).
package vlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging severity.
type Level int

const (
	LvlCrit Level = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

var lvlNames = [...]string{"CRIT", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if int(l) < len(lvlNames) {
		return lvlNames[l]
	}
	return "UNKNOWN"
}

// Logger writes leveled, key/value formatted lines to an output stream.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	color  bool
	ctx    []interface{}
	prefix string
}

var root = New(os.Stderr, LvlInfo)

// New constructs a Logger writing to w at the given minimum level.
func New(w io.Writer, lvl Level) *Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return &Logger{out: w, level: lvl, color: color}
}

// SetOutput replaces the root logger's destination.
func SetOutput(w io.Writer) { root.mu.Lock(); root.out = w; root.mu.Unlock() }

// SetLevel adjusts the root logger's minimum severity.
func SetLevel(lvl Level) { root.mu.Lock(); root.level = lvl; root.mu.Unlock() }

// With returns a derived logger that always includes the given key/value
// pairs, mirroring go-ethereum's log.New(ctx...) pattern.
func (l *Logger) With(ctx ...interface{}) *Logger {
	n := &Logger{out: l.out, level: l.level, color: l.color, prefix: l.prefix}
	n.ctx = append(append([]interface{}{}, l.ctx...), ctx...)
	return n
}

func (l *Logger) write(lvl Level, msg string, ctx []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.level {
		return
	}
	ts := time.Now().Format("2006-01-02T15:04:05.000")
	fmt.Fprintf(l.out, "%s [%s] %s", ts, lvl, msg)
	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.out)
	if lvl == LvlCrit {
		os.Exit(1)
	}
}

func (l *Logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *Logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// Package-level convenience functions operating on the root logger.
func Trace(msg string, ctx ...interface{}) { root.write(LvlTrace, msg, ctx) }
func Debug(msg string, ctx ...interface{}) { root.write(LvlDebug, msg, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(LvlInfo, msg, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(LvlWarn, msg, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(LvlError, msg, ctx) }
func Crit(msg string, ctx ...interface{})  { root.write(LvlCrit, msg, ctx) }

// NewContext returns a derived root logger with bound context, e.g.
// vlog.NewContext("component", "chain").
func NewContext(ctx ...interface{}) *Logger { return root.With(ctx...) }

// ParseLevel maps a config string ("info", "debug", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "crit":
		return LvlCrit, nil
	case "error":
		return LvlError, nil
	case "warn":
		return LvlWarn, nil
	case "info":
		return LvlInfo, nil
	case "debug":
		return LvlDebug, nil
	case "trace":
		return LvlTrace, nil
	}
	return LvlInfo, fmt.Errorf("unknown log level %q", s)
}
