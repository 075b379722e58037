// Package logger provides the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the project-wide logging type.
type Logger = zerolog.Logger

// Options configures the logger.
type Options struct {
	Level      string
	Format     string // "console" or "json"
	Service    string
	Writer     io.Writer
	WithCaller bool
}

// FromEnv builds Options from PALAK_LOG_LEVEL and PALAK_LOG_FORMAT.
func FromEnv() Options {
	return Options{
		Level:   envOr("PALAK_LOG_LEVEL", "info"),
		Format:  envOr("PALAK_LOG_FORMAT", "console"),
		Service: "palak",
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[Logger]
	inited atomic.Bool
)

// New builds a logger from opt without touching the process-wide one.
func New(opt Options) Logger {
	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if strings.ToLower(opt.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
	if opt.Service != "" {
		ctx = ctx.Str("service", opt.Service)
	}

	l := ctx.Logger()
	if opt.WithCaller {
		l = l.With().Caller().Logger()
	}
	return l
}

// Init configures the process-wide logger. Only the first call has an effect.
func Init(opt Options) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		l := New(opt)
		root.Store(&l)
		inited.Store(true)
	})
}

// Get returns the process-wide logger, initializing it from the environment
// if Init was never called.
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// With returns a child logger tagged with a component field.
func With(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}

// parseLevel maps a level name to a zerolog level, defaulting to info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
