package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger bound to a component. base carries every
// attribute except the component, so switching components never repeats
// the component key.
type Logger struct {
	*slog.Logger
	base *slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values are Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	base := slog.New(handler)
	logger := base
	if config.Component != "" {
		logger = base.With(FieldComponent, config.Component)
	}
	return &Logger{Logger: logger, base: base}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), base: l.root().With(args...)}
}

// WithComponent returns a logger that reports as component instead of the
// current one.
func (l *Logger) WithComponent(component string) *Logger {
	base := l.root()
	return &Logger{Logger: base.With(FieldComponent, component), base: base}
}

func (l *Logger) root() *slog.Logger {
	if l.base != nil {
		return l.base
	}
	return l.Logger
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
