package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// LogLevel represents the log level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output string // "stdout", "stderr", or file path
}

// NewFromConfigStruct creates a logger from a config struct with string level
func NewFromConfigStruct(level, format, output string) *Logger {
	return New(&Config{
		Level:  LogLevel(level),
		Format: format,
		Output: output,
	})
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "json",
		Output: "stdout",
	}
}

// New creates a new logger instance
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer
	var closer io.Closer
	switch config.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		// Try to open file, fallback to stdout on error
		if file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640); err == nil {
			output = file
			closer = file
		} else {
			output = os.Stdout
		}
	}

	l := NewWithWriter(output, config.Level, config.Format)
	l.closer = closer
	return l
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level LogLevel, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close releases the log file, if the logger owns one
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Init builds a logger from config and installs it as the global default
func Init(config *Config) *Logger {
	l := New(config)
	SetDefault(l)
	return l
}

// SetDefault replaces the global logger
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the default logger, creating one if it doesn't exist
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// With returns a logger with additional context
func With(args ...any) *Logger {
	return &Logger{Logger: Default().With(args...)}
}

// LogRequest logs a served HTTP request
func (l *Logger) LogRequest(method, path, userAgent string, duration time.Duration, statusCode int, requestID string) {
	l.Info("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("user_agent", userAgent),
		slog.String("duration", duration.String()),
		slog.Int("status_code", statusCode),
		slog.String("request_id", requestID),
	)
}

// LogStartup logs application startup
func (l *Logger) LogStartup(listenAddr, configFile string) {
	l.Info("landing server starting",
		slog.String("listen_addr", listenAddr),
		slog.String("config_file", configFile),
		slog.String("version", Version),
	)
}

// LogShutdown logs the start of a graceful shutdown
func (l *Logger) LogShutdown(reason string) {
	l.Info("landing server shutting down",
		slog.String("reason", reason),
	)
}

// LogError logs errors with context
func (l *Logger) LogError(operation string, err error, context ...any) {
	args := []any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}
	args = append(args, context...)
	l.Error("operation failed", args...)
}

// LogConfig logs configuration loading
func (l *Logger) LogConfig(configPath string, loadedViaEnv bool) {
	l.Info("configuration loaded",
		slog.String("config_path", configPath),
		slog.Bool("loaded_via_env", loadedViaEnv),
	)
}

// Version is stamped at build time with -ldflags "-X .../cmd/logger.Version=..."
var Version = "dev"
