package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging verbosity level
type Level int

const (
	// LevelNormal shows INFO and above (default)
	LevelNormal Level = 0
	// LevelVerbose shows DEBUG and above (-v)
	LevelVerbose Level = 1
	// LevelTrace shows DEBUG and above plus HTTP headers (-vv)
	LevelTrace Level = 2
)

// Format selects how log lines are rendered
type Format string

const (
	// FormatConsole renders human readable lines (default)
	FormatConsole Format = "console"
	// FormatJSON renders one JSON object per line
	FormatJSON Format = "json"
)

// ParseFormat validates a format name from config or flags
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatConsole:
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want console or json)", s)
	}
}

var currentLevel Level

// Logger is the global zerolog logger instance
var Logger zerolog.Logger

// Setup initializes zerolog on stderr.
// The level parameter controls verbosity:
//   - 0: INFO and above (default)
//   - 1: DEBUG and above (-v)
//   - 2+: DEBUG and above with HTTP headers (-vv)
func Setup(level Level, format Format) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination
func SetupWriter(w io.Writer, level Level, format Format) {
	currentLevel = level

	var zerologLevel zerolog.Level
	switch {
	case level >= LevelVerbose:
		zerologLevel = zerolog.DebugLevel
	default:
		zerologLevel = zerolog.InfoLevel
	}

	output := w
	if format != FormatJSON {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	Logger = zerolog.New(output).
		Level(zerologLevel).
		With().
		Timestamp().
		Logger()
}

// GetLevel returns the current logging level
func GetLevel() Level {
	return currentLevel
}

// IsVerbose returns true if verbose/debug logging is enabled
func IsVerbose() bool {
	return currentLevel >= LevelVerbose
}

// IsTraceEnabled returns true if trace-level logging (HTTP headers) is enabled
func IsTraceEnabled() bool {
	return currentLevel >= LevelTrace
}

// ToJSON converts any value to JSON string for debug logging
func ToJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "<marshal error>"
	}
	// Truncate very long responses
	s := string(b)
	if len(s) > 2000 {
		return s[:2000] + "...(truncated)"
	}
	return s
}

// LeveledLogger implements retryablehttp.LeveledLogger using zerolog
type LeveledLogger struct{}

func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	Logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	Logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	Logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	Logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Info logs at info level with key-value pairs (slog-compatible API)
func Info(msg string, keysAndValues ...interface{}) {
	Logger.Info().Fields(keysAndValues).Msg(msg)
}

// Debug logs at debug level with key-value pairs (slog-compatible API)
func Debug(msg string, keysAndValues ...interface{}) {
	Logger.Debug().Fields(keysAndValues).Msg(msg)
}

// Warn logs at warn level with key-value pairs (slog-compatible API)
func Warn(msg string, keysAndValues ...interface{}) {
	Logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Error logs at error level with key-value pairs (slog-compatible API)
func Error(msg string, keysAndValues ...interface{}) {
	Logger.Error().Fields(keysAndValues).Msg(msg)
}
