package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"example.com/hostwire/internal/config"
)

// LogFields carries structured key/value context attached to a single
// log event.
type LogFields map[string]interface{}

// Logger is the process-wide structured logger. It wraps zerolog with
// the level and target semantics of the logging configuration.
type Logger struct {
	zl     zerolog.Logger
	output io.WriteCloser // nil unless the target is a file we opened
}

// NewLogger creates and configures a new Logger instance from the
// logging configuration. File targets are opened in append mode; the
// caller owns the returned Logger and should Close it on shutdown.
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	var out io.Writer = os.Stderr
	var owned io.WriteCloser

	if cfg.Target != nil {
		switch {
		case *cfg.Target == "stderr":
			out = os.Stderr
		case *cfg.Target == "stdout":
			out = os.Stdout
		case config.IsFilePath(*cfg.Target):
			file, err := os.OpenFile(*cfg.Target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file %s: %w", *cfg.Target, err)
			}
			out = file
			owned = file
		}
	}

	level, err := zerologLevel(cfg.LogLevel)
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, err
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl, output: owned}, nil
}

// NewTestLogger returns a Logger writing to w at debug level, for use
// in tests. A nil w discards all output.
func NewTestLogger(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{zl: zerolog.New(w).Level(zerolog.DebugLevel)}
}

func zerologLevel(l config.LogLevel) (zerolog.Level, error) {
	switch l {
	case config.LogLevelDebug:
		return zerolog.DebugLevel, nil
	case config.LogLevelInfo, "":
		return zerolog.InfoLevel, nil
	case config.LogLevelWarning:
		return zerolog.WarnLevel, nil
	case config.LogLevelError:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %s", l)
	}
}

// WithComponent returns a child Logger that stamps every event with the
// given component name. The child shares the parent's output; only the
// root Logger should be closed.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", name).Logger()}
}

// Debug logs a message at debug level with optional structured fields.
func (l *Logger) Debug(msg string, fields LogFields) {
	emit(l.zl.Debug(), msg, fields)
}

// Info logs a message at info level with optional structured fields.
func (l *Logger) Info(msg string, fields LogFields) {
	emit(l.zl.Info(), msg, fields)
}

// Warn logs a message at warning level with optional structured fields.
func (l *Logger) Warn(msg string, fields LogFields) {
	emit(l.zl.Warn(), msg, fields)
}

// Error logs a message at error level with optional structured fields.
func (l *Logger) Error(msg string, fields LogFields) {
	emit(l.zl.Error(), msg, fields)
}

func emit(ev *zerolog.Event, msg string, fields LogFields) {
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			ev = ev.Str(k, val)
		case error:
			ev = ev.AnErr(k, val)
		case int:
			ev = ev.Int(k, val)
		case uint32:
			ev = ev.Uint32(k, val)
		case bool:
			ev = ev.Bool(k, val)
		case time.Duration:
			ev = ev.Dur(k, val)
		default:
			ev = ev.Interface(k, v)
		}
	}
	ev.Msg(msg)
}

// Close releases any file handle owned by the Logger. Safe to call on
// loggers bound to the standard streams.
func (l *Logger) Close() error {
	if l.output == nil {
		return nil
	}
	return l.output.Close()
}
