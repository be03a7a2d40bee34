package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger using zerolog.
type ZerologAdapter struct {
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewZerologAdapter creates a new zerolog adapter with console output on stderr.
func NewZerologAdapter() *ZerologAdapter {
	return NewZerologAdapterFromConfig(DefaultFileConfig(), os.Stderr)
}

// NewZerologAdapterWithLogger creates an adapter wrapping an existing zerolog.Logger.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// NewZerologAdapterFromConfig builds an adapter from a log configuration file.
// An unknown level falls back to info.
func NewZerologAdapterFromConfig(fc FileConfig, out io.Writer) *ZerologAdapter {
	if out == nil {
		out = os.Stderr
	}
	if fc.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if fc.Service != "" {
		ctx = ctx.Str("service", fc.Service)
	}

	level, err := zerolog.ParseLevel(fc.Level)
	if err != nil || fc.Level == "" {
		level = zerolog.InfoLevel
	}
	return &ZerologAdapter{logger: ctx.Logger().Level(level)}
}

// SetLevel changes the minimum level of subsequent log events.
func (z *ZerologAdapter) SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	z.mu.Lock()
	z.logger = z.logger.Level(lvl)
	z.mu.Unlock()
	return nil
}

// Level returns the current minimum level.
func (z *ZerologAdapter) Level() string {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.logger.GetLevel().String()
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) {
	z.emit(zerolog.DebugLevel, msg, fields)
}

func (z *ZerologAdapter) Info(msg string, fields ...Field) {
	z.emit(zerolog.InfoLevel, msg, fields)
}

func (z *ZerologAdapter) Warn(msg string, fields ...Field) {
	z.emit(zerolog.WarnLevel, msg, fields)
}

func (z *ZerologAdapter) Error(msg string, fields ...Field) {
	z.emit(zerolog.ErrorLevel, msg, fields)
}

func (z *ZerologAdapter) emit(level zerolog.Level, msg string, fields []Field) {
	z.mu.RLock()
	logger := z.logger
	z.mu.RUnlock()

	event := logger.WithLevel(level)
	if event == nil {
		return
	}
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

// addField adds a Field to a zerolog.Event.
func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case int64:
		return event.Int64(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.AnErr(f.Key, v)
	default:
		return event.Interface(f.Key, v)
	}
}

// Logger returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.logger
}

var _ LevelSetter = (*ZerologAdapter)(nil)
