package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// moduleMarker trims caller paths down to the module-relative part.
const moduleMarker = "EconCast/"

type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string    // debug, info, warn, error
	Format     string    // json or console
	Output     string    // stdout, stderr, or file path
	TimeFormat string    // defaults to RFC3339Nano
	Service    string    // added to every line when set
	Writer     io.Writer // overrides Output
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	out := cfg.Writer
	if out == nil {
		switch cfg.Output {
		case "", "stdout":
			out = os.Stdout
		case "stderr":
			out = os.Stderr
		default:
			f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, fmt.Errorf("could not open log file: %w", err)
			}
			out = f
		}
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	zctx := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(4)
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	return &Logger{zl: zctx.Logger()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that always carries fields. The child shares
// the parent's collector.
func (l *Logger) With(fields ...Field) *Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		k, v := f.GetKeyValue()
		zctx = zctx.Interface(k, v)
	}
	return &Logger{zl: zctx.Logger(), collector: l.collector}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(zerolog.DebugLevel, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(zerolog.InfoLevel, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(zerolog.WarnLevel, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(zerolog.ErrorLevel, msg, fields) }

func (l *Logger) log(level zerolog.Level, msg string, fields []Field) {
	ev := l.zl.WithLevel(level)
	if ev != nil {
		for _, f := range fields {
			f.AddTo(ev)
		}
		ev.Msg(msg)
	}
	if l.collector != nil && level >= zerolog.WarnLevel {
		l.collect(level, msg, fields)
	}
}

// collect runs three frames below the public call site.
func (l *Logger) collect(level zerolog.Level, msg string, fields []Field) {
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(3); ok {
		if i := strings.LastIndex(file, moduleMarker); i >= 0 {
			file = file[i+len(moduleMarker):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	var m map[string]interface{}
	if len(fields) > 0 {
		m = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			k, v := f.GetKeyValue()
			m[k] = v
		}
	}
	l.collector.AddLog(level.String(), msg, m, caller)
}

// AddCollector starts aggregating warn and error lines, replacing any
// previous collector.
func (l *Logger) AddCollector(cfg *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(cfg)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

// Field is one structured key/value pair.
type Field interface {
	AddTo(event *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindError
	kindAny
)

type field struct {
	key  string
	kind fieldKind
	s    string
	i    int64
	f    float64
	b    bool
	err  error
	v    interface{}
}

func (f field) AddTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.s)
	case kindInt:
		e.Int64(f.key, f.i)
	case kindFloat:
		e.Float64(f.key, f.f)
	case kindBool:
		e.Bool(f.key, f.b)
	case kindError:
		e.AnErr(f.key, f.err)
	default:
		e.Interface(f.key, f.v)
	}
}

func (f field) GetKeyValue() (string, interface{}) {
	switch f.kind {
	case kindString:
		return f.key, f.s
	case kindInt:
		return f.key, f.i
	case kindFloat:
		return f.key, f.f
	case kindBool:
		return f.key, f.b
	case kindError:
		if f.err == nil {
			return f.key, nil
		}
		return f.key, f.err.Error()
	default:
		return f.key, f.v
	}
}

func String(key, value string) Field { return field{key: key, kind: kindString, s: value} }

func Strings(key string, value []string) Field { return String(key, strings.Join(value, ", ")) }

func Int(key string, value int) Field { return field{key: key, kind: kindInt, i: int64(value)} }

func Int64(key string, value int64) Field { return field{key: key, kind: kindInt, i: value} }

func Float64(key string, value float64) Field { return field{key: key, kind: kindFloat, f: value} }

func Bool(key string, value bool) Field { return field{key: key, kind: kindBool, b: value} }

// Duration logs d in whole milliseconds.
func Duration(key string, d time.Duration) Field { return Int64(key, d.Milliseconds()) }

func Error(err error) Field { return field{key: "error", kind: kindError, err: err} }

func Any(key string, value interface{}) Field { return field{key: key, kind: kindAny, v: value} }
