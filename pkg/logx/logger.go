package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

// Logger is a value type. The zero value discards everything; a Logger
// obtained from a Service follows every later Service.Apply.
type Logger struct {
	src    func() *zerolog.Logger
	fields []Field
}

var nopLogger = zerolog.Nop()

// Nop returns a logger that never writes anything.
func Nop() Logger { return Logger{} }

// NewWriter returns a JSON logger writing to w at the given level.
func NewWriter(w io.Writer, level string) Logger {
	zl := zerolog.New(zerolog.SyncWriter(w)).Level(parseLevel(level)).With().Timestamp().Logger()
	return Logger{src: func() *zerolog.Logger { return &zl }}
}

// IsZero reports whether l was never bound to an output.
func (l Logger) IsZero() bool { return l.src == nil && len(l.fields) == 0 }

func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	cp := l
	cp.fields = append(append([]Field(nil), l.fields...), fields...)
	return cp
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	zl := &nopLogger
	if l.src != nil {
		if cur := l.src(); cur != nil {
			zl = cur
		}
	}
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	// file:line of the Debug/Info/Warn/Error caller.
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}
