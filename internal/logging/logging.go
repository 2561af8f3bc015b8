package logging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = [...]string{Debug: "debug", Info: "info", Warn: "warn", Error: "error"}

func (l Level) String() string {
	if l < Debug || l > Error {
		return levelNames[Info]
	}
	return levelNames[l]
}

// ParseLevel maps a config or flag value to a Level. Unknown values are Info.
func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Enabled(level Level) bool
}

type Option func(*lineLogger)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *lineLogger) {
		if now != nil {
			l.now = now
		}
	}
}

// lineLogger writes one logfmt line per entry. Loggers derived with With share
// the writer lock, so lines never interleave.
type lineLogger struct {
	out    io.Writer
	level  Level
	now    func() time.Time
	fields []Field
	mu     *sync.Mutex
}

func New(out io.Writer, level Level, opts ...Option) Logger {
	if out == nil {
		out = os.Stderr
	}
	l := &lineLogger{out: out, level: level, now: time.Now, mu: &sync.Mutex{}}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// OpenFile returns a logger appending to path, creating parent directories.
// A blank path yields a no-op logger.
func OpenFile(path string, level Level, opts ...Option) (Logger, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Nop(), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return New(file, level, opts...), file, nil
}

func (l *lineLogger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *lineLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	next := *l
	next.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &next
}

func (l *lineLogger) Debug(msg string, fields ...Field) { l.write(Debug, msg, fields) }
func (l *lineLogger) Info(msg string, fields ...Field)  { l.write(Info, msg, fields) }
func (l *lineLogger) Warn(msg string, fields ...Field)  { l.write(Warn, msg, fields) }
func (l *lineLogger) Error(msg string, fields ...Field) { l.write(Error, msg, fields) }

func (l *lineLogger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	line := make([]byte, 0, 128)
	line = append(line, "ts="...)
	line = l.now().UTC().AppendFormat(line, time.RFC3339Nano)
	line = append(line, " level="...)
	line = append(line, level.String()...)
	line = append(line, " msg="...)
	line = appendValue(line, msg)
	for _, group := range [2][]Field{l.fields, fields} {
		for _, field := range group {
			if field.Key == "" {
				continue
			}
			line = append(line, ' ')
			line = append(line, field.Key...)
			line = append(line, '=')
			line = appendValue(line, field.Value)
		}
	}
	line = append(line, '\n')

	l.mu.Lock()
	_, _ = l.out.Write(line)
	l.mu.Unlock()
}

func appendValue(dst []byte, value any) []byte {
	switch v := value.(type) {
	case nil:
		return append(dst, "null"...)
	case string:
		return appendText(dst, v)
	case []byte:
		return appendText(dst, string(v))
	case bool:
		return strconv.AppendBool(dst, v)
	case int:
		return strconv.AppendInt(dst, int64(v), 10)
	case int64:
		return strconv.AppendInt(dst, v, 10)
	case uint64:
		return strconv.AppendUint(dst, v, 10)
	case float64:
		return strconv.AppendFloat(dst, v, 'g', -1, 64)
	case time.Duration:
		return append(dst, v.String()...)
	case time.Time:
		return v.UTC().AppendFormat(dst, time.RFC3339Nano)
	case error:
		return appendText(dst, v.Error())
	case fmt.Stringer:
		return appendText(dst, v.String())
	default:
		return appendText(dst, fmt.Sprint(v))
	}
}

func appendText(dst []byte, value string) []byte {
	if value == "" {
		return append(dst, `""`...)
	}
	if strings.ContainsAny(value, " \t\n\r\"=") {
		return strconv.AppendQuote(dst, value)
	}
	return append(dst, value...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type nopLogger struct{}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (n nopLogger) With(...Field) Logger { return n }
func (nopLogger) Enabled(Level) bool     { return false }

// NewRequestID returns a random id for correlating a request with its log
// lines on both ends.
func NewRequestID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf[:])
}
