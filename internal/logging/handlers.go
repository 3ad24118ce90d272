package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// newJSONHandler builds the machine-readable handler. Standard slog keys
// are renamed to the short forms log consumers expect (ts, level, msg) and
// source locations shrink to file:line.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, withSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   withSource,
		ReplaceAttr: renameStandardKeys,
	})
}

func renameStandardKeys(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Key = "level"
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "msg"
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
		}
	}
	return attr
}

// consoleHandler renders one record per line: timestamp, level, hoisted
// component and profile prefixes, the message, then key=value pairs.
// Hoisting keeps the fixed prefix short for routine reads.
type consoleHandler struct {
	mu         sync.Mutex
	out        io.Writer
	level      *slog.LevelVar
	withSource bool
	bound      []slog.Attr
	scope      []string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, withSource bool) slog.Handler {
	return &consoleHandler{out: w, level: lvl, withSource: withSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.fork()
	next.bound = append(next.bound, attrs...)
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := h.fork()
	next.scope = append(next.scope, name)
	return next
}

func (h *consoleHandler) fork() *consoleHandler {
	return &consoleHandler{
		out:        h.out,
		level:      h.level,
		withSource: h.withSource,
		bound:      append([]slog.Attr(nil), h.bound...),
		scope:      append([]string(nil), h.scope...),
	}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}

	line := consoleLine{pairs: make([]slog.Attr, 0, record.NumAttrs()+len(h.bound))}
	for _, attr := range h.bound {
		line.observe(h.scope, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		line.observe(h.scope, attr)
		return true
	})

	buf := make([]byte, 0, 160+len(line.pairs)*24)
	buf = when.UTC().AppendFormat(buf, time.RFC3339)
	buf = append(buf, ' ')
	buf = append(buf, levelTag(record.Level)...)
	buf = append(buf, ' ')
	if line.component != "" {
		buf = append(buf, line.component...)
		buf = append(buf, ": "...)
	}
	if line.profile != "" {
		buf = append(buf, '[')
		buf = append(buf, line.profile...)
		buf = append(buf, "] "...)
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf = append(buf, msg...)
	} else {
		buf = append(buf, "(no message)"...)
	}
	if h.withSource {
		if src := record.Source(); src != nil {
			buf = append(buf, " ["...)
			buf = append(buf, filepath.Base(src.File)...)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(src.Line), 10)
			buf = append(buf, ']')
		}
	}
	for _, pair := range line.pairs {
		if pair.Key == "" {
			continue
		}
		buf = append(buf, ' ')
		buf = append(buf, pair.Key...)
		buf = append(buf, '=')
		buf = appendValue(buf, pair.Value)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

// consoleLine accumulates one record during attr traversal. The component
// and profile keys are captured for the line prefix instead of being
// rendered as pairs.
type consoleLine struct {
	component string
	profile   string
	pairs     []slog.Attr
}

func (l *consoleLine) observe(scope []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		inner := scope
		if attr.Key != "" {
			inner = append(append([]string(nil), scope...), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			l.observe(inner, member)
		}
		return
	}
	key := attr.Key
	if len(scope) > 0 {
		key = strings.Join(scope, ".")
		if attr.Key != "" {
			key += "." + attr.Key
		}
	}
	switch key {
	case FieldComponent:
		if l.component == "" {
			l.component = plainString(attr.Value)
			return
		}
	case FieldProfile:
		if l.profile == "" {
			l.profile = plainString(attr.Value)
			return
		}
	}
	l.pairs = append(l.pairs, slog.Attr{Key: key, Value: attr.Value})
}

// plainString renders a hoisted value raw, with no quoting.
func plainString(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.String()
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendScalar(buf, v.String())
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(buf, time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return appendScalar(buf, err.Error())
		}
	}
	return appendScalar(buf, v.String())
}

// appendScalar quotes values containing whitespace, '=', or quotes so the
// key=value stream stays splittable.
func appendScalar(buf []byte, s string) []byte {
	if s == "" {
		return append(buf, `""`...)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

// levelTags orders the rendered level labels by their floor, highest
// first.
var levelTags = [...]struct {
	floor slog.Level
	tag   string
}{
	{slog.LevelError, "ERROR"},
	{slog.LevelWarn, "WARN"},
	{slog.LevelInfo, "INFO"},
}

func levelTag(level slog.Level) string {
	for _, entry := range levelTags {
		if level >= entry.floor {
			return entry.tag
		}
	}
	return "DEBUG"
}
