package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// shortRunIDLength matches the run column of `deliver history`.
const shortRunIDLength = 8

// consoleHandler renders one human-readable line per record:
//
//	[ts] LEVEL [file:line] component agent/build: message key=value ...
//
// component, project and stage are lifted out of the key/value tail into the
// prefix. run_id is shortened.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	attrs     []field
	group     string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.attrs)+record.NumAttrs())
	fields = append(fields, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.group, attr)
		return true
	})

	var component, project, stage string
	tail := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = firstNonEmpty(component, plain(f.value))
		case FieldProject:
			project = firstNonEmpty(project, plain(f.value))
		case FieldStage:
			stage = firstNonEmpty(stage, plain(f.value))
		case FieldRunID:
			id := plain(f.value)
			if len(id) > shortRunIDLength {
				id = id[:shortRunIDLength]
			}
			tail = append(tail, field{key: "run", value: slog.StringValue(id)})
		default:
			tail = append(tail, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] %s ", ts.UTC().Format(time.RFC3339), levelLabel(record.Level))
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&buf, "[%s:%d] ", filepath.Base(src.File), src.Line)
		}
	}
	if scope := joinScope(component, project, stage); scope != "" {
		buf.WriteString(scope)
		buf.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	for _, f := range tail {
		if f.key == "" {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(render(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]field(nil), h.attrs...)
	for _, attr := range attrs {
		next.attrs = appendAttr(next.attrs, h.group, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = qualify(h.group, name)
	return &next
}

func appendAttr(dst []field, group string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := group
		if attr.Key != "" {
			inner = qualify(group, attr.Key)
		}
		for _, member := range value.Group() {
			dst = appendAttr(dst, inner, member)
		}
		return dst
	}
	return append(dst, field{key: qualify(group, attr.Key), value: value})
}

func qualify(group, key string) string {
	switch {
	case group == "":
		return key
	case key == "":
		return group
	default:
		return group + "." + key
	}
}

func joinScope(component, project, stage string) string {
	var parts []string
	if component != "" {
		parts = append(parts, component)
	}
	switch {
	case project != "" && stage != "":
		parts = append(parts, project+"/"+stage)
	case project != "":
		parts = append(parts, project)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " ")
}

func firstNonEmpty(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

func plain(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return strings.Trim(render(v), `"`)
}

func render(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
