package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

// defaultKeyOrder puts the fields people grep for first; the rest follow
// alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "update_id", "user_id", "chat_id",
	"handler", "flow", "step", "outcome", "session_id",
	"task_id", "owner_id", "filter", "count",
	"duration_ms", "messages", "kb",
	"err", "err_code", "cause",
}

// sink serializes whole lines onto the configured outputs.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) writeLine(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

type field struct {
	key string
	val any
}

// lineHandler renders records as one JSON object or key=value line with a
// stable key order, flattening groups and filling in the update scope from ctx.
type lineHandler struct {
	level  slog.Leveler
	out    *sink
	format logFormat
	rank   map[string]int

	attrs  []field
	prefix string
}

func newLineHandler(out io.Writer, level slog.Leveler, format logFormat, order []string) *lineHandler {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	return &lineHandler{level: level, out: &sink{w: out}, format: format, rank: rank}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, a)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	ts := r.Time.UTC()
	fields := []field{
		{"ts", ts.Format("2006-01-02T15:04:05.000Z07:00")},
		{"level", r.Level.String()},
	}
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	fields = dedupe(fields)
	fields = h.fillScope(ctx, fields, r.Message)

	slices.SortStableFunc(fields, func(a, b field) int {
		ra, oka := h.rank[a.key]
		rb, okb := h.rank[b.key]
		switch {
		case oka && okb:
			return cmp.Compare(ra, rb)
		case oka:
			return -1
		case okb:
			return 1
		}
		return strings.Compare(a.key, b.key)
	})

	var line []byte
	if h.format == formatKV {
		line = encodeKV(fields)
	} else {
		line = encodeJSON(fields)
	}
	return h.out.writeLine(append(line, '\n'))
}

// fillScope adds what ctx knows about the update unless the record set it,
// defaults event and component, and compacts the rid.
func (h *lineHandler) fillScope(ctx context.Context, fields []field, msg string) []field {
	has := make(map[string]int, len(fields))
	for i, f := range fields {
		has[f.key] = i
	}
	add := func(key string, val any, zero bool) {
		if _, ok := has[key]; ok || zero {
			return
		}
		has[key] = len(fields)
		fields = append(fields, field{key, val})
	}

	m := metaFrom(ctx)
	add("rid", m.rid, m.rid == "")
	add("update_id", m.updateID, m.updateID == 0)
	add("user_id", m.userID, m.userID == 0)
	add("chat_id", m.chatID, m.chatID == 0)
	add("handler", m.handler, m.handler == "")
	add("session_id", m.session, m.session == "")
	if msg == "" {
		msg = "unknown"
	}
	add("event", msg, false)
	add("component", "app", false)

	if i, ok := has["rid"]; ok {
		if rid, _ := fields[i].val.(string); rid != "" {
			if short := CompactRID(rid); short != rid {
				fields[i].val = short
				if h.format == formatJSON {
					add("rid_full", rid, false)
				}
			}
		}
	}
	return fields
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// appendAttr flattens a into dst. Durations are reported in milliseconds
// under a key ending in _ms; empty strings and nils are dropped.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			dst = appendAttr(dst, key, child)
		}
		return dst
	}
	if key == "" {
		return dst
	}

	var val any
	switch a.Value.Kind() {
	case slog.KindString:
		val = strings.TrimSpace(a.Value.String())
	case slog.KindDuration:
		return append(dst, field{msKey(key), RoundMS(a.Value.Duration()).Milliseconds()})
	case slog.KindTime:
		val = a.Value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindAny:
		switch x := a.Value.Any().(type) {
		case nil:
			return dst
		case error:
			val = x.Error()
		case fmt.Stringer:
			val = x.String()
		default:
			val = x
		}
	default:
		val = a.Value.Any()
	}
	if s, ok := val.(string); ok && s == "" {
		return dst
	}
	return append(dst, field{key, val})
}

func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// dedupe keeps the last value of each key at the position of its first occurrence.
func dedupe(fields []field) []field {
	idx := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, ok := idx[f.key]; ok {
			out[i].val = f.val
			continue
		}
		idx[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// encodeJSON writes fields as a JSON object. Values json cannot encode are
// written as their fmt representation.
func encodeJSON(fields []field) []byte {
	buf := []byte{'{'}
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		v, err := json.Marshal(f.val)
		if err != nil {
			v, _ = json.Marshal(fmt.Sprint(f.val))
		}
		buf = strconv.AppendQuote(buf, f.key)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}')
}

func encodeKV(fields []field) []byte {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		s := fmt.Sprint(f.val)
		if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return []byte(b.String())
}
