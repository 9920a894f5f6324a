package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// PrettyHandler renders records as single console lines:
//
//	14:07:31 INFO  run finished  workflow=code-review outcome=completed
//
// Intended for interactive terminals; structured output goes through
// the text or JSON handlers instead.
type PrettyHandler struct {
	mu     sync.Mutex
	w      io.Writer
	level  slog.Level
	prefix string // rendered scope attrs, set by WithAttrs
	group  string // dotted group path for record attrs
}

func NewPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{w: w, level: level}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(ansiDim + r.Time.Format("15:04:05") + ansiReset)
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	return &PrettyHandler{w: h.w, level: h.level, prefix: b.String(), group: h.group}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &PrettyHandler{w: h.w, level: h.level, prefix: h.prefix, group: group}
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed + "ERROR" + ansiReset
	case level >= slog.LevelWarn:
		return ansiYellow + "WARN " + ansiReset
	case level >= slog.LevelInfo:
		return ansiBlue + "INFO " + ansiReset
	default:
		return ansiGray + "DEBUG" + ansiReset
	}
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		sub := a.Key
		if group != "" {
			sub = group + "." + a.Key
		}
		for _, inner := range a.Value.Group() {
			writeAttr(b, sub, inner)
		}
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	color := ansiCyan
	if key == "error" {
		color = ansiRed
	}
	fmt.Fprintf(b, "  %s%s%s=%s", color, key, ansiReset, attrValue(a.Value))
}

// attrValue quotes values that would blur the key=value boundaries.
func attrValue(v slog.Value) string {
	s := fmt.Sprint(v.Any())
	if strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}
