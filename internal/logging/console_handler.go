package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ConsoleOptions configures console rendering.
type ConsoleOptions struct {
	Level       *slog.LevelVar
	FlowFormat  *Formatter
	TaskFormat  *Formatter
	Highlighter *Highlighter
	Colors      bool
	Markup      bool
}

// consoleHandler renders records for human consumption. Formatting is chosen
// per record scope: task-attributed records use the task template, everything
// else the flow template. Highlighting and markup only ever touch this
// handler's output.
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	opts   ConsoleOptions
	attrs  []slog.Attr
	groups []string
}

// NewConsoleHandler builds the console sink writing to w.
func NewConsoleHandler(w io.Writer, opts ConsoleOptions) slog.Handler {
	if opts.Level == nil {
		opts.Level = new(slog.LevelVar)
	}
	return &consoleHandler{writer: w, opts: opts}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.opts.Level.Level() {
		return nil
	}

	rec := newRecord(record, h.groups, h.attrs)
	line := h.render(rec)

	var buf bytes.Buffer
	buf.Grow(len(line) + 1)
	buf.WriteString(line)
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) render(rec Record) string {
	formatter := h.opts.FlowFormat
	if rec.TaskScoped() && h.opts.TaskFormat != nil {
		formatter = h.opts.TaskFormat
	}

	var line string
	if formatter != nil {
		line = formatter.Format(rec)
	} else {
		line = rec.Timestamp.UTC().Format("2006-01-02 15:04:05.000") + " " + rec.Level + " " + rec.Message
	}

	if h.opts.Markup {
		line = ExpandMarkup(line, h.opts.Colors)
	}
	if h.opts.Colors {
		line = h.opts.Highlighter.Apply(line)
	}
	return line + rec.extraFieldsSuffix()
}

// WithAttrs qualifies incoming keys with the open group path so attrs added
// before a group keep their bare keys.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	if len(h.groups) == 0 {
		clone.attrs = append(clone.attrs, attrs...)
		return clone
	}
	prefix := strings.Join(h.groups, ".")
	for _, attr := range attrs {
		if attr.Key != "" {
			attr.Key = prefix + "." + attr.Key
		} else if attr.Value.Kind() == slog.KindGroup {
			attr.Key = prefix
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	clone := &consoleHandler{writer: h.writer, opts: h.opts}
	if len(h.attrs) > 0 {
		clone.attrs = make([]slog.Attr, len(h.attrs))
		copy(clone.attrs, h.attrs)
	}
	if len(h.groups) > 0 {
		clone.groups = make([]string, len(h.groups))
		copy(clone.groups, h.groups)
	}
	return clone
}
