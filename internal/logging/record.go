package logging

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Standardized structured logging keys for run attribution.
const (
	// FieldLogger is the key carrying the emitting logger's name.
	FieldLogger = "logger"
	// FieldFlowRunID identifies the flow run a record belongs to.
	FieldFlowRunID = "flow_run_id"
	// FieldFlowRunName is the human-readable flow run name.
	FieldFlowRunName = "flow_run_name"
	// FieldFlowName is the flow definition name.
	FieldFlowName = "flow_name"
	// FieldTaskRunID identifies the task run a record belongs to.
	FieldTaskRunID = "task_run_id"
	// FieldTaskRunName is the human-readable task run name.
	FieldTaskRunName = "task_run_name"
	// FieldTaskName is the task definition name.
	FieldTaskName = "task_name"
)

// Record is the canonical log record consumed by the console and shipping
// sinks. Immutable after construction; both sinks receive their own copy.
type Record struct {
	Timestamp   time.Time         `json:"ts"`
	Level       string            `json:"level"`
	Message     string            `json:"msg"`
	LoggerName  string            `json:"logger,omitempty"`
	FlowRunID   string            `json:"flow_run_id,omitempty"`
	FlowRunName string            `json:"flow_run_name,omitempty"`
	FlowName    string            `json:"flow_name,omitempty"`
	TaskRunID   string            `json:"task_run_id,omitempty"`
	TaskRunName string            `json:"task_run_name,omitempty"`
	TaskName    string            `json:"task_name,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// TaskScoped reports whether the record was emitted inside a task run.
func (r Record) TaskScoped() bool { return r.TaskRunID != "" }

// RunID returns the innermost run identifier the record is attributed to.
func (r Record) RunID() string {
	if r.TaskRunID != "" {
		return r.TaskRunID
	}
	return r.FlowRunID
}

// NewRecord converts a slog record plus handler-accumulated attrs into the
// canonical Record. Attribution keys are lifted into dedicated fields; the
// rest land in Fields. Call-site attrs override accumulated ones.
func NewRecord(record slog.Record, preAttrs []slog.Attr) Record {
	return newRecord(record, nil, preAttrs)
}

// newRecord additionally prefixes the record's own attrs with an open group
// path. preAttrs carry their group qualification already.
func newRecord(record slog.Record, groups []string, preAttrs []slog.Attr) Record {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	rec := Record{
		Timestamp: timestamp.UTC(),
		Level:     levelLabel(record.Level),
		Message:   strings.TrimSpace(record.Message),
	}

	consume := func(attr slog.Attr) {
		key := strings.TrimSpace(attr.Key)
		if key == "" {
			return
		}
		value := attrString(attr.Value)
		switch key {
		case FieldLogger:
			rec.LoggerName = value
		case FieldFlowRunID:
			rec.FlowRunID = value
		case FieldFlowRunName:
			rec.FlowRunName = value
		case FieldFlowName:
			rec.FlowName = value
		case FieldTaskRunID:
			rec.TaskRunID = value
		case FieldTaskRunName:
			rec.TaskRunName = value
		case FieldTaskName:
			rec.TaskName = value
		default:
			if rec.Fields == nil {
				rec.Fields = make(map[string]string)
			}
			rec.Fields[key] = value
		}
	}

	var kvs []kv
	flattenAttrs(&kvs, nil, preAttrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, groups, attr)
		return true
	})
	for _, pair := range kvs {
		consume(slog.Attr{Key: pair.key, Value: pair.value})
	}
	return rec
}

// extraFieldsSuffix renders non-attribution fields as sorted key=value pairs
// for console lines. Deterministic for a given record.
func (r Record) extraFieldsSuffix() string {
	if len(r.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(r.Fields))
	for key := range r.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(quoteValue(r.Fields[key]))
	}
	return sb.String()
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

// ParseLevel maps a config level string onto slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
