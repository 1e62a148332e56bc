package logging

import (
	"fmt"
	"regexp"
	"strings"
)

// TemplateScope selects which placeholder set a template may reference.
type TemplateScope int

const (
	// ScopeFlow templates render records attributed to a flow run.
	ScopeFlow TemplateScope = iota
	// ScopeTask templates additionally see the task run's fields.
	ScopeTask
)

// FormatError reports a template referencing an unavailable placeholder.
// Raised when the template is compiled, never at emit time.
type FormatError struct {
	Template    string
	Placeholder string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("log format template %q: unknown placeholder %%(%s)s", e.Template, e.Placeholder)
}

var basePlaceholders = map[string]struct{}{
	"asctime":        {},
	"levelname":      {},
	"message":        {},
	"name":           {},
	"run_id":         {},
	"run_name":       {},
	FieldFlowRunID:   {},
	FieldFlowRunName: {},
	FieldFlowName:    {},
}

var taskPlaceholders = map[string]struct{}{
	FieldTaskRunID:   {},
	FieldTaskRunName: {},
	FieldTaskName:    {},
}

var placeholderPattern = regexp.MustCompile(`%\((\w+)\)s`)

type segment struct {
	literal string
	field   string
}

// Formatter renders records through a compiled %(name)s template.
// The same record and template always produce the same string.
type Formatter struct {
	template string
	segments []segment
}

// NewFormatter compiles and validates a template for the given scope.
func NewFormatter(template string, scope TemplateScope) (*Formatter, error) {
	f := &Formatter{template: template}
	last := 0
	for _, match := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		if match[0] > last {
			f.segments = append(f.segments, segment{literal: template[last:match[0]]})
		}
		field := template[match[2]:match[3]]
		if !placeholderAllowed(field, scope) {
			return nil, &FormatError{Template: template, Placeholder: field}
		}
		f.segments = append(f.segments, segment{field: field})
		last = match[1]
	}
	if last < len(template) {
		f.segments = append(f.segments, segment{literal: template[last:]})
	}
	return f, nil
}

func placeholderAllowed(field string, scope TemplateScope) bool {
	if _, ok := basePlaceholders[field]; ok {
		return true
	}
	if scope == ScopeTask {
		_, ok := taskPlaceholders[field]
		return ok
	}
	return false
}

// Template returns the source template string.
func (f *Formatter) Template() string { return f.template }

// Format renders the record. Unresolvable fields render empty rather than
// failing: validation already guaranteed the template only names fields the
// record's scope can provide.
func (f *Formatter) Format(rec Record) string {
	var sb strings.Builder
	sb.Grow(len(f.template) + len(rec.Message))
	for _, seg := range f.segments {
		if seg.field == "" {
			sb.WriteString(seg.literal)
			continue
		}
		sb.WriteString(placeholderValue(seg.field, rec))
	}
	return sb.String()
}

func placeholderValue(field string, rec Record) string {
	switch field {
	case "asctime":
		return rec.Timestamp.UTC().Format("2006-01-02 15:04:05.000")
	case "levelname":
		return rec.Level
	case "message":
		return rec.Message
	case "name":
		return rec.LoggerName
	case "run_id":
		return rec.RunID()
	case "run_name":
		if rec.TaskScoped() {
			return rec.TaskRunName
		}
		return rec.FlowRunName
	case FieldFlowRunID:
		return rec.FlowRunID
	case FieldFlowRunName:
		return rec.FlowRunName
	case FieldFlowName:
		return rec.FlowName
	case FieldTaskRunID:
		return rec.TaskRunID
	case FieldTaskRunName:
		return rec.TaskRunName
	case FieldTaskName:
		return rec.TaskName
	}
	return ""
}
