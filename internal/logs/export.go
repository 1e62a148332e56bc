package logs

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"runlog/internal/logging"
)

// WriteText renders records as a readable transcript with a heading naming
// the run. Lines are "timestamp | LEVEL | message" plus any extra fields.
func WriteText(w io.Writer, runID string, records []logging.Record) error {
	if _, err := fmt.Fprintln(w, heading(runID, records)); err != nil {
		return err
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s | %-5s | %s",
			rec.Timestamp.UTC().Format("2006-01-02 15:04:05.000"),
			rec.Level,
			rec.Message)
		if suffix := fieldsSuffix(rec.Fields); suffix != "" {
			line += " " + suffix
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON renders records as an indented JSON array.
func WriteJSON(w io.Writer, records []logging.Record) error {
	if records == nil {
		records = []logging.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func heading(runID string, records []logging.Record) string {
	kind := "run"
	name := ""
	for _, rec := range records {
		switch runID {
		case rec.TaskRunID:
			kind, name = "task run", rec.TaskRunName
		case rec.FlowRunID:
			kind, name = "flow run", rec.FlowRunName
		default:
			continue
		}
		break
	}
	label := cases.Title(language.Und).String(kind)
	if name != "" {
		return fmt.Sprintf("%s %s (%s)", label, name, runID)
	}
	return fmt.Sprintf("%s %s", label, runID)
}

func fieldsSuffix(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+fields[key])
	}
	return strings.Join(parts, " ")
}
