package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"runlog/internal/logging"
)

func mustFormatter(t *testing.T, template string, scope logging.TemplateScope) *logging.Formatter {
	t.Helper()
	formatter, err := logging.NewFormatter(template, scope)
	if err != nil {
		t.Fatalf("compile template %q: %v", template, err)
	}
	return formatter
}

func TestConsoleHandlerSelectsTemplateByScope(t *testing.T) {
	var buf bytes.Buffer
	handler := logging.NewConsoleHandler(&buf, logging.ConsoleOptions{
		FlowFormat: mustFormatter(t, "flow %(flow_run_name)s: %(message)s", logging.ScopeFlow),
		TaskFormat: mustFormatter(t, "task %(task_run_name)s: %(message)s", logging.ScopeTask),
	})

	flowLogger := slog.New(handler).With(
		logging.String(logging.FieldFlowRunID, "f-1"),
		logging.String(logging.FieldFlowRunName, "brisk-gazelle"),
	)
	flowLogger.Info("flow line")

	taskLogger := flowLogger.With(
		logging.String(logging.FieldTaskRunID, "t-1"),
		logging.String(logging.FieldTaskRunName, "extract-0"),
	)
	taskLogger.Info("task line")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "flow brisk-gazelle: flow line" {
		t.Fatalf("flow line mismatch: %q", lines[0])
	}
	if lines[1] != "task extract-0: task line" {
		t.Fatalf("task line mismatch: %q", lines[1])
	}
}

func TestConsoleHandlerAppendsExtraFields(t *testing.T) {
	var buf bytes.Buffer
	handler := logging.NewConsoleHandler(&buf, logging.ConsoleOptions{
		FlowFormat: mustFormatter(t, "%(message)s", logging.ScopeFlow),
	})

	slog.New(handler).Info("done", logging.Int("rows", 42), logging.String("source", "s3 bucket"))

	got := strings.TrimRight(buf.String(), "\n")
	if got != `done rows=42 source="s3 bucket"` {
		t.Fatalf("unexpected console line %q", got)
	}
}

func TestConsoleHandlerPrefixesGroupedFields(t *testing.T) {
	var buf bytes.Buffer
	handler := logging.NewConsoleHandler(&buf, logging.ConsoleOptions{
		FlowFormat: mustFormatter(t, "%(message)s", logging.ScopeFlow),
	})

	logger := slog.New(handler).With(logging.String("stage", "load")).
		WithGroup("req").With(logging.String("method", "GET"))
	logger.Info("handled", logging.Int("status", 200))

	got := strings.TrimRight(buf.String(), "\n")
	if got != `handled req.method=GET req.status=200 stage=load` {
		t.Fatalf("unexpected console line %q", got)
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	handler := logging.NewConsoleHandler(&buf, logging.ConsoleOptions{Level: level})

	logger := slog.New(handler)
	logger.Info("suppressed")
	logger.Warn("emitted")

	if strings.Contains(buf.String(), "suppressed") {
		t.Fatalf("info record should be suppressed at warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "emitted") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestConsoleHandlerPassesMarkupLiterallyWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	handler := logging.NewConsoleHandler(&buf, logging.ConsoleOptions{
		FlowFormat: mustFormatter(t, "%(message)s", logging.ScopeFlow),
	})

	slog.New(handler).Info("[bold]not expanded[/]")

	if got := strings.TrimRight(buf.String(), "\n"); got != "[bold]not expanded[/]" {
		t.Fatalf("markup characters must pass through when disabled, got %q", got)
	}
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	var console, other bytes.Buffer
	flowFmt := mustFormatter(t, "%(message)s", logging.ScopeFlow)
	fan := logging.NewFanout(
		logging.NewConsoleHandler(&console, logging.ConsoleOptions{FlowFormat: flowFmt}),
		logging.NewConsoleHandler(&other, logging.ConsoleOptions{FlowFormat: flowFmt}),
	)

	slog.New(fan).Info("both")

	if !strings.Contains(console.String(), "both") || !strings.Contains(other.String(), "both") {
		t.Fatalf("fanout must reach every sink: %q / %q", console.String(), other.String())
	}
}

func TestLevelOverrideSuppressesBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(logging.NewConsoleHandler(&buf, logging.ConsoleOptions{
		FlowFormat: mustFormatter(t, "%(message)s", logging.ScopeFlow),
	}))

	quiet := logging.WithLevelOverride(base, slog.LevelError)
	quiet.Warn("hidden")
	quiet.Error("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("warn should be filtered by the override: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("error should pass the override: %q", buf.String())
	}

	if quiet.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Enabled must report false below the override level")
	}
}
