package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"runlog/internal/archive"
	"runlog/internal/logging"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "logging.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("init output missing target path: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample document not written: %v", err)
	}

	out, err = runCommand(t, "--config", target, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "logging.root.level") || !strings.Contains(out, "info") {
		t.Fatalf("show output missing merged keys: %q", out)
	}
}

func TestRenderSettingsTable(t *testing.T) {
	out := renderSettingsTable([][2]string{
		{"logging.root.level", "info"},
		{"logging.handlers.shipping.api_key", "(set)"},
	})
	for _, want := range []string{"Key", "Value", "logging.root.level", "(set)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q: %q", want, out)
		}
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "logging.toml")
	if _, err := runCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsBadDocument(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.handlers.shipping]
class = "bogus"
`
	if err := os.WriteFile(target, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	if _, err := runCommand(t, "--config", target, "config", "validate"); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestLogsCommandReadsArchive(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	archiveDir := t.TempDir()

	store, err := archive.Open(archiveDir)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	batch := []logging.Record{{
		Timestamp:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Level:       "INFO",
		Message:     "starting extraction",
		FlowRunID:   "run-1",
		FlowRunName: "nightly-1",
	}}
	if err := store.Deliver(context.Background(), batch); err != nil {
		t.Fatalf("seed archive: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	settings := filepath.Join(t.TempDir(), "logging.toml")
	doc := "[logging.archive]\ndir = \"" + archiveDir + "\"\n"
	if err := os.WriteFile(settings, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}

	out, err := runCommand(t, "--config", settings, "logs", "run-1")
	if err != nil {
		t.Fatalf("logs command: %v", err)
	}
	if !strings.Contains(out, "Flow Run nightly-1 (run-1)") {
		t.Fatalf("missing heading: %q", out)
	}
	if !strings.Contains(out, "starting extraction") {
		t.Fatalf("missing record line: %q", out)
	}

	out, err = runCommand(t, "--config", settings, "logs", "missing-run")
	if err != nil {
		t.Fatalf("logs command for unknown run: %v", err)
	}
	if !strings.Contains(out, "No records for run missing-run") {
		t.Fatalf("unexpected output for unknown run: %q", out)
	}
}
