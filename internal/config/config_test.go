package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"runlog/internal/config"
	"runlog/internal/logging"
)

func TestLoadDefaultsWithoutSettingsDocument(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Root.Level != "info" {
		t.Fatalf("unexpected root level: %q", cfg.Logging.Root.Level)
	}
	if cfg.Logging.Handlers.Shipping.Class != "archive" {
		t.Fatalf("unexpected shipping class: %q", cfg.Logging.Handlers.Shipping.Class)
	}
	if cfg.Logging.Handlers.Shipping.QueueSize != 2048 {
		t.Fatalf("unexpected queue size: %d", cfg.Logging.Handlers.Shipping.QueueSize)
	}
	if cfg.Logging.Handlers.Shipping.FlushInterval != 2*time.Second {
		t.Fatalf("unexpected flush interval: %s", cfg.Logging.Handlers.Shipping.FlushInterval)
	}
	if !cfg.Logging.Colors {
		t.Fatal("expected colors enabled by default")
	}
	if cfg.Logging.LogPrints {
		t.Fatal("expected print capture disabled by default")
	}
	wantArchive := filepath.Join(tempHome, ".local", "share", "runlog", "archive")
	if cfg.Logging.Archive.Dir != wantArchive {
		t.Fatalf("unexpected archive dir: got %q want %q", cfg.Logging.Archive.Dir, wantArchive)
	}
	if len(cfg.Logging.Handlers.Console.Styles) != 2 {
		t.Fatalf("unexpected default styles: %+v", cfg.Logging.Handlers.Console.Styles)
	}
}

func TestLoadTOMLDocumentOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging]
colors = false
extra_loggers = "scheduler, db"
log_prints = true

[logging.root]
level = "debug"

[logging.loggers."runlog.task_runs"]
level = "warn"

[logging.handlers.shipping]
queue_size = 16
flush_interval = "250ms"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Root.Level != "debug" {
		t.Fatalf("unexpected root level: %q", cfg.Logging.Root.Level)
	}
	if cfg.Logging.Colors {
		t.Fatal("expected colors disabled by document")
	}
	if !cfg.Logging.LogPrints {
		t.Fatal("expected print capture enabled by document")
	}
	if cfg.Logging.Handlers.Shipping.QueueSize != 16 {
		t.Fatalf("unexpected queue size: %d", cfg.Logging.Handlers.Shipping.QueueSize)
	}
	if cfg.Logging.Handlers.Shipping.FlushInterval != 250*time.Millisecond {
		t.Fatalf("unexpected flush interval: %s", cfg.Logging.Handlers.Shipping.FlushInterval)
	}
	// Keys the document does not touch keep their defaults.
	if cfg.Logging.Handlers.Shipping.MaxBatch != 100 {
		t.Fatalf("unexpected max batch: %d", cfg.Logging.Handlers.Shipping.MaxBatch)
	}
	level, ok := cfg.LoggerLevel("runlog.task_runs")
	if !ok || level != "warn" {
		t.Fatalf("unexpected logger override: %q ok=%v", level, ok)
	}
	names := cfg.ExtraLoggerNames()
	if len(names) != 2 || names[0] != "scheduler" || names[1] != "db" {
		t.Fatalf("unexpected extra loggers: %v", names)
	}
}

func TestLoadYAMLDocument(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.yaml")
	doc := `
logging:
  root:
    level: warn
  markup: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Root.Level != "warn" {
		t.Fatalf("unexpected root level: %q", cfg.Logging.Root.Level)
	}
	if !cfg.Logging.Markup {
		t.Fatal("expected markup enabled")
	}
}

func TestEnvironmentOverridesBeatDocument(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.root]
level = "warn"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	t.Setenv("RUNLOG_LOGGING_ROOT_LEVEL", "debug")
	t.Setenv("RUNLOG_LOGGING_LOG_PRINTS", "true")
	t.Setenv("RUNLOG_LOGGING_HANDLERS_SHIPPING_MAX_BATCH", "7")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Root.Level != "debug" {
		t.Fatalf("expected env to beat document, got %q", cfg.Logging.Root.Level)
	}
	if !cfg.Logging.LogPrints {
		t.Fatal("expected RUNLOG_LOGGING_LOG_PRINTS to enable print capture")
	}
	if cfg.Logging.Handlers.Shipping.MaxBatch != 7 {
		t.Fatalf("unexpected max batch: %d", cfg.Logging.Handlers.Shipping.MaxBatch)
	}
}

func TestEnvLoggerOverrideWithoutDocumentEntry(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	// No document names these loggers; a double underscore in the variable
	// stands in for a dot in the logger name.
	t.Setenv("RUNLOG_LOGGING_LOGGERS_RUNLOG__TASK_RUNS_LEVEL", "debug")
	t.Setenv("RUNLOG_LOGGING_LOGGERS_SCHEDULER_LEVEL", "error")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	level, ok := cfg.LoggerLevel("runlog.task_runs")
	if !ok || level != "debug" {
		t.Fatalf("unexpected dotted logger override: %q ok=%v", level, ok)
	}
	level, ok = cfg.LoggerLevel("scheduler")
	if !ok || level != "error" {
		t.Fatalf("unexpected plain logger override: %q ok=%v", level, ok)
	}
}

func TestSettingsPathEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.root]
level = "error"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	t.Setenv("RUNLOG_LOGGING_SETTINGS_PATH", path)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Root.Level != "error" {
		t.Fatalf("expected document from env path, got %q", cfg.Logging.Root.Level)
	}
	if cfg.Logging.SettingsPath != path {
		t.Fatalf("unexpected settings path: %q", cfg.Logging.SettingsPath)
	}
}

func TestMalformedDocumentReturnsParseError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	if err := os.WriteFile(path, []byte("[logging\nlevel = "), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}

	_, err := config.Load(path)
	var parseErr *config.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Path != path {
		t.Fatalf("unexpected path in error: %q", parseErr.Path)
	}
}

func TestUnsupportedDocumentExtension(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.ini")
	if err := os.WriteFile(path, []byte("level=info"), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestUnknownPlaceholderFailsAtLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.formatters.console]
format = "%(asctime)s %(bogus)s"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}

	_, err := config.Load(path)
	var formatErr *logging.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
	if formatErr.Placeholder != "bogus" {
		t.Fatalf("unexpected placeholder in error: %q", formatErr.Placeholder)
	}
}

func TestTaskPlaceholderRejectedInFlowFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.formatters.console]
format = "%(task_run_name)s %(message)s"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected task placeholder in flow template to fail")
	}
}

func TestUnknownShippingClassRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.handlers.shipping]
class = "carrier-pigeon"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown shipping class to fail validation")
	}
}

func TestAPIClassRequiresURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[logging.handlers.shipping]
class = "api"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected api class without url to fail validation")
	}
}

func TestInvalidStylePatternRejected(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "logging.toml")
	doc := `
[[logging.handlers.console.styles]]
pattern = "("
style = "bold red"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write settings document: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected invalid style pattern to fail validation")
	}
}

func TestResolveDottedKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	value, ok := cfg.Resolve("logging.handlers.shipping.class")
	if !ok || value != "archive" {
		t.Fatalf("unexpected resolve result: %v ok=%v", value, ok)
	}
	if _, ok := cfg.Resolve("logging.no_such_key"); ok {
		t.Fatal("expected miss for unknown key")
	}
	if len(cfg.Keys()) == 0 {
		t.Fatal("expected merged overlay to expose keys")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "logging.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample document does not load: %v", err)
	}
	if cfg.Logging.Root.Level != "info" {
		t.Fatalf("unexpected root level from sample: %q", cfg.Logging.Root.Level)
	}
}
