package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
)

//go:embed sample_settings.toml
var sampleSettings string

// Config is the resolved logging configuration for the process.
type Config struct {
	Logging Logging `koanf:"logging"`

	k *koanf.Koanf
}

// Logging groups every key under the logging.* namespace.
type Logging struct {
	Root          Root              `koanf:"root"`
	Loggers       map[string]Logger `koanf:"loggers"`
	Formatters    Formatters        `koanf:"formatters"`
	Handlers      Handlers          `koanf:"handlers"`
	Archive       Archive           `koanf:"archive"`
	Colors        bool              `koanf:"colors"`
	Markup        bool              `koanf:"markup"`
	ExtraLoggers  string            `koanf:"extra_loggers"`
	LogPrints     bool              `koanf:"log_prints"`
	LogPrintsEcho bool              `koanf:"log_prints_echo"`
	SettingsPath  string            `koanf:"settings_path"`
}

// Root holds the root logger configuration.
type Root struct {
	Level string `koanf:"level"`
}

// Logger holds per-logger overrides keyed by logger name.
type Logger struct {
	Level string `koanf:"level"`
}

// Formatters holds the console format templates.
type Formatters struct {
	Console ConsoleFormats `koanf:"console"`
}

// ConsoleFormats selects templates per record scope.
type ConsoleFormats struct {
	Format     string `koanf:"format"`
	TaskFormat string `koanf:"task_format"`
}

// Handlers configures the two sinks.
type Handlers struct {
	Console  ConsoleHandler  `koanf:"console"`
	Shipping ShippingHandler `koanf:"shipping"`
}

// ConsoleHandler configures console rendering.
type ConsoleHandler struct {
	Level  string  `koanf:"level"`
	Styles []Style `koanf:"styles"`
}

// Style is one ordered highlight rule.
type Style struct {
	Pattern string `koanf:"pattern"`
	Style   string `koanf:"style"`
}

// ShippingHandler configures the asynchronous shipping sink.
type ShippingHandler struct {
	Class         string        `koanf:"class"`
	Level         string        `koanf:"level"`
	URL           string        `koanf:"url"`
	APIKey        string        `koanf:"api_key"`
	QueueSize     int           `koanf:"queue_size"`
	MaxBatch      int           `koanf:"max_batch"`
	FlushInterval time.Duration `koanf:"flush_interval"`
	MaxRetries    int           `koanf:"max_retries"`
	RetryBackoff  time.Duration `koanf:"retry_backoff"`
	CloseGrace    time.Duration `koanf:"close_grace"`
}

// Archive configures the local durable log store.
type Archive struct {
	Dir string `koanf:"dir"`
}

// Resolve looks up a dotted key in the merged overlay, e.g.
// "logging.handlers.shipping.class". The second return is false for keys no
// layer provides.
func (c *Config) Resolve(path string) (any, bool) {
	if c == nil || c.k == nil || !c.k.Exists(path) {
		return nil, false
	}
	return c.k.Get(path), true
}

// Keys returns every dotted key in the merged overlay, sorted.
func (c *Config) Keys() []string {
	if c == nil || c.k == nil {
		return nil
	}
	return c.k.Keys()
}

// ExtraLoggerNames splits logging.extra_loggers into trimmed names.
func (c *Config) ExtraLoggerNames() []string {
	raw := strings.Split(c.Logging.ExtraLoggers, ",")
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoggerLevel returns the configured level override for a logger name, if any.
func (c *Config) LoggerLevel(name string) (string, bool) {
	logger, ok := c.Logging.Loggers[name]
	if !ok || strings.TrimSpace(logger.Level) == "" {
		return "", false
	}
	return logger.Level, true
}

// DefaultSettingsPath is the conventional location of the settings document.
func DefaultSettingsPath() (string, error) {
	return ExpandPath("~/.config/runlog/logging.toml")
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

// CreateSample writes the annotated sample settings document to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleSettings), 0o644)
}
