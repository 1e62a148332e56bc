package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment override layer.
const envPrefix = "RUNLOG_"

// ParseError reports a malformed settings document. Raised at process start,
// never deferred to the first log call.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse settings document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load builds the overlay. settingsPath overrides the document location;
// empty falls back to the RUNLOG_LOGGING_SETTINGS_PATH variable, then the
// default path. A document missing at the resolved path is silently skipped.
func Load(settingsPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}

	resolvedPath, exists, err := resolveSettingsPath(settingsPath)
	if err != nil {
		return nil, err
	}
	if exists {
		parser, err := parserFor(resolvedPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(resolvedPath), parser); err != nil {
			return nil, &ParseError{Path: resolvedPath, Err: err}
		}
	}

	if err := loadEnvOverrides(k); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.k = k
	cfg.Logging.SettingsPath = resolvedPath

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveSettingsPath(settingsPath string) (string, bool, error) {
	path := strings.TrimSpace(settingsPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envPrefix + "LOGGING_SETTINGS_PATH"))
	}
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat settings document: %w", err)
		}
		return expanded, !info.IsDir(), nil
	}

	defaultPath, err := DefaultSettingsPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return tomlParser{}, nil
	case ".yaml", ".yml":
		return kyaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	}
	return nil, fmt.Errorf("settings document %s: unsupported format (want .toml, .yaml, or .json)", path)
}

// loadEnvOverrides maps RUNLOG_ variables back onto dotted keys by matching
// against the keys the lower layers already define. Matching by known key
// keeps multi-word leaves like log_prints intact, which a naive underscore
// to dot replacement would split. Per-logger overrides are the exception:
// RUNLOG_LOGGING_LOGGERS_<NAME>_LEVEL is accepted even for loggers no lower
// layer names, with a double underscore standing in for a dot in the logger
// name.
func loadEnvOverrides(k *koanf.Koanf) error {
	known := make(map[string]string)
	for _, key := range k.Keys() {
		envName := envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		known[envName] = key
	}
	loggersPrefix := envPrefix + "LOGGING_LOGGERS_"
	return k.Load(env.Provider(envPrefix, ".", func(name string) string {
		if key, ok := known[name]; ok {
			return key
		}
		if rest, ok := strings.CutPrefix(name, loggersPrefix); ok {
			if logger, ok := strings.CutSuffix(rest, "_LEVEL"); ok && logger != "" {
				logger = strings.ToLower(strings.ReplaceAll(logger, "__", "."))
				return "logging.loggers." + logger + ".level"
			}
		}
		return ""
	}), nil)
}

func (c *Config) normalize() error {
	dir, err := ExpandPath(c.Logging.Archive.Dir)
	if err != nil {
		return fmt.Errorf("resolve archive dir: %w", err)
	}
	c.Logging.Archive.Dir = dir
	c.Logging.Loggers = collectLoggers(c.k.Get("logging.loggers"))
	return nil
}

// collectLoggers rebuilds the per-logger override map from the raw overlay.
// Logger names contain dots, which the overlay's flattening splits into
// nested maps; walking back down restores the original names.
func collectLoggers(raw any) map[string]Logger {
	out := make(map[string]Logger)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for key, value := range node {
			name := key
			if prefix != "" {
				name = prefix + "." + key
			}
			child, ok := value.(map[string]any)
			if !ok {
				continue
			}
			if level, ok := child["level"].(string); ok {
				out[name] = Logger{Level: level}
			}
			walk(name, child)
		}
	}
	if node, ok := raw.(map[string]any); ok {
		walk("", node)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
