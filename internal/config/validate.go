package config

import (
	"fmt"
	"strings"

	"runlog/internal/logging"
)

var validLevels = map[string]struct{}{
	"debug":    {},
	"info":     {},
	"warn":     {},
	"warning":  {},
	"error":    {},
	"critical": {},
}

var validShippingClasses = []string{"api", "archive"}

// Validate checks the merged configuration. Errors here abort startup so a
// bad template or style never surfaces mid-run.
func (c *Config) Validate() error {
	if err := checkLevel("logging.root.level", c.Logging.Root.Level); err != nil {
		return err
	}
	for name, logger := range c.Logging.Loggers {
		if err := checkLevel(fmt.Sprintf("logging.loggers.%s.level", name), logger.Level); err != nil {
			return err
		}
	}
	if err := checkLevel("logging.handlers.console.level", c.Logging.Handlers.Console.Level); err != nil {
		return err
	}
	if err := checkLevel("logging.handlers.shipping.level", c.Logging.Handlers.Shipping.Level); err != nil {
		return err
	}

	if _, err := logging.NewFormatter(c.Logging.Formatters.Console.Format, logging.ScopeFlow); err != nil {
		return fmt.Errorf("logging.formatters.console.format: %w", err)
	}
	if _, err := logging.NewFormatter(c.Logging.Formatters.Console.TaskFormat, logging.ScopeTask); err != nil {
		return fmt.Errorf("logging.formatters.console.task_format: %w", err)
	}

	for i, style := range c.Logging.Handlers.Console.Styles {
		if _, err := logging.CompileRule(style.Pattern, style.Style); err != nil {
			return fmt.Errorf("logging.handlers.console.styles[%d]: %w", i, err)
		}
	}

	ship := c.Logging.Handlers.Shipping
	if !isKnownClass(ship.Class) {
		return fmt.Errorf("logging.handlers.shipping.class: unknown class %q (known: %s)",
			ship.Class, strings.Join(validShippingClasses, ", "))
	}
	if ship.Class == "api" && strings.TrimSpace(ship.URL) == "" {
		return fmt.Errorf("logging.handlers.shipping.url: required when class is %q", ship.Class)
	}
	if ship.QueueSize < 1 {
		return fmt.Errorf("logging.handlers.shipping.queue_size: must be at least 1, got %d", ship.QueueSize)
	}
	if ship.MaxBatch < 1 {
		return fmt.Errorf("logging.handlers.shipping.max_batch: must be at least 1, got %d", ship.MaxBatch)
	}
	if ship.FlushInterval <= 0 {
		return fmt.Errorf("logging.handlers.shipping.flush_interval: must be positive, got %s", ship.FlushInterval)
	}
	if ship.MaxRetries < 0 {
		return fmt.Errorf("logging.handlers.shipping.max_retries: must not be negative, got %d", ship.MaxRetries)
	}
	if ship.RetryBackoff < 0 {
		return fmt.Errorf("logging.handlers.shipping.retry_backoff: must not be negative, got %s", ship.RetryBackoff)
	}
	if ship.CloseGrace <= 0 {
		return fmt.Errorf("logging.handlers.shipping.close_grace: must be positive, got %s", ship.CloseGrace)
	}

	if ship.Class == "archive" && strings.TrimSpace(c.Logging.Archive.Dir) == "" {
		return fmt.Errorf("logging.archive.dir: required when shipping class is %q", ship.Class)
	}
	return nil
}

func checkLevel(key, level string) error {
	trimmed := strings.ToLower(strings.TrimSpace(level))
	if trimmed == "" {
		return nil
	}
	if _, ok := validLevels[trimmed]; !ok {
		return fmt.Errorf("%s: unknown level %q", key, level)
	}
	return nil
}

func isKnownClass(class string) bool {
	for _, known := range validShippingClasses {
		if class == known {
			return true
		}
	}
	return false
}
