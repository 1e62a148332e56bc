package config

import "time"

const (
	defaultRootLevel     = "info"
	defaultConsoleFormat = "%(asctime)s | %(levelname)s | %(name)s - %(message)s"
	defaultTaskFormat    = "%(asctime)s | %(levelname)s | Task run %(task_run_name)s - %(message)s"
	defaultShippingClass = "archive"
	defaultQueueSize     = 2048
	defaultMaxBatch      = 100
	defaultFlushInterval = 2 * time.Second
	defaultMaxRetries    = 3
	defaultRetryBackoff  = 500 * time.Millisecond
	defaultCloseGrace    = 5 * time.Second
	defaultArchiveDir    = "~/.local/share/runlog/archive"
)

// Default returns the built-in configuration, the lowest overlay layer.
func Default() Config {
	return Config{
		Logging: Logging{
			Root: Root{Level: defaultRootLevel},
			Formatters: Formatters{
				Console: ConsoleFormats{
					Format:     defaultConsoleFormat,
					TaskFormat: defaultTaskFormat,
				},
			},
			Handlers: Handlers{
				Console: ConsoleHandler{
					Styles: []Style{
						{Pattern: `\bERROR\b`, Style: "bold red"},
						{Pattern: `\bWARN(ING)?\b`, Style: "yellow"},
					},
				},
				Shipping: ShippingHandler{
					Class:         defaultShippingClass,
					QueueSize:     defaultQueueSize,
					MaxBatch:      defaultMaxBatch,
					FlushInterval: defaultFlushInterval,
					MaxRetries:    defaultMaxRetries,
					RetryBackoff:  defaultRetryBackoff,
					CloseGrace:    defaultCloseGrace,
				},
			},
			Archive: Archive{Dir: defaultArchiveDir},
			Colors:  true,
		},
	}
}
