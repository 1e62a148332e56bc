package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"runlog/internal/archive"
	"runlog/internal/capture"
	"runlog/internal/config"
	"runlog/internal/logging"
	"runlog/internal/run"
	"runlog/internal/shipping"
)

// ErrNoActiveRun means the context carries no run identity chain.
var ErrNoActiveRun = errors.New("no active run in context")

// Logger names used for run-scoped records.
const (
	FlowRunLogger = "runlog.flow_runs"
	TaskRunLogger = "runlog.task_runs"
)

// diagLoggerName labels shipping diagnostics such as record-loss events.
const diagLoggerName = "runlog.shipping"

// Options tunes service construction beyond what configuration covers.
type Options struct {
	// ConsoleWriter receives rendered console lines. Defaults to stderr.
	ConsoleWriter io.Writer
	// ForceColors enables color output even when the writer is not a
	// terminal.
	ForceColors bool
	// Deliverers supplies extra shipping classes. The built-in "api" and
	// "archive" classes are registered unless already present.
	Deliverers *shipping.Registry
}

// Service is the assembled logging pipeline.
type Service struct {
	cfg       *config.Config
	registry  *run.Registry
	console   slog.Handler
	ship      *shipping.Handler
	deliverer shipping.Deliverer
	diag      *slog.Logger
	extra     map[string]struct{}
}

// New builds the pipeline from validated configuration.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires configuration")
	}

	writer := opts.ConsoleWriter
	if writer == nil {
		writer = os.Stderr
	}
	colors := cfg.Logging.Colors && (opts.ForceColors || isTerminal(writer))
	if colors {
		text.EnableColors()
	}

	flowFormat, err := logging.NewFormatter(cfg.Logging.Formatters.Console.Format, logging.ScopeFlow)
	if err != nil {
		return nil, err
	}
	taskFormat, err := logging.NewFormatter(cfg.Logging.Formatters.Console.TaskFormat, logging.ScopeTask)
	if err != nil {
		return nil, err
	}

	rules := make([]logging.StyleRule, 0, len(cfg.Logging.Handlers.Console.Styles))
	for _, style := range cfg.Logging.Handlers.Console.Styles {
		rule, err := logging.CompileRule(style.Pattern, style.Style)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(logging.ParseLevel(firstNonEmpty(cfg.Logging.Handlers.Console.Level, cfg.Logging.Root.Level)))

	console := logging.NewConsoleHandler(writer, logging.ConsoleOptions{
		Level:       consoleLevel,
		FlowFormat:  flowFormat,
		TaskFormat:  taskFormat,
		Highlighter: logging.NewHighlighter(rules),
		Colors:      colors,
		Markup:      cfg.Logging.Markup,
	})

	// Diagnostics stay local. Routing them through shipping would turn a
	// failing deliverer into a feedback loop.
	diag := slog.New(console).With(logging.String(logging.FieldLogger, diagLoggerName))

	deliverers := opts.Deliverers
	if deliverers == nil {
		deliverers = shipping.NewDelivererRegistry()
	}
	registerBuiltins(deliverers)

	shipCfg := cfg.Logging.Handlers.Shipping
	deliverer, err := deliverers.New(shipCfg.Class, shipping.DelivererOptions{
		URL:     shipCfg.URL,
		APIKey:  shipCfg.APIKey,
		Dir:     cfg.Logging.Archive.Dir,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	ship := shipping.NewHandler(deliverer, diag, shipping.HandlerOptions{
		Level:         logging.ParseLevel(firstNonEmpty(shipCfg.Level, cfg.Logging.Root.Level)),
		QueueSize:     shipCfg.QueueSize,
		MaxBatch:      shipCfg.MaxBatch,
		FlushInterval: shipCfg.FlushInterval,
		MaxRetries:    shipCfg.MaxRetries,
		RetryBackoff:  shipCfg.RetryBackoff,
		CloseGrace:    shipCfg.CloseGrace,
	})

	extra := make(map[string]struct{})
	for _, name := range cfg.ExtraLoggerNames() {
		extra[name] = struct{}{}
	}

	return &Service{
		cfg:       cfg,
		registry:  run.NewRegistry(run.Defaults{run.SettingLogPrints: cfg.Logging.LogPrints}),
		console:   console,
		ship:      ship,
		deliverer: deliverer,
		diag:      diag,
		extra:     extra,
	}, nil
}

func registerBuiltins(registry *shipping.Registry) {
	if !registry.Has("api") {
		registry.Register("api", func(opts shipping.DelivererOptions) (shipping.Deliverer, error) {
			return shipping.NewAPIDeliverer(opts.URL, opts.APIKey, opts.Timeout)
		})
	}
	if !registry.Has("archive") {
		registry.Register("archive", func(opts shipping.DelivererOptions) (shipping.Deliverer, error) {
			return archive.Open(opts.Dir)
		})
	}
}

// Registry exposes the run registry for effective-setting queries.
func (s *Service) Registry() *run.Registry { return s.registry }

// ShippingState reports the shipping worker's lifecycle state.
func (s *Service) ShippingState() shipping.State { return s.ship.State() }

// RunScope releases everything EnterRun acquired: the registry entry and,
// when print capture is active, the capture writer.
type RunScope struct {
	scope  *run.Scope
	writer *capture.Writer
}

// RunID identifies the run this scope guards.
func (s *RunScope) RunID() uuid.UUID { return s.scope.RunID() }

// Exit flushes any captured partial print line and releases the run. Safe to
// call more than once.
func (s *RunScope) Exit() {
	if s == nil {
		return
	}
	if s.writer != nil {
		_ = s.writer.Close()
	}
	s.scope.Exit()
}

// EnterRun registers the run, pushes it onto the context's identity chain,
// and, when the run's effective log_prints is true, routes print output from
// the returned context into the pipeline as INFO records.
func (s *Service) EnterRun(ctx context.Context, identity run.Identity, opts run.EnterOptions) (context.Context, *RunScope, error) {
	runCtx, scope, err := s.registry.Enter(ctx, identity, opts)
	if err != nil {
		return ctx, nil, err
	}

	rs := &RunScope{scope: scope}
	if s.registry.Effective(scope.RunID(), run.SettingLogPrints) {
		logger, err := s.RunLogger(runCtx)
		if err != nil {
			scope.Exit()
			return ctx, nil, err
		}
		base := capture.Fallback(ctx)
		if out := capture.Output(ctx); out != nil {
			if _, isCapture := out.(*capture.Writer); !isCapture {
				base = out
			}
		}
		var echo io.Writer
		if s.cfg.Logging.LogPrintsEcho {
			echo = base
		}
		rs.writer = capture.New(logger, echo)
		runCtx = capture.WithFallback(runCtx, base)
		runCtx = capture.WithWriter(runCtx, rs.writer)
	} else if _, captured := capture.Output(ctx).(*capture.Writer); captured {
		// An ancestor run captures prints but this run turned it off.
		// Restore the uncaptured destination for the run's scope.
		runCtx = capture.WithWriter(runCtx, capture.Fallback(ctx))
	}
	return runCtx, rs, nil
}

// RunLogger returns a logger attributed to the context's innermost run.
// Records inside a task run carry both task and owning flow attribution.
func (s *Service) RunLogger(ctx context.Context) (*slog.Logger, error) {
	chain, ok := run.Chain(ctx)
	if !ok || len(chain) == 0 {
		return nil, ErrNoActiveRun
	}

	var flow, task *run.Identity
	for i := len(chain) - 1; i >= 0; i-- {
		identity := chain[i]
		if identity.IsTask() {
			if task == nil {
				task = &identity
			}
			continue
		}
		if flow == nil {
			flow = &identity
		}
	}
	if flow == nil && task != nil && task.ParentID != uuid.Nil {
		// Task entered on a fresh context: recover the owning flow from the
		// registry so the record still carries both attributions.
		if parent, ok := s.registry.Identity(task.ParentID); ok && !parent.IsTask() {
			flow = &parent
		}
	}

	name := FlowRunLogger
	if task != nil {
		name = TaskRunLogger
	}

	attrs := []any{logging.String(logging.FieldLogger, name)}
	if flow != nil {
		attrs = append(attrs,
			logging.String(logging.FieldFlowRunID, flow.ID.String()),
			logging.String(logging.FieldFlowRunName, flow.Name),
			logging.String(logging.FieldFlowName, flow.DefName),
		)
	}
	if task != nil {
		attrs = append(attrs,
			logging.String(logging.FieldTaskRunID, task.ID.String()),
			logging.String(logging.FieldTaskRunName, task.Name),
			logging.String(logging.FieldTaskName, task.DefName),
		)
	}

	logger := slog.New(logging.NewFanout(s.console, s.ship)).With(attrs...)
	return s.applyOverride(logger, name), nil
}

// Logger returns a named component logger. Records go to the console only,
// unless the name is listed in logging.extra_loggers, in which case they are
// also shipped without run attribution.
func (s *Service) Logger(name string) *slog.Logger {
	handler := s.console
	if _, ok := s.extra[name]; ok {
		handler = logging.NewFanout(s.console, s.ship)
	}
	logger := slog.New(handler).With(logging.String(logging.FieldLogger, name))
	return s.applyOverride(logger, name)
}

func (s *Service) applyOverride(logger *slog.Logger, name string) *slog.Logger {
	if levelName, ok := s.cfg.LoggerLevel(name); ok {
		return logging.WithLevelOverride(logger, logging.ParseLevel(levelName))
	}
	return logger
}

// Print writes through the context's capture writer, or stdout outside runs.
func (s *Service) Print(ctx context.Context, args ...any) { capture.Print(ctx, args...) }

// Printf formats through the context's capture writer.
func (s *Service) Printf(ctx context.Context, format string, args ...any) {
	capture.Printf(ctx, format, args...)
}

// Println writes a line through the context's capture writer.
func (s *Service) Println(ctx context.Context, args ...any) { capture.Println(ctx, args...) }

// Close flushes the shipping queue within its grace period and releases the
// deliverer. Call once at process exit.
func (s *Service) Close(ctx context.Context) error {
	err := s.ship.Close(ctx)
	if closer, ok := s.deliverer.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
