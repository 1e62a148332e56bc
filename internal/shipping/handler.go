package shipping

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"runlog/internal/logging"
)

// State reports the worker's position in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateAccumulating State = "accumulating"
	StateFlushing     State = "flushing"
	StateRetrying     State = "retrying"
	StateClosed       State = "closed"
)

// HandlerOptions bounds the queue, batching, and retry behavior.
type HandlerOptions struct {
	// Level is the minimum severity shipped. Defaults to all levels.
	Level slog.Leveler
	// QueueSize bounds the in-memory record queue.
	QueueSize int
	// MaxBatch caps records per delivery.
	MaxBatch int
	// FlushInterval caps how long a partial batch may wait.
	FlushInterval time.Duration
	// MaxRetries is the number of re-deliveries after a failed attempt.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled per retry.
	RetryBackoff time.Duration
	// CloseGrace bounds the best-effort flush during Close.
	CloseGrace time.Duration
}

func (o HandlerOptions) withDefaults() HandlerOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = 2048
	}
	if o.MaxBatch <= 0 {
		o.MaxBatch = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = 5 * time.Second
	}
	return o
}

// Handler is the slog sink feeding the shipping worker. Emitting never
// blocks: when the queue is full the incoming record is dropped (drop-newest)
// and the loss is reported through the diagnostic logger as a coalesced
// record-loss event on the next drain cycle. Drop-newest keeps the delivery
// order of already-accepted records intact under overload.
type Handler struct {
	core  *core
	attrs []slog.Attr
}

type core struct {
	opts      HandlerOptions
	deliverer Deliverer
	diag      *slog.Logger

	queue    chan logging.Record
	done     chan struct{}
	finished chan struct{}

	overflow  atomic.Uint64
	state     atomic.Value
	closeOnce sync.Once
}

// NewHandler starts the background worker and returns the emitting handler.
// diag receives local record-loss diagnostics; it must not route back into
// this handler.
func NewHandler(deliverer Deliverer, diag *slog.Logger, opts HandlerOptions) *Handler {
	if diag == nil {
		diag = logging.NewNop()
	}
	c := &core{
		opts:      opts.withDefaults(),
		deliverer: deliverer,
		diag:      diag,
		queue:     make(chan logging.Record, opts.withDefaults().QueueSize),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
	c.state.Store(StateIdle)
	go c.run()
	return &Handler{core: c}
}

// State returns the worker's current lifecycle state.
func (h *Handler) State() State {
	return h.core.state.Load().(State)
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if h.core.opts.Level == nil {
		return true
	}
	return level >= h.core.opts.Level.Level()
}

// Handle converts and enqueues the record. Never blocks.
func (h *Handler) Handle(_ context.Context, record slog.Record) error {
	rec := logging.NewRecord(record, h.attrs)
	select {
	case h.core.queue <- rec:
	default:
		h.core.overflow.Add(1)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{core: h.core, attrs: merged}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	// Shipping flattens groups; record fields keep their leaf keys.
	return h
}

// Close flushes queued records best effort and stops the worker. The flush is
// bounded by CloseGrace so process exit is never stalled by an unreachable
// store; whatever remains afterwards is discarded.
func (h *Handler) Close(ctx context.Context) error {
	c := h.core
	c.closeOnce.Do(func() { close(c.done) })

	grace := time.NewTimer(c.opts.CloseGrace)
	defer grace.Stop()
	select {
	case <-c.finished:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.DeadlineExceeded
}

func (c *core) run() {
	defer close(c.finished)
	defer c.state.Store(StateClosed)

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	var batch []logging.Record
	for {
		select {
		case rec := <-c.queue:
			c.state.Store(StateAccumulating)
			batch = append(batch, rec)
			if len(batch) >= c.opts.MaxBatch {
				c.flush(context.Background(), batch, true)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.flush(context.Background(), batch, true)
				batch = nil
			} else {
				c.reportOverflow()
				c.state.Store(StateIdle)
			}
		case <-c.done:
			c.shutdownFlush(batch)
			return
		}
	}
}

// shutdownFlush drains what it can within the close grace period. Remaining
// failures are reported once and the records discarded.
func (c *core) shutdownFlush(batch []logging.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.CloseGrace)
	defer cancel()

	for {
		select {
		case rec := <-c.queue:
			batch = append(batch, rec)
			if len(batch) >= c.opts.MaxBatch {
				c.flush(ctx, batch, false)
				batch = nil
			}
			continue
		default:
		}
		break
	}
	if len(batch) > 0 {
		c.flush(ctx, batch, false)
	}
	c.reportOverflow()
}

// flush attempts delivery with capped exponential backoff. Delivery failure
// is never surfaced to emitters: exhausted batches are dropped and reported
// through the diagnostic logger.
func (c *core) flush(ctx context.Context, batch []logging.Record, retry bool) {
	c.state.Store(StateFlushing)
	defer c.state.Store(StateIdle)

	attempts := 1
	if retry {
		attempts += c.opts.MaxRetries
	}

	var lastErr error
	backoff := c.opts.RetryBackoff
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.state.Store(StateRetrying)
			wait := time.NewTimer(backoff)
			select {
			case <-wait.C:
			case <-ctx.Done():
				wait.Stop()
				c.reportLoss("delivery cancelled", len(batch), ctx.Err())
				return
			}
			wait.Stop()
			backoff *= 2
		}
		if lastErr = c.deliverer.Deliver(ctx, batch); lastErr == nil {
			c.reportOverflow()
			return
		}
	}
	c.reportLoss("retries exhausted", len(batch), lastErr)
}

func (c *core) reportOverflow() {
	if dropped := c.overflow.Swap(0); dropped > 0 {
		c.reportLoss("queue overflow", int(dropped), nil)
	}
}

func (c *core) reportLoss(reason string, count int, err error) {
	attrs := []logging.Attr{
		logging.String("event", "record_loss"),
		logging.String("reason", reason),
		logging.Int("count", count),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	c.diag.Warn("log records lost", logging.Args(attrs...)...)
}
