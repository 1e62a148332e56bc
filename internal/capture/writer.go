package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type writerKey struct{}

type fallbackKey struct{}

// WithWriter injects the active output writer into the context scope.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	if w == nil {
		return ctx
	}
	return context.WithValue(ctx, writerKey{}, w)
}

// WithFallback records the uncaptured destination so nested scopes that turn
// capture off can restore it.
func WithFallback(ctx context.Context, w io.Writer) context.Context {
	if w == nil {
		return ctx
	}
	return context.WithValue(ctx, fallbackKey{}, w)
}

// Output returns the scope's output writer, defaulting to os.Stdout outside
// any capture scope.
func Output(ctx context.Context) io.Writer {
	if ctx != nil {
		if w, ok := ctx.Value(writerKey{}).(io.Writer); ok && w != nil {
			return w
		}
	}
	return os.Stdout
}

// Fallback returns the innermost uncaptured destination, defaulting to
// os.Stdout.
func Fallback(ctx context.Context) io.Writer {
	if ctx != nil {
		if w, ok := ctx.Value(fallbackKey{}).(io.Writer); ok && w != nil {
			return w
		}
	}
	return os.Stdout
}

// Print writes to the scope's output writer.
func Print(ctx context.Context, args ...any) {
	fmt.Fprint(Output(ctx), args...)
}

// Printf writes a formatted line to the scope's output writer.
func Printf(ctx context.Context, format string, args ...any) {
	fmt.Fprintf(Output(ctx), format, args...)
}

// Println writes to the scope's output writer with a trailing newline.
func Println(ctx context.Context, args ...any) {
	fmt.Fprintln(Output(ctx), args...)
}

// Writer forwards written text into a logger as INFO records, one per line.
// An optional echo writer additionally receives the raw bytes. Close flushes
// any buffered partial line; it must run on every scope exit path.
type Writer struct {
	mu     sync.Mutex
	logger *slog.Logger
	echo   io.Writer
	buf    bytes.Buffer
	closed bool
}

// New builds a capture writer emitting through logger. echo may be nil to
// suppress the original destination entirely.
func New(logger *slog.Logger, echo io.Writer) *Writer {
	return &Writer{logger: logger, echo: echo}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}

	if w.echo != nil {
		if _, err := w.echo.Write(p); err != nil {
			return 0, err
		}
	}

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Close flushes the buffered partial line and disables the writer. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.buf.Len() > 0 {
		w.emit(strings.TrimRight(w.buf.String(), "\r\n"))
		w.buf.Reset()
	}
	return nil
}

func (w *Writer) emit(line string) {
	if w.logger == nil || line == "" {
		return
	}
	w.logger.Info(line)
}
