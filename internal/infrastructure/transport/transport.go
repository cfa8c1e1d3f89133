package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// copyBufferSize is the buffer used when streaming artifacts to disk.
const copyBufferSize = 32 * 1024

// inflight tracks the cancel function of the running fetch.
type inflight struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// begin derives a cancelable context for a new fetch. The returned func
// must be called when the fetch ends.
func (f *inflight) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		f.cancel = nil
		f.mu.Unlock()
		cancel()
	}
}

func (f *inflight) abort() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (f *inflight) active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

// progressWriter reports every write to the callback.
type progressWriter struct {
	writer  io.Writer
	cb      update.Callback
	total   int64
	written int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if n > 0 {
		pw.written += int64(n)
		pw.cb.OnProgress(pw.written, pw.total)
	}
	return n, err
}

// writeFile streams src into dest, reporting progress against total.
func writeFile(ctx context.Context, dest string, src io.Reader, total int64, cb update.Callback) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	pw := &progressWriter{writer: file, cb: cb, total: total}
	written, copyErr := io.CopyBuffer(pw, &contextReader{ctx: ctx, r: src}, make([]byte, copyBufferSize))
	closeErr := file.Close()

	if copyErr != nil {
		return fmt.Errorf("download failed after %d bytes: %w", written, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	if total > 0 && written != total {
		return fmt.Errorf("short download: got %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF)
	}
	return nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// report delivers the terminal callback for a fetch that ended with err.
// A canceled fetch context is a cancellation, never an error.
func report(ctx context.Context, cb update.Callback, dest string, err error) {
	switch {
	case err == nil:
		cb.OnFinish(dest)
	case errors.Is(ctx.Err(), context.Canceled):
		cb.OnCancel()
	default:
		cb.OnError(err)
	}
}
