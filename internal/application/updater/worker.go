package updater

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// Status describes the worker's current session.
type Status struct {
	Downloading bool   `json:"downloading"`
	URL         string `json:"url,omitempty"`
}

// Worker hosts the updater in a long-running process. Sessions run on
// goroutines owned by the worker and end when the worker shuts down.
type Worker struct {
	updater  *Updater
	observer update.Observer
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker. observer, if not nil, receives every session
// the worker runs.
func NewWorker(updater *Updater, observer update.Observer, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		updater:  updater,
		observer: observer,
		logger:   logger.Named("worker"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit starts a session in the background.
func (w *Worker) Submit(cfg *update.Config) error {
	return w.spawn(cfg, false)
}

// Retry increments the retry count for cfg and starts it in the background.
func (w *Worker) Retry(cfg *update.Config) error {
	return w.spawn(cfg, true)
}

func (w *Worker) spawn(cfg *update.Config, retry bool) error {
	if cfg == nil {
		return update.ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if w.ctx.Err() != nil {
		return w.ctx.Err()
	}
	if w.updater.Coordinator().IsDownloading() {
		return ErrSessionInProgress
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		run := w.updater.Run
		if retry {
			run = w.updater.Retry
		}
		out, err := run(w.ctx, cfg, w.observer)
		if err != nil {
			w.logger.Warn("session not started", zap.String("url", cfg.URL), zap.Error(err))
			return
		}
		w.logger.Info("session ended",
			zap.String("url", cfg.URL),
			zap.String("outcome", string(out.Kind)),
		)
	}()
	return nil
}

// Stop cancels the running session.
func (w *Worker) Stop() {
	w.updater.Stop()
}

// Status returns the current session state.
func (w *Worker) Status() Status {
	url, ok := w.updater.Coordinator().CurrentURL()
	return Status{Downloading: ok, URL: url}
}

// Shutdown cancels running sessions and waits for them to end or for ctx.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
