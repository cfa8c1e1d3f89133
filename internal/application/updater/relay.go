package updater

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// relay receives transport callbacks for one session and forwards them
// to the observers in order. Callbacks after the terminal one are dropped.
type relay struct {
	c        *Coordinator
	ctx      context.Context
	cfg      *update.Config
	session  *update.Session
	observer update.Observer
	limiter  *rate.Limiter

	// guarded by c.mu
	transportStarted bool
	cancelRequested  bool

	mu sync.Mutex
}

func (r *relay) OnStart(url string) {
	r.mu.Lock()
	if r.session.Terminated() || r.session.Started() {
		r.mu.Unlock()
		return
	}
	r.session.MarkStarted()
	r.observer.OnStart(url)
	r.mu.Unlock()

	// A Cancel racing the transport's own setup is forwarded again now
	// that the fetch is registered.
	if r.c.cancelPending(r) {
		r.c.transport.Cancel()
	}
}

func (r *relay) OnProgress(progress, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session.Terminated() || !r.session.Started() {
		return
	}
	if total <= 0 {
		r.c.logger.Debug("progress of unknown size", zap.Int64("progress", progress))
		return
	}

	// The limiter only gates recomputing the percentage. Every tick with a
	// known size reaches the observers.
	now := r.c.now()
	changed := false
	if r.limiter.AllowN(now, 1) || progress == total {
		_, changed = r.session.RecordProgress(progress, total, now)
	}
	r.observer.OnProgress(progress, total, changed)
}

func (r *relay) OnFinish(file string) {
	r.end(update.Outcome{Kind: update.OutcomeFinished, File: file})
}

func (r *relay) OnError(err error) {
	allowed := r.session.RetryAllowed()
	r.end(update.Outcome{
		Kind:         update.OutcomeFailed,
		Err:          &update.TransportError{URL: r.cfg.URL, Err: err, RetryAllowed: allowed},
		RetryAllowed: allowed,
	})
}

func (r *relay) OnCancel() {
	r.end(update.Outcome{Kind: update.OutcomeCancelled})
}

func (r *relay) end(out update.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch out.Kind {
	case update.OutcomeFinished:
		err = r.session.Finish()
	case update.OutcomeFailed:
		err = r.session.Fail()
	case update.OutcomeCancelled:
		err = r.session.Cancel()
	}
	if err != nil {
		r.c.logger.Debug("dropping late callback",
			zap.String("session_id", r.session.ID().String()),
			zap.String("outcome", string(out.Kind)),
		)
		return
	}

	logger := r.c.logger.With(
		zap.String("session_id", r.session.ID().String()),
		zap.String("url", r.cfg.URL),
	)

	switch out.Kind {
	case update.OutcomeFinished:
		logger.Info("update finished", zap.String("file", out.File))
		r.c.release(r)
		r.c.install(r.ctx, r.cfg, out.File)
		r.observer.OnFinish(out.File)

	case update.OutcomeFailed:
		logger.Error("update failed", zap.Error(out.Err), zap.Bool("retry_allowed", out.RetryAllowed))
		r.c.release(r)
		r.observer.OnError(out.Err, out.RetryAllowed)

	case update.OutcomeCancelled:
		logger.Info("update cancelled")
		if file := r.session.File(); r.cfg.DeleteCancelFile && file != "" {
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove cancelled download", zap.String("file", file), zap.Error(err))
			}
		}
		r.c.release(r)
		r.observer.OnCancel()
	}

	_ = r.session.Close()
}
