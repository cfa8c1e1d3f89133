package updater

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// ErrSessionInProgress is returned by Run when another session holds the guard.
var ErrSessionInProgress = errors.New("update session already in progress")

// Updater wraps the Coordinator with retry bookkeeping and session history.
type Updater struct {
	coordinator *Coordinator
	retries     update.RetryStore
	history     update.SessionRepository
	logger      *zap.Logger
}

// NewUpdater creates a new updater. retries and history may be nil.
func NewUpdater(coordinator *Coordinator, retries update.RetryStore, history update.SessionRepository, logger *zap.Logger) *Updater {
	return &Updater{
		coordinator: coordinator,
		retries:     retries,
		history:     history,
		logger:      logger.Named("updater"),
	}
}

// Start starts a session using the stored retry count for cfg.URL. It
// returns once the coordinator's Start returns.
func (u *Updater) Start(ctx context.Context, cfg *update.Config, observer update.Observer) error {
	if cfg == nil {
		return update.ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	count := u.retryCount(ctx, cfg.URL)
	observers := update.Observers{newRecorder(ctx, cfg.URL, count, u.retries, u.history, u.logger)}
	if observer != nil {
		observers = append(observers, observer)
	}

	return u.coordinator.Start(ctx, cfg, WithRetryCount(count), WithSessionObserver(observers))
}

// Run starts a session and waits for its outcome. Cancelling ctx cancels
// the session; Run still waits for the terminal event.
func (u *Updater) Run(ctx context.Context, cfg *update.Config, observer update.Observer) (*update.Outcome, error) {
	outcome := make(chan update.Outcome, 1)
	rejected := make(chan struct{}, 1)
	var owned atomic.Bool

	waiter := update.ObserverFuncs{
		Downloading: func(alreadyInProgress bool) {
			if alreadyInProgress {
				rejected <- struct{}{}
				return
			}
			owned.Store(true)
		},
		Finish: func(file string) {
			owned.Store(false)
			outcome <- update.Outcome{Kind: update.OutcomeFinished, File: file}
		},
		Error: func(err error, retryAllowed bool) {
			owned.Store(false)
			outcome <- update.Outcome{Kind: update.OutcomeFailed, Err: err, RetryAllowed: retryAllowed}
		},
		Cancel: func() {
			owned.Store(false)
			outcome <- update.Outcome{Kind: update.OutcomeCancelled}
		},
	}

	observers := update.Observers{waiter}
	if observer != nil {
		observers = update.Observers{observer, waiter}
	}

	// Transports may block inside Start, so ctx is watched separately.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			if owned.Load() {
				u.logger.Info("context done, cancelling session", zap.Error(ctx.Err()))
				u.coordinator.Cancel()
			}
		case <-stop:
		}
	}()

	if err := u.Start(ctx, cfg, observers); err != nil {
		return nil, err
	}

	select {
	case <-rejected:
		return nil, ErrSessionInProgress
	case out := <-outcome:
		return &out, nil
	}
}

// Retry increments the stored retry count for cfg.URL and runs the session again.
func (u *Updater) Retry(ctx context.Context, cfg *update.Config, observer update.Observer) (*update.Outcome, error) {
	if cfg == nil {
		return nil, update.ErrNilConfig
	}
	if u.retries != nil {
		count, err := u.retries.IncrementRetry(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to increment retry count: %w", err)
		}
		u.logger.Info("retrying update", zap.String("url", cfg.URL), zap.Int("retry_count", count))
	}
	return u.Run(ctx, cfg, observer)
}

// Stop cancels the running session, if any.
func (u *Updater) Stop() {
	u.coordinator.Cancel()
}

// Coordinator returns the underlying coordinator.
func (u *Updater) Coordinator() *Coordinator {
	return u.coordinator
}

// History returns the most recent sessions, newest first.
func (u *Updater) History(ctx context.Context, limit int) ([]*update.SessionRecord, error) {
	if u.history == nil {
		return nil, nil
	}
	return u.history.List(ctx, limit)
}

func (u *Updater) retryCount(ctx context.Context, url string) int {
	if u.retries == nil {
		return 0
	}
	count, err := u.retries.RetryCount(ctx, url)
	if err != nil {
		u.logger.Warn("failed to read retry count", zap.String("url", url), zap.Error(err))
		return 0
	}
	return count
}
