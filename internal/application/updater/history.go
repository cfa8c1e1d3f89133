package updater

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// recorder stores the outcome of one session and resets the retry count
// once the artifact was delivered or the user gave up.
type recorder struct {
	ctx     context.Context
	retries update.RetryStore
	history update.SessionRepository
	logger  *zap.Logger

	record  update.SessionRecord
	started bool
	active  bool
}

func newRecorder(ctx context.Context, url string, retryCount int, retries update.RetryStore, history update.SessionRepository, logger *zap.Logger) *recorder {
	return &recorder{
		// Outcomes are stored even when the session was cancelled through ctx.
		ctx:     context.WithoutCancel(ctx),
		retries: retries,
		history: history,
		logger:  logger,
		record: update.SessionRecord{
			ID:         uuid.New(),
			URL:        url,
			RetryCount: retryCount,
		},
	}
}

func (r *recorder) OnDownloading(alreadyInProgress bool) {
	if alreadyInProgress {
		return
	}
	r.active = true
	r.record.StartedAt = time.Now().UTC()
}

func (r *recorder) OnStart(string) {
	r.started = true
}

func (r *recorder) OnProgress(int64, int64, bool) {}

func (r *recorder) OnFinish(file string) {
	r.record.File = file
	r.record.FromCache = !r.started
	r.save(update.OutcomeFinished)
	r.reset()
}

func (r *recorder) OnError(err error, retryAllowed bool) {
	if err != nil {
		r.record.Error = err.Error()
	}
	r.record.RetryAllowed = retryAllowed
	r.save(update.OutcomeFailed)
}

func (r *recorder) OnCancel() {
	r.save(update.OutcomeCancelled)
	r.reset()
}

func (r *recorder) save(outcome update.OutcomeKind) {
	if !r.active || r.history == nil {
		return
	}
	r.record.Outcome = outcome
	r.record.EndedAt = time.Now().UTC()

	rec := r.record
	if err := r.history.Save(r.ctx, &rec); err != nil {
		r.logger.Warn("failed to save session history", zap.String("url", rec.URL), zap.Error(err))
	}
}

func (r *recorder) reset() {
	if r.retries == nil {
		return
	}
	if err := r.retries.ResetRetry(r.ctx, r.record.URL); err != nil {
		r.logger.Warn("failed to reset retry count", zap.String("url", r.record.URL), zap.Error(err))
	}
}
