package updater

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

func TestWorker_SubmitStopShutdown(t *testing.T) {
	tr := newBlockingTransport()
	u, _, history := newTestUpdater(t, tr, neverValid)
	ended := make(chan struct{}, 1)
	w := NewWorker(u, update.ObserverFuncs{Cancel: func() { ended <- struct{}{} }}, zaptest.NewLogger(t))

	assert.Equal(t, Status{}, w.Status())

	cfg := update.NewConfig("https://host/app.apk")
	require.NoError(t, w.Submit(cfg))
	tr.waitStarted()

	assert.Equal(t, Status{Downloading: true, URL: cfg.URL}, w.Status())
	assert.ErrorIs(t, w.Submit(cfg), ErrSessionInProgress)

	w.Stop()
	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("session was not cancelled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.Len(t, history.records, 1)
	assert.Error(t, w.Submit(cfg), "worker no longer accepts sessions")
}

func TestWorker_ShutdownCancelsRunningSession(t *testing.T) {
	tr := newBlockingTransport()
	u, _, history := newTestUpdater(t, tr, neverValid)
	w := NewWorker(u, nil, zaptest.NewLogger(t))

	require.NoError(t, w.Submit(update.NewConfig("https://host/app.apk")))
	tr.waitStarted()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))

	require.Len(t, history.records, 1)
	assert.Equal(t, update.OutcomeCancelled, history.records[0].Outcome)
}

func TestWorker_RetryAndValidation(t *testing.T) {
	u, retries, _ := newTestUpdater(t, &scriptedTransport{script: finishing(1)}, neverValid)
	w := NewWorker(u, nil, zaptest.NewLogger(t))

	assert.ErrorIs(t, w.Submit(nil), update.ErrNilConfig)
	assert.ErrorIs(t, w.Retry(update.NewConfig("")), update.ErrEmptyURL)

	require.NoError(t, w.Retry(update.NewConfig("https://host/app.apk")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))
	assert.Equal(t, 1, retries.resets, "finish resets the counter incremented by Retry")
}
