package updater

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// eventLog records observer callbacks as strings.
type eventLog struct {
	mu     sync.Mutex
	events []string
	errs   []error
	hooks  update.ObserverFuncs
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) OnDownloading(alreadyInProgress bool) {
	l.add("downloading:%t", alreadyInProgress)
	l.hooks.OnDownloading(alreadyInProgress)
}

func (l *eventLog) OnStart(url string) {
	l.add("start")
	l.hooks.OnStart(url)
}

func (l *eventLog) OnProgress(progress, total int64, isChanged bool) {
	l.add("progress:%d/%d:%t", progress, total, isChanged)
	l.hooks.OnProgress(progress, total, isChanged)
}

func (l *eventLog) OnFinish(file string) {
	l.add("finish:%s", file)
	l.hooks.OnFinish(file)
}

func (l *eventLog) OnError(err error, retryAllowed bool) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
	l.add("error:%t", retryAllowed)
	l.hooks.OnError(err, retryAllowed)
}

func (l *eventLog) OnCancel() {
	l.add("cancel")
	l.hooks.OnCancel()
}

// scriptedTransport runs script synchronously inside Download.
type scriptedTransport struct {
	calls   atomic.Int32
	cancels atomic.Int32
	script  func(ctx context.Context, url, dest string, cb update.Callback)
}

func (t *scriptedTransport) Download(ctx context.Context, url, dest string, headers map[string]string, cb update.Callback) {
	t.calls.Add(1)
	if t.script != nil {
		t.script(ctx, url, dest, cb)
	}
}

func (t *scriptedTransport) Cancel() {
	t.cancels.Add(1)
}

// finishing returns a script that reports start, full progress and finish.
func finishing(size int64) func(context.Context, string, string, update.Callback) {
	return func(_ context.Context, url, dest string, cb update.Callback) {
		cb.OnStart(url)
		cb.OnProgress(size, size)
		cb.OnFinish(dest)
	}
}

// blockingTransport reports start and then waits for Cancel or release.
type blockingTransport struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	cancel  chan struct{}
	once    sync.Once
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		cancel:  make(chan struct{}),
	}
}

func (t *blockingTransport) Download(ctx context.Context, url, dest string, headers map[string]string, cb update.Callback) {
	t.calls.Add(1)
	cb.OnStart(url)
	_ = writeTestFile(dest, "partial")
	t.started <- struct{}{}

	select {
	case <-t.release:
		cb.OnFinish(dest)
	case <-t.cancel:
		cb.OnCancel()
	}
}

func (t *blockingTransport) Cancel() {
	t.once.Do(func() { close(t.cancel) })
}

func (t *blockingTransport) waitStarted() {
	select {
	case <-t.started:
	case <-time.After(5 * time.Second):
		panic("transport was not started")
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedDir string

func (d fixedDir) CacheDir() (string, error) { return string(d), nil }

type fixedHost struct {
	pkg, app string
}

func (h fixedHost) PackageName() string { return h.pkg }
func (h fixedHost) AppName() string     { return h.app }

type validatorFunc func(cfg *update.Config, file string) bool

func (f validatorFunc) Validate(cfg *update.Config, file string) bool { return f(cfg, file) }

var neverValid = validatorFunc(func(*update.Config, string) bool { return false })

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
