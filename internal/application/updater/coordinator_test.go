package updater

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/cache"
)

const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Install(ctx context.Context, file, authority string) error {
	args := m.Called(ctx, file, authority)
	return args.Error(0)
}

func newTestCoordinator(t *testing.T, tr update.Transport, v CacheValidator, opts ...Option) (*Coordinator, string) {
	t.Helper()
	dir := t.TempDir()
	base := []Option{
		WithCacheDir(fixedDir(dir)),
		WithHost(fixedHost{pkg: "com.example.app", app: "Example"}),
	}
	return NewCoordinator(tr, v, zaptest.NewLogger(t), append(base, opts...)...), dir
}

func TestStart_InvalidConfig(t *testing.T) {
	tr := &scriptedTransport{}
	c, _ := newTestCoordinator(t, tr, neverValid)
	log := &eventLog{}

	err := c.Start(context.Background(), update.NewConfig(""), WithSessionObserver(log))
	var cfgErr *update.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, update.ErrEmptyURL)

	assert.ErrorIs(t, c.Start(context.Background(), nil), update.ErrNilConfig)

	assert.Zero(t, tr.calls.Load())
	assert.Empty(t, log.Events())
	assert.False(t, c.IsDownloading())
}

func TestStart_FetchesAndInstalls(t *testing.T) {
	tr := &scriptedTransport{script: finishing(100)}
	launcher := new(mockLauncher)
	c, dir := newTestCoordinator(t, tr, neverValid, WithInstallLauncher(launcher))
	file := filepath.Join(dir, "app.apk")
	launcher.On("Install", mock.Anything, file, "com.example.app.fileProvider").Return(nil).Once()

	log := &eventLog{}
	err := c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"downloading:false",
		"start",
		"progress:100/100:true",
		"finish:" + file,
	}, log.Events())
	assert.Equal(t, int32(1), tr.calls.Load())
	assert.False(t, c.IsDownloading())
	launcher.AssertExpectations(t)
}

func TestStart_DropsCallbacksAfterTerminal(t *testing.T) {
	tr := &scriptedTransport{script: func(_ context.Context, url, dest string, cb update.Callback) {
		cb.OnProgress(1, 10)
		cb.OnStart(url)
		cb.OnStart(url)
		cb.OnFinish(dest)
		cb.OnError(errors.New("late"))
		cb.OnProgress(10, 10)
		cb.OnCancel()
		cb.OnStart(url)
	}}
	c, dir := newTestCoordinator(t, tr, neverValid)
	log := &eventLog{}

	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log)))

	assert.Equal(t, []string{
		"downloading:false",
		"start",
		"finish:" + filepath.Join(dir, "app.apk"),
	}, log.Events())
}

func TestStart_CacheHitSkipsTransport(t *testing.T) {
	tr := &scriptedTransport{script: finishing(1)}
	c, dir := newTestCoordinator(t, tr, cache.NewValidator(nil, nil, zaptest.NewLogger(t)))
	file := filepath.Join(dir, "app.apk")
	require.NoError(t, writeTestFile(file, ""))

	log := &eventLog{}
	cfg := update.NewConfig("http://host/app.apk").WithMD5(emptyMD5)
	require.NoError(t, c.Start(context.Background(), cfg, WithSessionObserver(log)))

	assert.Equal(t, []string{"downloading:false", "finish:" + file}, log.Events())
	assert.Zero(t, tr.calls.Load())
	assert.True(t, fileExists(file))
	assert.False(t, c.IsDownloading())
}

func TestStart_StaleFileDeletedBeforeFetch(t *testing.T) {
	var existedAtFetch bool
	tr := &scriptedTransport{script: func(ctx context.Context, url, dest string, cb update.Callback) {
		existedAtFetch = fileExists(dest)
		finishing(1)(ctx, url, dest, cb)
	}}
	c, dir := newTestCoordinator(t, tr, cache.NewValidator(nil, nil, zaptest.NewLogger(t)))
	file := filepath.Join(dir, "app.apk")
	require.NoError(t, writeTestFile(file, "stale"))

	cfg := update.NewConfig("http://host/app.apk").WithMD5(emptyMD5)
	require.NoError(t, c.Start(context.Background(), cfg))

	assert.Equal(t, int32(1), tr.calls.Load())
	assert.False(t, existedAtFetch)
}

func TestStart_PathOverridesCacheDir(t *testing.T) {
	tr := &scriptedTransport{script: finishing(1)}
	c, _ := newTestCoordinator(t, tr, neverValid)
	target := filepath.Join(t.TempDir(), "pinned")

	log := &eventLog{}
	cfg := update.NewConfig("https://host/app.apk").WithPath(target).WithFilename("update.apk")
	require.NoError(t, c.Start(context.Background(), cfg, WithSessionObserver(log)))

	events := log.Events()
	assert.Equal(t, "finish:"+filepath.Join(target, "update.apk"), events[len(events)-1])
}

func TestStart_RejectsFilenameOutsideTargetDir(t *testing.T) {
	for _, name := range []string{"../escaped.apk", "sub/app.apk", "/tmp/app.apk", "..", "."} {
		t.Run(name, func(t *testing.T) {
			tr := &scriptedTransport{script: finishing(1)}
			c, _ := newTestCoordinator(t, tr, neverValid)
			root := t.TempDir()
			log := &eventLog{}

			cfg := update.NewConfig("https://host/app.apk").WithPath(filepath.Join(root, "cache")).WithFilename(name)
			err := c.Start(context.Background(), cfg, WithSessionObserver(log))

			var cfgErr *update.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "filename", cfgErr.Field)
			assert.ErrorIs(t, err, update.ErrInvalidFilename)
			assert.Zero(t, tr.calls.Load())
			assert.Empty(t, log.Events())
			assert.False(t, fileExists(filepath.Join(root, "escaped.apk")))
			assert.False(t, c.IsDownloading())
		})
	}
}

func TestStart_ProgressThrottleGatesChanged(t *testing.T) {
	clock := newFakeClock()
	tr := &scriptedTransport{script: func(_ context.Context, url, dest string, cb update.Callback) {
		cb.OnStart(url)
		cb.OnProgress(50, 0)
		cb.OnProgress(0, 1000)
		clock.Advance(50 * time.Millisecond)
		cb.OnProgress(10, 1000)
		clock.Advance(300 * time.Millisecond)
		cb.OnProgress(100, 1000)
		clock.Advance(300 * time.Millisecond)
		cb.OnProgress(120, 1000)
		clock.Advance(300 * time.Millisecond)
		cb.OnProgress(121, 1000)
		clock.Advance(10 * time.Millisecond)
		cb.OnProgress(1000, 1000)
		cb.OnFinish(dest)
	}}
	c, _ := newTestCoordinator(t, tr, neverValid, WithClock(clock.Now))
	log := &eventLog{}

	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log)))

	var progress []string
	for _, e := range log.Events() {
		if strings.HasPrefix(e, "progress:") {
			progress = append(progress, e)
		}
	}
	assert.Equal(t, []string{
		"progress:0/1000:false",
		"progress:10/1000:false",
		"progress:100/1000:true",
		"progress:120/1000:true",
		"progress:121/1000:false",
		"progress:1000/1000:true",
	}, progress)
}

func TestStart_ThrottledTicksStillForwarded(t *testing.T) {
	clock := newFakeClock()
	tr := &scriptedTransport{script: func(_ context.Context, url, dest string, cb update.Callback) {
		cb.OnStart(url)
		for _, p := range []int64{100, 200, 300} {
			cb.OnProgress(p, 1000)
			clock.Advance(50 * time.Millisecond)
		}
		cb.OnFinish(dest)
	}}
	c, dir := newTestCoordinator(t, tr, neverValid, WithClock(clock.Now))
	log := &eventLog{}

	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log)))

	assert.Equal(t, []string{
		"downloading:false",
		"start",
		"progress:100/1000:true",
		"progress:200/1000:false",
		"progress:300/1000:false",
		"finish:" + filepath.Join(dir, "app.apk"),
	}, log.Events())
}

func TestStart_ChangedAtMostOncePerPercent(t *testing.T) {
	const total = 10_000
	clock := newFakeClock()
	tr := &scriptedTransport{script: func(_ context.Context, url, dest string, cb update.Callback) {
		cb.OnStart(url)
		for p := int64(0); p <= total; p += 7 {
			clock.Advance(250 * time.Millisecond)
			cb.OnProgress(p, total)
		}
		cb.OnProgress(total, total)
		cb.OnFinish(dest)
	}}
	c, _ := newTestCoordinator(t, tr, neverValid, WithClock(clock.Now))

	changed := make(map[int]int)
	log := &eventLog{hooks: update.ObserverFuncs{
		Progress: func(progress, total int64, isChanged bool) {
			assert.Positive(t, total)
			if isChanged {
				changed[update.Percent(progress, total)]++
			}
		},
	}}
	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log)))

	assert.NotEmpty(t, changed)
	for percent, n := range changed {
		assert.Equal(t, 1, n, "percent %d reported as changed more than once", percent)
	}
}

func TestStart_RejectsWhileDownloading(t *testing.T) {
	tr := newBlockingTransport()
	c, _ := newTestCoordinator(t, tr, neverValid)
	cfg := update.NewConfig("https://host/app.apk")

	first := &eventLog{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Start(context.Background(), cfg, WithSessionObserver(first))
	}()
	tr.waitStarted()
	assert.True(t, c.IsDownloading())

	second := &eventLog{}
	require.NoError(t, c.Start(context.Background(), cfg, WithSessionObserver(second)))
	assert.Equal(t, []string{"downloading:true"}, second.Events())
	assert.Equal(t, int32(1), tr.calls.Load())

	close(tr.release)
	<-done

	events := first.Events()
	assert.Equal(t, "downloading:false", events[0])
	assert.True(t, strings.HasPrefix(events[len(events)-1], "finish:"))
	assert.False(t, c.IsDownloading())
}

func TestStart_AcceptedFromTerminalCallback(t *testing.T) {
	tr := &scriptedTransport{script: finishing(10)}
	c, _ := newTestCoordinator(t, tr, neverValid)
	nested := &eventLog{}

	var guardHeld, started bool
	first := &eventLog{hooks: update.ObserverFuncs{
		Finish: func(string) {
			if started {
				return
			}
			started = true
			guardHeld = c.IsDownloading()
			_ = c.Start(context.Background(), update.NewConfig("https://host/other.apk"), WithSessionObserver(nested))
		},
	}}

	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(first)))

	assert.False(t, guardHeld, "guard must be cleared before the terminal notification")
	assert.Equal(t, int32(2), tr.calls.Load())
	events := nested.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "downloading:false", events[0])
	assert.True(t, strings.HasPrefix(events[len(events)-1], "finish:"))
}

func TestCancel_PartialFile(t *testing.T) {
	tests := []struct {
		name       string
		deleteFile bool
		wantExists bool
	}{
		{"deleted", true, false},
		{"kept", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newBlockingTransport()
			c, dir := newTestCoordinator(t, tr, neverValid)
			file := filepath.Join(dir, "app.apk")
			log := &eventLog{}

			done := make(chan struct{})
			go func() {
				defer close(done)
				cfg := update.NewConfig("https://host/app.apk").WithDeleteCancelFile(tt.deleteFile)
				_ = c.Start(context.Background(), cfg, WithSessionObserver(log))
			}()
			tr.waitStarted()
			require.True(t, fileExists(file))

			c.Cancel()
			<-done

			assert.Equal(t, []string{"downloading:false", "start", "cancel"}, log.Events())
			assert.Equal(t, tt.wantExists, fileExists(file))
			assert.False(t, c.IsDownloading())
		})
	}
}

func TestCancel_BeforeTransport(t *testing.T) {
	tr := &scriptedTransport{script: finishing(1)}
	var c *Coordinator
	validator := validatorFunc(func(*update.Config, string) bool {
		c.Cancel()
		return false
	})
	c, dir := newTestCoordinator(t, tr, validator)
	require.NoError(t, writeTestFile(filepath.Join(dir, "app.apk"), "old"))

	log := &eventLog{}
	cfg := update.NewConfig("https://host/app.apk").WithVersionCode(3)
	require.NoError(t, c.Start(context.Background(), cfg, WithSessionObserver(log)))

	assert.Equal(t, []string{"downloading:false", "cancel"}, log.Events())
	assert.Zero(t, tr.calls.Load())
	assert.Equal(t, int32(1), tr.cancels.Load())
	assert.False(t, c.IsDownloading())
}

func TestCancel_BeforeTransportRegistersFetch(t *testing.T) {
	var c *Coordinator
	tr := &scriptedTransport{script: func(_ context.Context, url, _ string, cb update.Callback) {
		c.Cancel()
		cb.OnStart(url)
		cb.OnCancel()
	}}
	c, _ = newTestCoordinator(t, tr, neverValid)

	log := &eventLog{}
	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log)))

	assert.Equal(t, []string{"downloading:false", "start", "cancel"}, log.Events())
	assert.Equal(t, int32(2), tr.cancels.Load())
}

func TestCancel_Idle(t *testing.T) {
	tr := &scriptedTransport{}
	c, _ := newTestCoordinator(t, tr, neverValid)

	c.Cancel()

	assert.Equal(t, int32(1), tr.cancels.Load())
	assert.False(t, c.IsDownloading())
}

func TestError_RetryAllowed(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		maxRetries int
		retryCount int
		want       bool
	}{
		{"disabled", false, 3, 0, false},
		{"disabled with history", false, 3, 5, false},
		{"first failure", true, 3, 0, true},
		{"last allowed", true, 3, 2, true},
		{"budget spent", true, 3, 3, false},
	}

	boom := errors.New("boom")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &scriptedTransport{script: func(_ context.Context, url, _ string, cb update.Callback) {
				cb.OnStart(url)
				cb.OnError(boom)
			}}
			c, _ := newTestCoordinator(t, tr, neverValid)
			log := &eventLog{}

			cfg := update.NewConfig("https://host/app.apk").WithRetry(tt.enabled, tt.maxRetries)
			require.NoError(t, c.Start(context.Background(), cfg, WithRetryCount(tt.retryCount), WithSessionObserver(log)))

			events := log.Events()
			assert.Equal(t, []string{"downloading:false", "start", "error:" + boolString(tt.want)}, events)
			require.Len(t, log.errs, 1)
			var transportErr *update.TransportError
			require.ErrorAs(t, log.errs[0], &transportErr)
			assert.Equal(t, tt.want, transportErr.RetryAllowed)
			assert.ErrorIs(t, log.errs[0], boom)
			assert.False(t, c.IsDownloading())
		})
	}
}

func TestStart_ResolveFailure(t *testing.T) {
	tr := &scriptedTransport{script: finishing(1)}
	c := NewCoordinator(tr, neverValid, zaptest.NewLogger(t))
	log := &eventLog{}

	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(log)))

	assert.Equal(t, []string{"downloading:false", "error:true"}, log.Events())
	assert.ErrorIs(t, log.errs[0], ErrNoTargetDir)
	assert.Zero(t, tr.calls.Load())
	assert.False(t, c.IsDownloading())
}

func TestInstall(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		launcher := new(mockLauncher)
		c, _ := newTestCoordinator(t, &scriptedTransport{script: finishing(1)}, neverValid, WithInstallLauncher(launcher))

		require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk").WithInstall(false)))
		launcher.AssertNotCalled(t, "Install", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("custom authority and failure", func(t *testing.T) {
		launcher := new(mockLauncher)
		launcher.On("Install", mock.Anything, mock.Anything, "com.example.provider").Return(errors.New("no installer")).Once()
		c, _ := newTestCoordinator(t, &scriptedTransport{script: finishing(1)}, neverValid, WithInstallLauncher(launcher))
		log := &eventLog{}

		cfg := update.NewConfig("https://host/app.apk").WithAuthority("com.example.provider")
		require.NoError(t, c.Start(context.Background(), cfg, WithSessionObserver(log)))

		events := log.Events()
		assert.True(t, strings.HasPrefix(events[len(events)-1], "finish:"))
		launcher.AssertExpectations(t)
	})
}

func TestCoordinatorObserversSeeEverySession(t *testing.T) {
	global := &eventLog{}
	c, _ := newTestCoordinator(t, &scriptedTransport{script: finishing(1)}, neverValid, WithObserver(global))
	session := &eventLog{}

	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(session)))
	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk")))

	assert.Len(t, session.Events(), 4)
	assert.Len(t, global.Events(), 8)
}

func TestObserverFactory_BindsLateTerminalToItsSession(t *testing.T) {
	tr := &scriptedTransport{script: finishing(1)}
	var (
		ids     []uuid.UUID
		ordered []string
	)
	factory := func(id uuid.UUID) update.Observer {
		ids = append(ids, id)
		n := len(ids)
		return update.ObserverFuncs{
			Finish: func(file string) {
				ordered = append(ordered, fmt.Sprintf("session%d:%s", n, filepath.Base(file)))
			},
		}
	}
	c, _ := newTestCoordinator(t, tr, neverValid, WithObserverFactory(factory))

	var started bool
	first := update.ObserverFuncs{Finish: func(string) {
		if started {
			return
		}
		started = true
		_ = c.Start(context.Background(), update.NewConfig("https://host/other.apk"))
	}}
	require.NoError(t, c.Start(context.Background(), update.NewConfig("https://host/app.apk"), WithSessionObserver(first)))

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, []string{"session2:other.apk", "session1:app.apk"}, ordered)
}

func TestResolveFilename(t *testing.T) {
	long := strings.Repeat("a", 61) + ".apk"

	tests := []struct {
		name    string
		cfg     *update.Config
		appName string
		want    string
	}{
		{"configured", update.NewConfig("https://host/app.apk").WithFilename("custom.bin"), "Example", "custom.bin"},
		{"url segment", update.NewConfig("https://host/path/app-release.apk?token=1"), "Example", "app-release.apk"},
		{"url without artifact", update.NewConfig("https://host/download?id=3"), "Example", "Example.apk"},
		{"segment too long", update.NewConfig("https://host/" + long), "Example", "Example.apk"},
		{"app name with extension", update.NewConfig("https://host/latest"), "Example.apk", "Example.apk"},
		{"no app name", update.NewConfig("https://host/latest"), "", "app.apk"},
		{"magnet", update.NewConfig("magnet:?xt=urn:btih:abc"), "Example", "Example.apk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFilename(tt.cfg, tt.appName))
		})
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
