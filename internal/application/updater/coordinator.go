package updater

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// DefaultProgressInterval is the minimum time between processed progress ticks.
const DefaultProgressInterval = 200 * time.Millisecond

// defaultAppName names artifacts when neither the URL nor the host does.
const defaultAppName = "app"

// ErrNoTargetDir is reported when a config has no path and no cache
// directory provider is configured.
var ErrNoTargetDir = errors.New("no target directory configured")

// CacheValidator decides whether an existing artifact can be reused.
type CacheValidator interface {
	Validate(cfg *update.Config, file string) bool
}

// Coordinator runs update sessions one at a time. It reuses valid cached
// artifacts, drives the transport otherwise, and reports every session
// to its observers.
type Coordinator struct {
	transport update.Transport
	validator CacheValidator
	cacheDir  update.CacheDirProvider
	host      update.HostIdentity
	launcher  update.InstallLauncher
	observers update.Observers
	factories []update.ObserverFactory
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu      sync.Mutex
	current *relay
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCacheDir sets the directory provider used when a config has no path.
func WithCacheDir(p update.CacheDirProvider) Option {
	return func(c *Coordinator) { c.cacheDir = p }
}

// WithHost sets the host identity used for file names and the install authority.
func WithHost(h update.HostIdentity) Option {
	return func(c *Coordinator) { c.host = h }
}

// WithInstallLauncher sets the launcher invoked for finished artifacts.
func WithInstallLauncher(l update.InstallLauncher) Option {
	return func(c *Coordinator) { c.launcher = l }
}

// WithObserver adds an observer notified of every session.
func WithObserver(o update.Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, o) }
}

// WithObserverFactory registers a factory called once per Start to build
// an observer bound to that session.
func WithObserverFactory(f update.ObserverFactory) Option {
	return func(c *Coordinator) { c.factories = append(c.factories, f) }
}

// WithProgressInterval sets the progress throttle interval.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

// WithClock replaces the clock used by the progress throttle.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a new coordinator
func NewCoordinator(transport update.Transport, validator CacheValidator, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport: transport,
		validator: validator,
		interval:  DefaultProgressInterval,
		now:       time.Now,
		logger:    logger.Named("coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartOption configures a single Start call.
type StartOption func(*startOptions)

type startOptions struct {
	retryCount int
	observer   update.Observer
}

// WithRetryCount passes the number of attempts already made for this artifact.
func WithRetryCount(n int) StartOption {
	return func(o *startOptions) { o.retryCount = n }
}

// WithSessionObserver adds an observer for this call only.
func WithSessionObserver(o update.Observer) StartOption {
	return func(so *startOptions) { so.observer = o }
}

// Start begins an update session for cfg. It returns an error only for an
// invalid config; every other outcome is reported to the observers. When
// a session is already running the call is rejected with
// OnDownloading(true).
//
// Cache validation runs on the calling goroutine. Start returns once the
// transport's Download returns.
func (c *Coordinator) Start(ctx context.Context, cfg *update.Config, opts ...StartOption) error {
	if cfg == nil {
		return update.ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var so startOptions
	for _, opt := range opts {
		opt(&so)
	}
	id := uuid.New()
	observer := make(update.Observers, 0, len(c.observers)+len(c.factories)+1)
	if so.observer != nil {
		observer = append(observer, so.observer)
	}
	observer = append(observer, c.observers...)
	for _, f := range c.factories {
		observer = append(observer, f(id))
	}

	cfg = cfg.Clone()
	retryAllowed := cfg.RetryAllowed(so.retryCount)

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		c.logger.Warn("update already in progress", zap.String("url", cfg.URL))
		observer.OnDownloading(true)
		return nil
	}
	r := &relay{
		c:        c,
		ctx:      ctx,
		cfg:      cfg,
		session:  update.NewSessionWithID(id, cfg.URL, so.retryCount, retryAllowed),
		observer: observer,
		limiter:  rate.NewLimiter(rate.Every(c.interval), 1),
	}
	c.current = r
	c.mu.Unlock()

	logger := c.logger.With(
		zap.String("session_id", r.session.ID().String()),
		zap.String("url", cfg.URL),
	)
	logger.Info("update session started",
		zap.Int("retry_count", so.retryCount),
		zap.Bool("retry_allowed", retryAllowed),
	)
	observer.OnDownloading(false)

	file, err := c.resolveFile(cfg)
	if err != nil {
		logger.Error("failed to resolve target file", zap.Error(err))
		r.OnError(err)
		return nil
	}
	r.session.SetFile(file)

	if _, err := os.Stat(file); err == nil {
		if c.validator.Validate(cfg, file) {
			logger.Info("reusing cached artifact", zap.String("file", file))
			r.OnFinish(file)
			return nil
		}
		logger.Info("removing stale artifact", zap.String("file", file))
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove stale artifact", zap.String("file", file), zap.Error(err))
		}
	}

	if !c.beginTransport(r) {
		logger.Info("session cancelled before fetch")
		r.OnCancel()
		return nil
	}

	c.transport.Download(ctx, cfg.URL, file, cfg.Headers, r)
	return nil
}

// Cancel asks the running session to stop. A session that has not reached
// the transport yet is cancelled before fetching.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if r := c.current; r != nil {
		r.cancelRequested = true
	}
	c.mu.Unlock()

	c.transport.Cancel()
}

// IsDownloading reports whether a session is running.
func (c *Coordinator) IsDownloading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// CurrentURL returns the URL of the running session, if any.
func (c *Coordinator) CurrentURL() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", false
	}
	return c.current.cfg.URL, true
}

func (c *Coordinator) beginTransport(r *relay) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.cancelRequested {
		return false
	}
	r.transportStarted = true
	return true
}

// cancelPending reports whether Cancel was called after the transport
// was handed the fetch.
func (c *Coordinator) cancelPending(r *relay) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.transportStarted && r.cancelRequested
}

// release clears the guard if r still owns it.
func (c *Coordinator) release(r *relay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == r {
		c.current = nil
	}
}

func (c *Coordinator) resolveFile(cfg *update.Config) (string, error) {
	dir := cfg.Path
	if dir == "" {
		if c.cacheDir == nil {
			return "", ErrNoTargetDir
		}
		var err error
		if dir, err = c.cacheDir.CacheDir(); err != nil {
			return "", fmt.Errorf("failed to resolve cache dir: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create target dir: %w", err)
	}

	appName := ""
	if c.host != nil {
		appName = c.host.AppName()
	}
	return filepath.Join(dir, ResolveFilename(cfg, appName)), nil
}

func (c *Coordinator) install(ctx context.Context, cfg *update.Config, file string) {
	if !cfg.InstallApk || c.launcher == nil {
		return
	}

	authority := cfg.Authority
	if authority == "" && c.host != nil {
		authority = c.host.PackageName() + update.FileProviderSuffix
	}

	if err := c.launcher.Install(ctx, file, authority); err != nil {
		c.logger.Error("failed to launch installer",
			zap.String("file", file),
			zap.String("authority", authority),
			zap.Error(err),
		)
	}
}

// ResolveFilename picks the artifact file name: the configured name, else
// the URL's last segment when it is a short artifact name, else the app
// name with the artifact extension.
func ResolveFilename(cfg *update.Config, appName string) string {
	if cfg.Filename != "" {
		return cfg.Filename
	}

	p := cfg.URL
	if u, err := url.Parse(cfg.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	if seg := path.Base(p); strings.HasSuffix(seg, update.ArtifactExtension) && len(seg) <= update.MaxURLFilenameLength {
		return seg
	}

	if appName == "" {
		appName = defaultAppName
	}
	if !strings.HasSuffix(appName, update.ArtifactExtension) {
		appName += update.ArtifactExtension
	}
	return appName
}
