package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// Router dispatches downloads to a transport chosen by URL scheme.
type Router struct {
	mu         sync.RWMutex
	transports map[string]update.Transport
	active     update.Transport
	logger     *zap.Logger
}

// NewRouter creates a router serving http and https with httpTransport.
func NewRouter(httpTransport update.Transport, logger *zap.Logger) *Router {
	r := &Router{
		transports: make(map[string]update.Transport),
		logger:     logger.Named("transport-router"),
	}
	r.Register("http", httpTransport)
	r.Register("https", httpTransport)
	return r
}

// Register routes scheme to t.
func (r *Router) Register(scheme string, t update.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[strings.ToLower(scheme)] = t
}

// Schemes returns the registered schemes.
func (r *Router) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemes := make([]string, 0, len(r.transports))
	for scheme := range r.transports {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// Download implements update.Transport. An unroutable URL is reported as
// a failed fetch.
func (r *Router) Download(ctx context.Context, rawURL, dest string, headers map[string]string, cb update.Callback) {
	t, err := r.route(rawURL)
	if err != nil {
		r.logger.Warn("no transport for url", zap.String("url", rawURL), zap.Error(err))
		cb.OnStart(rawURL)
		cb.OnError(err)
		return
	}

	r.mu.Lock()
	r.active = t
	r.mu.Unlock()

	t.Download(ctx, rawURL, dest, headers, cb)
}

// Cancel implements update.Transport.
func (r *Router) Cancel() {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active != nil {
		active.Cancel()
	}
}

func (r *Router) route(rawURL string) (update.Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", update.ErrUnsupportedScheme, u.Scheme)
	}
	return t, nil
}
