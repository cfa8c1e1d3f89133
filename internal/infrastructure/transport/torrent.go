package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anacrolix/torrent"
	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

const (
	torrentInfoTimeout  = 30 * time.Second
	torrentPollInterval = time.Second
)

// ErrMultiFileTorrent is returned for torrents carrying more than one file.
var ErrMultiFileTorrent = errors.New("torrent must contain exactly one file")

// Swarm adds magnet links to a torrent client.
type Swarm interface {
	AddMagnet(uri string) (SwarmTorrent, error)
	Close() error
}

// SwarmTorrent is the subset of a torrent used by TorrentTransport.
type SwarmTorrent interface {
	GotInfo() <-chan struct{}
	NumFiles() int
	DownloadAll()
	Length() int64
	BytesMissing() int64
	BytesCompleted() int64
	// NewReader reads the content of the torrent's only file.
	NewReader() io.ReadCloser
	Drop()
}

// TorrentTransport fetches single-file artifacts from magnet links.
type TorrentTransport struct {
	swarm        Swarm
	flight       inflight
	infoTimeout  time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewTorrentTransport creates a torrent client storing pieces in dataDir.
func NewTorrentTransport(dataDir string, logger *zap.Logger) (*TorrentTransport, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	cfg.Seed = false
	cfg.ListenPort = 0

	client, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create torrent client: %w", err)
	}

	return NewTorrentTransportWithSwarm(&clientSwarm{client: client}, logger), nil
}

// NewTorrentTransportWithSwarm creates a torrent transport around an existing swarm.
func NewTorrentTransportWithSwarm(swarm Swarm, logger *zap.Logger) *TorrentTransport {
	return &TorrentTransport{
		swarm:        swarm,
		infoTimeout:  torrentInfoTimeout,
		pollInterval: torrentPollInterval,
		logger:       logger.Named("torrent-transport"),
	}
}

// Download implements update.Transport.
func (t *TorrentTransport) Download(ctx context.Context, magnet, dest string, headers map[string]string, cb update.Callback) {
	ctx, done := t.flight.begin(ctx)
	defer done()

	cb.OnStart(magnet)
	err := t.fetch(ctx, magnet, dest, cb)
	if err != nil {
		t.logger.Debug("fetch ended with error", zap.String("url", magnet), zap.Error(err))
	}
	report(ctx, cb, dest, err)
}

// Cancel implements update.Transport.
func (t *TorrentTransport) Cancel() {
	t.flight.abort()
}

// Close shuts the torrent client down.
func (t *TorrentTransport) Close() error {
	return t.swarm.Close()
}

func (t *TorrentTransport) fetch(ctx context.Context, magnet, dest string, cb update.Callback) error {
	tor, err := t.swarm.AddMagnet(magnet)
	if err != nil {
		return fmt.Errorf("failed to add magnet: %w", err)
	}
	defer tor.Drop()

	select {
	case <-tor.GotInfo():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.infoTimeout):
		return fmt.Errorf("timeout waiting for torrent metadata")
	}

	if n := tor.NumFiles(); n != 1 {
		return fmt.Errorf("%w: got %d", ErrMultiFileTorrent, n)
	}

	tor.DownloadAll()
	total := tor.Length()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for tor.BytesMissing() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cb.OnProgress(tor.BytesCompleted(), total)
		}
	}

	cb.OnProgress(total, total)

	reader := tor.NewReader()
	defer reader.Close()

	return writeFile(ctx, dest, reader, total, silentCallback{})
}

// clientSwarm adapts a torrent client to Swarm.
type clientSwarm struct {
	client *torrent.Client
}

func (s *clientSwarm) AddMagnet(uri string) (SwarmTorrent, error) {
	tor, err := s.client.AddMagnet(uri)
	if err != nil {
		return nil, err
	}
	return &clientTorrent{t: tor}, nil
}

func (s *clientSwarm) Close() error {
	return errors.Join(s.client.Close()...)
}

type clientTorrent struct {
	t *torrent.Torrent
}

func (c *clientTorrent) GotInfo() <-chan struct{} { return c.t.GotInfo() }
func (c *clientTorrent) NumFiles() int            { return len(c.t.Files()) }
func (c *clientTorrent) DownloadAll()             { c.t.DownloadAll() }
func (c *clientTorrent) Length() int64            { return c.t.Length() }
func (c *clientTorrent) BytesMissing() int64      { return c.t.BytesMissing() }
func (c *clientTorrent) BytesCompleted() int64    { return c.t.BytesCompleted() }
func (c *clientTorrent) Drop()                    { c.t.Drop() }

func (c *clientTorrent) NewReader() io.ReadCloser {
	return c.t.Files()[0].NewReader()
}

// silentCallback discards events. Progress was already reported while the
// swarm delivered pieces; the local copy must not restart the counter.
type silentCallback struct{}

func (silentCallback) OnStart(string)        {}
func (silentCallback) OnProgress(_, _ int64) {}
func (silentCallback) OnFinish(string)       {}
func (silentCallback) OnError(error)         {}
func (silentCallback) OnCancel()             {}
