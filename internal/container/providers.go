package container

import (
	"context"

	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/application/updater"
	"github.com/narwhalmedia/appupdater/internal/config"
	domainevents "github.com/narwhalmedia/appupdater/internal/domain/events"
	"github.com/narwhalmedia/appupdater/internal/domain/update"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/events"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/events/kafka"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/events/nats"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/install"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/pkginfo"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/transport"
)

// App holds the wired updater and the resources commands need next to it.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Updater *updater.Updater
	History update.SessionRepository
	NATS    *nats.Client
}

func provideTransport(cfg *config.Config, logger *zap.Logger) (*transport.Router, func(), error) {
	router := transport.NewRouter(transport.NewHTTPTransport(transport.HTTPConfig{
		ConnectTimeout:        cfg.Updater.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Updater.ResponseHeaderTimeout,
		InsecureSkipVerify:    cfg.Updater.InsecureSkipVerify,
		UserAgent:             cfg.Updater.UserAgent,
	}, logger), logger)

	if cfg.Storage.S3.Enabled {
		s3Transport, err := transport.NewS3Transport(context.Background(), transport.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		router.Register("s3", s3Transport)
	}

	cleanup := func() {}
	if cfg.Updater.TorrentEnabled {
		torrentTransport, err := transport.NewTorrentTransport(cfg.Updater.TorrentDataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		router.Register("magnet", torrentTransport)
		cleanup = func() {
			if err := torrentTransport.Close(); err != nil {
				logger.Error("failed to close torrent client", zap.Error(err))
			}
		}
	}

	return router, cleanup, nil
}

func provideHost(cfg *config.Config) *pkginfo.Host {
	return pkginfo.NewHost(cfg.Updater.PackageName, cfg.Updater.AppName)
}

func provideCacheDir(cfg *config.Config) *pkginfo.CacheDir {
	return pkginfo.NewCacheDir(cfg.Updater.CacheDir, cfg.Updater.AppName)
}

func provideLauncher(cfg *config.Config, logger *zap.Logger) (update.InstallLauncher, error) {
	return install.New(cfg.Updater, logger)
}

// provideNATS connects only when NATS is enabled; the client is nil otherwise.
func provideNATS(cfg *config.Config, logger *zap.Logger) (*nats.Client, func(), error) {
	if !cfg.NATS.Enabled {
		return nil, func() {}, nil
	}
	return nats.NewClient(cfg, logger)
}

func providePublishers(cfg *config.Config, client *nats.Client, logger *zap.Logger) (domainevents.Publishers, func(), error) {
	var publishers domainevents.Publishers
	cleanup := func() {}

	if client != nil {
		publishers = append(publishers, nats.NewPublisher(client, logger))
	}

	if cfg.Kafka.Enabled {
		kafkaPublisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return nil, nil, err
		}
		publishers = append(publishers, kafkaPublisher)
		cleanup = func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Error("failed to close kafka publisher", zap.Error(err))
			}
		}
	}

	return publishers, cleanup, nil
}

func provideCoordinator(
	cfg *config.Config,
	tr update.Transport,
	validator updater.CacheValidator,
	cacheDir update.CacheDirProvider,
	host update.HostIdentity,
	launcher update.InstallLauncher,
	publishers domainevents.Publishers,
	logger *zap.Logger,
) *updater.Coordinator {
	opts := []updater.Option{
		updater.WithCacheDir(cacheDir),
		updater.WithHost(host),
		updater.WithInstallLauncher(launcher),
		updater.WithProgressInterval(cfg.Updater.ProgressInterval),
	}
	if len(publishers) > 0 {
		opts = append(opts, updater.WithObserverFactory(events.NewObserverFactory(publishers, logger)))
	}
	return updater.NewCoordinator(tr, validator, logger, opts...)
}
