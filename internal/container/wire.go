//go:build wireinject
// +build wireinject

package container

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/application/updater"
	"github.com/narwhalmedia/appupdater/internal/config"
	"github.com/narwhalmedia/appupdater/internal/domain/update"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/cache"
	gormrepo "github.com/narwhalmedia/appupdater/internal/infrastructure/persistence/gorm"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/pkginfo"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/transport"
)

// InitializeApp creates the updater with all dependencies
func InitializeApp(cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	wire.Build(
		// Database
		gormrepo.NewDB,

		// Repositories
		gormrepo.NewSessionRepository,
		wire.Bind(new(update.SessionRepository), new(*gormrepo.SessionRepository)),
		gormrepo.NewRetryStore,
		wire.Bind(new(update.RetryStore), new(*gormrepo.RetryStore)),

		// Host collaborators
		provideHost,
		wire.Bind(new(update.HostIdentity), new(*pkginfo.Host)),
		provideCacheDir,
		wire.Bind(new(update.CacheDirProvider), new(*pkginfo.CacheDir)),
		pkginfo.NewManifestReader,
		wire.Bind(new(update.PackageInfoReader), new(*pkginfo.ManifestReader)),
		provideLauncher,

		// Cache validation
		cache.NewValidator,
		wire.Bind(new(updater.CacheValidator), new(*cache.Validator)),

		// Transports
		provideTransport,
		wire.Bind(new(update.Transport), new(*transport.Router)),

		// Events
		provideNATS,
		providePublishers,

		// Application
		provideCoordinator,
		updater.NewUpdater,

		// Container
		wire.Struct(new(App), "*"),
	)

	return nil, nil, nil
}
