// Package injector assembles the save manager and its server from settings.
package injector

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/zeusave/internal/core/events/bus"
	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/observability/metrics"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/manager"
	"github.com/zeusync/zeusave/internal/core/persistence/settings"
	"github.com/zeusync/zeusave/internal/core/storage/interfaces"
	"github.com/zeusync/zeusave/internal/core/storage/local"
	"github.com/zeusync/zeusave/internal/core/storage/redis"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/internal/server"
)

// ConfigPath is the settings file. Empty means defaults plus environment.
type ConfigPath string

// Host is what the embedding game supplies.
type Host struct {
	World      system.World
	Types      *models.TypeRegistry
	Serializer archive.ObjectSerializer
	Maps       system.MapLoader
	Thumbnails system.ThumbnailCapturer
}

// App is the assembled object graph.
type App struct {
	Settings *settings.Settings
	Logger   log.Log
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Manager  *manager.Manager
	Server   *server.Server
}

// CoreSet builds everything from already loaded settings.
var CoreSet = wire.NewSet(
	ProvideLogger,
	ProvideStore,
	ProvideRegistry,
	ProvideMetrics,
	ProvideBus,
	ProvideManager,
	ProvideServer,
	wire.Struct(new(App), "*"),
)

var ProviderSet = wire.NewSet(ProvideSettings, CoreSet)

func ProvideSettings(path ConfigPath) (*settings.Settings, error) {
	return settings.Load(string(path))
}

func ProvideLogger(s *settings.Settings) log.Log {
	return log.NewWithConfig(s.LogConfig())
}

func ProvideStore(ctx context.Context, s *settings.Settings) (interfaces.BlobStorage, error) {
	switch s.Storage {
	case settings.StorageRedis:
		return redis.New(ctx, s.Redis.Addr, s.Redis.Prefix)
	case settings.StorageLocal, "":
		return local.New(s.SaveDir, s.IOBytesPerSec)
	default:
		return nil, fmt.Errorf("%w: storage %q", settings.ErrInvalid, s.Storage)
	}
}

func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func ProvideMetrics(reg *prometheus.Registry) (*metrics.Collector, error) {
	return metrics.NewCollector(reg)
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideManager(s *settings.Settings, host Host, store interfaces.BlobStorage, logger log.Log, col *metrics.Collector, events bus.EventBus) (*manager.Manager, error) {
	return manager.New(manager.Options{
		Settings:   s,
		World:      host.World,
		Store:      store,
		Types:      host.Types,
		Serializer: host.Serializer,
		Maps:       host.Maps,
		Thumbnails: host.Thumbnails,
		Logger:     logger,
		Metrics:    col,
		Bus:        events,
	})
}

func ProvideServer(config server.Config, events bus.EventBus, m *manager.Manager, reg *prometheus.Registry, logger log.Log) (*server.Server, error) {
	return server.NewServer(config, events, m, reg, logger)
}
