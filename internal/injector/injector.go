//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/zeusave/internal/core/persistence/settings"
	"github.com/zeusync/zeusave/internal/server"
)

func InitializeApp(ctx context.Context, path ConfigPath, host Host, config server.Config) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}

func InitializeAppWithSettings(ctx context.Context, s *settings.Settings, host Host, config server.Config) (*App, error) {
	wire.Build(CoreSet)
	return nil, nil
}
