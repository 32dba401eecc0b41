package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/zeusync/zeusave/internal/core/persistence/manager"
	"github.com/zeusync/zeusave/internal/core/persistence/settings"
	"github.com/zeusync/zeusave/internal/core/system"
	"github.com/zeusync/zeusave/internal/core/system/sim"
	"github.com/zeusync/zeusave/internal/injector"
	"github.com/zeusync/zeusave/internal/server"
)

// loadSettings reads --config and applies the flag overrides.
func loadSettings() (*settings.Settings, error) {
	s, err := settings.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagSaveDir != "" {
		s.SaveDir = flagSaveDir
	}
	if flagLogLevel != "" {
		s.Log.Level = flagLogLevel
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func openApp(ctx context.Context, s *settings.Settings, host injector.Host, cfg server.Config) (*injector.App, error) {
	return injector.InitializeAppWithSettings(ctx, s, host, cfg)
}

// closeApp shuts the manager down, which also closes the store.
func closeApp(app *injector.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return errors.Join(app.Manager.Shutdown(ctx), app.Server.Close())
}

// settle ticks the manager until its queue drains, delivering pending maps like an engine would.
func settle(ctx context.Context, m *manager.Manager, maps *sim.Maps, dt time.Duration) error {
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	for m.IsSavingOrLoading() {
		m.Tick(dt)
		if maps != nil {
			deliverMap(m, maps)
		}
		if !m.IsSavingOrLoading() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func deliverMap(m *manager.Manager, maps *sim.Maps) system.World {
	w := maps.TakePending()
	if w != nil {
		m.OnMapLoadStarted(w.MapName())
		m.OnMapLoadFinished(w)
	}
	return w
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
