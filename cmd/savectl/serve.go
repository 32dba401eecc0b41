package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/manager"
	"github.com/zeusync/zeusave/internal/core/system/sim"
	"github.com/zeusync/zeusave/internal/injector"
	"github.com/zeusync/zeusave/internal/server"
)

var (
	flagServeAddr   string
	flagServeActors int
	flagServeMap    string
	flagServeTick   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Tick a simulated world with autosave and serve the event feed",
	Long: `Runs a simulated world under the save manager: periodic saves, load on start and
save on close follow the settings. Lifecycle events stream on /ws, metrics on /metrics
and the slot list on /slots.

Examples:
  savectl serve --addr 127.0.0.1:8080
  websocat ws://127.0.0.1:8080/ws`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().IntVar(&flagServeActors, "actors", 200, "Actors in the persistent level")
	serveCmd.Flags().StringVar(&flagServeMap, "map", "Overworld", "Map name")
	serveCmd.Flags().DurationVar(&flagServeTick, "tick", 16*time.Millisecond, "Tick interval")
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if flagServeTick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", flagServeTick)
	}

	reg := models.NewTypeRegistry()
	world := sim.NewDemoWorld(flagServeMap, reg, flagServeActors, uint64(time.Now().UnixNano()))
	maps := sim.NewMaps()
	maps.Register(flagServeMap, sim.DemoBuilder(reg, flagServeActors, 1))

	cfg := server.DefaultServerConfig()
	cfg.ListenAddr = flagServeAddr

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx, s, injector.Host{
		World:      world,
		Types:      reg,
		Maps:       maps,
		Thumbnails: &sim.Thumbnails{Async: true},
	}, cfg)
	if err != nil {
		return err
	}
	logger := app.Logger.Named("serve")

	if err := app.Server.Start(ctx); err != nil {
		return errors.Join(err, closeApp(app))
	}
	if err := app.Manager.Start(ctx); err != nil {
		return errors.Join(err, closeApp(app))
	}
	logger.Info("Serving", log.String("addr", app.Server.Addr().String()), log.String("map", flagServeMap))

	run(ctx, app.Manager, maps, flagServeTick)

	logger.Info("Shutting down")
	return closeApp(app)
}

// run is the frame loop: advance whichever world is current, tick the manager, deliver maps.
func run(ctx context.Context, m *manager.Manager, maps *sim.Maps, dt time.Duration) {
	ticker := time.NewTicker(dt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w, ok := m.World().(*sim.World); ok {
				w.Advance(dt.Seconds())
			}
			m.Tick(dt)
			deliverMap(m, maps)
		}
	}
}
