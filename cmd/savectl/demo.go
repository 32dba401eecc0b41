package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/core/persistence/tasks"
	"github.com/zeusync/zeusave/internal/core/system/sim"
	"github.com/zeusync/zeusave/internal/injector"
	"github.com/zeusync/zeusave/internal/server"
)

var (
	flagDemoActors  int
	flagDemoSeed    uint64
	flagDemoSlot    string
	flagDemoMap     string
	flagDemoDisturb int
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Save a generated world, disturb it and load it back",
	Long: `Builds a simulated world, saves it, destroys and spawns some actors, then loads
the slot and reports how saved actors were reconciled with the world.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVar(&flagDemoActors, "actors", 200, "Actors in the persistent level")
	demoCmd.Flags().Uint64Var(&flagDemoSeed, "seed", 1, "World generation seed")
	demoCmd.Flags().StringVar(&flagDemoSlot, "slot", "demo", "Slot to save into")
	demoCmd.Flags().StringVar(&flagDemoMap, "map", "Overworld", "Map name")
	demoCmd.Flags().IntVar(&flagDemoDisturb, "disturb", 5, "Actors to destroy and to spawn before loading")
}

type demoReport struct {
	Slot     string                         `json:"slot"`
	Actors   int                            `json:"actors"`
	SaveTook time.Duration                  `json:"save_took_ns"`
	LoadTook time.Duration                  `json:"load_took_ns"`
	Levels   map[string]tasks.PrepareResult `json:"levels"`
}

func runDemo(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	s.LoadOnStart = false
	s.PeriodicSave = false

	reg := models.NewTypeRegistry()
	world := sim.NewDemoWorld(flagDemoMap, reg, flagDemoActors, flagDemoSeed)
	maps := sim.NewMaps()
	maps.Register(flagDemoMap, sim.DemoBuilder(reg, flagDemoActors, flagDemoSeed))

	ctx := cmd.Context()
	app, err := openApp(ctx, s, injector.Host{
		World:      world,
		Types:      reg,
		Maps:       maps,
		Thumbnails: &sim.Thumbnails{Async: true},
	}, server.DefaultServerConfig())
	if err != nil {
		return err
	}
	return errors.Join(demo(ctx, app, world, maps), closeApp(app))
}

func demo(ctx context.Context, app *injector.App, world *sim.World, maps *sim.Maps) error {
	m := app.Manager
	const dt = 16 * time.Millisecond

	var saved *slot.Slot
	start := time.Now()
	if !m.SaveSlot(flagDemoSlot, tasks.SaveOptions{
		Override:  true,
		Thumbnail: app.Settings.Thumbnail.Enabled,
		OnSaved:   func(s *slot.Slot) { saved = s },
	}) {
		return errors.New("save could not start")
	}
	if err := settle(ctx, m, maps, dt); err != nil {
		return err
	}
	if saved == nil {
		return errors.New("save failed")
	}
	report := demoReport{Slot: flagDemoSlot, Actors: world.Persistent().Len(), SaveTook: time.Since(start)}

	disturb(world, flagDemoDisturb, flagDemoSeed)

	var loaded *slot.Slot
	start = time.Now()
	if !m.LoadSlot(flagDemoSlot, func(s *slot.Slot) { loaded = s }) {
		return errors.New("load could not start")
	}
	if err := settle(ctx, m, maps, dt); err != nil {
		return err
	}
	if loaded == nil {
		return errors.New("load failed")
	}
	report.LoadTook = time.Since(start)
	report.Levels = m.LastReconciliation()

	if flagJSON {
		return printJSON(os.Stdout, report)
	}
	fmt.Printf("Saved %d actors to %q in %s, loaded in %s\n",
		report.Actors, report.Slot, report.SaveTook.Round(time.Microsecond), report.LoadTook.Round(time.Microsecond))
	levels := make([]string, 0, len(report.Levels))
	for name := range report.Levels {
		levels = append(levels, name)
	}
	slices.Sort(levels)
	for _, name := range levels {
		r := report.Levels[name]
		fmt.Printf("  %-12s matched %4d  destroyed %3d  respawned %3d\n",
			name, len(r.Matched), len(r.Destroyed), len(r.Respawned))
	}
	return nil
}

// disturb destroys n random actors and spawns n unsaved ones.
func disturb(world *sim.World, n int, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	level := world.Persistent()
	for range n {
		actors := level.Actors()
		if len(actors) == 0 {
			break
		}
		_ = world.Destroy(actors[rng.IntN(len(actors))])
	}
	for i := range n {
		_, _ = world.Spawn(level, sim.TypeDoor, fmt.Sprintf("Intruder_%02d", i), models.IdentityTransform)
	}
}
