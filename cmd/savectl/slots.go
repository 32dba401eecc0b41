package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/persistence/filter"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
	"github.com/zeusync/zeusave/internal/injector"
	"github.com/zeusync/zeusave/internal/server"
)

var flagDeleteAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List slots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <slot>",
	Short: "Print slot metadata",
	Long:  `Reads only the metadata header of a slot file. World data is not decompressed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <slot>|--all",
	Short: "Delete a slot and its thumbnail, or every slot",
	Args: func(cmd *cobra.Command, args []string) error {
		if flagDeleteAll != (len(args) == 0) {
			return errors.New("give exactly one slot name or --all")
		}
		return nil
	},
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&flagDeleteAll, "all", false, "Delete every slot")
}

// withStore opens the configured store without a world. Only file operations work on it.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, app *injector.App) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := openApp(ctx, s, injector.Host{}, server.DefaultServerConfig())
	if err != nil {
		return err
	}
	return errors.Join(fn(ctx, app), closeApp(app))
}

func runList(cmd *cobra.Command, _ []string) error {
	return withStore(cmd, func(ctx context.Context, app *injector.App) error {
		slots, err := app.Manager.ListSlots(ctx)
		if err != nil {
			return err
		}
		infos := make([]server.SlotInfo, 0, len(slots))
		for _, s := range slots {
			infos = append(infos, server.NewSlotInfo(s))
		}
		if flagJSON {
			return printJSON(os.Stdout, infos)
		}
		if len(infos) == 0 {
			fmt.Println("No slots.")
			return nil
		}

		maxNameLen := len("NAME")
		for _, i := range infos {
			maxNameLen = max(maxNameLen, len(i.Name))
		}
		fmt.Printf("%-*s  %-20s  %-16s  %s\n", maxNameLen, "NAME", "SAVED", "MAP", "PLAYED")
		for _, i := range infos {
			fmt.Printf("%-*s  %-20s  %-16s  %s\n", maxNameLen, i.Name,
				i.SaveDate.Local().Format(time.DateTime), i.Map,
				(time.Duration(i.PlayedSeconds) * time.Second).String())
		}
		return nil
	})
}

type inspectView struct {
	server.SlotInfo
	UseCompression             bool           `json:"use_compression"`
	StoreGameInstance          bool           `json:"store_game_instance"`
	MultithreadedSerialization slot.AsyncMode `json:"multithreaded_serialization"`
	MultithreadedFiles         slot.AsyncMode `json:"multithreaded_files"`
	FrameSplittedSerialization slot.AsyncMode `json:"frame_splitted_serialization"`
	MaxFrameMs                 float64        `json:"max_frame_ms"`
	StoreComponents            bool           `json:"store_components"`
	Actors                     filterView     `json:"actors"`
	Components                 filterView     `json:"components"`
	Subsystems                 filterView     `json:"subsystems"`
}

type filterView struct {
	Allow []models.TypeRef `json:"allow"`
	Deny  []models.TypeRef `json:"deny,omitempty"`
}

func viewOf(f *filter.ClassFilter) filterView {
	if f == nil {
		return filterView{}
	}
	return filterView{Allow: f.AllowedTypes(), Deny: f.DeniedTypes()}
}

func runInspect(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(_ context.Context, app *injector.App) error {
		s := app.Manager.PreloadSlot(args[0])
		if s == nil {
			return fmt.Errorf("slot %q not found or unreadable", args[0])
		}
		v := inspectView{
			SlotInfo:                   server.NewSlotInfo(s),
			UseCompression:             s.UseCompression,
			StoreGameInstance:          s.StoreGameInstance,
			MultithreadedSerialization: s.MultithreadedSerialization,
			MultithreadedFiles:         s.MultithreadedFiles,
			FrameSplittedSerialization: s.FrameSplittedSerialization,
			MaxFrameMs:                 s.MaxFrameMs,
			Subsystems:                 viewOf(s.SubsystemFilter),
		}
		if lf := s.LevelFilter(); lf != nil {
			v.StoreComponents = lf.StoreComponents
			v.Actors = viewOf(lf.ActorFilter)
			v.Components = viewOf(lf.ComponentFilter)
		}
		if flagJSON {
			return printJSON(os.Stdout, v)
		}

		fmt.Printf("Slot:        %s\n", v.Name)
		if v.DisplayName != "" {
			fmt.Printf("Display:     %s\n", v.DisplayName)
		}
		fmt.Printf("Map:         %s\n", v.Map)
		fmt.Printf("Saved:       %s\n", v.SaveDate.Local().Format(time.DateTime))
		fmt.Printf("Played:      %s (this slot %s)\n",
			time.Duration(v.PlayedSeconds*float64(time.Second)).Round(time.Second),
			time.Duration(v.SlotPlayedSecs*float64(time.Second)).Round(time.Second))
		fmt.Printf("Compressed:  %t\n", v.UseCompression)
		fmt.Printf("Actors:      allow %v deny %v\n", v.Actors.Allow, v.Actors.Deny)
		fmt.Printf("Components:  %t, allow %v deny %v\n", v.StoreComponents, v.Components.Allow, v.Components.Deny)
		fmt.Printf("Subsystems:  allow %v deny %v\n", v.Subsystems.Allow, v.Subsystems.Deny)
		if v.Thumbnail != "" {
			fmt.Printf("Thumbnail:   %s\n", v.Thumbnail)
		}
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, app *injector.App) error {
		if flagDeleteAll {
			n, err := app.Manager.Files().DeleteAll(ctx)
			fmt.Printf("Deleted %d slots.\n", n)
			return err
		}
		if !app.Manager.IsSlotSaved(args[0]) {
			return fmt.Errorf("slot %q not found", args[0])
		}
		if !app.Manager.DeleteSlot(args[0]) {
			return fmt.Errorf("delete slot %q failed", args[0])
		}
		fmt.Printf("Deleted %s.\n", args[0])
		return nil
	})
}
