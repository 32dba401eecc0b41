// savectl manages zeusave slot files and runs a simulated world against the save manager.
//
// Usage:
//
//	savectl demo                 - Save, disturb and reload a generated world
//	savectl list                 - List slots, newest first
//	savectl inspect <slot>       - Print slot metadata without reading world data
//	savectl delete <slot>|--all  - Delete slots
//	savectl serve                - Tick a world with autosave and serve the event feed
//
// Global flags:
//
//	--config <path>     - Settings file (YAML)
//	--save-dir <path>   - Override the save directory
//	--log-level <level> - Override the log level
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagConfig   string
	flagSaveDir  string
	flagLogLevel string
	flagJSON     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "savectl",
	Short: "Inspect save slots and exercise the save manager",
	Long: `savectl works on the slot files of a zeusave save directory (or redis store)
and can drive a simulated world through save and load cycles.

Examples:
  savectl demo --actors 500
  savectl list --save-dir ./SaveGames
  savectl inspect autosave --json
  savectl delete --all
  savectl serve --addr 127.0.0.1:8080`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a settings file")
	rootCmd.PersistentFlags().StringVar(&flagSaveDir, "save-dir", "", "Save directory (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error, silent")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of text")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(serveCmd)
}
