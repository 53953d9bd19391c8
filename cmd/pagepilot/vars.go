package cli

import (
	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/config"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile     string
	targetID    string
	urlContains string
	verbose     bool
)

// RootConfig holds the loaded configuration (set by main)
var RootConfig *config.Config

// Version is stamped by the release build.
var Version = "dev"

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	RootConfig = c

	rootCmd := &cobra.Command{
		Use:   "pagepilot",
		Short: "PagePilot - drive an already-open browser tab",
		Long: `PagePilot resolves elements and executes interactions on a live page over the
Chrome DevTools Protocol. It never launches a browser: point it at a running
endpoint (PAGEPILOT_ENDPOINT or the config file) or at the extension bridge.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: embedded defaults)")
	rootCmd.PersistentFlags().StringVar(&targetID, "target", "", "id of the tab to drive (default: first page)")
	rootCmd.PersistentFlags().StringVar(&urlContains, "url", "", "drive the first tab whose URL contains this substring")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add commands
	rootCmd.AddCommand(TabsCmd())
	rootCmd.AddCommand(ResolveCmd())
	rootCmd.AddCommand(ClickCmd())
	rootCmd.AddCommand(TypeCmd())
	rootCmd.AddCommand(SelectCmd())
	rootCmd.AddCommand(ToggleCmd())
	rootCmd.AddCommand(SubmitCmd())
	rootCmd.AddCommand(SnapshotCmd())
	rootCmd.AddCommand(JournalCmd())
	rootCmd.AddCommand(BridgeCmd())
	rootCmd.AddCommand(VersionCmd())

	return rootCmd
}
