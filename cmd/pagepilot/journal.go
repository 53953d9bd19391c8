package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/audit"
	"github.com/pagepilot/pagepilot/internal/config"
)

// JournalCmd prints recent action journal entries.
func JournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent journal entries",
	}
	limit := cmd.Flags().IntP("limit", "n", 20, "number of entries to print")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		r := resolveConfig()

		path := r.JournalPath
		if path == "" {
			dir, err := config.DataDir()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			path = filepath.Join(dir, "journal.db")
		}
		// Reading must not create an empty journal.
		if _, err := os.Stat(path); err != nil {
			fmt.Println("No journal entries.")
			return
		}

		store, err := audit.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		entries, err := store.Recent(context.Background(), *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("No journal entries.")
			return
		}

		fmt.Printf("Journal (%d entries, newest first):\n", len(entries))
		for _, e := range entries {
			line := fmt.Sprintf("  %s  %-6s  %s", e.Time.Format("2006-01-02 15:04:05"), e.Op, e.Outcome)
			if e.ErrorKind != "" {
				line += " (" + e.ErrorKind + ")"
			}
			if e.Tier != "" {
				line += "  tier=" + e.Tier
			}
			if e.Duration > 0 {
				line += fmt.Sprintf("  %dms", e.Duration.Milliseconds())
			}
			fmt.Println(line)
			if e.Descriptor != "" {
				fmt.Printf("      %s\n", e.Descriptor)
			}
		}
	}
	return cmd
}
