package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/browser"
)

// TabsCmd lists the endpoint's open page targets.
func TabsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List open tabs on the endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			quietLogs()
			r := resolveConfig()
			ctx, cancel := context.WithTimeout(context.Background(), r.ConnectTimeout)
			defer cancel()

			targets, err := browser.ListTargets(ctx, r.EndpointURL)
			if err != nil {
				failConnect(err, r)
			}
			if len(targets) == 0 {
				fmt.Println("No tabs found.")
				return
			}
			fmt.Println("Tabs:")
			for _, t := range targets {
				title := t.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("  %s  %s\n", t.ID, title)
				fmt.Printf("      %s\n", t.URL)
			}
		},
	}
}
