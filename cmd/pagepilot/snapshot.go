package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/axtree"
	"github.com/pagepilot/pagepilot/internal/browser"
)

// SnapshotCmd prints what the agent sees: the filtered accessibility tree of
// the selected tab.
func SnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the page's accessibility snapshot",
		Run: func(cmd *cobra.Command, args []string) {
			quietLogs()
			r := resolveConfig()
			ctx := context.Background()
			hctx, _ := openTab(ctx, r)
			defer browser.GetManager().CloseAll()

			text, err := axtree.New(hctx).Extract(ctx)
			if err != nil {
				fail(err)
			}
			fmt.Print(text)
		},
	}
}
