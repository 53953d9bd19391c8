package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/annotate"
	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/finder"
)

// ResolveCmd runs the finder without executing anything.
func ResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an element descriptor and print the candidate ranking",
	}
	f := addTargetFlags(cmd)
	annotatePath := cmd.Flags().String("annotate", "", "write an annotated screenshot to this PNG file")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		quietLogs()
		d, err := f.descriptor()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if d.Empty() {
			fmt.Fprintln(os.Stderr, "Error: describe the element with --tag, --text, --attr or --box")
			os.Exit(1)
		}
		r := resolveConfig()
		ctx := context.Background()
		hctx, _ := openTab(ctx, r)
		defer browser.GetManager().CloseAll()

		res, err := finder.New(hctx).Resolve(ctx, d)
		if err != nil {
			fail(err)
		}
		printRanking(res)

		if *annotatePath != "" {
			shot, err := hctx.Session.Screenshot(ctx)
			if err != nil {
				fail(err)
			}
			out, err := annotate.PNG(shot, annotate.Marks(res, annotate.DefaultMaxMarks))
			if err != nil {
				fail(err)
			}
			if err := os.WriteFile(*annotatePath, out, 0o644); err != nil {
				fail(err)
			}
			fmt.Printf("Annotated screenshot written to %s\n", *annotatePath)
		}
	}
	return cmd
}

// printRanking reports the winner, its signals, and the runners-up.
func printRanking(res *finder.Result) {
	m := res.Match
	fmt.Printf("Resolved: %s\n", m.Summary())
	fmt.Printf("  score: %d  matched: %s\n", m.Score, strings.Join(m.MatchedBy, ", "))
	fmt.Printf("  center: (%.0f, %.0f)  node: %d\n", m.CenterX, m.CenterY, m.BackendNodeID)
	fmt.Printf("  candidates: %d collected, %d scored\n", res.CandidateCount, len(res.Ranked))
	if res.Ambiguous {
		fmt.Println("  ambiguous: the runner-up scored nearly as high; add more signals")
	}
	if len(res.Ranked) > 1 {
		fmt.Println("Runners-up:")
		for _, s := range res.Ranked[1:] {
			fmt.Printf("  %3d  %s  (%s)\n", s.Score, s.Summary(), strings.Join(s.MatchedBy, ", "))
		}
	}
}
