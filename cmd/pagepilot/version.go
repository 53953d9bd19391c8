package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionCmd prints build information.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pagepilot %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
