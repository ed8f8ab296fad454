package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

// version is set at build time via -ldflags; it defaults to "dev" for
// local builds.
var version = "dev"

var versionFormat = `
Version: %s
GOOS: %s-%s`

var versionCmd = &cobra.Command{
	Use: "version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf(versionFormat+"\n", version, runtime.GOOS, runtime.GOARCH)
	},
}
