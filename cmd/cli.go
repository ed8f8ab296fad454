package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"gridctl/internal/cli"
)

// cliCmd is an interactive gridctl command-line interface, similar to
// redis-cli. Adapted from the teacher's cmd/cli.go, scoped down: no
// --password/--db/--tls/--eval/--file/--pipe, since auth and multiple
// databases are explicit non-goals and batch modes aren't part of
// internal/cli's scope.
var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Interactive gridctl command-line interface",
	Long: `Interactive gridctl command-line interface similar to redis-cli.

Connect to a running gridctl server and execute commands interactively.

Examples:
  gridctl cli
  gridctl cli --host 127.0.0.1 --port 6380`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Run(cli.Config{
			Host:    getStringFlag(cmd, "host", "127.0.0.1"),
			Port:    getIntFlag(cmd, "port", 6379),
			Timeout: getDurationFlag(cmd, "timeout", 5*time.Second),
		})
	},
}

func init() {
	rootCmd.AddCommand(cliCmd)

	cliCmd.Flags().String("host", "127.0.0.1", "gridctl server host")
	cliCmd.Flags().IntP("port", "p", 6379, "gridctl server port")
	cliCmd.Flags().Duration("timeout", 5*time.Second, "connection timeout")
}

func getDurationFlag(cmd *cobra.Command, name string, defaultValue time.Duration) time.Duration {
	if value, err := cmd.Flags().GetDuration(name); err == nil {
		return value
	}
	return defaultValue
}
