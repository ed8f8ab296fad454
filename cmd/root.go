package cmd

import (
	"encoding/hex"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"gridctl/internal/logger"
	"gridctl/internal/server"
)

// emptyRDBHex is the fixed, opaque empty-RDB snapshot payload spec.md §6
// calls "a fixed opaque byte blob supplied to the core" -- ported
// byte-for-byte from original_source/src/connections/connection.rs's
// send_empty_rdb_file.
const emptyRDBHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a72656469732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656dc2b0c41000fa08616f662d62617365c000fff06e3bfec0ff5aa2"

// rootCmd is the gridctl server entrypoint.
var rootCmd = &cobra.Command{
	Use:   "gridctl",
	Short: "A Redis-compatible in-memory key-value server",
	Long: `gridctl is a Redis-compatible in-memory key-value server speaking the
RESP wire protocol, with per-key TTL expiry, MULTI/EXEC/DISCARD
transactions, and primary->replica replication.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := logger.LogLevel(getStringFlag(cmd, "log-level", "info"))
		logger.Init(logLevel)

		emptyRDB, err := hex.DecodeString(emptyRDBHex)
		if err != nil {
			logger.Fatalf("invalid built-in empty RDB payload: %v", err)
		}

		srv := server.New(server.Config{
			Addr:      net.JoinHostPort("", strconv.Itoa(getIntFlag(cmd, "port", 6379))),
			ReplicaOf: getStringFlag(cmd, "replicaof", ""),
			EmptyRDB:  emptyRDB,
		})

		if err := srv.Start(); err != nil {
			logger.Errorf("failed to start server: %v", err)
			return err
		}
		logger.Infof("server started on %s", srv.Addr())

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server...")
		if err := srv.Close(); err != nil {
			logger.Errorf("error closing server: %v", err)
		}
		return nil
	},
}

// Execute adds child commands to root and runs it. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().IntP("port", "p", 6379, "server port")
	rootCmd.Flags().StringP("replicaof", "r", "", `replicate from a primary, e.g. "localhost 6379"`)
}

func getStringFlag(cmd *cobra.Command, name, defaultValue string) string {
	if value, err := cmd.Flags().GetString(name); err == nil && value != "" {
		return value
	}
	return defaultValue
}

func getIntFlag(cmd *cobra.Command, name string, defaultValue int) int {
	if value, err := cmd.Flags().GetInt(name); err == nil {
		return value
	}
	return defaultValue
}
