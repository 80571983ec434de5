package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"servicecalls/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	rootCmd := &cobra.Command{
		Use:   "records-import",
		Short: "Load service-call datasets into the local SQLite store",
		Long: `records-import copies a service-call dataset into the SQLite database the
dashboard reads when DATA_BACKEND=sqlite. Every import replaces the whole
dataset.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")

	rootCmd.AddCommand(fileCmd())
	rootCmd.AddCommand(remoteCmd())
	rootCmd.AddCommand(backendCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(tailCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
