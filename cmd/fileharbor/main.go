package main

import (
	"os"

	"github.com/spf13/cobra"

	"fileharbor/internal/interfaces/cli/migrate"
	"fileharbor/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fileharbor",
		Short: "FileHarbor - subscription billing service",
		Long:  `FileHarbor is the subscription lifecycle service for the FileHarbor platform, with a built-in server, migration tools, and a maintenance worker.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
