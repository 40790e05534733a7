package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zorli-ai/docvault/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docvaultd",
		Short: "DocVault daemon and CLI",
		Long:  "DocVault daemon for running the document retrieval API server and managing its pipeline",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ExtractCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
