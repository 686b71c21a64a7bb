// Package main provides the invoicegate binary: the wallet authentication
// API server and a headless wallet client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "invoicegate"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	envFile  string
	logLevel string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Wallet challenge/response authentication and sessions",
		Long: `invoicegate issues one-time signing challenges to Ethereum wallets,
verifies personal-sign signatures, mints JWT session pairs and binds
verified wallets to user accounts.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path of an optional .env file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(loginCmd(flags))
	cmd.AddCommand(whoamiCmd(flags))
	cmd.AddCommand(logoutCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}
