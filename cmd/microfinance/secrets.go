// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/microfinance-engine/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage credentials in the OS keyring",
	Long: `Secrets are read from files in .secrets/ first and then from the OS
keyring under the service "microfinance-engine". Known keys are
anthropic-api-key, redis-password, postgres-dsn, and any api_key_secret named
by a social feed provider.`,
}

var secretsSetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store a secret read from stdin in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 64<<10))
		if err != nil {
			return fmt.Errorf("reading secret from stdin: %w", err)
		}
		if err := secrets.Store(args[0], string(value)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Stored %s in keyring service %s\n", args[0], secrets.KeyringService)
		return nil
	},
}

func init() {
	secretsCmd.AddCommand(secretsSetCmd)
	rootCmd.AddCommand(secretsCmd)
}
