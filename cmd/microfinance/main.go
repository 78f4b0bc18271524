// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the microfinance CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/microfinance-engine/internal/config"
	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets resolves API keys from .secrets/ and the OS keyring.
var loadedSecrets = secrets.NewSet(nil)

// rootCmd is the base command for the microfinance CLI.
var rootCmd = &cobra.Command{
	Use:   "microfinance",
	Short: "Assess microloan applications",
	Long: `microfinance assesses microloan applications. Each application goes through
KYC document verification, credit scoring, ESG scoring, social media analysis and
behavioral checks before a loan decision picks the amount, rate and term.

Assessments are stored in a local SQLite database (or PostgreSQL) and can be
queried, exported, rendered as Markdown reports, or served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New(logging.Config{
			Level:   viper.GetString(config.KeyLogLevel),
			Format:  viper.GetString(config.KeyLogFormat),
			Service: "microfinance",
		})
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(logging.WithLogger(ctx, log))

		if used := viper.ConfigFileUsed(); used != "" {
			log.Debug().Str("path", used).Msg("using config file")
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = secrets.NewSet(s)
		if keys := loadedSecrets.Keys(); len(keys) > 0 {
			sort.Strings(keys)
			log.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./microfinance.yaml or ~/.config/microfinance/microfinance.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("data-dir", ".", "base directory for applications/, documents/, index/ and reports/")

	_ = viper.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyLogFormat, pf.Lookup("log-format"))
	_ = viper.BindPFlag(config.KeyDataDir, pf.Lookup("data-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if _, err := config.Init(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
