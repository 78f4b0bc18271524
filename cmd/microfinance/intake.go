// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var intakeCmd = &cobra.Command{
	Use:   "intake [files...]",
	Short: "Validate applications and store them with their documents",
	Long: `Intake reads application files (YAML or JSON), assigns IDs, validates
them, downloads documents given by URL to documents/<id>/, and writes the
normalized application to applications/<id>.yaml. Applications that are
already stored are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIntake,
}

func init() {
	rootCmd.AddCommand(intakeCmd)
}

func runIntake(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	result := newLoader(cfg, true).LoadBatch(commandContext(cmd), args, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d application(s) failed intake", result.Failed)
	}
	return nil
}
