// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/pdiddy/microfinance-engine/internal/report"
	"github.com/pdiddy/microfinance-engine/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report [application-id]",
	Short: "Render a stored assessment as a Markdown report",
	Long: `Report renders the stored assessment for an application to
<data-dir>/reports/<id>.md. Use --template to supply a custom text/template
file and --stdout to print instead of writing the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("template", "", "custom report template file")
	reportCmd.Flags().Bool("stdout", false, "print the report instead of writing it")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var tmpl *template.Template
	if path, _ := cmd.Flags().GetString("template"); path != "" {
		if tmpl, err = report.LoadTemplate(path); err != nil {
			return err
		}
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
		data, err := report.Render(tmpl, a)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	path, err := report.Write(cfg.Store.DataDir, tmpl, a)
	if err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}
