// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/microfinance-engine/internal/store"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Query stored assessments (list, show, export, stats)",
	Long: `Records queries the assessment database. Text queries use SQLite FTS5
over applicant name, business type, rejection reason and recommendations.`,
}

// --- list subcommand ---

var recordsListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List assessments, newest first or by text relevance",
	RunE:  runRecordsList,
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}
	results, err := st.List(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No assessments found.")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-12s  %-9s  %-9s  %5s  %10s\n",
		"Application", "Applicant", "Business", "Status", "Risk", "Score", "Amount")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 112))
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-12s  %-9s  %-9s  %5.2f  %10.0f\n",
			r.ApplicationID, truncate(r.ApplicantName, 20), truncate(r.BusinessType, 12),
			r.Status, r.RiskLevel, r.FinalScore, r.LoanAmount)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- show subcommand ---

var recordsShowCmd = &cobra.Command{
	Use:   "show [application-id]",
	Short: "Print one stored assessment as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsShow,
}

func runRecordsShow(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := st.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(a)
}

// --- export subcommand ---

var recordsExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export assessments to index/export.yaml or export.json",
	Long: `Export writes matching assessments in full to <data-dir>/index/export.yaml
or export.json. It supports the same filter flags as list.`,
	RunE: runRecordsExport,
}

func runRecordsExport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	format, _ := cmd.Flags().GetString("format")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	opts, err := queryOptsFromFlags(cmd, args)
	if err != nil {
		return err
	}

	var path string
	switch format {
	case "yaml", "":
		path, err = st.ExportYAML(ctx, opts)
	case "json":
		path, err = st.ExportJSON(ctx, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", path)
	return nil
}

// --- stats subcommand ---

var recordsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize stored assessments by status and risk level",
	RunE:  runRecordsStats,
}

func runRecordsStats(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Assessments:       %d\n", stats.Total)
	fmt.Printf("Mean final score:  %.2f\n", stats.MeanFinalScore)
	fmt.Printf("Total approved:    %.0f\n", stats.TotalLent)
	printCounts("By status", stats.ByStatus)
	printCounts("By risk level", stats.ByRiskLevel)
	return nil
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-10s %d\n", k, counts[k])
	}
}

// --- shared helpers ---

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Store)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) (store.QueryOptions, error) {
	status, _ := cmd.Flags().GetString("status")
	risk, _ := cmd.Flags().GetString("risk")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	limit, _ := cmd.Flags().GetInt("limit")

	switch types.DecisionStatus(status) {
	case "", types.StatusPending, types.StatusApproved, types.StatusRejected, types.StatusError:
	default:
		return store.QueryOptions{}, fmt.Errorf("unknown status %q", status)
	}

	return store.QueryOptions{
		Query:      strings.Join(args, " "),
		Status:     types.DecisionStatus(status),
		RiskLevel:  types.RiskLevel(risk),
		MinScore:   minScore,
		MaxResults: limit,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "filter by decision status (approved, rejected, error)")
	cmd.Flags().String("risk", "", "filter by risk level (low, medium, high, very_high)")
	cmd.Flags().Float64("min-score", 0, "minimum final score")
	cmd.Flags().Int("limit", 0, "maximum results (default from config, 20)")
}

func init() {
	addFilterFlags(recordsListCmd)
	recordsListCmd.Flags().Bool("json", false, "print results as JSON")

	recordsShowCmd.Flags().Bool("json", false, "print as JSON instead of YAML")

	addFilterFlags(recordsExportCmd)
	recordsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	recordsStatsCmd.Flags().Bool("json", false, "print as JSON")

	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsExportCmd, recordsStatsCmd)
	rootCmd.AddCommand(recordsCmd)
}
