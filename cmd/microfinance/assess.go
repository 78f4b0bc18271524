// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/microfinance-engine/internal/store"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

var assessCmd = &cobra.Command{
	Use:   "assess [files...]",
	Short: "Run the full assessment pipeline over applications",
	Long: `Assess runs intake on each file, then verifies KYC documents, scores
credit, ESG and social sentiment, checks banking behavior and decides the
loan terms. Every assessment is stored. Exits non-zero when any application
could not be loaded or assessed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().Int("concurrency", 0, "applications assessed in parallel (default from config, 4)")
	assessCmd.Flags().Bool("ocr", false, "extract document text with the tesseract container")
	assessCmd.Flags().String("sentiment", "", "sentiment backend: lexicon or claude")
	assessCmd.Flags().Bool("json", false, "print assessments as JSON")

	rootCmd.AddCommand(assessCmd)
}

// applyStageFlags overrides config with flags given on the command line.
func applyStageFlags(cmd *cobra.Command, cfg *types.EngineConfig) {
	flags := cmd.Flags()
	if flags.Changed("ocr") {
		cfg.KYC.OCR, _ = flags.GetBool("ocr")
	}
	if flags.Lookup("sentiment") != nil && flags.Changed("sentiment") {
		s, _ := flags.GetString("sentiment")
		cfg.Social.Sentiment = types.SentimentBackendName(s)
	}
	if flags.Lookup("concurrency") != nil && flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStageFlags(cmd, &cfg)
	if cfg.Social.Sentiment != types.SentimentLexicon && cfg.Social.Sentiment != types.SentimentClaude {
		return fmt.Errorf("unknown sentiment backend %q: use lexicon or claude", cfg.Social.Sentiment)
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Status lines go to stderr when stdout carries JSON.
	var status io.Writer = os.Stdout
	if jsonOutput {
		status = os.Stderr
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, closer, err := buildEngine(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closer.Close()

	loaded := newLoader(cfg, true).LoadBatch(ctx, args, status)
	fmt.Fprintln(status)
	result := eng.ProcessBatch(ctx, loaded.Applications, cfg.Concurrency, status)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Assessments); err != nil {
			return err
		}
	}

	switch {
	case loaded.HasFailures() && result.HasFailures():
		return fmt.Errorf("%d application(s) failed intake, %d failed assessment",
			loaded.Failed, result.Errored+result.SaveFailures)
	case loaded.HasFailures():
		return fmt.Errorf("%d application(s) failed intake", loaded.Failed)
	case result.HasFailures():
		return fmt.Errorf("%d application(s) failed assessment", result.Errored+result.SaveFailures)
	}
	return nil
}
