// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/microfinance-engine/internal/intake"
	"github.com/pdiddy/microfinance-engine/internal/kyc"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

var kycCmd = &cobra.Command{
	Use:   "kyc [file]",
	Short: "Verify the KYC documents of one application",
	Long: `KYC checks that the application carries an ID, address and income
document, that each is a readable file of a supported format and, with --ocr,
that the extracted text matches the document kind. Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runKYC,
}

func init() {
	kycCmd.Flags().Bool("ocr", false, "extract document text with the tesseract container")
	kycCmd.Flags().Bool("json", false, "print the result as JSON")

	rootCmd.AddCommand(kycCmd)
}

func runKYC(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStageFlags(cmd, &cfg)

	app, err := intake.ReadFile(args[0])
	if err != nil {
		return err
	}
	if err := newLoader(cfg, false).Prepare(ctx, app); err != nil {
		return err
	}
	extractor, err := newExtractor(ctx, cfg.KYC)
	if err != nil {
		return err
	}

	res := kyc.Verify(ctx, app.KYCDocuments, kyc.Options{
		Extractor:        extractor,
		ApplicantName:    app.PersonalData.Name,
		MaxDocumentBytes: cfg.KYC.MaxDocumentBytes,
	})

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printKYC(app.ID, res)
	}

	if !res.Verified {
		return errors.New("kyc verification failed")
	}
	return nil
}

func printKYC(id string, res types.KYCResult) {
	fmt.Fprintf(os.Stdout, "%-14s  %-6s  %-8s  %-6s  %s\n", "Document", "Format", "OCR", "Result", "Reason")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
	for _, kind := range types.RequiredDocuments {
		check, ok := res.Details[kind]
		if !ok {
			fmt.Fprintf(os.Stdout, "%-14s  %-6s  %-8s  %-6s  %s\n", kind, "-", "-", "FAIL", "missing")
			continue
		}
		result := "ok"
		if !check.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(os.Stdout, "%-14s  %-6s  %-8s  %-6s  %s\n", kind, check.Format, check.OCR, result, check.Reason)
	}
	verdict := "verified"
	if !res.Verified {
		verdict = fmt.Sprintf("not verified (%d problems)", len(res.Errors))
	}
	fmt.Fprintf(os.Stdout, "\n%s: %s\n", id, verdict)
}
