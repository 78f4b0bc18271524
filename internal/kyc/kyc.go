// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package kyc verifies that an application carries the required identity,
// address and income documents and that their content is plausible.
package kyc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/microfinance-engine/internal/ocr"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// DefaultMaxDocumentBytes is the size limit when Options leaves it unset.
const DefaultMaxDocumentBytes int64 = 10 << 20

// OCR states recorded on each DocumentCheck.
const (
	OCRDone    = "done"
	OCRSkipped = "skipped"
	OCRFailed  = "failed"
)

// minIDChars is the least amount of non-space text an ID document must yield.
const minIDChars = 10

var allowedFormats = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true,
	".tif": true, ".tiff": true, ".txt": true,
}

var amountPattern = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)

// Options configures Verify.
type Options struct {
	// Extractor enables content checks. Nil skips OCR.
	Extractor ocr.Extractor

	// ApplicantName is matched against the ID document text when set.
	ApplicantName string

	MaxDocumentBytes int64
}

// Verify checks each required document in order. Missing documents and
// failed checks are recorded as errors; checking always continues to the
// next document.
func Verify(ctx context.Context, docs map[types.DocumentKind]types.Document, opts Options) types.KYCResult {
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}

	res := types.KYCResult{
		Errors:  []string{},
		Details: make(map[types.DocumentKind]types.DocumentCheck),
	}
	for _, kind := range types.RequiredDocuments {
		doc, ok := docs[kind]
		if !ok || doc.Source() == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("Missing %s", kind))
			continue
		}

		check, verr := checkDocument(ctx, kind, doc, opts)
		res.Details[kind] = check
		switch {
		case verr != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("Verification error: %s: %v", kind, verr))
		case !check.Passed:
			res.Errors = append(res.Errors, fmt.Sprintf("Invalid %s: %s", kind, check.Reason))
		}
	}
	res.Verified = len(res.Errors) == 0
	return res
}

// checkDocument runs the file and content checks for one document. A
// non-nil error means the extractor itself failed, as opposed to the
// document failing a rule.
func checkDocument(ctx context.Context, kind types.DocumentKind, doc types.Document, opts Options) (types.DocumentCheck, error) {
	check := types.DocumentCheck{
		Kind:   kind,
		Source: doc.Source(),
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(doc.Source())), "."),
		OCR:    OCRSkipped,
	}

	if doc.Path == "" {
		check.Reason = "document not fetched"
		return check, nil
	}

	info, err := os.Stat(doc.Path)
	switch {
	case err != nil:
		check.Reason = "file not found"
		return check, nil
	case !info.Mode().IsRegular():
		check.Reason = "not a regular file"
		return check, nil
	}
	check.SizeBytes = info.Size()
	if check.SizeBytes == 0 {
		check.Reason = "empty file"
		return check, nil
	}
	if check.SizeBytes > opts.MaxDocumentBytes {
		check.Reason = fmt.Sprintf("file too large (%d bytes, limit %d)", check.SizeBytes, opts.MaxDocumentBytes)
		return check, nil
	}
	if !allowedFormats["."+check.Format] {
		check.Reason = fmt.Sprintf("unsupported format %q", check.Format)
		return check, nil
	}

	if opts.Extractor == nil {
		check.Passed = true
		return check, nil
	}

	text, err := opts.Extractor.Extract(ctx, doc.Path)
	if err != nil {
		check.OCR = OCRFailed
		check.Reason = err.Error()
		return check, err
	}
	check.OCR = OCRDone
	check.TextChars = len([]rune(text))

	if reason := contentProblem(kind, text, opts.ApplicantName); reason != "" {
		check.Reason = reason
		return check, nil
	}
	check.Passed = true
	return check, nil
}

// contentProblem applies the per-kind text rules and returns a reason when
// the text fails them.
func contentProblem(kind types.DocumentKind, text, applicantName string) string {
	switch kind {
	case types.DocIDProof:
		if n := nonSpaceChars(text); n < minIDChars {
			return fmt.Sprintf("too little text (%d characters)", n)
		}
		lower := strings.ToLower(text)
		for _, tok := range strings.Fields(strings.ToLower(applicantName)) {
			if !strings.Contains(lower, tok) {
				return fmt.Sprintf("applicant name %q not found", applicantName)
			}
		}
	case types.DocAddressProof:
		if !strings.ContainsFunc(text, unicode.IsDigit) {
			return "no street or postal number found"
		}
	case types.DocIncomeProof:
		if !amountPattern.MatchString(text) {
			return "no monetary amount found"
		}
	}
	return ""
}

func nonSpaceChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
