// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kyc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// mapExtractor returns text keyed by file base name.
type mapExtractor map[string]string

func (m mapExtractor) Extract(_ context.Context, path string) (string, error) {
	text, ok := m[filepath.Base(path)]
	if !ok {
		return "", errors.New("ocr crashed")
	}
	return text, nil
}

func docFile(t *testing.T, dir, name, content string) types.Document {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return types.Document{Path: p}
}

func fullDocs(t *testing.T) map[types.DocumentKind]types.Document {
	dir := t.TempDir()
	return map[types.DocumentKind]types.Document{
		types.DocIDProof:      docFile(t, dir, "id.jpg", "JPEGDATA"),
		types.DocAddressProof: docFile(t, dir, "address.pdf", "%PDF"),
		types.DocIncomeProof:  docFile(t, dir, "income.png", "PNGDATA"),
	}
}

func TestVerifyAllPresentWithoutOCR(t *testing.T) {
	res := Verify(context.Background(), fullDocs(t), Options{})
	assert.True(t, res.Verified)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Details, 3)
	for _, c := range res.Details {
		assert.True(t, c.Passed)
		assert.Equal(t, OCRSkipped, c.OCR)
	}
	assert.Equal(t, "jpg", res.Details[types.DocIDProof].Format)
	assert.Equal(t, int64(8), res.Details[types.DocIDProof].SizeBytes)
}

func TestVerifyMissingDocuments(t *testing.T) {
	docs := fullDocs(t)
	delete(docs, types.DocIDProof)
	delete(docs, types.DocIncomeProof)

	res := Verify(context.Background(), docs, Options{})
	assert.False(t, res.Verified)
	assert.Equal(t, []string{"Missing id_proof", "Missing income_proof"}, res.Errors)
	assert.Contains(t, res.Details, types.DocAddressProof)
}

func TestVerifyNoDocuments(t *testing.T) {
	res := Verify(context.Background(), nil, Options{})
	assert.False(t, res.Verified)
	assert.Equal(t, []string{"Missing id_proof", "Missing address_proof", "Missing income_proof"}, res.Errors)
}

func TestVerifyFileChecks(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		doc     types.Document
		opts    Options
		wantErr string
	}{
		{name: "not found", doc: types.Document{Path: filepath.Join(dir, "nope.jpg")}, wantErr: "Invalid id_proof: file not found"},
		{name: "directory", doc: types.Document{Path: dir}, wantErr: "Invalid id_proof: not a regular file"},
		{name: "empty", doc: docFile(t, dir, "empty.jpg", ""), wantErr: "Invalid id_proof: empty file"},
		{name: "bad format", doc: docFile(t, dir, "id.docx", "DOC"), wantErr: `Invalid id_proof: unsupported format "docx"`},
		{name: "too large", doc: docFile(t, dir, "big.jpg", "0123456789"), opts: Options{MaxDocumentBytes: 5}, wantErr: "Invalid id_proof: file too large"},
		{name: "url not fetched", doc: types.Document{URL: "https://example.com/id.jpg"}, wantErr: "Invalid id_proof: document not fetched"},
		{name: "uppercase extension ok", doc: docFile(t, dir, "ID.JPEG", "X")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := fullDocs(t)
			docs[types.DocIDProof] = tt.doc
			res := Verify(context.Background(), docs, tt.opts)
			if tt.wantErr == "" {
				assert.True(t, res.Verified, res.Errors)
				return
			}
			require.Len(t, res.Errors, 1)
			assert.True(t, strings.HasPrefix(res.Errors[0], tt.wantErr), res.Errors[0])
			assert.False(t, res.Details[types.DocIDProof].Passed)
		})
	}
}

func TestVerifyContentRules(t *testing.T) {
	tests := []struct {
		name    string
		texts   mapExtractor
		appName string
		want    []string
	}{
		{
			name: "all pass",
			texts: mapExtractor{
				"id.jpg":      "REPUBLIC ID CARD\nName: JANE DOE",
				"address.pdf": "12 Market Road, Nairobi",
				"income.png":  "Net salary KES 45,000.00",
			},
			appName: "Jane Doe",
		},
		{
			name: "id text too short",
			texts: mapExtractor{
				"id.jpg": "ID  x", "address.pdf": "Plot 4", "income.png": "1,000",
			},
			want: []string{"Invalid id_proof: too little text (3 characters)"},
		},
		{
			name: "name mismatch",
			texts: mapExtractor{
				"id.jpg": "IDENTITY CARD JOHN SMITH", "address.pdf": "Plot 4", "income.png": "1,000",
			},
			appName: "Jane Doe",
			want:    []string{`Invalid id_proof: applicant name "Jane Doe" not found`},
		},
		{
			name: "address and income without numbers",
			texts: mapExtractor{
				"id.jpg": "IDENTITY CARD JANE DOE", "address.pdf": "Market Road", "income.png": "salary paid",
			},
			want: []string{
				"Invalid address_proof: no street or postal number found",
				"Invalid income_proof: no monetary amount found",
			},
		},
		{
			name:  "extractor failure",
			texts: mapExtractor{"id.jpg": "IDENTITY CARD JANE DOE", "income.png": "500"},
			want:  []string{"Verification error: address_proof: ocr crashed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Verify(context.Background(), fullDocs(t), Options{Extractor: tt.texts, ApplicantName: tt.appName})
			if len(tt.want) == 0 {
				assert.True(t, res.Verified, res.Errors)
				for _, c := range res.Details {
					assert.Equal(t, OCRDone, c.OCR)
					assert.Positive(t, c.TextChars)
				}
				return
			}
			assert.False(t, res.Verified)
			assert.Equal(t, tt.want, res.Errors)
		})
	}
}

func TestVerifyExtractorFailureMarksCheck(t *testing.T) {
	res := Verify(context.Background(), fullDocs(t), Options{Extractor: mapExtractor{}})
	assert.Len(t, res.Errors, 3)
	for _, c := range res.Details {
		assert.Equal(t, OCRFailed, c.OCR)
		assert.False(t, c.Passed)
	}
}
