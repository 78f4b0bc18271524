// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders assessments as Markdown loan reports.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// ReportsDir is the subdirectory under the data dir holding rendered reports.
const ReportsDir = "reports"

//go:embed default.md.tmpl
var defaultTemplate string

var funcs = template.FuncMap{
	"pct":   func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"score": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"money": formatMoney,
	"date":  func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") },
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ReplaceAll(s[1:], "_", " ")
	},
}

// Default returns the built-in report template.
func Default() *template.Template {
	return template.Must(template.New("report").Funcs(funcs).Parse(defaultTemplate))
}

// LoadTemplate parses a template file, with the report helper functions
// available to it.
func LoadTemplate(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	tmpl, err := template.New(filepath.Base(path)).Funcs(funcs).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", filepath.Base(path), err)
	}
	return tmpl, nil
}

// Render executes tmpl over a. A nil tmpl uses the default template.
func Render(tmpl *template.Template, a types.Assessment) ([]byte, error) {
	if tmpl == nil {
		tmpl = Default()
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, a); err != nil {
		return nil, fmt.Errorf("rendering report for %s: %w", a.ApplicationID, err)
	}
	return buf.Bytes(), nil
}

// Write renders a and writes it atomically to <dataDir>/reports/<id>.md,
// returning the path.
func Write(dataDir string, tmpl *template.Template, a types.Assessment) (string, error) {
	if a.ApplicationID == "" {
		return "", fmt.Errorf("assessment has no application id")
	}
	if !types.ValidApplicationID(a.ApplicationID) {
		return "", fmt.Errorf("application id %q cannot name a report file", a.ApplicationID)
	}
	data, err := Render(tmpl, a)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataDir, ReportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}
	path := filepath.Join(dir, a.ApplicationID+".md")
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

var moneyPrinter = message.NewPrinter(language.English)

// formatMoney rounds to whole units and groups thousands: 1234567 -> "1,234,567".
func formatMoney(v float64) string {
	return moneyPrinter.Sprintf("%d", int64(math.Round(v)))
}
