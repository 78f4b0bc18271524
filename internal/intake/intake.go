// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package intake loads microloan applications from YAML or JSON files,
// validates them, and fetches remote KYC documents into the data directory.
package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/microfinance-engine/internal/httputil"
	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

const (
	// ApplicationsDir is the subdirectory under the data dir for normalized applications.
	ApplicationsDir = "applications"
	// DocumentsDir is the subdirectory under the data dir for fetched KYC documents.
	DocumentsDir = "documents"
)

// ErrInvalidApplication wraps every validation failure.
var ErrInvalidApplication = errors.New("invalid application")

// BatchResult holds the outcome of a batch intake run.
type BatchResult struct {
	Loaded       int
	Skipped      int
	Failed       int
	Applications []*types.Application
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Loaded + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed to load.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Loader reads and prepares applications. Guard is used to download URL
// documents; a nil Guard rejects applications that reference URLs.
type Loader struct {
	DataDir   string
	UserAgent string
	Guard     *httputil.Guard

	// MaxDocumentBytes caps a single download (0 = unlimited).
	MaxDocumentBytes int64

	// Persist writes normalized applications to <DataDir>/applications and
	// skips files whose application has already been stored.
	Persist bool

	// ConfineDocuments rejects local document paths outside
	// <DataDir>/documents/<id>/. Set it when applications come from
	// untrusted clients.
	ConfineDocuments bool

	// Now returns the current time; nil uses time.Now.
	Now func() time.Time
}

// Decode parses an application from r. Format is "yaml" or "json".
func Decode(r io.Reader, format string) (*types.Application, error) {
	var app types.Application
	switch format {
	case "yaml":
		if err := yaml.NewDecoder(r).Decode(&app); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&app); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported application format %q", format)
	}
	return &app, nil
}

// ReadFile decodes the application at path, picking the format by extension.
func ReadFile(path string) (*types.Application, error) {
	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".json":
		format = "json"
	default:
		return nil, fmt.Errorf("unsupported application file %s (want .yaml, .yml or .json)", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, format)
}

// Validate checks that the ID is safe to use in file names, numeric fields
// are not negative, and every KYC document names a known kind and a source.
// An empty ID passes; Prepare assigns one. All problems are reported.
func Validate(app *types.Application) error {
	var problems []string
	if app.ID != "" && !types.ValidApplicationID(app.ID) {
		problems = append(problems, fmt.Sprintf("id %q may only contain letters, digits, '.', '_' and '-'", app.ID))
	}
	nonNeg := func(field string, v float64) {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must be >= 0, got %v", field, v))
		}
	}
	nonNeg("personal_data.age", float64(app.PersonalData.Age))
	nonNeg("personal_data.income", app.PersonalData.Income)
	nonNeg("personal_data.expenses", app.PersonalData.Expenses)
	nonNeg("business_data.age", app.BusinessData.Age)
	nonNeg("business_data.revenue", app.BusinessData.Revenue)
	nonNeg("business_data.employees", float64(app.BusinessData.Employees))
	nonNeg("bank_statements.monthly_transactions", float64(app.BankStatements.MonthlyTransactions))
	nonNeg("bank_statements.bounced_checks", float64(app.BankStatements.BouncedChecks))

	for kind, doc := range app.KYCDocuments {
		if !knownKind(kind) {
			problems = append(problems, fmt.Sprintf("unknown document kind %q", kind))
		}
		if doc.Path == "" && doc.URL == "" {
			problems = append(problems, fmt.Sprintf("kyc_documents.%s needs a path or url", kind))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidApplication, strings.Join(problems, "; "))
	}
	return nil
}

func knownKind(kind types.DocumentKind) bool {
	for _, k := range types.RequiredDocuments {
		if k == kind {
			return true
		}
	}
	return false
}

// Prepare normalizes app (ID, submission time), validates it, and downloads
// any URL documents.
func (l *Loader) Prepare(ctx context.Context, app *types.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = l.now().UTC()
	}
	if err := Validate(app); err != nil {
		return err
	}
	if l.ConfineDocuments {
		if err := l.confineDocuments(app); err != nil {
			return err
		}
	}
	return l.fetchDocuments(ctx, app)
}

// confineDocuments resolves every local document path against the
// application's documents directory and rejects paths that leave it.
// The filesystem is not consulted, so a rejection reveals nothing about
// files outside the directory.
func (l *Loader) confineDocuments(app *types.Application) error {
	base, err := filepath.Abs(filepath.Join(l.DataDir, DocumentsDir, app.ID))
	if err != nil {
		return fmt.Errorf("resolving documents directory: %w", err)
	}

	var problems []string
	for _, kind := range types.RequiredDocuments {
		doc, ok := app.KYCDocuments[kind]
		if !ok || doc.Path == "" {
			continue
		}
		p := doc.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		p = filepath.Clean(p)
		rel, err := filepath.Rel(base, p)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			problems = append(problems, fmt.Sprintf(
				"kyc_documents.%s.path must be inside %s/%s/ (submit a url instead)", kind, DocumentsDir, app.ID))
			continue
		}
		doc.Path = p
		app.KYCDocuments[kind] = doc
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidApplication, strings.Join(problems, "; "))
	}
	return nil
}

// LoadFile reads, prepares and, when Persist is set, stores one application.
// The skipped return value is true when the application was already stored.
func (l *Loader) LoadFile(ctx context.Context, path string, w io.Writer) (app *types.Application, skipped bool, err error) {
	app, err = ReadFile(path)
	if err != nil {
		return nil, false, err
	}

	if l.Persist && types.ValidApplicationID(app.ID) {
		stored := l.applicationPath(app.ID)
		if _, statErr := os.Stat(stored); statErr == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", app.ID)
			existing, readErr := ReadFile(stored)
			if readErr != nil {
				return nil, false, fmt.Errorf("reading stored application %s: %w", app.ID, readErr)
			}
			return existing, true, nil
		}
	}

	if err := l.Prepare(ctx, app); err != nil {
		return nil, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if l.Persist {
		if err := l.Save(app); err != nil {
			return nil, false, err
		}
	}
	return app, false, nil
}

// LoadBatch processes files in order, printing per-file status and returning
// a summary. It continues after individual failures.
func (l *Loader) LoadBatch(ctx context.Context, paths []string, w io.Writer) BatchResult {
	log := logging.WithComponent(ctx, "intake")

	var result BatchResult
	for _, p := range paths {
		app, skipped, err := l.LoadFile(ctx, p, w)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", p, err)
			log.Warn().Err(err).Str("file", p).Msg("intake failed")
			result.Failed++
			continue
		}
		if skipped {
			result.Skipped++
		} else {
			fmt.Fprintf(w, "loaded:  %s (%s)\n", app.ID, p)
			result.Loaded++
		}
		result.Applications = append(result.Applications, app)
	}
	fmt.Fprintf(w, "\nBatch summary: %d loaded, %d skipped, %d failed (total: %d)\n",
		result.Loaded, result.Skipped, result.Failed, result.Total())
	return result
}

// Save writes app as YAML to <DataDir>/applications/<id>.yaml atomically.
func (l *Loader) Save(app *types.Application) error {
	if !types.ValidApplicationID(app.ID) {
		return fmt.Errorf("%w: id %q cannot name an application file", ErrInvalidApplication, app.ID)
	}
	dir := filepath.Join(l.DataDir, ApplicationsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(app); err != nil {
		return fmt.Errorf("marshaling application %s: %w", app.ID, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshaling application %s: %w", app.ID, err)
	}
	if err := renameio.WriteFile(l.applicationPath(app.ID), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing application %s: %w", app.ID, err)
	}
	return nil
}

func (l *Loader) applicationPath(id string) string {
	return filepath.Join(l.DataDir, ApplicationsDir, id+".yaml")
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
