// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists applications and their assessments in SQLite
// (default) or PostgreSQL and answers queries over them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

const (
	// IndexDir is the subdirectory under the data dir holding the database and exports.
	IndexDir = "index"
	dbFile   = "microfinance.db"

	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultMaxResults = 20
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no assessment exists for an application ID.
var ErrNotFound = errors.New("assessment not found")

// Store manages the assessment database.
type Store struct {
	db         *sqlx.DB
	driver     string
	indexDir   string
	maxResults int

	// fts is true when the SQLite FTS5 index is available.
	fts bool
}

// Open connects to the database named by cfg and creates the schema if it
// does not exist. SQLite databases live at <DataDir>/index/microfinance.db.
func Open(ctx context.Context, cfg types.StoreConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	indexDir := filepath.Join(cfg.DataDir, IndexDir)

	var dsn string
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(indexDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		dsn = filepath.Join(indexDir, dbFile) + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store needs a DSN")
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer avoids SQLITE_BUSY under batch assessment.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	s := New(db, indexDir, cfg.MaxResults)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// New wraps an open database. The driver name is taken from db. Call
// Migrate before first use on a fresh database.
func New(db *sqlx.DB, indexDir string, maxResults int) *Store {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Store{db: db, driver: db.DriverName(), indexDir: indexDir, maxResults: maxResults}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the database driver name.
func (s *Store) Driver() string { return s.driver }

// Migrate creates tables, indexes and, on SQLite, the FTS5 index with its
// sync triggers. When FTS5 is not compiled in, text queries fall back to LIKE.
func (s *Store) Migrate(ctx context.Context) error {
	// REAL is 8 bytes on SQLite but 4 on PostgreSQL.
	idColumn, floatType := "rowid INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if s.driver == DriverPostgres {
		idColumn, floatType = "rowid BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS applications (
			id TEXT PRIMARY KEY,
			applicant_id TEXT,
			applicant_name TEXT,
			business_type TEXT,
			submitted_at TEXT,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assessments (
			` + idColumn + `,
			application_id TEXT NOT NULL UNIQUE REFERENCES applications(id),
			applicant_name TEXT,
			business_type TEXT,
			status TEXT NOT NULL,
			risk_level TEXT,
			final_score ` + floatType + `,
			loan_amount ` + floatType + `,
			reason TEXT,
			recommendations TEXT,
			assessed_at TEXT NOT NULL,
			duration_ms INTEGER,
			kyc TEXT,
			credit TEXT,
			esg TEXT,
			social TEXT,
			behavior TEXT,
			decision TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_status ON assessments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_assessed_at ON assessments(assessed_at)`,
	}
	if s.driver == DriverPostgres {
		// Widens score columns created as REAL by earlier schemas.
		statements = append(statements, `ALTER TABLE assessments
			ALTER COLUMN final_score TYPE DOUBLE PRECISION,
			ALTER COLUMN loan_amount TYPE DOUBLE PRECISION`)
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	if s.driver != DriverSQLite {
		return nil
	}

	var ftsExists int
	if err := s.db.GetContext(ctx, &ftsExists,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='assessments_fts'`,
	); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	cols := "applicant_name, business_type, reason, recommendations"
	ftsStatements := []string{
		`CREATE VIRTUAL TABLE assessments_fts USING fts5(` + cols + `, content=assessments, content_rowid=rowid)`,
		`CREATE TRIGGER assessments_ai AFTER INSERT ON assessments BEGIN
			INSERT INTO assessments_fts(rowid, ` + cols + `)
			VALUES (new.rowid, new.applicant_name, new.business_type, new.reason, new.recommendations);
		END`,
		`CREATE TRIGGER assessments_ad AFTER DELETE ON assessments BEGIN
			INSERT INTO assessments_fts(assessments_fts, rowid, ` + cols + `)
			VALUES ('delete', old.rowid, old.applicant_name, old.business_type, old.reason, old.recommendations);
		END`,
		`CREATE TRIGGER assessments_au AFTER UPDATE ON assessments BEGIN
			INSERT INTO assessments_fts(assessments_fts, rowid, ` + cols + `)
			VALUES ('delete', old.rowid, old.applicant_name, old.business_type, old.reason, old.recommendations);
			INSERT INTO assessments_fts(rowid, ` + cols + `)
			VALUES (new.rowid, new.applicant_name, new.business_type, new.reason, new.recommendations);
		END`,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning FTS setup: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range ftsStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "no such module: fts5") {
				logging.FromContext(ctx).Warn().Msg("sqlite built without FTS5; text queries use LIKE")
				return nil
			}
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing FTS setup: %w", err)
	}
	s.fts = true
	return nil
}

// Save upserts the application and its assessment in one transaction.
func (s *Store) Save(ctx context.Context, app *types.Application, a types.Assessment) error {
	appJSON, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshaling application: %w", err)
	}
	cols, err := assessmentColumns(a)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO applications (id, applicant_id, applicant_name, business_type, submitted_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			applicant_id = excluded.applicant_id,
			applicant_name = excluded.applicant_name,
			business_type = excluded.business_type,
			submitted_at = excluded.submitted_at,
			data = excluded.data`),
		app.ID, app.ApplicantID, app.PersonalData.Name, app.BusinessData.Type,
		formatTime(app.SubmittedAt), string(appJSON))
	if err != nil {
		return fmt.Errorf("saving application %s: %w", app.ID, err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO assessments (application_id, applicant_name, business_type, status, risk_level,
			final_score, loan_amount, reason, recommendations, assessed_at, duration_ms,
			kyc, credit, esg, social, behavior, decision)
		VALUES (:application_id, :applicant_name, :business_type, :status, :risk_level,
			:final_score, :loan_amount, :reason, :recommendations, :assessed_at, :duration_ms,
			:kyc, :credit, :esg, :social, :behavior, :decision)
		ON CONFLICT (application_id) DO UPDATE SET
			applicant_name = excluded.applicant_name,
			business_type = excluded.business_type,
			status = excluded.status,
			risk_level = excluded.risk_level,
			final_score = excluded.final_score,
			loan_amount = excluded.loan_amount,
			reason = excluded.reason,
			recommendations = excluded.recommendations,
			assessed_at = excluded.assessed_at,
			duration_ms = excluded.duration_ms,
			kyc = excluded.kyc,
			credit = excluded.credit,
			esg = excluded.esg,
			social = excluded.social,
			behavior = excluded.behavior,
			decision = excluded.decision`, cols)
	if err != nil {
		return fmt.Errorf("saving assessment %s: %w", a.ApplicationID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing assessment %s: %w", a.ApplicationID, err)
	}
	return nil
}

// Get returns the assessment stored for an application ID.
func (s *Store) Get(ctx context.Context, id string) (types.Assessment, error) {
	var row assessmentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+rowColumns+` FROM assessments WHERE application_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Assessment{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Assessment{}, fmt.Errorf("reading assessment %s: %w", id, err)
	}
	return row.assessment()
}

// GetApplication returns the stored application for id.
func (s *Store) GetApplication(ctx context.Context, id string) (*types.Application, error) {
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT data FROM applications WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading application %s: %w", id, err)
	}
	var app types.Application
	if err := json.Unmarshal([]byte(data), &app); err != nil {
		return nil, fmt.Errorf("decoding application %s: %w", id, err)
	}
	return &app, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
