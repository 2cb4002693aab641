// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists ResearchPaper records in SQLite. Structured
// results (extracted parameters, validation, relevance) are stored as JSON
// text next to flattened scalar columns used for filtering, and an FTS5
// index over title, abstract and keywords backs full-text search.
package catalog

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

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bes-catalog/internal/quality"
	"github.com/pdiddy/bes-catalog/pkg/types"
)

// Sentinel errors.
var (
	ErrNotFound      = errors.New("paper not found")
	ErrAlreadyExists = errors.New("paper already exists")
)

const (
	defaultDBPath     = "data/catalog.db"
	defaultMaxResults = 20

	// timeLayout has fixed-width fractional seconds so stored timestamps
	// sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	maxResults int
	now        func() time.Time
}

// Open opens or creates the catalog database at cfg.DBPath and creates the
// schema if it does not exist.
func Open(cfg types.CatalogConfig) (*Store, error) {
	path := cfg.DBPath
	if path == "" {
		path = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, maxResults: maxResults, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			doi TEXT UNIQUE,
			title TEXT NOT NULL,
			title_key TEXT NOT NULL,
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT,
			journal TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			keywords TEXT NOT NULL DEFAULT '',
			organism_types TEXT NOT NULL DEFAULT '',
			system_type TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			extracted_parameters TEXT,
			validation TEXT,
			relevance TEXT,
			power_density REAL,
			anode_material TEXT,
			organisms TEXT,
			relevance_score REAL,
			recommendation TEXT,
			is_valid INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_title_key ON papers(title_key)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_system_type ON papers(system_type)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_recommendation ON papers(recommendation)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(year)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='papers_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE papers_fts USING fts5(title, abstract, keywords, content=papers, content_rowid=rowid)`,
			`CREATE TRIGGER papers_ai AFTER INSERT ON papers BEGIN
				INSERT INTO papers_fts(rowid, title, abstract, keywords)
				VALUES (new.rowid, new.title, new.abstract, new.keywords);
			END`,
			`CREATE TRIGGER papers_ad AFTER DELETE ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract, keywords)
				VALUES ('delete', old.rowid, old.title, old.abstract, old.keywords);
			END`,
			`CREATE TRIGGER papers_au AFTER UPDATE OF title, abstract, keywords ON papers BEGIN
				INSERT INTO papers_fts(papers_fts, rowid, title, abstract, keywords)
				VALUES ('delete', old.rowid, old.title, old.abstract, old.keywords);
				INSERT INTO papers_fts(rowid, title, abstract, keywords)
				VALUES (new.rowid, new.title, new.abstract, new.keywords);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

const paperColumns = `id, doi, title, abstract, authors, journal, year, keywords,
	organism_types, system_type, source, source_url,
	extracted_parameters, validation, relevance, created_at, updated_at`

// Create inserts p, assigning a UUID when p.ID is empty and stamping
// UpdatedAt (and CreatedAt when unset). A paper whose DOI is already stored returns ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, p *types.Paper) error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("paper title is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.DOI = canonicalDOI(p.DOI)
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	authors, _ := json.Marshal(p.Authors)
	extracted, validation, relevance := encodeResults(p)
	flat := flatten(p)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (`+paperColumns+`, title_key,
			power_density, anode_material, organisms, relevance_score, recommendation, is_valid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, nullString(p.DOI), p.Title, p.Abstract, string(authors), p.Journal, p.Year, p.Keywords,
		p.OrganismTypes, p.SystemType, p.Source, p.SourceURL,
		extracted, validation, relevance, formatTime(p.CreatedAt), formatTime(now),
		quality.NormalizeTitle(p.Title),
		flat.powerDensity, flat.anodeMaterial, flat.organisms, flat.relevanceScore, flat.recommendation, flat.isValid,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating %q: %w", p.Title, ErrAlreadyExists)
		}
		return fmt.Errorf("inserting paper: %w", err)
	}
	return nil
}

// Get returns the paper with the given id.
func (s *Store) Get(ctx context.Context, id string) (types.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Paper{}, fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	return p, err
}

// FindByDOI returns the paper with the given DOI in any spelling.
func (s *Store) FindByDOI(ctx context.Context, doi string) (types.Paper, error) {
	d := quality.NormalizeDOI(doi)
	if d == "" {
		return types.Paper{}, fmt.Errorf("doi %q: %w", doi, ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE doi = ?`, d)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Paper{}, fmt.Errorf("doi %s: %w", d, ErrNotFound)
	}
	return p, err
}

// Exists reports whether a paper with the same DOI or normalized title is
// already stored.
func (s *Store) Exists(ctx context.Context, doi, title string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM papers WHERE (doi IS NOT NULL AND doi = ?) OR title_key = ?`,
		canonicalDOI(doi), quality.NormalizeTitle(title),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for duplicate: %w", err)
	}
	return n > 0, nil
}

// Update replaces the bibliographic fields and stored results of p.
func (s *Store) Update(ctx context.Context, p *types.Paper) error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("paper title is required")
	}
	p.DOI = canonicalDOI(p.DOI)
	p.UpdatedAt = s.now().UTC()

	authors, _ := json.Marshal(p.Authors)
	extracted, validation, relevance := encodeResults(p)
	flat := flatten(p)

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET doi = ?, title = ?, title_key = ?, abstract = ?, authors = ?, journal = ?,
			year = ?, keywords = ?, organism_types = ?, system_type = ?, source = ?, source_url = ?,
			extracted_parameters = ?, validation = ?, relevance = ?,
			power_density = ?, anode_material = ?, organisms = ?, relevance_score = ?,
			recommendation = ?, is_valid = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(p.DOI), p.Title, quality.NormalizeTitle(p.Title), p.Abstract, string(authors), p.Journal,
		p.Year, p.Keywords, p.OrganismTypes, p.SystemType, p.Source, p.SourceURL,
		extracted, validation, relevance,
		flat.powerDensity, flat.anodeMaterial, flat.organisms, flat.relevanceScore,
		flat.recommendation, flat.isValid, formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("updating %s: %w", p.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("updating paper: %w", err)
	}
	return requireOneRow(res, p.ID)
}

// Delete removes the paper with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting paper: %w", err)
	}
	return requireOneRow(res, id)
}

// SaveExtraction stores an extraction and its validation and refreshes the
// flattened parameter columns.
func (s *Store) SaveExtraction(ctx context.Context, id string, set *types.ExtractedParameterSet, v *types.ValidationResult) error {
	p := types.Paper{ExtractedParameters: set, Validation: v}
	extracted, validation, _ := encodeResults(&p)
	flat := flatten(&p)

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET extracted_parameters = ?, validation = ?,
			power_density = ?, anode_material = ?, organisms = ?, is_valid = ?, updated_at = ?
		 WHERE id = ?`,
		extracted, validation,
		flat.powerDensity, flat.anodeMaterial, flat.organisms, flat.isValid, formatTime(s.now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("saving extraction: %w", err)
	}
	return requireOneRow(res, id)
}

// SaveValidation replaces the stored validation result.
func (s *Store) SaveValidation(ctx context.Context, id string, v *types.ValidationResult) error {
	p := types.Paper{Validation: v}
	_, validation, _ := encodeResults(&p)

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET validation = ?, is_valid = ?, updated_at = ? WHERE id = ?`,
		validation, flatten(&p).isValid, formatTime(s.now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("saving validation: %w", err)
	}
	return requireOneRow(res, id)
}

// SaveRelevance stores a relevance score and its flattened columns.
func (s *Store) SaveRelevance(ctx context.Context, id string, r *types.RelevanceScore) error {
	p := types.Paper{Relevance: r}
	_, _, relevance := encodeResults(&p)
	flat := flatten(&p)

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET relevance = ?, relevance_score = ?, recommendation = ?, updated_at = ? WHERE id = ?`,
		relevance, flat.relevanceScore, flat.recommendation, formatTime(s.now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("saving relevance: %w", err)
	}
	return requireOneRow(res, id)
}

// Pending returns up to limit papers that have an abstract and no stored
// extraction. With force, papers that already have one are included.
func (s *Store) Pending(ctx context.Context, limit int, force bool) ([]types.Paper, error) {
	q := `SELECT ` + paperColumns + ` FROM papers WHERE abstract <> ''`
	if !force {
		q += ` AND extracted_parameters IS NULL`
	}
	return s.query(ctx, q+` ORDER BY rowid`+limitClause(limit))
}

// Extracted returns up to limit papers with a stored extraction.
func (s *Store) Extracted(ctx context.Context, limit int) ([]types.Paper, error) {
	q := `SELECT ` + paperColumns + ` FROM papers WHERE extracted_parameters IS NOT NULL ORDER BY rowid`
	return s.query(ctx, q+limitClause(limit))
}

// Papers returns up to limit papers in insertion order (0 means all).
func (s *Store) Papers(ctx context.Context, limit int) ([]types.Paper, error) {
	return s.query(ctx, `SELECT `+paperColumns+` FROM papers ORDER BY rowid`+limitClause(limit))
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanPaper reads one row selected with paperColumns. Stored JSON that no
// longer decodes is treated as absent.
func scanPaper(row scanner) (types.Paper, error) {
	var (
		p                                types.Paper
		doi, authors                     sql.NullString
		extracted, validation, relevance sql.NullString
		created, updated                 string
	)
	err := row.Scan(
		&p.ID, &doi, &p.Title, &p.Abstract, &authors, &p.Journal, &p.Year, &p.Keywords,
		&p.OrganismTypes, &p.SystemType, &p.Source, &p.SourceURL,
		&extracted, &validation, &relevance, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Paper{}, err
		}
		return types.Paper{}, fmt.Errorf("scanning paper: %w", err)
	}

	p.DOI = doi.String
	if authors.Valid {
		json.Unmarshal([]byte(authors.String), &p.Authors)
	}
	p.ExtractedParameters = decodeJSON[types.ExtractedParameterSet](extracted)
	p.Validation = decodeJSON[types.ValidationResult](validation)
	p.Relevance = decodeJSON[types.RelevanceScore](relevance)
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	p.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return p, nil
}

func decodeJSON[T any](s sql.NullString) *T {
	if !s.Valid || s.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil
	}
	return &v
}

func encodeJSON(v any) sql.NullString {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func encodeResults(p *types.Paper) (extracted, validation, relevance sql.NullString) {
	if p.ExtractedParameters != nil {
		extracted = encodeJSON(p.ExtractedParameters)
	}
	if p.Validation != nil {
		validation = encodeJSON(p.Validation)
	}
	if p.Relevance != nil {
		relevance = encodeJSON(p.Relevance)
	}
	return extracted, validation, relevance
}

// flatColumns are the scalar copies of structured results kept for filtering.
type flatColumns struct {
	powerDensity   sql.NullFloat64
	anodeMaterial  sql.NullString
	organisms      sql.NullString
	relevanceScore sql.NullFloat64
	recommendation sql.NullString
	isValid        sql.NullBool
}

func flatten(p *types.Paper) flatColumns {
	var f flatColumns
	if set := p.ExtractedParameters; set != nil {
		// Only canonical values are comparable across papers.
		if m, ok := set.Measurement("performanceMetrics.powerDensity"); ok && m.Unit == "mW/m²" {
			f.powerDensity = sql.NullFloat64{Float64: m.Value, Valid: true}
		}
		if e := set.ElectrodeSpecifications; e != nil && e.AnodeMaterial != "" {
			f.anodeMaterial = sql.NullString{String: e.AnodeMaterial, Valid: true}
		}
		if b := set.BiologicalParameters; b != nil && len(b.Organisms) > 0 {
			f.organisms = sql.NullString{String: strings.Join(b.Organisms, ", "), Valid: true}
		}
	}
	if r := p.Relevance; r != nil {
		f.relevanceScore = sql.NullFloat64{Float64: r.Overall, Valid: true}
		f.recommendation = sql.NullString{String: string(r.Recommendation), Valid: true}
	}
	if v := p.Validation; v != nil {
		f.isValid = sql.NullBool{Bool: v.IsValid, Valid: true}
	}
	return f
}

// canonicalDOI returns the bare lower-case DOI, or the trimmed input when
// it does not look like a DOI so quality checks can still flag it.
func canonicalDOI(s string) string {
	if d := quality.NormalizeDOI(s); d != "" {
		return d
	}
	return strings.TrimSpace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("paper %s: %w", id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
