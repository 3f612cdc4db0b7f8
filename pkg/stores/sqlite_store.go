package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deplist/deplist/pkg/depspec"
	"github.com/deplist/deplist/pkg/engine"
	"github.com/deplist/deplist/pkg/repository"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps imported repositories and resolution history in SQLite.
// It implements engine.PackageDatabase.
type SQLiteStore struct {
	db    *sql.DB
	cfg   Config
	cache *lru.Cache[string, *engine.VersionMetadata]
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// CacheSize is the number of metadata records kept in memory.
	CacheSize int
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 8192
	}

	// Every connection to :memory: opens a fresh database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	cache, err := lru.New[string, *engine.VersionMetadata](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	return &SQLiteStore{cfg: cfg, cache: cache}, nil
}

// Init opens the database connection and enables WAL mode for file
// databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.cfg.Path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// ImportRepository replaces the stored copy of repo. Priority orders
// repositories for equal versions; lower wins.
func (s *SQLiteStore) ImportRepository(ctx context.Context, repo *repository.Repository, priority int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE name = ?`, repo.Name()); err != nil {
		return 0, fmt.Errorf("failed to clear repository: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repositories (name, installed, priority, imported_at) VALUES (?, ?, ?, ?)`,
		repo.Name(), repo.Installed(), priority, time.Now().UTC(),
	); err != nil {
		return 0, fmt.Errorf("failed to create repository: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO packages (repository, name, version, slot, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, p := range repo.Packages() {
		md := p.Metadata()
		blob, err := json.Marshal(md)
		if err != nil {
			return 0, fmt.Errorf("failed to encode metadata for %s-%s: %w", p.Name, p.Version, err)
		}
		if _, err := stmt.ExecContext(ctx, repo.Name(), p.Name, p.Version, md.Slot, string(blob)); err != nil {
			return 0, fmt.Errorf("failed to insert %s-%s: %w", p.Name, p.Version, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	s.cache.Purge()
	return count, nil
}

// ListRepositories returns the imported repositories in priority order.
func (s *SQLiteStore) ListRepositories(ctx context.Context) ([]RepositoryRecord, error) {
	query := `
		SELECT r.name, r.installed, r.priority, r.imported_at, COUNT(p.name)
		FROM repositories r
		LEFT JOIN packages p ON p.repository = r.name
		GROUP BY r.name
		ORDER BY r.priority, r.name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var out []RepositoryRecord
	for rows.Next() {
		var r RepositoryRecord
		if err := rows.Scan(&r.Name, &r.Installed, &r.Priority, &r.ImportedAt, &r.Packages); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repositories: %w", err)
	}
	return out, nil
}

// Query returns the stored candidates matching atom, least preferred first.
func (s *SQLiteStore) Query(ctx context.Context, atom *depspec.PackageAtom) ([]engine.Candidate, error) {
	query := `
		SELECT p.repository, p.version, p.slot, r.installed, r.priority
		FROM packages p
		JOIN repositories r ON r.name = p.repository
		WHERE p.name = ?
	`

	rows, err := s.db.QueryContext(ctx, query, atom.Package)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", atom.Package, err)
	}
	defer rows.Close()

	type row struct {
		cand     engine.Candidate
		priority int
	}
	var matches []row
	for rows.Next() {
		var (
			r       row
			version string
		)
		if err := rows.Scan(&r.cand.Repository, &version, &r.cand.Slot, &r.cand.Installed, &r.priority); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		v, err := depspec.ParseVersion(version)
		if err != nil {
			return nil, fmt.Errorf("stored version %q of %s: %w", version, atom.Package, err)
		}
		r.cand.Name = atom.Package
		r.cand.Version = v
		if atom.Matches(r.cand.Name, v, r.cand.Slot, r.cand.Repository) {
			matches = append(matches, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if c := matches[i].cand.Version.Compare(matches[j].cand.Version); c != 0 {
			return c < 0
		}
		if matches[i].priority != matches[j].priority {
			return matches[i].priority > matches[j].priority
		}
		return matches[i].cand.Repository > matches[j].cand.Repository
	})

	out := make([]engine.Candidate, len(matches))
	for i, m := range matches {
		out[i] = m.cand
	}
	return out, nil
}

// FetchMetadata returns the stored metadata of one candidate. Results are
// cached until the next import.
func (s *SQLiteStore) FetchMetadata(ctx context.Context, id engine.PackageID) (*engine.VersionMetadata, error) {
	key := id.String()
	if md, ok := s.cache.Get(key); ok {
		return md, nil
	}

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM packages WHERE repository = ? AND name = ? AND version = ?`,
		id.Repository, id.Name, id.Version.String(),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("package not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", id, err)
	}

	md := &engine.VersionMetadata{}
	if err := json.Unmarshal([]byte(blob), md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}

	s.cache.Add(key, md)
	return md, nil
}

// NewResolution builds a history record from a resolver run.
func NewResolution(targets []string, opts engine.Options, entries []engine.Entry, resolveErr error, d time.Duration) *Resolution {
	optionsJSON, _ := json.Marshal(opts)
	r := &Resolution{
		Targets:    targets,
		Options:    string(optionsJSON),
		Status:     ResolutionStatusSucceeded,
		EntryCount: len(entries),
		Duration:   d,
		CreatedAt:  time.Now().UTC(),
	}
	if resolveErr != nil {
		msg := resolveErr.Error()
		r.Status = ResolutionStatusFailed
		r.Error = &msg
	}
	for i, e := range entries {
		r.Entries = append(r.Entries, ResolutionEntry{
			Position:   i,
			Name:       e.Name,
			Version:    e.Version.String(),
			Slot:       e.Slot,
			Repository: e.Repository,
			Synthetic:  e.Synthetic,
		})
	}
	return r
}

// RecordResolution stores r and its entries. An empty ID is assigned a
// fresh UUID.
func (s *SQLiteStore) RecordResolution(ctx context.Context, r *Resolution) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Options == "" {
		r.Options = "{}"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO resolutions (id, targets, options, status, error, entry_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		r.ID,
		strings.Join(r.Targets, " "),
		r.Options,
		r.Status,
		r.Error,
		len(r.Entries),
		r.Duration.Milliseconds(),
		r.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create resolution: %w", err)
	}

	for _, e := range r.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resolution_entries (resolution_id, position, name, version, slot, repository, synthetic)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, e.Position, e.Name, e.Version, e.Slot, e.Repository, e.Synthetic,
		); err != nil {
			return fmt.Errorf("failed to create resolution entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolution: %w", err)
	}
	r.EntryCount = len(r.Entries)
	return nil
}

const resolutionColumns = `id, targets, options, status, error, entry_count, duration_ms, created_at`

func scanResolution(scan func(dest ...interface{}) error) (*Resolution, error) {
	var (
		r          Resolution
		targets    string
		durationMS int64
	)
	if err := scan(&r.ID, &targets, &r.Options, &r.Status, &r.Error, &r.EntryCount, &durationMS, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Targets = strings.Fields(targets)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}

// GetResolution retrieves a resolution and its entries by ID
func (s *SQLiteStore) GetResolution(ctx context.Context, id string) (*Resolution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resolutionColumns+` FROM resolutions WHERE id = ?`, id)
	r, err := scanResolution(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resolution not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, name, version, slot, repository, synthetic
		FROM resolution_entries
		WHERE resolution_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ResolutionEntry
		if err := rows.Scan(&e.Position, &e.Name, &e.Version, &e.Slot, &e.Repository, &e.Synthetic); err != nil {
			return nil, fmt.Errorf("failed to scan resolution entry: %w", err)
		}
		r.Entries = append(r.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolution entries: %w", err)
	}
	return r, nil
}

// ListResolutions lists resolutions newest first, without entries.
func (s *SQLiteStore) ListResolutions(ctx context.Context, limit, offset int) ([]*Resolution, error) {
	query := `SELECT ` + resolutionColumns + `
		FROM resolutions
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer rows.Close()

	resolutions := []*Resolution{}
	for rows.Next() {
		r, err := scanResolution(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolutions: %w", err)
	}
	return resolutions, nil
}

// DeleteResolution deletes a resolution and its entries.
func (s *SQLiteStore) DeleteResolution(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resolutions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resolution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("resolution not found: %s", id)
	}
	return nil
}
