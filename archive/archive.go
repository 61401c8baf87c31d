package archive

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spektr-org/chartdeck/dashboard"
)

// ============================================================================
// ARCHIVE — Named dashboard documents in SQL
// ============================================================================
// Dashboards are stored only when the user explicitly saves one; datasets
// are never persisted. The same queries run on SQLite and PostgreSQL:
// statements are written with ? placeholders and rebound to $n for
// postgres.
//
// Table (created by EnsureSchema):
//   name        TEXT    PRIMARY KEY
//   dataset     TEXT    NOT NULL
//   visuals     INTEGER NOT NULL
//   document    TEXT    NOT NULL   -- dashboard YAML
//   created_at  BIGINT  NOT NULL   -- unix milliseconds
//   updated_at  BIGINT  NOT NULL
// ============================================================================

var (
	// ErrNotFound indicates a dashboard name with no stored document.
	ErrNotFound = errors.New("dashboard not found")
	// ErrInvalidInput indicates a bad name or document.
	ErrInvalidInput = errors.New("invalid input")
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Clock supplies timestamps.
type Clock func() time.Time

// Options configures a Store.
type Options struct {
	TableName string // default "chartdeck_dashboards"
	Clock     Clock  // default time.Now
}

// Entry describes one stored dashboard.
type Entry struct {
	Name      string    `json:"name"`
	Dataset   string    `json:"dataset"`
	Visuals   int       `json:"visuals"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists dashboard documents.
type Store struct {
	db     *sql.DB
	driver string
	table  string
	clock  Clock
}

// Open connects to driver ("sqlite3" or "postgres") at dsn.
func Open(driver, dsn string, opts Options) (*Store, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if driver == "sqlite3" {
		// One connection keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
	}
	s, err := New(db, driver, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sql.DB, driver string, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.Wrap(ErrInvalidInput, "db is nil")
	}
	table := strings.TrimSpace(opts.TableName)
	if table == "" {
		table = "chartdeck_dashboards"
	}
	if !tableName.MatchString(table) {
		return nil, errors.Wrapf(ErrInvalidInput, "table name %q", table)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{db: db, driver: driver, table: table, clock: opts.Clock}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureSchema creates the table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
  name       TEXT    PRIMARY KEY,
  dataset    TEXT    NOT NULL,
  visuals    INTEGER NOT NULL,
  document   TEXT    NOT NULL,
  created_at BIGINT  NOT NULL,
  updated_at BIGINT  NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "ensure schema")
	}
	return nil
}

func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return "", errors.Wrapf(ErrInvalidInput, "dashboard name %q", name)
	}
	return name, nil
}

// Save stores or replaces the document under name. The document must
// parse as a dashboard.
func (s *Store) Save(ctx context.Context, name string, document []byte) (Entry, error) {
	name, err := checkName(name)
	if err != nil {
		return Entry{}, err
	}
	doc, err := dashboard.Unmarshal(document)
	if err != nil {
		return Entry{}, errors.Mark(errors.Wrapf(err, "save %q", name), ErrInvalidInput)
	}

	now := s.clock().UTC().Truncate(time.Millisecond)
	q := s.rebind(`INSERT INTO ` + s.table + ` (name, dataset, visuals, document, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
  dataset    = excluded.dataset,
  visuals    = excluded.visuals,
  document   = excluded.document,
  updated_at = excluded.updated_at`)
	ms := now.UnixMilli()
	if _, err := s.db.ExecContext(ctx, q, name, doc.Dataset, len(doc.Visuals), string(document), ms, ms); err != nil {
		return Entry{}, errors.Wrapf(err, "save %q", name)
	}
	return s.entry(ctx, name)
}

func (s *Store) entry(ctx context.Context, name string) (Entry, error) {
	q := s.rebind(`SELECT name, dataset, visuals, created_at, updated_at FROM ` + s.table + ` WHERE name = ?`)
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var created, updated int64
	if err := row.Scan(&e.Name, &e.Dataset, &e.Visuals, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}

// Load returns the stored document.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	q := s.rebind(`SELECT document FROM ` + s.table + ` WHERE name = ?`)
	var doc string
	err := s.db.QueryRowContext(ctx, q, strings.TrimSpace(name)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %q", name)
	}
	return []byte(doc), nil
}

// List returns every stored dashboard, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	q := `SELECT name, dataset, visuals, created_at, updated_at FROM ` + s.table + ` ORDER BY updated_at DESC, name ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "list dashboards")
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list dashboards")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "list dashboards")
}

// Delete removes a stored dashboard.
func (s *Store) Delete(ctx context.Context, name string) error {
	q := s.rebind(`DELETE FROM ` + s.table + ` WHERE name = ?`)
	res, err := s.db.ExecContext(ctx, q, strings.TrimSpace(name))
	if err != nil {
		return errors.Wrapf(err, "delete %q", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "delete %q", name)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	return nil
}
