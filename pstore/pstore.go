// Package pstore implements schema-versioned SQLite persistence shared by
// every ParamSet: additive-only migration (new columns are appended, old
// ones are never dropped or renamed), rowid-keyed upsert, and parent-keyed
// loading of child row collections.
package pstore

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Column describes one additive column a table must carry. SQLType is a
// raw SQLite type affinity string ("INTEGER", "TEXT", "REAL", "BLOB").
type Column struct {
	Name    string
	SQLType string
}

// Store wraps a single SQLite connection. All schema and row operations
// serialize through mu: ParamSets save from the single-threaded main loop,
// so contention is not expected, but the mutex keeps migration safe if a
// background technology goroutine (EnOcean/DALI reader) ever persists
// concurrently.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("pstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pstore: ping %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// EnsureTable creates table if missing with a rowid primary key and a
// parentID column, then ALTERs in any column from cols that isn't already
// present. SQLite has no "ADD COLUMN IF NOT EXISTS", so a duplicate-column
// error from a prior run is always swallowed — that is the migration
// mechanism: additive only, idempotent, no down-migrations.
func (s *Store) EnsureTable(table string, cols []Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	create := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (rowid INTEGER PRIMARY KEY AUTOINCREMENT, parentID INTEGER)`,
		quoteIdent(table),
	)
	if _, err := s.db.Exec(create); err != nil {
		return fmt.Errorf("pstore: create table %s: %w", table, err)
	}

	for _, c := range cols {
		alter := fmt.Sprintf(
			`ALTER TABLE %s ADD COLUMN %s %s`,
			quoteIdent(table), quoteIdent(c.Name), c.SQLType,
		)
		if _, err := s.db.Exec(alter); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("pstore: add column %s.%s: %w", table, c.Name, err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// Row is a loaded or to-be-saved set of column values, keyed by column
// name. "rowid" and "parentID" are reserved keys handled outside of Row.
type Row map[string]any

// Save performs an INSERT when rowid is 0 (new row) or an
// UPDATE by rowid otherwise, and returns the (possibly newly assigned)
// rowid. Callers persisting a parent-keyed child collection must call
// Save on the parent first and pass its resulting rowid as parentID here,
// so the child rows link to a stable parent identity.
func (s *Store) Save(table string, rowid int64, parentID int64, values Row) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1)
	cols = append(cols, "parentID")
	args = append(args, parentID)
	for k, v := range values {
		cols = append(cols, k)
		args = append(args, v)
	}

	if rowid == 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			quoteIdent(table), strings.Join(quoteIdents(cols), ","), placeholders)
		res, err := s.db.Exec(q, args...)
		if err != nil {
			return 0, fmt.Errorf("pstore: insert into %s: %w", table, err)
		}
		return res.LastInsertId()
	}

	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = quoteIdent(c) + "=?"
	}
	args = append(args, rowid)
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE rowid=?`, quoteIdent(table), strings.Join(set, ","))
	if _, err := s.db.Exec(q, args...); err != nil {
		return 0, fmt.Errorf("pstore: update %s rowid=%d: %w", table, rowid, err)
	}
	return rowid, nil
}

func quoteIdents(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = quoteIdent(id)
	}
	return out
}

// Load fetches a single row by rowid. It returns (nil, nil) if no such row
// exists (not an error: callers use this to detect "first run").
func (s *Store) Load(table string, rowid int64, cols []string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE rowid=?`, strings.Join(quoteIdents(cols), ","), quoteIdent(table))
	row := s.db.QueryRow(q, rowid)
	return scanRow(row, cols)
}

// LoadChildren fetches every row whose parentID matches, in rowid order —
// the order child ParamSet collections are reconstructed in.
func (s *Store) LoadChildren(table string, parentID int64, cols []string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := fmt.Sprintf(`SELECT rowid,%s FROM %s WHERE parentID=? ORDER BY rowid`,
		strings.Join(quoteIdents(cols), ","), quoteIdent(table))
	rows, err := s.db.Query(q, parentID)
	if err != nil {
		return nil, fmt.Errorf("pstore: load children of %s: %w", table, err)
	}
	defer rows.Close()

	allCols := append([]string{"rowid"}, cols...)
	var out []Row
	for rows.Next() {
		r, err := scanRows(rows, allCols)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Forget deletes the row identified by rowid. It is not an error if no
// such row exists.
func (s *Store) Forget(table string, rowid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := fmt.Sprintf(`DELETE FROM %s WHERE rowid=?`, quoteIdent(table))
	_, err := s.db.Exec(q, rowid)
	if err != nil {
		return fmt.Errorf("pstore: forget %s rowid=%d: %w", table, rowid, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(row *sql.Row, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("pstore: scan: %w", err)
	}
	return buildRow(cols, vals), nil
}

func scanRows(rows *sql.Rows, cols []string) (Row, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("pstore: scan: %w", err)
	}
	return buildRow(cols, vals), nil
}

func buildRow(cols []string, vals []any) Row {
	r := make(Row, len(cols))
	for i, c := range cols {
		r[c] = vals[i]
	}
	return r
}
