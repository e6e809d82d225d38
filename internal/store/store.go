// Package store persists the offices record set into SQLite, upserting rows
// keyed by office_id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"oamembers/internal/models"
	"oamembers/internal/records"
)

// Column holding the numeric suffix of office_id.
const ColOfficeNum = "office_num"

const officesTable = "offices"

// Store errors.
var (
	ErrWrongIndex     = errors.New("record set must be indexed by office_id")
	ErrReservedColumn = errors.New("record set uses a reserved column name")
	ErrNotFound       = errors.New("office not found")
)

// OfficeStore is a SQLite-backed sink for the offices record set.
type OfficeStore struct {
	db   *sql.DB
	path string
}

// NewOfficeStore opens (creating if needed) the database at path.
func NewOfficeStore(path string) (*OfficeStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY, %s INTEGER)`,
		quote(officesTable), quote(models.ColOfficeID), quote(ColOfficeNum),
	))
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("creating offices table: %w", err)
	}

	return &OfficeStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *OfficeStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *OfficeStore) Path() string {
	return s.path
}

// Save upserts every row of offices in one transaction and returns the row count.
// Timestamps are written as YYYY-MM-DD text and nulls as SQL NULL. Columns the
// database does not have yet are added as TEXT in the same transaction.
func (s *OfficeStore) Save(ctx context.Context, offices *records.Table) (int, error) {
	if offices.Index() != models.ColOfficeID {
		return 0, fmt.Errorf("%w: got %q", ErrWrongIndex, offices.Index())
	}

	columns := offices.Columns()
	for _, col := range columns {
		if col == ColOfficeNum {
			return 0, fmt.Errorf("%w: %q", ErrReservedColumn, col)
		}
	}

	all := append([]string{models.ColOfficeID, ColOfficeNum}, columns...)

	quoted := make([]string, len(all))
	marks := make([]string, len(all))
	updates := make([]string, 0, len(all)-1)

	for i, col := range all {
		quoted[i] = quote(col)
		marks[i] = "?"

		if i > 0 {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoted[i], quoted[i]))
		}
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s`,
		quote(officesTable),
		strings.Join(quoted, ", "),
		strings.Join(marks, ", "),
		quote(models.ColOfficeID),
		strings.Join(updates, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := ensureColumns(ctx, tx, columns); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, key := range offices.Keys() {
		args := make([]any, 0, len(all))
		args = append(args, key, OfficeNumber(key))

		for _, col := range columns {
			v, _ := offices.Get(key, col)
			args = append(args, sqlValue(v))
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("upserting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing offices: %w", err)
	}

	return offices.Len(), nil
}

// Count returns the number of stored offices.
func (s *OfficeStore) Count(ctx context.Context) (int, error) {
	var n int

	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quote(officesTable))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting offices: %w", err)
	}

	return n, nil
}

// Get returns the stored columns of one office as text; NULL columns are null.
func (s *OfficeStore) Get(ctx context.Context, officeID string) (records.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE %s = ?`, quote(officesTable), quote(models.ColOfficeID)), officeID)
	if err != nil {
		return nil, fmt.Errorf("querying office: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("querying office: %w", err)
		}

		return nil, fmt.Errorf("%w: %s", ErrNotFound, officeID)
	}

	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))

	for i := range vals {
		ptrs[i] = &vals[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning office: %w", err)
	}

	row := make(records.Row, 0, len(cols))
	for i, col := range cols {
		v := records.Null
		if vals[i].Valid {
			v = records.String(vals[i].String)
		}

		row = append(row, records.Field{Name: col, Value: v})
	}

	return row, nil
}

// OfficeNumber parses the integer after the last "/" of an office id, or
// returns nil when there is none.
func OfficeNumber(officeID string) any {
	n, err := strconv.ParseInt(officeID[strings.LastIndex(officeID, "/")+1:], 10, 64)
	if err != nil {
		return nil
	}

	return n
}

func ensureColumns(ctx context.Context, tx *sql.Tx, columns []string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quote(officesTable)))
	if err != nil {
		return fmt.Errorf("reading offices schema: %w", err)
	}

	existing := make(map[string]bool)

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)

		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			rows.Close()

			return fmt.Errorf("scanning offices schema: %w", err)
		}

		existing[name] = true
	}

	if err := rows.Close(); err != nil {
		return fmt.Errorf("reading offices schema: %w", err)
	}

	for _, col := range columns {
		if existing[col] {
			continue
		}

		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT`, quote(officesTable), quote(col))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", col, err)
		}
	}

	return nil
}

func sqlValue(v records.Value) any {
	if v.IsNull() {
		return nil
	}

	return v.Text()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
