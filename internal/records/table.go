package records

import (
	"errors"
	"fmt"
	"slices"
)

// Record set errors.
var (
	ErrMissingKey    = errors.New("record has no value for the index column")
	ErrDuplicateKey  = errors.New("duplicate index key")
	ErrUnknownKey    = errors.New("unknown row key")
	ErrColumnLength  = errors.New("column length does not match row count")
	ErrIndexOverlap  = errors.New("column name collides with the index column")
	ErrMissingColumn = errors.New("column not found")
)

// Field is one named cell of a Row.
type Field struct {
	Name  string
	Value Value
}

// Row is an ordered list of fields, as read from a single source node.
type Row []Field

// Get returns the value of the named field.
func (r Row) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}

	return Null, false
}

// Set replaces the named field or appends it when absent.
func (r Row) Set(name string, v Value) Row {
	for i, f := range r {
		if f.Name == name {
			r[i].Value = v

			return r
		}
	}

	return append(r, Field{Name: name, Value: v})
}

// Table is a column-oriented record set with a unique string index.
//
// The index column is not part of Columns; its value for a row is the row key.
// Column order follows first appearance and row order follows insertion.
type Table struct {
	cells   map[string][]Value
	pos     map[string]int
	index   string
	columns []string
	keys    []string
}

// NewTable creates an empty table indexed by the named column.
func NewTable(index string) *Table {
	return &Table{
		index: index,
		cells: make(map[string][]Value),
		pos:   make(map[string]int),
	}
}

// FromRows builds a table from rows, taking each row's key from the index field.
func FromRows(index string, rows []Row) (*Table, error) {
	t := NewTable(index)

	for i, row := range rows {
		keyVal, ok := row.Get(index)

		key, isStr := keyVal.Str()
		if !ok || !isStr {
			return nil, fmt.Errorf("%w: row %d has no %q", ErrMissingKey, i, index)
		}

		if err := t.AppendRow(key, row); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Index returns the name of the index column.
func (t *Table) Index() string {
	return t.index
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.keys)
}

// Columns returns the non-index column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// Keys returns the row keys in order.
func (t *Table) Keys() []string {
	return slices.Clone(t.keys)
}

// HasColumn reports whether the named non-index column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cells[name]

	return ok
}

// HasKey reports whether a row with the given key exists.
func (t *Table) HasKey(key string) bool {
	_, ok := t.pos[key]

	return ok
}

// AppendRow adds a row under key. Fields naming the index column are skipped;
// fields naming new columns extend the table with nulls for earlier rows.
func (t *Table) AppendRow(key string, row Row) error {
	if _, dup := t.pos[key]; dup {
		return fmt.Errorf("%w: %s=%q", ErrDuplicateKey, t.index, key)
	}

	t.pos[key] = len(t.keys)
	t.keys = append(t.keys, key)

	for _, col := range t.columns {
		t.cells[col] = append(t.cells[col], Null)
	}

	last := len(t.keys) - 1

	for _, f := range row {
		if f.Name == t.index {
			continue
		}

		if !t.HasColumn(f.Name) {
			t.addColumn(f.Name)
		}

		t.cells[f.Name][last] = f.Value
	}

	return nil
}

// Get returns the cell at (key, column). The index column yields the key itself.
func (t *Table) Get(key, column string) (Value, bool) {
	i, ok := t.pos[key]
	if !ok {
		return Null, false
	}

	if column == t.index {
		return String(key), true
	}

	vals, ok := t.cells[column]
	if !ok {
		return Null, false
	}

	return vals[i], true
}

// Set writes a cell, adding the column (null-filled) when it does not exist.
func (t *Table) Set(key, column string, v Value) error {
	i, ok := t.pos[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if column == t.index {
		return fmt.Errorf("%w: %q", ErrIndexOverlap, column)
	}

	if !t.HasColumn(column) {
		t.addColumn(column)
	}

	t.cells[column][i] = v

	return nil
}

// Column returns a copy of a column's values in row order.
func (t *Table) Column(name string) ([]Value, bool) {
	if name == t.index {
		vals := make([]Value, len(t.keys))
		for i, k := range t.keys {
			vals[i] = String(k)
		}

		return vals, true
	}

	vals, ok := t.cells[name]
	if !ok {
		return nil, false
	}

	return slices.Clone(vals), true
}

// SetColumn replaces or adds a whole column. values must have one entry per row.
func (t *Table) SetColumn(name string, values []Value) error {
	if name == t.index {
		return fmt.Errorf("%w: %q", ErrIndexOverlap, name)
	}

	if len(values) != len(t.keys) {
		return fmt.Errorf("%w: %q has %d values for %d rows", ErrColumnLength, name, len(values), len(t.keys))
	}

	if !t.HasColumn(name) {
		t.columns = append(t.columns, name)
	}

	t.cells[name] = slices.Clone(values)

	return nil
}

// Row returns the non-index cells of the keyed row in column order.
func (t *Table) Row(key string) (Row, bool) {
	i, ok := t.pos[key]
	if !ok {
		return nil, false
	}

	row := make(Row, 0, len(t.columns))
	for _, col := range t.columns {
		row = append(row, Field{Name: col, Value: t.cells[col][i]})
	}

	return row, true
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		index:   t.index,
		columns: slices.Clone(t.columns),
		keys:    slices.Clone(t.keys),
		cells:   make(map[string][]Value, len(t.cells)),
		pos:     make(map[string]int, len(t.pos)),
	}

	for k, v := range t.cells {
		c.cells[k] = slices.Clone(v)
	}

	for k, v := range t.pos {
		c.pos[k] = v
	}

	return c
}

func (t *Table) addColumn(name string) {
	t.columns = append(t.columns, name)
	t.cells[name] = make([]Value, len(t.keys))
}
