package records

import "fmt"

// JoinSuffix is appended to right-hand columns that collide with left-hand ones in InnerJoin.
const JoinSuffix = "_person"

// UpdateMerge enriches target in place with every column of source, aligned by row key.
//
// Existing columns are overwritten only for keys present in both tables, and only
// where the source cell is non-null. New columns are added with null for keys
// absent from source. Keys present only in source are ignored, so the row set of
// target never changes.
func UpdateMerge(target, source *Table) error {
	for _, col := range source.columns {
		if col == target.index {
			return fmt.Errorf("merge column %q: %w", col, ErrIndexOverlap)
		}

		src := source.cells[col]

		if target.HasColumn(col) {
			dst := target.cells[col]

			for i, key := range target.keys {
				j, ok := source.pos[key]
				if !ok || src[j].IsNull() {
					continue
				}

				dst[i] = src[j]
			}

			continue
		}

		vals := make([]Value, len(target.keys))

		for i, key := range target.keys {
			if j, ok := source.pos[key]; ok {
				vals[i] = src[j]
			}
		}

		target.columns = append(target.columns, col)
		target.cells[col] = vals
	}

	return nil
}

// InnerJoin returns the rows of left whose column on matches a row key of right,
// with right's columns appended. Left rows without a match are dropped. The
// result keeps left's index and row order. Right columns whose names are already
// taken by left get JoinSuffix appended.
func InnerJoin(left *Table, on string, right *Table) (*Table, error) {
	onVals, ok := left.Column(on)
	if !ok {
		return nil, fmt.Errorf("join on %q: %w", on, ErrMissingColumn)
	}

	out := NewTable(left.index)

	for i, key := range left.keys {
		ref, isStr := onVals[i].Str()
		if !isStr || !right.HasKey(ref) {
			continue
		}

		row, _ := left.Row(key)

		rightRow, _ := right.Row(ref)
		for _, f := range rightRow {
			name := f.Name
			if name == left.index || left.HasColumn(name) {
				name += JoinSuffix
			}

			row = append(row, Field{Name: name, Value: f.Value})
		}

		if err := out.AppendRow(key, row); err != nil {
			return nil, err
		}
	}

	// Keep the full column layout even when no row matched.
	for _, col := range left.columns {
		if !out.HasColumn(col) {
			out.addColumn(col)
		}
	}

	for _, col := range right.columns {
		name := col
		if name == left.index || left.HasColumn(name) {
			name += JoinSuffix
		}

		if !out.HasColumn(name) {
			out.addColumn(name)
		}
	}

	return out, nil
}
