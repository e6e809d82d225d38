// Package formatter renders record sets as aligned plain-text tables.
package formatter

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"oamembers/internal/records"
)

// DefaultMaxCellWidth bounds the display width of a single cell.
const DefaultMaxCellWidth = 40

// Options controls RenderTable.
type Options struct {
	// Head limits the number of rows rendered; zero renders every row.
	Head int
	// MaxCellWidth truncates wider cells; zero uses DefaultMaxCellWidth.
	MaxCellWidth int
}

// RenderTable renders the index column followed by every other column as a
// pipe table, padding cells by display width so wide runes stay aligned.
func RenderTable(t *records.Table, opts Options) string {
	maxWidth := opts.MaxCellWidth
	if maxWidth <= 0 {
		maxWidth = DefaultMaxCellWidth
	}

	keys := t.Keys()
	if opts.Head > 0 && len(keys) > opts.Head {
		keys = keys[:opts.Head]
	}

	header := append([]string{t.Index()}, t.Columns()...)

	table := [][]string{header}

	for _, key := range keys {
		cells := make([]string, 0, len(header))
		for _, col := range header {
			v, _ := t.Get(key, col)
			cells = append(cells, runewidth.Truncate(v.Text(), maxWidth, "…"))
		}

		table = append(table, cells)
	}

	// Display widths, with a minimum of 3 for the separator.
	colWidths := make([]int, len(header))
	for i := range colWidths {
		colWidths[i] = 3
	}

	for _, row := range table {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}

	var sb strings.Builder

	writeRow(&sb, table[0], colWidths)

	sb.WriteString("|")

	for _, w := range colWidths {
		sb.WriteString(" ")
		sb.WriteString(strings.Repeat("-", w))
		sb.WriteString(" |")
	}

	sb.WriteString("\n")

	for _, row := range table[1:] {
		writeRow(&sb, row, colWidths)
	}

	if len(keys) < t.Len() {
		fmt.Fprintf(&sb, "... %d of %d rows\n", len(keys), t.Len())
	}

	return sb.String()
}

func writeRow(sb *strings.Builder, row []string, colWidths []int) {
	sb.WriteString("|")

	for i, cell := range row {
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(cell, colWidths[i]))
		sb.WriteString(" |")
	}

	sb.WriteString("\n")
}
