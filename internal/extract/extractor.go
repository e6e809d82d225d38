// Package extract turns parsed members documents into record sets.
package extract

import (
	"errors"
	"fmt"
	"io"

	"github.com/antchfx/xmlquery"
	"golang.org/x/text/unicode/norm"

	"oamembers/internal/config"
	"oamembers/internal/logger"
	"oamembers/internal/records"
)

// Extraction errors.
var (
	ErrParse       = errors.New("malformed XML")
	ErrInvalidPath = errors.New("invalid node path")
)

// Parse reads an XML document. Malformed input fails with ErrParse.
func Parse(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return doc, nil
}

// NestedQuery selects inner nodes under outer nodes, carrying a key from each
// outer node onto the records built from its inner nodes.
type NestedQuery struct {
	Rename      map[string]string
	OuterPath   string
	InnerPath   string
	OuterAttr   string
	OuterColumn string
	Key         string
}

// Extractor builds records from node attributes.
//
// With a schema entry for a node's tag only the listed attributes become
// columns, plus the id attribute the records are keyed by; tags without an
// entry keep every attribute.
type Extractor struct {
	log       *logger.Logger
	schema    map[string]map[string]bool
	normalize bool
}

// NewExtractor creates an extractor that keeps every attribute and NFC-normalizes values.
func NewExtractor() *Extractor {
	return &Extractor{
		log:       logger.Nop(),
		schema:    map[string]map[string]bool{},
		normalize: true,
	}
}

// NewExtractorWithConfig creates an extractor from the extract config section.
func NewExtractorWithConfig(cfg *config.ExtractConfig, log *logger.Logger) *Extractor {
	e := &Extractor{
		log:       log,
		schema:    make(map[string]map[string]bool, len(cfg.Schema)),
		normalize: cfg.NormalizeUnicode,
	}

	for tag, attrs := range cfg.Schema {
		e.schema[tag] = make(map[string]bool, len(attrs))
		for _, a := range attrs {
			e.schema[tag][a] = true
		}
	}

	return e
}

// Nodes returns one row per node matching path, in document order. Each row
// holds the node's attributes with names mapped through rename.
func (e *Extractor) Nodes(doc *xmlquery.Node, path string, rename map[string]string) ([]records.Row, error) {
	nodes, err := xmlquery.QueryAll(doc, path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPath, path, err)
	}

	rows := make([]records.Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, e.row(n, rename))
	}

	return rows, nil
}

// Table returns the rows matching path indexed by the key column.
func (e *Extractor) Table(doc *xmlquery.Node, path string, rename map[string]string, key string) (*records.Table, error) {
	rows, err := e.Nodes(doc, path, rename)
	if err != nil {
		return nil, err
	}

	tbl, err := records.FromRows(key, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return tbl, nil
}

// Nested walks two levels: every inner node under an outer node becomes a row
// carrying the outer node's OuterAttr value in OuterColumn.
func (e *Extractor) Nested(doc *xmlquery.Node, q NestedQuery) (*records.Table, error) {
	outers, err := xmlquery.QueryAll(doc, q.OuterPath)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPath, q.OuterPath, err)
	}

	var rows []records.Row

	for _, outer := range outers {
		outerKey, ok := attr(outer, q.OuterAttr)
		if !ok {
			return nil, fmt.Errorf("%s: %w: no %q attribute", q.OuterPath, records.ErrMissingKey, q.OuterAttr)
		}

		inners, err := xmlquery.QueryAll(outer, q.InnerPath)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPath, q.InnerPath, err)
		}

		for _, inner := range inners {
			row := e.row(inner, q.Rename)
			row = row.Set(q.OuterColumn, e.value(outerKey))
			rows = append(rows, row)
		}
	}

	tbl, err := records.FromRows(q.Key, rows)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", q.OuterPath, q.InnerPath, err)
	}

	return tbl, nil
}

func (e *Extractor) row(n *xmlquery.Node, rename map[string]string) records.Row {
	allowed, strict := e.schema[n.Data]

	row := make(records.Row, 0, len(n.Attr))

	for _, a := range n.Attr {
		name := attrName(a)

		if strict && !allowed[name] && name != config.SchemaKeyAttr {
			e.log.Debug("dropping attribute outside schema", "tag", n.Data, "attr", name)

			continue
		}

		if renamed, ok := rename[name]; ok {
			name = renamed
		}

		row = row.Set(name, e.value(a.Value))
	}

	return row
}

func (e *Extractor) value(s string) records.Value {
	if e.normalize {
		s = norm.NFC.String(s)
	}

	return records.String(s)
}

func attrName(a xmlquery.Attr) string {
	if a.Name.Space == "" {
		return a.Name.Local
	}

	return a.Name.Space + ":" + a.Name.Local
}

func attr(n *xmlquery.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if attrName(a) == name {
			return a.Value, true
		}
	}

	return "", false
}
