// Package members assembles the people, offices and chamber record sets from
// the OpenAustralia members documents.
//
// Every call recomputes its record set from the documents. The only state an
// Engine keeps is its document cache, so a cached Engine reads each document at
// most once per cache lifetime.
package members

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"oamembers/internal/config"
	"oamembers/internal/extract"
	"oamembers/internal/logger"
	"oamembers/internal/models"
	"oamembers/internal/records"
	"oamembers/internal/source"
)

// ErrUnknownView is returned by View for names outside ViewNames.
var ErrUnknownView = errors.New("unknown view")

// View names accepted by Engine.View.
const (
	ViewPeople          = "people"
	ViewOffices         = "offices"
	ViewSenators        = "senators"
	ViewRepresentatives = "representatives"
	ViewMinisters       = "ministers"
)

// ViewNames lists every view in display order.
var ViewNames = []string{ViewPeople, ViewOffices, ViewSenators, ViewRepresentatives, ViewMinisters}

// DuplicatePersonInfoWarning reports enrichment rows sharing a person id. It is
// never returned as an error; the last occurrence wins.
type DuplicatePersonInfoWarning struct {
	File string
	IDs  []string
}

func (w *DuplicatePersonInfoWarning) Error() string {
	return fmt.Sprintf("found more than one personinfo per person in %s (%d ids)", w.File, len(w.IDs))
}

// Engine produces the members record sets.
type Engine struct {
	cache     *source.Cache
	extractor *extract.Extractor
	log       *logger.Logger
	onWarning func(*DuplicatePersonInfoWarning)
}

// New creates an engine over an existing cache and extractor.
func New(cache *source.Cache, extractor *extract.Extractor, log *logger.Logger) *Engine {
	return &Engine{
		cache:     cache,
		extractor: extractor,
		log:       log,
	}
}

// NewFromConfig wires a reader, cache and extractor from cfg.
func NewFromConfig(cfg *config.Config, log *logger.Logger) *Engine {
	reader := source.NewReaderWithConfig(&cfg.Source)
	cache := source.NewCacheWithConfig(reader, &cfg.Cache, log)

	log.Debug("members engine configured", "base", reader.Base(), "remote", reader.IsRemote(), "cached", cache.Enabled())

	return New(cache, extract.NewExtractorWithConfig(&cfg.Extract, log), log)
}

// OnWarning registers a callback for non-fatal data warnings.
func (e *Engine) OnWarning(fn func(*DuplicatePersonInfoWarning)) {
	e.onWarning = fn
}

// Cache returns the engine's document cache.
func (e *Engine) Cache() *source.Cache {
	return e.cache
}

// View dispatches to the record set with the given name.
func (e *Engine) View(name string, enhanced bool) (*records.Table, error) {
	switch name {
	case ViewPeople:
		return e.People(enhanced)
	case ViewOffices:
		return e.Offices(enhanced)
	case ViewSenators:
		return e.Senators()
	case ViewRepresentatives:
		return e.Representatives()
	case ViewMinisters:
		return e.Ministers()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
}

// People returns one row per person indexed by person_id. When enhanced, the
// enrichment files are merged in order and aph_id is derived from aph_url.
func (e *Engine) People(enhanced bool) (*records.Table, error) {
	doc, err := e.document(models.PeopleFile)
	if err != nil {
		return nil, err
	}

	people, err := e.extractor.Table(doc, "//"+models.TagPerson,
		map[string]string{models.AttrID: models.ColPersonID}, models.ColPersonID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", models.PeopleFile, err)
	}

	if !enhanced {
		return people, nil
	}

	for _, file := range models.EnrichmentFiles {
		info, err := e.personInfo(file)
		if err != nil {
			return nil, err
		}

		if err := records.UpdateMerge(people, info); err != nil {
			return nil, fmt.Errorf("merging %s: %w", file, err)
		}
	}

	if err := people.SetColumn(models.ColAPHID, aphIDs(people)); err != nil {
		return nil, err
	}

	return people, nil
}

// Offices returns one row per office tenure indexed by office_id.
//
// When enhanced, the chamber records are merged in by office_id and the
// enhanced people columns are joined on person_id. The join is an inner join:
// offices whose person_id has no person row are dropped from the result.
func (e *Engine) Offices(enhanced bool) (*records.Table, error) {
	doc, err := e.document(models.PeopleFile)
	if err != nil {
		return nil, err
	}

	offices, err := e.extractor.Nested(doc, extract.NestedQuery{
		OuterPath:   "//" + models.TagPerson,
		InnerPath:   models.TagOffice,
		OuterAttr:   models.AttrID,
		OuterColumn: models.ColPersonID,
		Rename:      map[string]string{models.AttrID: models.ColOfficeID},
		Key:         models.ColOfficeID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", models.PeopleFile, err)
	}

	if !enhanced {
		return offices, nil
	}

	for _, c := range models.Chambers {
		tenures, err := e.Chamber(c)
		if err != nil {
			return nil, err
		}

		if err := records.UpdateMerge(offices, tenures); err != nil {
			return nil, fmt.Errorf("merging %s: %w", c, err)
		}
	}

	people, err := e.People(true)
	if err != nil {
		return nil, err
	}

	joined, err := records.InnerJoin(offices, models.ColPersonID, people)
	if err != nil {
		return nil, err
	}

	if dropped := offices.Len() - joined.Len(); dropped > 0 {
		e.log.Debug("dropped offices without a person record", "count", dropped)
	}

	return joined, nil
}

// Senators returns the senate tenure records.
func (e *Engine) Senators() (*records.Table, error) {
	return e.Chamber(models.Senators)
}

// Representatives returns the house of representatives tenure records.
func (e *Engine) Representatives() (*records.Table, error) {
	return e.Chamber(models.Representatives)
}

// Ministers returns the ministerial office records.
func (e *Engine) Ministers() (*records.Table, error) {
	return e.Chamber(models.Ministers)
}

// Chamber returns the tenure records of one chamber indexed by office_id, with
// fromdate and todate as nullable timestamps and source set to the chamber label.
func (e *Engine) Chamber(c models.Chamber) (*records.Table, error) {
	file := c.FileName()

	doc, err := e.document(file)
	if err != nil {
		return nil, err
	}

	tbl, err := e.extractor.Table(doc, "//"+c.TagName(),
		map[string]string{models.AttrID: models.ColOfficeID}, models.ColOfficeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	label := make([]records.Value, tbl.Len())
	for i := range label {
		label[i] = records.String(c.Label())
	}

	if err := tbl.SetColumn(models.ColSource, label); err != nil {
		return nil, err
	}

	for _, col := range []string{models.ColFromDate, models.ColToDate} {
		if err := records.NormalizeDates(tbl, col); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	return tbl, nil
}

// personInfo reads one enrichment file into a table keyed by person_id.
// Repeated ids collapse to one row where, per column, the last non-null value
// in document order wins.
func (e *Engine) personInfo(file string) (*records.Table, error) {
	doc, err := e.document(file)
	if err != nil {
		return nil, err
	}

	rows, err := e.extractor.Nodes(doc, "//"+models.TagPersonInfo,
		map[string]string{models.AttrID: models.ColPersonID})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	info := records.NewTable(models.ColPersonID)
	seen := make(map[string]int)

	var dups []string

	for _, row := range rows {
		v, _ := row.Get(models.ColPersonID)

		id, ok := v.Str()
		if !ok {
			e.log.Debug("skipping personinfo without id", "file", file)

			continue
		}

		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}

		if !info.HasKey(id) {
			if err := info.AppendRow(id, row); err != nil {
				return nil, err
			}

			continue
		}

		for _, f := range row {
			if f.Name == models.ColPersonID || f.Value.IsNull() {
				continue
			}

			if err := info.Set(id, f.Name, f.Value); err != nil {
				return nil, err
			}
		}
	}

	if len(dups) > 0 {
		w := &DuplicatePersonInfoWarning{File: file, IDs: dups}
		e.log.Warn(w.Error(), "file", file, "ids", strings.Join(dups, ","))

		if e.onWarning != nil {
			e.onWarning(w)
		}
	}

	return info, nil
}

func (e *Engine) document(name string) (*xmlquery.Node, error) {
	return e.cache.GetOrParse(name, extract.Parse)
}

// aphIDs takes the part of each aph_url after its last "=". Rows without a
// URL, or tables without the column, yield null.
func aphIDs(people *records.Table) []records.Value {
	out := make([]records.Value, people.Len())

	urls, ok := people.Column(models.ColAPHURL)
	if !ok {
		return out
	}

	for i, v := range urls {
		if s, isStr := v.Str(); isStr {
			out[i] = records.String(s[strings.LastIndex(s, "=")+1:])
		}
	}

	return out
}
