package members

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oamembers/internal/config"
	"oamembers/internal/extract"
	"oamembers/internal/logger"
	"oamembers/internal/models"
	"oamembers/internal/records"
	"oamembers/internal/source"
)

const (
	abbott   = "uk.org.publicwhip/person/10001"
	wong     = "uk.org.publicwhip/person/10002"
	ghost    = "uk.org.publicwhip/person/10003"
	abbottHR = "uk.org.publicwhip/member/1"
	ghostHR  = "uk.org.publicwhip/member/2"
	wongSen  = "uk.org.publicwhip/lord/100002"
	abbottPM = "uk.org.publicwhip/moffice/1"
)

// countingOpener records how often each document is opened.
type countingOpener struct {
	inner source.Opener
	opens map[string]int
}

func (o *countingOpener) Open(name string) (io.ReadCloser, error) {
	o.opens[name]++

	return o.inner.Open(name)
}

func newTestEngine(t *testing.T, dir string, cached bool) (*Engine, *countingOpener) {
	t.Helper()

	opener := &countingOpener{inner: source.NewReader(dir), opens: make(map[string]int)}

	return New(source.NewCache(opener, cached), extract.NewExtractor(), logger.Nop()), opener
}

func get(t *testing.T, tbl *records.Table, key, col string) records.Value {
	t.Helper()

	v, ok := tbl.Get(key, col)
	require.True(t, ok, "missing cell %s/%s", key, col)

	return v
}

func date(y int, m time.Month, d int) records.Value {
	return records.Time(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestPeople_Plain(t *testing.T) {
	engine, _ := newTestEngine(t, "testdata", false)

	people, err := engine.People(false)
	require.NoError(t, err)

	assert.Equal(t, models.ColPersonID, people.Index())
	assert.Equal(t, []string{abbott, wong, ghost}, people.Keys())
	assert.Equal(t, []string{"latestname"}, people.Columns())
	assert.Equal(t, records.String("Penny Wong"), get(t, people, wong, "latestname"))
}

func TestPeople_Enhanced(t *testing.T) {
	var warnings []*DuplicatePersonInfoWarning

	var buf bytes.Buffer

	opener := source.NewReader("testdata")
	engine := New(source.NewCache(opener, true), extract.NewExtractor(), logger.NewLoggerWithWriter("info", &buf))
	engine.OnWarning(func(w *DuplicatePersonInfoWarning) { warnings = append(warnings, w) })

	people, err := engine.People(true)
	require.NoError(t, err)

	// Enrichment never adds rows.
	assert.Equal(t, []string{abbott, wong, ghost}, people.Keys())

	// wikipedia-commons is merged after wikipedia-lords and wins.
	assert.Equal(t, records.String("http://en.wikipedia.org/wiki/Tony_Abbott"), get(t, people, abbott, "wikipedia_url"))
	assert.True(t, get(t, people, ghost, "wikipedia_url").IsNull())

	assert.Equal(t, records.String("http://www.abc.net.au/tv/qanda/wong.htm"), get(t, people, wong, "abc_qanda_link"))
	assert.Equal(t, records.String("http://www.aph.gov.au/regmem/wong.pdf"), get(t, people, wong, "register_of_interests"))

	// Duplicate personinfo rows: last occurrence wins per column.
	assert.Equal(t, records.String("http://www.tonyabbott.com.au"), get(t, people, abbott, "mp_website"))
	assert.Equal(t, records.String("EZ5"), get(t, people, abbott, models.ColAPHID))
	assert.True(t, get(t, people, wong, models.ColAPHID).IsNull())

	require.Len(t, warnings, 1)
	assert.Equal(t, "websites.xml", warnings[0].File)
	assert.Equal(t, []string{abbott}, warnings[0].IDs)
	assert.Contains(t, buf.String(), "more than one personinfo")
}

func TestAPHIDs_WithoutURLColumn(t *testing.T) {
	tbl, err := records.FromRows(models.ColPersonID, []records.Row{
		{{Name: models.ColPersonID, Value: records.String("p1")}},
	})
	require.NoError(t, err)

	assert.Equal(t, []records.Value{records.Null}, aphIDs(tbl))

	require.NoError(t, tbl.Set("p1", models.ColAPHURL, records.String("no-equals-sign")))
	assert.Equal(t, []records.Value{records.String("no-equals-sign")}, aphIDs(tbl))
}

func TestOffices_Plain(t *testing.T) {
	engine, _ := newTestEngine(t, "testdata", false)

	offices, err := engine.Offices(false)
	require.NoError(t, err)

	assert.Equal(t, models.ColOfficeID, offices.Index())
	assert.Equal(t, []string{abbottHR, abbottPM, wongSen, ghostHR}, offices.Keys())
	assert.Equal(t, []string{"current", models.ColPersonID}, offices.Columns())
	assert.Equal(t, records.String(abbott), get(t, offices, abbottPM, models.ColPersonID))
}

func TestOffices_Enhanced(t *testing.T) {
	engine, _ := newTestEngine(t, "testdata", true)

	offices, err := engine.Offices(true)
	require.NoError(t, err)

	// The representatives record for ghostHR points at a person that does not
	// exist, so the inner join drops that office.
	assert.Equal(t, []string{abbottHR, abbottPM, wongSen}, offices.Keys())

	assert.Equal(t, records.String("representatives"), get(t, offices, abbottHR, models.ColSource))
	assert.Equal(t, records.String("ministers"), get(t, offices, abbottPM, models.ColSource))
	assert.Equal(t, records.String("senators"), get(t, offices, wongSen, models.ColSource))

	assert.True(t, get(t, offices, abbottPM, models.ColFromDate).IsNull())
	assert.True(t, date(2020, time.January, 1).Equal(get(t, offices, abbottPM, models.ColToDate)))
	assert.True(t, date(1994, time.March, 26).Equal(get(t, offices, abbottHR, models.ColFromDate)))
	assert.True(t, get(t, offices, wongSen, models.ColToDate).IsNull())

	assert.Equal(t, records.String("Warringah"), get(t, offices, abbottHR, "division"))
	assert.Equal(t, records.String("Prime Minister"), get(t, offices, abbottPM, "position"))

	// Person columns are carried on every office.
	assert.Equal(t, records.String("Tony Abbott"), get(t, offices, abbottPM, "latestname"))
	assert.Equal(t, records.String("EZ5"), get(t, offices, abbottHR, models.ColAPHID))
	assert.Equal(t, records.String("http://www.pennywong.com.au"), get(t, offices, wongSen, "mp_website"))
}

func TestOffices_CachingAvoidsRefetch(t *testing.T) {
	cached, cachedOpens := newTestEngine(t, "testdata", true)
	_, err := cached.Offices(true)
	require.NoError(t, err)

	uncached, uncachedOpens := newTestEngine(t, "testdata", false)
	_, err = uncached.Offices(true)
	require.NoError(t, err)

	assert.Equal(t, 1, cachedOpens.opens[models.PeopleFile])
	assert.Equal(t, 2, uncachedOpens.opens[models.PeopleFile])

	for _, c := range models.Chambers {
		assert.Equal(t, 1, cachedOpens.opens[c.FileName()], c.String())
	}

	assert.Equal(t, 9, cached.Cache().Len())
}

func TestMinisters(t *testing.T) {
	engine, _ := newTestEngine(t, "testdata", false)

	ministers, err := engine.Ministers()
	require.NoError(t, err)

	assert.Equal(t, []string{abbottPM}, ministers.Keys())
	assert.True(t, get(t, ministers, abbottPM, models.ColFromDate).IsNull())
	assert.True(t, date(2020, time.January, 1).Equal(get(t, ministers, abbottPM, models.ColToDate)))
	assert.Equal(t, records.String("ministers"), get(t, ministers, abbottPM, models.ColSource))
}

func TestChamberViews(t *testing.T) {
	engine, _ := newTestEngine(t, "testdata", true)

	senators, err := engine.Senators()
	require.NoError(t, err)
	assert.Equal(t, []string{wongSen}, senators.Keys())

	reps, err := engine.Representatives()
	require.NoError(t, err)
	assert.Equal(t, 3, reps.Len())
	assert.True(t, get(t, reps, abbottHR, models.ColToDate).IsNull())

	for _, name := range ViewNames {
		tbl, err := engine.View(name, true)
		require.NoError(t, err, name)
		assert.Positive(t, tbl.Len(), name)
	}

	_, err = engine.View("lords", true)
	assert.ErrorIs(t, err, ErrUnknownView)
}

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}

	return dir
}

func TestErrorsPropagate(t *testing.T) {
	const people = `<publicwhip><person id="p1"><office id="o1"/></person></publicwhip>`

	t.Run("missing enrichment file", func(t *testing.T) {
		engine, _ := newTestEngine(t, writeDocs(t, map[string]string{models.PeopleFile: people}), false)

		_, err := engine.People(false)
		require.NoError(t, err)

		_, err = engine.People(true)
		assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	})

	t.Run("malformed document", func(t *testing.T) {
		engine, _ := newTestEngine(t, writeDocs(t, map[string]string{models.PeopleFile: "<publicwhip><person"}), true)

		_, err := engine.Offices(false)
		assert.ErrorIs(t, err, extract.ErrParse)
		assert.Zero(t, engine.Cache().Len())
	})

	t.Run("bad date", func(t *testing.T) {
		engine, _ := newTestEngine(t, writeDocs(t, map[string]string{
			"senators.xml": `<publicwhip><member id="s1" fromdate="not-a-date" todate="9999-12-31"/></publicwhip>`,
		}), false)

		_, err := engine.Senators()
		assert.ErrorIs(t, err, records.ErrDateParse)
	})
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Base = "testdata"
	cfg.Cache.Enabled = true
	cfg.Extract.Schema = map[string][]string{"moffice": {"id", "position", "fromdate", "todate"}}

	engine := NewFromConfig(cfg, logger.Nop())

	ministers, err := engine.Ministers()
	require.NoError(t, err)

	assert.Equal(t, []string{"position", "fromdate", "todate", models.ColSource}, ministers.Columns())
	assert.True(t, engine.Cache().Enabled())
}

func TestNewFromConfig_SchemaKeepsKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Base = "testdata"
	cfg.Extract.Schema = map[string][]string{
		models.TagPerson:     {"latestname"},
		models.TagPersonInfo: {models.ColAPHURL},
	}

	people, err := NewFromConfig(cfg, logger.Nop()).People(true)
	require.NoError(t, err)

	assert.Equal(t, []string{abbott, wong, ghost}, people.Keys())
	assert.Equal(t, []string{"latestname", models.ColAPHURL, models.ColAPHID}, people.Columns())
	assert.Equal(t, records.String("EZ5"), get(t, people, abbott, models.ColAPHID))
}
