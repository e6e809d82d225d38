package source

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oamembers/internal/config"
	"oamembers/internal/logger"
)

// countingOpener serves in-memory documents and counts opens per name.
type countingOpener struct {
	docs  map[string]string
	opens map[string]int
}

func newCountingOpener(docs map[string]string) *countingOpener {
	return &countingOpener{docs: docs, opens: make(map[string]int)}
}

func (o *countingOpener) Open(name string) (io.ReadCloser, error) {
	o.opens[name]++

	body, ok := o.docs[name]
	if !ok {
		return nil, ErrSourceUnavailable
	}

	return io.NopCloser(strings.NewReader(body)), nil
}

func parseXML(r io.Reader) (*xmlquery.Node, error) {
	return xmlquery.Parse(r)
}

func TestReader_LocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people.xml"), []byte("<publicwhip/>"), 0644))

	r := NewReader(dir)
	assert.False(t, r.IsRemote())
	assert.Equal(t, dir, r.Base())

	content, size, _, err := OpenWithMetrics(r, "people.xml")
	require.NoError(t, err)
	assert.Equal(t, "<publicwhip/>", string(content))
	assert.EqualValues(t, 13, size)

	_, err = r.Open("missing.xml")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestReader_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/members/people.xml" {
			http.NotFound(w, req)

			return
		}

		_, _ = io.WriteString(w, "<publicwhip/>")
	}))
	defer srv.Close()

	r := NewReaderWithConfig(&config.SourceConfig{Base: srv.URL + "/members/"})
	require.True(t, r.IsRemote())

	rc, err := r.Open("people.xml")
	require.NoError(t, err)

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "<publicwhip/>", string(body))

	_, err = r.Open("nope.xml")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, ErrUnexpectedStatusCode)
}

func TestReader_RemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := NewReader(base).Open("people.xml")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestCache_EnabledReturnsSameDocument(t *testing.T) {
	opener := newCountingOpener(map[string]string{"people.xml": "<publicwhip/>"})
	c := NewCache(opener, true)

	first, err := c.GetOrParse("people.xml", parseXML)
	require.NoError(t, err)

	second, err := c.GetOrParse("people.xml", parseXML)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, opener.opens["people.xml"])
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1, Entries: 1}, c.Stats())
}

func TestCache_DisabledFetchesEachTime(t *testing.T) {
	opener := newCountingOpener(map[string]string{"people.xml": "<publicwhip/>"})
	c := NewCache(opener, false)

	first, err := c.GetOrParse("people.xml", parseXML)
	require.NoError(t, err)

	second, err := c.GetOrParse("people.xml", parseXML)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, opener.opens["people.xml"])
	assert.Zero(t, c.Len())
}

func TestCache_FailuresAreNotStored(t *testing.T) {
	opener := newCountingOpener(map[string]string{"bad.xml": "<unclosed"})
	c := NewCache(opener, true)

	_, err := c.GetOrParse("missing.xml", parseXML)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	boom := errors.New("boom")
	_, err = c.GetOrParse("bad.xml", func(io.Reader) (*xmlquery.Node, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len())
}

func TestCache_MaxEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	opener := newCountingOpener(map[string]string{
		"a.xml": "<a/>",
		"b.xml": "<b/>",
		"c.xml": "<c/>",
	})
	c := NewCacheWithConfig(opener, &config.CacheConfig{Enabled: true, MaxEntries: 2}, logger.Nop())

	for _, name := range []string{"a.xml", "b.xml", "c.xml", "b.xml", "a.xml"} {
		_, err := c.GetOrParse(name, parseXML)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, opener.opens["a.xml"])
	assert.Equal(t, 1, opener.opens["b.xml"])
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Stats().Evictions)
}

func TestCache_TTLExpires(t *testing.T) {
	opener := newCountingOpener(map[string]string{"a.xml": "<a/>"})
	c := newCache(opener, true, 0, 200*time.Millisecond, logger.Nop())

	first, err := c.GetOrParse("a.xml", parseXML)
	require.NoError(t, err)

	second, err := c.GetOrParse("a.xml", parseXML)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, opener.opens["a.xml"])

	time.Sleep(300 * time.Millisecond)

	_, err = c.GetOrParse("a.xml", parseXML)
	require.NoError(t, err)
	assert.Equal(t, 2, opener.opens["a.xml"])
}

func TestCache_LogsDocumentReads(t *testing.T) {
	var buf bytes.Buffer

	opener := newCountingOpener(map[string]string{"people.xml": "<publicwhip/>"})
	c := NewCacheWithConfig(opener, &config.CacheConfig{Enabled: true}, logger.NewLoggerWithWriter("debug", &buf))

	_, err := c.GetOrParse("people.xml", parseXML)
	require.NoError(t, err)

	_, err = c.GetOrParse("people.xml", parseXML)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(buf.String(), "document read"))
	assert.Contains(t, buf.String(), "bytes=13")
}

func TestCache_Clear(t *testing.T) {
	opener := newCountingOpener(map[string]string{"a.xml": "<a/>"})
	c := NewCache(opener, true)

	_, err := c.GetOrParse("a.xml", parseXML)
	require.NoError(t, err)

	c.Clear()
	assert.Zero(t, c.Len())

	_, err = c.GetOrParse("a.xml", parseXML)
	require.NoError(t, err)
	assert.Equal(t, 2, opener.opens["a.xml"])
}
