package source

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"oamembers/internal/config"
	"oamembers/internal/logger"
)

// ParseFunc turns the raw bytes of a document into its parsed tree.
type ParseFunc func(io.Reader) (*xmlquery.Node, error)

// CacheStats counts cache activity since creation or the last Clear.
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
	Entries   int
}

// Cache maps document names to parsed documents for the life of one engine.
//
// When disabled every call opens and parses the document again. When enabled a
// hit returns the stored tree itself, not a copy. MaxEntries bounds the number of
// stored documents (least recently used evicted first) and TTL bounds their age;
// zero disables either bound. Failed opens or parses are never stored.
type Cache struct {
	opener    Opener
	log       *logger.Logger
	docs      *expirable.LRU[string, *xmlquery.Node]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCache creates an unbounded cache over opener. A disabled cache stores nothing.
func NewCache(opener Opener, enabled bool) *Cache {
	return newCache(opener, enabled, 0, 0, logger.Nop())
}

// NewCacheWithConfig creates a cache using the bounds from the cache config section.
func NewCacheWithConfig(opener Opener, cfg *config.CacheConfig, log *logger.Logger) *Cache {
	return newCache(opener, cfg.Enabled, cfg.MaxEntries, cfg.GetTTL(), log)
}

func newCache(opener Opener, enabled bool, maxEntries int, ttl time.Duration, log *logger.Logger) *Cache {
	c := &Cache{
		opener: opener,
		log:    log,
	}

	if enabled {
		c.docs = expirable.NewLRU[string, *xmlquery.Node](maxEntries, func(string, *xmlquery.Node) {
			c.evictions.Add(1)
		}, ttl)
	}

	return c
}

// Enabled reports whether parsed documents are retained.
func (c *Cache) Enabled() bool {
	return c.docs != nil
}

// GetOrParse returns the parsed document for name, opening and parsing it on a miss.
func (c *Cache) GetOrParse(name string, parse ParseFunc) (*xmlquery.Node, error) {
	if c.docs == nil {
		return c.load(name, parse)
	}

	if doc, ok := c.docs.Get(name); ok {
		c.hits.Add(1)

		return doc, nil
	}

	c.misses.Add(1)

	doc, err := c.load(name, parse)
	if err != nil {
		return nil, err
	}

	c.docs.Add(name, doc)

	return doc, nil
}

// Len returns the number of stored documents.
func (c *Cache) Len() int {
	if c.docs == nil {
		return 0
	}

	return c.docs.Len()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      int(c.hits.Load()),
		Misses:    int(c.misses.Load()),
		Evictions: int(c.evictions.Load()),
		Entries:   c.Len(),
	}
}

// Clear drops every stored document and resets the counters.
func (c *Cache) Clear() {
	if c.docs != nil {
		c.docs.Purge()
	}

	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

func (c *Cache) load(name string, parse ParseFunc) (*xmlquery.Node, error) {
	content, size, duration, err := OpenWithMetrics(c.opener, name)
	if err != nil {
		return nil, err
	}

	c.log.Debug("document read", "name", name, "bytes", size, "duration", duration)

	doc, err := parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return doc, nil
}
