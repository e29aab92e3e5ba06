// Package i18n caches localized string rows and compiles per-locale binary
// bundles on demand. Rows are replaced in bulk; bundles are rebuilt lazily
// when a newer row invalidates them.
package i18n

import (
	"sort"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/cyhdev/site/internal/model"
)

// bundleCacheCapacity bounds the compiled-bundle cache. Locale pairs number
// in the hundreds at most.
const bundleCacheCapacity = 512

// BundleKey identifies one compiled bundle.
type BundleKey struct {
	Country  int32
	Language int32
}

type compiledBundle struct {
	bytes   []byte
	builtAt time.Time
}

// table is one immutable snapshot of the rows plus every secondary index.
// Index slices hold positions into rows.
type table struct {
	rows []model.I18nString

	byCountry      map[int32][]int
	bySubdivision  map[int32][]int
	byLanguage     map[int32][]int
	byCreatedBy    map[string][]int
	byUpdatedBy    map[string][]int
	byReferenceKey map[string][]int

	// Ordered by the respective timestamp for range scans.
	byCreatedAt []int
	byUpdatedAt []int

	// Per-locale index and freshness watermark, computed once at swap time.
	byLocale   map[BundleKey][]int
	maxUpdated map[BundleKey]time.Time
}

// Cache holds the current row snapshot and the compiled-bundle cache.
type Cache struct {
	mu  sync.RWMutex
	cur *table

	// buildMu serializes bundle compilation so concurrent readers of a stale
	// locale do not compile the same bundle twice.
	buildMu sync.Mutex
	bundles otter.Cache[BundleKey, compiledBundle]

	now func() time.Time
}

// NewCache creates an empty i18n cache.
func NewCache() *Cache {
	bundles, err := otter.MustBuilder[BundleKey, compiledBundle](bundleCacheCapacity).
		Cost(func(_ BundleKey, _ compiledBundle) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("i18n: failed to create bundle cache: " + err.Error())
	}
	return &Cache{
		cur:     &table{},
		bundles: bundles,
		now:     time.Now,
	}
}

// Replace swaps in a fresh row snapshot and drops every compiled bundle.
// buildMu is held across the swap and the clear so an in-flight bundle build
// that snapshotted the old table lands before the clear removes it; builds
// that start afterwards see the new snapshot.
func (c *Cache) Replace(rows []model.I18nString) {
	next := buildTable(rows)
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	c.mu.Lock()
	c.cur = next
	c.mu.Unlock()
	c.bundles.Clear()
}

func buildTable(rows []model.I18nString) *table {
	t := &table{
		rows:           append([]model.I18nString(nil), rows...),
		byCountry:      make(map[int32][]int),
		bySubdivision:  make(map[int32][]int),
		byLanguage:     make(map[int32][]int),
		byCreatedBy:    make(map[string][]int),
		byUpdatedBy:    make(map[string][]int),
		byReferenceKey: make(map[string][]int),
		byLocale:       make(map[BundleKey][]int),
		maxUpdated:     make(map[BundleKey]time.Time),
	}
	for i, row := range t.rows {
		t.byCountry[row.CountryCode] = append(t.byCountry[row.CountryCode], i)
		t.bySubdivision[row.SubdivisionCode] = append(t.bySubdivision[row.SubdivisionCode], i)
		t.byLanguage[row.LanguageCode] = append(t.byLanguage[row.LanguageCode], i)
		t.byCreatedBy[row.CreatedBy] = append(t.byCreatedBy[row.CreatedBy], i)
		t.byUpdatedBy[row.UpdatedBy] = append(t.byUpdatedBy[row.UpdatedBy], i)
		t.byReferenceKey[row.ReferenceKey] = append(t.byReferenceKey[row.ReferenceKey], i)

		key := BundleKey{Country: row.CountryCode, Language: row.LanguageCode}
		t.byLocale[key] = append(t.byLocale[key], i)
		if row.UpdatedAt.After(t.maxUpdated[key]) {
			t.maxUpdated[key] = row.UpdatedAt
		}

		t.byCreatedAt = append(t.byCreatedAt, i)
		t.byUpdatedAt = append(t.byUpdatedAt, i)
	}
	sort.SliceStable(t.byCreatedAt, func(a, b int) bool {
		return t.rows[t.byCreatedAt[a]].CreatedAt.Before(t.rows[t.byCreatedAt[b]].CreatedAt)
	})
	sort.SliceStable(t.byUpdatedAt, func(a, b int) bool {
		return t.rows[t.byUpdatedAt[a]].UpdatedAt.Before(t.rows[t.byUpdatedAt[b]].UpdatedAt)
	})
	return t
}

func (c *Cache) snapshot() *table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

func (t *table) collect(idx []int) []model.I18nString {
	out := make([]model.I18nString, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.rows[i])
	}
	return out
}

// Rows returns every cached row in load order.
func (c *Cache) Rows() []model.I18nString { return c.snapshot().rows }

// Len returns the number of cached rows.
func (c *Cache) Len() int { return len(c.snapshot().rows) }

// ByCountry returns the rows for the given country code.
func (c *Cache) ByCountry(code int32) []model.I18nString {
	t := c.snapshot()
	return t.collect(t.byCountry[code])
}

// BySubdivision returns the rows for the given subdivision code (-1 selects
// rows without one).
func (c *Cache) BySubdivision(code int32) []model.I18nString {
	t := c.snapshot()
	return t.collect(t.bySubdivision[code])
}

// ByLanguage returns the rows for the given language code.
func (c *Cache) ByLanguage(code int32) []model.I18nString {
	t := c.snapshot()
	return t.collect(t.byLanguage[code])
}

// ByCreatedBy returns the rows authored by the given user.
func (c *Cache) ByCreatedBy(user string) []model.I18nString {
	t := c.snapshot()
	return t.collect(t.byCreatedBy[user])
}

// ByUpdatedBy returns the rows last edited by the given user.
func (c *Cache) ByUpdatedBy(user string) []model.I18nString {
	t := c.snapshot()
	return t.collect(t.byUpdatedBy[user])
}

// ByReferenceKey returns every localization of one reference key.
func (c *Cache) ByReferenceKey(key string) []model.I18nString {
	t := c.snapshot()
	return t.collect(t.byReferenceKey[key])
}

// RowsCreatedBetween returns rows with from <= CreatedAt < to, ascending.
func (c *Cache) RowsCreatedBetween(from, to time.Time) []model.I18nString {
	t := c.snapshot()
	return t.rangeScan(t.byCreatedAt, from, to, func(r model.I18nString) time.Time { return r.CreatedAt })
}

// RowsUpdatedBetween returns rows with from <= UpdatedAt < to, ascending.
func (c *Cache) RowsUpdatedBetween(from, to time.Time) []model.I18nString {
	t := c.snapshot()
	return t.rangeScan(t.byUpdatedAt, from, to, func(r model.I18nString) time.Time { return r.UpdatedAt })
}

func (t *table) rangeScan(idx []int, from, to time.Time, ts func(model.I18nString) time.Time) []model.I18nString {
	lo := sort.Search(len(idx), func(i int) bool {
		return !ts(t.rows[idx[i]]).Before(from)
	})
	var out []model.I18nString
	for _, i := range idx[lo:] {
		if !ts(t.rows[i]).Before(to) {
			break
		}
		out = append(out, t.rows[i])
	}
	return out
}

// Close releases the bundle cache.
func (c *Cache) Close() {
	c.bundles.Close()
}
