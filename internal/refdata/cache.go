// Package refdata caches the ISO reference tables (countries with
// subdivisions, languages, currencies). Tables are rebuilt in bulk and
// swapped atomically; readers see either the old or the new snapshot.
package refdata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cyhdev/site/internal/model"
)

// tables is one immutable snapshot. Built off-lock, installed under the
// write lock, never mutated afterward.
type tables struct {
	countries       []model.Country
	countryByCode   map[int32]*model.Country
	countryByAlpha2 map[string]*model.Country
	countryByAlpha3 map[string]*model.Country
	languages       []model.Language
	currencies      []model.Currency

	// Serialized views, precomputed at swap time for cheap dispatch.
	countriesJSON  []byte
	languagesJSON  []byte
	currenciesJSON []byte
}

// Cache guards the current tables snapshot.
type Cache struct {
	mu  sync.RWMutex
	cur *tables
}

// NewCache returns an empty cache; every read misses until the first Replace.
func NewCache() *Cache {
	return &Cache{cur: &tables{}}
}

// Replace builds a fresh snapshot from the loaded rows and installs it.
// Countries arrive without subdivisions; they are grouped here. The swap is
// the only operation performed under the exclusive lock.
func (c *Cache) Replace(countries []model.Country, subdivisions []model.Subdivision,
	languages []model.Language, currencies []model.Currency) error {

	next, err := buildTables(countries, subdivisions, languages, currencies)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cur = next
	c.mu.Unlock()
	return nil
}

func buildTables(countries []model.Country, subdivisions []model.Subdivision,
	languages []model.Language, currencies []model.Currency) (*tables, error) {

	sorted := make([]model.Country, len(countries))
	copy(sorted, countries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EnglishName < sorted[j].EnglishName })

	byCode := make(map[int32]*model.Country, len(sorted))
	byAlpha2 := make(map[string]*model.Country, len(sorted))
	byAlpha3 := make(map[string]*model.Country, len(sorted))
	for i := range sorted {
		co := &sorted[i]
		co.Subdivisions = nil
		byCode[co.Code] = co
		byAlpha2[strings.ToUpper(co.Alpha2)] = co
		byAlpha3[strings.ToUpper(co.Alpha3)] = co
	}
	for _, sub := range subdivisions {
		co, ok := byCode[sub.CountryCode]
		if !ok {
			// A subdivision without its country indicates a half-loaded DB;
			// skip rather than fail the whole rebuild.
			continue
		}
		co.Subdivisions = append(co.Subdivisions, sub)
	}

	t := &tables{
		countries:       sorted,
		countryByCode:   byCode,
		countryByAlpha2: byAlpha2,
		countryByAlpha3: byAlpha3,
		languages:       append([]model.Language(nil), languages...),
		currencies:      append([]model.Currency(nil), currencies...),
	}

	var err error
	if t.countriesJSON, err = json.Marshal(t.countries); err != nil {
		return nil, fmt.Errorf("refdata: marshal countries: %w", err)
	}
	if t.languagesJSON, err = json.Marshal(t.languages); err != nil {
		return nil, fmt.Errorf("refdata: marshal languages: %w", err)
	}
	if t.currenciesJSON, err = json.Marshal(t.currencies); err != nil {
		return nil, fmt.Errorf("refdata: marshal currencies: %w", err)
	}
	return t, nil
}

func (c *Cache) snapshot() *tables {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Countries returns the country table ordered by English name.
func (c *Cache) Countries() []model.Country { return c.snapshot().countries }

// CountryByCode looks up by ISO numeric code.
func (c *Cache) CountryByCode(code int32) (model.Country, bool) {
	if co, ok := c.snapshot().countryByCode[code]; ok {
		return *co, true
	}
	return model.Country{}, false
}

// CountryByAlpha2 looks up by ISO alpha-2, case-insensitive.
func (c *Cache) CountryByAlpha2(alpha2 string) (model.Country, bool) {
	if co, ok := c.snapshot().countryByAlpha2[strings.ToUpper(alpha2)]; ok {
		return *co, true
	}
	return model.Country{}, false
}

// CountryByAlpha3 looks up by ISO alpha-3, case-insensitive.
func (c *Cache) CountryByAlpha3(alpha3 string) (model.Country, bool) {
	if co, ok := c.snapshot().countryByAlpha3[strings.ToUpper(alpha3)]; ok {
		return *co, true
	}
	return model.Country{}, false
}

// Languages returns the language table.
func (c *Cache) Languages() []model.Language { return c.snapshot().languages }

// Currencies returns the currency table.
func (c *Cache) Currencies() []model.Currency { return c.snapshot().currencies }

// CountriesJSON returns the serialized country table from swap time.
func (c *Cache) CountriesJSON() []byte { return c.snapshot().countriesJSON }

// LanguagesJSON returns the serialized language table from swap time.
func (c *Cache) LanguagesJSON() []byte { return c.snapshot().languagesJSON }

// CurrenciesJSON returns the serialized currency table from swap time.
func (c *Cache) CurrenciesJSON() []byte { return c.snapshot().currenciesJSON }
