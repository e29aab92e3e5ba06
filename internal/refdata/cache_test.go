package refdata

import (
	"encoding/json"
	"testing"

	"github.com/cyhdev/site/internal/model"
)

func testRows() ([]model.Country, []model.Subdivision, []model.Language, []model.Currency) {
	countries := []model.Country{
		{Code: 840, Alpha2: "US", Alpha3: "USA", EnglishName: "United States"},
		{Code: 36, Alpha2: "AU", Alpha3: "AUS", EnglishName: "Australia"},
		{Code: 124, Alpha2: "CA", Alpha3: "CAN", EnglishName: "Canada"},
	}
	subs := []model.Subdivision{
		{CountryCode: 840, Code: "US-CA", Name: "California"},
		{CountryCode: 840, Code: "US-NY", Name: "New York"},
		{CountryCode: 36, Code: "AU-NSW", Name: "New South Wales"},
		{CountryCode: 999, Code: "XX-ZZ", Name: "Orphan"},
	}
	langs := []model.Language{
		{Code: 1033, Alpha2: "en", EnglishName: "English"},
		{Code: 1036, Alpha2: "fr", EnglishName: "French"},
	}
	currs := []model.Currency{
		{Code: 840, Alpha3: "USD", EnglishName: "US Dollar", MinorUnits: 2},
	}
	return countries, subs, langs, currs
}

func mustReplace(t *testing.T, c *Cache) {
	t.Helper()
	countries, subs, langs, currs := testRows()
	if err := c.Replace(countries, subs, langs, currs); err != nil {
		t.Fatalf("Replace: %v", err)
	}
}

func TestCountriesSortedWithSubdivisions(t *testing.T) {
	c := NewCache()
	mustReplace(t, c)

	got := c.Countries()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantOrder := []string{"Australia", "Canada", "United States"}
	for i, name := range wantOrder {
		if got[i].EnglishName != name {
			t.Errorf("countries[%d] = %q, want %q", i, got[i].EnglishName, name)
		}
	}

	us, ok := c.CountryByCode(840)
	if !ok {
		t.Fatal("CountryByCode(840) missed")
	}
	if len(us.Subdivisions) != 2 {
		t.Fatalf("US subdivisions = %d, want 2", len(us.Subdivisions))
	}
	ca, _ := c.CountryByAlpha2("ca")
	if ca.Code != 124 {
		t.Fatalf("CountryByAlpha2(ca) = %d, want 124", ca.Code)
	}
	aus, ok := c.CountryByAlpha3("aus")
	if !ok || aus.Code != 36 {
		t.Fatalf("CountryByAlpha3(aus) = %+v ok=%v", aus, ok)
	}
}

func TestEmptyCacheMisses(t *testing.T) {
	c := NewCache()
	if _, ok := c.CountryByCode(840); ok {
		t.Fatal("empty cache returned a country")
	}
	if len(c.Countries()) != 0 || len(c.Languages()) != 0 || len(c.Currencies()) != 0 {
		t.Fatal("empty cache returned rows")
	}
}

func TestJSONViewsMatchTables(t *testing.T) {
	c := NewCache()
	mustReplace(t, c)

	var countries []model.Country
	if err := json.Unmarshal(c.CountriesJSON(), &countries); err != nil {
		t.Fatalf("countries JSON: %v", err)
	}
	if len(countries) != 3 || countries[0].EnglishName != "Australia" {
		t.Fatalf("countries JSON out of sync: %+v", countries)
	}

	var langs []model.Language
	if err := json.Unmarshal(c.LanguagesJSON(), &langs); err != nil {
		t.Fatalf("languages JSON: %v", err)
	}
	if len(langs) != 2 {
		t.Fatalf("languages JSON len = %d, want 2", len(langs))
	}

	var currs []model.Currency
	if err := json.Unmarshal(c.CurrenciesJSON(), &currs); err != nil {
		t.Fatalf("currencies JSON: %v", err)
	}
	if len(currs) != 1 || currs[0].Alpha3 != "USD" {
		t.Fatalf("currencies JSON out of sync: %+v", currs)
	}
}

func TestReplaceSwapsWholeSnapshot(t *testing.T) {
	c := NewCache()
	mustReplace(t, c)

	old := c.Countries()
	if err := c.Replace([]model.Country{
		{Code: 392, Alpha2: "JP", Alpha3: "JPN", EnglishName: "Japan"},
	}, nil, nil, nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got := c.Countries()
	if len(got) != 1 || got[0].Alpha2 != "JP" {
		t.Fatalf("post-swap countries: %+v", got)
	}
	if _, ok := c.CountryByCode(840); ok {
		t.Fatal("stale country survived the swap")
	}
	// The old snapshot stays intact for readers that captured it.
	if len(old) != 3 {
		t.Fatalf("captured snapshot mutated: len=%d", len(old))
	}
}
