package db

import (
	"context"
	"fmt"

	"github.com/cyhdev/site/internal/model"
)

// LoadCountries returns the ISO country table without subdivisions attached.
func (p *Pool) LoadCountries(ctx context.Context) ([]model.Country, error) {
	var rows []model.Country
	err := p.selectCtx(ctx, &rows, `
		SELECT code, alpha2, alpha3, english_name
		FROM iso_country ORDER BY english_name`)
	if err != nil {
		return nil, fmt.Errorf("db: load countries: %w", err)
	}
	return rows, nil
}

// LoadSubdivisions returns all ISO 3166-2 subdivision rows.
func (p *Pool) LoadSubdivisions(ctx context.Context) ([]model.Subdivision, error) {
	var rows []model.Subdivision
	err := p.selectCtx(ctx, &rows, `
		SELECT country_code, code, name
		FROM iso_country_subdivision ORDER BY country_code, code`)
	if err != nil {
		return nil, fmt.Errorf("db: load subdivisions: %w", err)
	}
	return rows, nil
}

// LoadLanguages returns the ISO language table.
func (p *Pool) LoadLanguages(ctx context.Context) ([]model.Language, error) {
	var rows []model.Language
	err := p.selectCtx(ctx, &rows, `
		SELECT code, alpha2, english_name
		FROM iso_language ORDER BY english_name`)
	if err != nil {
		return nil, fmt.Errorf("db: load languages: %w", err)
	}
	return rows, nil
}

// LoadCurrencies returns the ISO currency table.
func (p *Pool) LoadCurrencies(ctx context.Context) ([]model.Currency, error) {
	var rows []model.Currency
	err := p.selectCtx(ctx, &rows, `
		SELECT code, alpha3, english_name, minor_units
		FROM iso_currency ORDER BY alpha3`)
	if err != nil {
		return nil, fmt.Errorf("db: load currencies: %w", err)
	}
	return rows, nil
}
