package db

import (
	"context"
	"fmt"

	"github.com/cyhdev/site/internal/model"
)

const i18nColumns = `id, content, created_at, created_by, updated_at, updated_by,
	language_code, country_code, subdivision_code, reference_key`

// LoadI18nStrings returns the full localized-string table.
func (p *Pool) LoadI18nStrings(ctx context.Context) ([]model.I18nString, error) {
	var rows []model.I18nString
	err := p.selectCtx(ctx, &rows, `SELECT `+i18nColumns+` FROM i18n_strings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db: load i18n strings: %w", err)
	}
	return rows, nil
}

// UpsertI18nString writes one localized string row.
func (p *Pool) UpsertI18nString(ctx context.Context, row model.I18nString) error {
	_, err := p.execCtx(ctx, `
		INSERT INTO i18n_strings (id, content, created_at, created_by, updated_at,
		                          updated_by, language_code, country_code,
		                          subdivision_code, reference_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content          = excluded.content,
			updated_at       = excluded.updated_at,
			updated_by       = excluded.updated_by,
			language_code    = excluded.language_code,
			country_code     = excluded.country_code,
			subdivision_code = excluded.subdivision_code,
			reference_key    = excluded.reference_key`,
		row.ID, row.Content, row.CreatedAt, row.CreatedBy, row.UpdatedAt,
		row.UpdatedBy, row.LanguageCode, row.CountryCode, row.SubdivisionCode,
		row.ReferenceKey)
	if err != nil {
		return fmt.Errorf("db: upsert i18n string %d: %w", row.ID, err)
	}
	return nil
}
