package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cyhdev/site/internal/model"
)

// LoadWasmModules returns every stored WASM bundle (already gzipped).
func (p *Pool) LoadWasmModules(ctx context.Context) ([]model.WasmModuleRow, error) {
	var rows []model.WasmModuleRow
	err := p.selectCtx(ctx, &rows, `
		SELECT module_id, name, gz_bytes, content_type, created_at
		FROM wasm_module ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("db: load wasm modules: %w", err)
	}
	return rows, nil
}

// LoadWasmModule returns one stored bundle by id.
func (p *Pool) LoadWasmModule(ctx context.Context, id uuid.UUID) (model.WasmModuleRow, error) {
	var row model.WasmModuleRow
	err := p.getCtx(ctx, &row, `
		SELECT module_id, name, gz_bytes, content_type, created_at
		FROM wasm_module WHERE module_id = ?`, id)
	if err != nil {
		return model.WasmModuleRow{}, fmt.Errorf("db: load wasm module %s: %w", id, err)
	}
	return row, nil
}

// UpsertWasmModule stores a normalized bundle.
func (p *Pool) UpsertWasmModule(ctx context.Context, row model.WasmModuleRow) error {
	_, err := p.execCtx(ctx, `
		INSERT INTO wasm_module (module_id, name, gz_bytes, content_type, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(module_id) DO UPDATE SET
			name         = excluded.name,
			gz_bytes     = excluded.gz_bytes,
			content_type = excluded.content_type`,
		row.ModuleID, row.Name, row.GzBytes, row.ContentType, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("db: upsert wasm module %s: %w", row.ModuleID, err)
	}
	return nil
}

// DeleteWasmModule removes a stored bundle.
func (p *Pool) DeleteWasmModule(ctx context.Context, id uuid.UUID) error {
	if _, err := p.execCtx(ctx, `DELETE FROM wasm_module WHERE module_id = ?`, id); err != nil {
		return fmt.Errorf("db: delete wasm module %s: %w", id, err)
	}
	return nil
}
