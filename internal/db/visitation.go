package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cyhdev/site/internal/model"
)

// LoadVisitations returns every visit record; callers accumulate duplicates
// into per-coordinate counts.
func (p *Pool) LoadVisitations(ctx context.Context) ([]model.VisitationRow, error) {
	var rows []model.VisitationRow
	err := p.selectCtx(ctx, &rows, `
		SELECT latitude, longitude, visited_at FROM visitation_data`)
	if err != nil {
		return nil, fmt.Errorf("db: load visitations: %w", err)
	}
	return rows, nil
}

// InsertVisitation records a visit at the given coordinates.
func (p *Pool) InsertVisitation(ctx context.Context, lat, lon float64, at time.Time) error {
	_, err := p.execCtx(ctx, `
		INSERT INTO visitation_data (latitude, longitude, visited_at)
		VALUES (?, ?, ?)`, lat, lon, at)
	if err != nil {
		return fmt.Errorf("db: insert visitation: %w", err)
	}
	return nil
}
