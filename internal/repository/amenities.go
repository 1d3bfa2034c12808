package repository

import (
	"context"
	"fmt"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"

	"github.com/jmoiron/sqlx"
)

// AmenitiesInCell returns every amenity whose cell at r equals cell, in
// insertion order.
func (r *PostgresRepository) AmenitiesInCell(ctx context.Context, res geo.Resolution, cell string) ([]model.AmenityPoint, error) {
	col, err := cellColumn(res)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM amenities WHERE %s = $1 ORDER BY id ASC`, amenityColumns, col)
	amenities := []model.AmenityPoint{}
	if err := r.db.SelectContext(ctx, &amenities, query, cell); err != nil {
		return nil, fmt.Errorf("failed to fetch amenities in cell %s: %w", cell, err)
	}
	return amenities, nil
}

// AmenityCountsByCell counts amenities per category for each cell at res in
// one grouped query. Cells without amenities are absent from the result.
func (r *PostgresRepository) AmenityCountsByCell(ctx context.Context, res geo.Resolution, cells []string) (map[string]model.AmenityCounts, error) {
	result := make(map[string]model.AmenityCounts)
	if len(cells) == 0 {
		return result, nil
	}

	col, err := cellColumn(res)
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(fmt.Sprintf(
		`SELECT %[1]s AS cell, type, COUNT(*) AS n FROM amenities WHERE %[1]s IN (?) GROUP BY %[1]s, type`, col),
		cells,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to expand amenity count query: %w", err)
	}

	var rows []struct {
		Cell     string         `db:"cell"`
		Category model.Category `db:"type"`
		N        int            `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to count amenities: %w", err)
	}

	for _, row := range rows {
		counts, ok := result[row.Cell]
		if !ok {
			counts = model.NewAmenityCounts()
			result[row.Cell] = counts
		}
		counts[row.Category] += row.N
	}
	return result, nil
}

// UpsertAmenities inserts amenities, skipping any whose source_id already
// exists. Per-item failures are collected rather than aborting the batch.
func (r *PostgresRepository) UpsertAmenities(ctx context.Context, items []model.AmenityPoint) (inserted, duplicates int, errs []string) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("failed to start transaction: %v", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO amenities (name, type, address, lat, lng, cell_fine, cell_medium, cell_coarse, source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (source_id) DO NOTHING
	`)
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("failed to prepare statement: %v", err)}
	}
	defer stmt.Close()

	for _, a := range items {
		// savepoint keeps one bad row from aborting the transaction
		if _, err := tx.ExecContext(ctx, "SAVEPOINT amenity_item"); err != nil {
			errs = append(errs, fmt.Sprintf("source_id %s: %v", a.SourceID, err))
			continue
		}
		res, err := stmt.ExecContext(ctx, a.Name, a.Category, a.Address, a.Lat, a.Lng,
			a.CellFine, a.CellMedium, a.CellCoarse, a.SourceID)
		if err != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT amenity_item")
			errs = append(errs, fmt.Sprintf("source_id %s: %v", a.SourceID, err))
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
	}
	return inserted, duplicates, errs
}

// AllAmenities pages through the amenity table by id.
func (r *PostgresRepository) AllAmenities(ctx context.Context, afterID int64, limit int) ([]model.AmenityPoint, error) {
	query := fmt.Sprintf(`SELECT %s FROM amenities WHERE id > $1 ORDER BY id ASC LIMIT $2`, amenityColumns)
	amenities := []model.AmenityPoint{}
	if err := r.db.SelectContext(ctx, &amenities, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to page amenities: %w", err)
	}
	return amenities, nil
}

// UpdateAmenityCells rewrites the cell columns of one amenity.
func (r *PostgresRepository) UpdateAmenityCells(ctx context.Context, a *model.AmenityPoint) error {
	query := `UPDATE amenities SET cell_fine = :cell_fine, cell_medium = :cell_medium, cell_coarse = :cell_coarse WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to update cells for amenity %d: %w", a.ID, err)
	}
	return nil
}
