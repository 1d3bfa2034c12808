package repository

import (
	"context"
	"fmt"
)

// schema bootstraps a local database. Production schemas are provisioned
// outside this service.
const schema = `
CREATE TABLE IF NOT EXISTS properties (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT NOT NULL,
  lat DOUBLE PRECISION NOT NULL,
  lng DOUBLE PRECISION NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  bedrooms INTEGER NOT NULL DEFAULT 0,
  bathrooms DOUBLE PRECISION NOT NULL DEFAULT 0,
  sq_ft INTEGER,
  property_type TEXT NOT NULL,
  sale_type TEXT NOT NULL,
  description TEXT,
  image_url TEXT,
  cell_fine TEXT,
  cell_medium TEXT,
  cell_coarse TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_properties_latlng ON properties(lat, lng);
CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(price);
CREATE INDEX IF NOT EXISTS idx_properties_cell_fine ON properties(cell_fine);
CREATE INDEX IF NOT EXISTS idx_properties_cell_medium ON properties(cell_medium);
CREATE INDEX IF NOT EXISTS idx_properties_cell_coarse ON properties(cell_coarse);

CREATE TABLE IF NOT EXISTS amenities (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  address TEXT,
  lat DOUBLE PRECISION NOT NULL,
  lng DOUBLE PRECISION NOT NULL,
  cell_fine TEXT NOT NULL,
  cell_medium TEXT NOT NULL,
  cell_coarse TEXT NOT NULL,
  source_id TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_amenities_cell_fine ON amenities(cell_fine, type);
CREATE INDEX IF NOT EXISTS idx_amenities_cell_medium ON amenities(cell_medium, type);
CREATE INDEX IF NOT EXISTS idx_amenities_cell_coarse ON amenities(cell_coarse, type);

CREATE TABLE IF NOT EXISTS search_logs (
  id BIGSERIAL PRIMARY KEY,
  search_id UUID NOT NULL UNIQUE,
  query TEXT NOT NULL,
  intent JSONB,
  result_count INTEGER NOT NULL DEFAULT 0,
  returned_listing_ids BIGINT[],
  ranked_by TEXT,
  response_time_ms INTEGER,
  clicked_listing_id BIGINT,
  action TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates any missing tables and indexes.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
