package repository

import (
	"fmt"
	"strings"

	"dwelligence/internal/geo"
	"dwelligence/internal/model"

	"github.com/jmoiron/sqlx"
)

const listingColumns = `id, name, address, lat, lng, price, bedrooms, bathrooms, sq_ft,
	property_type, sale_type, description, image_url,
	cell_fine, cell_medium, cell_coarse, created_at`

const amenityColumns = `id, name, type, address, lat, lng,
	cell_fine, cell_medium, cell_coarse, source_id, created_at`

// cellColumn maps a resolution to its column. Only these three names ever
// reach the SQL text.
func cellColumn(r geo.Resolution) (string, error) {
	switch r {
	case geo.Fine:
		return "cell_fine", nil
	case geo.Medium:
		return "cell_medium", nil
	case geo.Coarse:
		return "cell_coarse", nil
	}
	return "", fmt.Errorf("unknown resolution %q", r)
}

// listingConditions turns every set filter field into a parameterized clause.
func listingConditions(f model.ListingFilter) ([]string, []interface{}) {
	var where []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		where = append(where, clause)
		args = append(args, arg)
	}

	if f.MinPrice != nil {
		add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= ?", *f.MaxPrice)
	}
	if f.MinBedrooms != nil {
		add("bedrooms >= ?", *f.MinBedrooms)
	}
	if f.MaxBedrooms != nil {
		add("bedrooms <= ?", *f.MaxBedrooms)
	}
	if f.MinBathrooms != nil {
		add("bathrooms >= ?", *f.MinBathrooms)
	}
	if f.MaxBathrooms != nil {
		add("bathrooms <= ?", *f.MaxBathrooms)
	}
	if f.PropertyType != nil {
		add("property_type = ?", strings.ToLower(*f.PropertyType))
	}
	if f.ListingType != nil {
		add("sale_type = ?", strings.ToLower(*f.ListingType))
	}
	if f.Bounds != nil {
		where = append(where, "lat BETWEEN ? AND ?", "lng BETWEEN ? AND ?")
		args = append(args, f.Bounds.South, f.Bounds.North, f.Bounds.West, f.Bounds.East)
	}
	if len(f.IDs) > 0 {
		add("id IN (?)", f.IDs)
	}

	return where, args
}

// BuildListingQuery renders f as a single SELECT with $n placeholders.
// Results are ordered by price then id so pagination is stable.
func BuildListingQuery(f model.ListingFilter) (string, []interface{}, error) {
	where, args := listingConditions(f)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(listingColumns)
	sb.WriteString(" FROM properties")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY price ASC, id ASC")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, f.Offset)
	}

	query, args, err := sqlx.In(sb.String(), args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand listing query: %w", err)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}

// BuildCountQuery renders the COUNT(*) companion of BuildListingQuery,
// ignoring limit and offset.
func BuildCountQuery(f model.ListingFilter) (string, []interface{}, error) {
	where, args := listingConditions(f)

	query := "SELECT COUNT(*) FROM properties"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand count query: %w", err)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}
