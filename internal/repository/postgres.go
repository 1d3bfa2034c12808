package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dwelligence/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewWithDB wraps an existing connection.
func NewWithDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// SearchListings returns the listings matching f and the total match count
// ignoring limit and offset.
func (r *PostgresRepository) SearchListings(ctx context.Context, f model.ListingFilter) ([]model.Listing, int, error) {
	countQuery, countArgs, err := BuildCountQuery(f)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}
	if total == 0 {
		return []model.Listing{}, 0, nil
	}

	listings, err := r.FindListings(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// FindListings returns the listings matching f.
func (r *PostgresRepository) FindListings(ctx context.Context, f model.ListingFilter) ([]model.Listing, error) {
	query, args, err := BuildListingQuery(f)
	if err != nil {
		return nil, err
	}

	listings := []model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, nil
}

// GetListingByID retrieves a single listing. A missing listing is (nil, nil).
func (r *PostgresRepository) GetListingByID(ctx context.Context, id int64) (*model.Listing, error) {
	var listing model.Listing
	query := `SELECT ` + listingColumns + ` FROM properties WHERE id = $1`
	err := r.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// CreateListing inserts a listing; cells must already be assigned.
func (r *PostgresRepository) CreateListing(ctx context.Context, l *model.Listing) error {
	query := `
		INSERT INTO properties (name, address, lat, lng, price, bedrooms, bathrooms, sq_ft,
			property_type, sale_type, description, image_url, cell_fine, cell_medium, cell_coarse)
		VALUES (:name, :address, :lat, :lng, :price, :bedrooms, :bathrooms, :sq_ft,
			:property_type, :sale_type, :description, :image_url, :cell_fine, :cell_medium, :cell_coarse)
		RETURNING id, created_at
	`
	stmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare listing insert: %w", err)
	}
	defer stmt.Close()

	if err := stmt.QueryRowxContext(ctx, l).Scan(&l.ID, &l.CreatedAt); err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// UpdateListingCells rewrites the cell columns of one listing.
func (r *PostgresRepository) UpdateListingCells(ctx context.Context, l *model.Listing) error {
	query := `UPDATE properties SET cell_fine = :cell_fine, cell_medium = :cell_medium, cell_coarse = :cell_coarse WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("failed to update cells for listing %d: %w", l.ID, err)
	}
	return nil
}
