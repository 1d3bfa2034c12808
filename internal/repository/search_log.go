package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"dwelligence/internal/model"

	"github.com/lib/pq"
)

// SearchLog is one logged natural-language search
type SearchLog struct {
	SearchID       string
	Query          string
	Intent         *model.SearchIntent
	ResultCount    int
	ListingIDs     []int64
	RankedBy       string
	ResponseTimeMs int
}

// LogSearch records a search query
func (r *PostgresRepository) LogSearch(ctx context.Context, entry SearchLog) error {
	var intent []byte
	if entry.Intent != nil {
		var err error
		if intent, err = json.Marshal(entry.Intent); err != nil {
			return fmt.Errorf("failed to encode intent: %w", err)
		}
	}

	query := `
		INSERT INTO search_logs (search_id, query, intent, result_count, returned_listing_ids, ranked_by, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.SearchID, entry.Query, intent, entry.ResultCount,
		pq.Array(entry.ListingIDs), entry.RankedBy, entry.ResponseTimeMs,
	)
	if err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback records a user action against a logged search. It returns
// false when the search id is unknown.
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID string, listingID int64, action string) (bool, error) {
	query := `
		UPDATE search_logs
		SET clicked_listing_id = $2, action = $3
		WHERE search_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, searchID, listingID, action)
	if err != nil {
		return false, fmt.Errorf("failed to log feedback: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AllListings pages through the listing table by id.
func (r *PostgresRepository) AllListings(ctx context.Context, afterID int64, limit int) ([]model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM properties WHERE id > $1 ORDER BY id ASC LIMIT $2`
	listings := []model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to page listings: %w", err)
	}
	return listings, nil
}
