package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/setshare/internal/models"
)

// TrackRepository caches external catalog track metadata keyed by track id.
//
// Rows are never deleted, only superseded: an upsert replaces the metadata and
// refreshes last_refreshed_at, so stale entries simply age out of the TTL
// window until the next hydration touches them.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Get retrieves a single cached track by its catalog id.
func (r *TrackRepository) Get(trackID string) (models.TrackRecord, bool, error) {
	records, err := r.GetMany([]string{trackID})
	if err != nil {
		return models.TrackRecord{}, false, err
	}
	record, ok := records[trackID]
	return record, ok, nil
}

// GetMany retrieves cached tracks for the given catalog ids.
// Missing ids are simply absent from the returned map.
func (r *TrackRepository) GetMany(trackIDs []string) (map[string]models.TrackRecord, error) {
	records := make(map[string]models.TrackRecord, len(trackIDs))
	if len(trackIDs) == 0 {
		return records, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(trackIDs)), ",")
	query := fmt.Sprintf(`
		SELECT track_id, title, artist_display, album_art_url, last_refreshed_at
		FROM tracks
		WHERE track_id IN (%s)
	`, placeholders)

	args := make([]any, len(trackIDs))
	for i, id := range trackIDs {
		args[i] = id
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record models.TrackRecord
		if err := rows.Scan(
			&record.TrackID,
			&record.Title,
			&record.ArtistDisplay,
			&record.AlbumArtURL,
			&record.LastRefreshedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		records[record.TrackID] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// UpsertBatch inserts or replaces the given track records in one transaction.
// Idempotent: re-running a partially applied batch converges on the same rows.
func (r *TrackRepository) UpsertBatch(records []models.TrackRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tracks (track_id, title, artist_display, album_art_url, last_refreshed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			title = excluded.title,
			artist_display = excluded.artist_display,
			album_art_url = excluded.album_art_url,
			last_refreshed_at = excluded.last_refreshed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		refreshedAt := record.LastRefreshedAt
		if refreshedAt.IsZero() {
			refreshedAt = time.Now()
		}

		if _, err := stmt.Exec(
			record.TrackID,
			record.Title,
			record.ArtistDisplay,
			record.AlbumArtURL,
			refreshedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert track %s: %w", record.TrackID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit track upserts: %w", err)
	}

	return nil
}
