package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/shared"
)

// CollectionRepository persists collections as single documents.
type CollectionRepository struct {
	db *sql.DB
}

// NewCollectionRepository creates a new CollectionRepository with the given database connection
func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Create inserts a new collection with a generated ID and version 0.
func (r *CollectionRepository) Create(collection *models.Collection) error {
	if collection.OwnerID == "" {
		return fmt.Errorf("%w: owner id", shared.ErrMissingArgument)
	}
	if collection.Name == "" {
		return fmt.Errorf("%w: collection name", shared.ErrMissingArgument)
	}

	if collection.ID == "" {
		collection.ID = shared.GenerateID()
	}

	now := time.Now()
	collection.CreatedAt = now
	collection.UpdatedAt = now
	collection.Version = 0

	editors, songs, tags, images, err := marshalDocumentFields(collection)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO collections (id, owner_id, name, editor_ids, songs, tags, derived_images, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		collection.ID,
		collection.OwnerID,
		collection.Name,
		editors,
		songs,
		tags,
		images,
		collection.Version,
		collection.CreatedAt,
		collection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}

	return nil
}

// Get retrieves a collection by ID.
// Returns shared.ErrNotFound if no row exists.
func (r *CollectionRepository) Get(id string) (models.Collection, error) {
	query := `
		SELECT id, owner_id, name, editor_ids, songs, tags, derived_images, version, created_at, updated_at
		FROM collections
		WHERE id = ?
	`

	var collection models.Collection
	var editors, songs, tags, images []byte

	err := r.db.QueryRow(query, id).Scan(
		&collection.ID,
		&collection.OwnerID,
		&collection.Name,
		&editors,
		&songs,
		&tags,
		&images,
		&collection.Version,
		&collection.CreatedAt,
		&collection.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Collection{}, fmt.Errorf("%w: collection %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return models.Collection{}, fmt.Errorf("failed to load collection: %w", err)
	}

	if err := unmarshalDocumentFields(&collection, editors, songs, tags, images); err != nil {
		return models.Collection{}, err
	}

	return collection, nil
}

// ListByOwner retrieves all collections owned by the given user, oldest first.
func (r *CollectionRepository) ListByOwner(ownerID string) ([]models.Collection, error) {
	query := `
		SELECT id, owner_id, name, editor_ids, songs, tags, derived_images, version, created_at, updated_at
		FROM collections
		WHERE owner_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []models.Collection
	for rows.Next() {
		var collection models.Collection
		var editors, songs, tags, images []byte

		if err := rows.Scan(
			&collection.ID,
			&collection.OwnerID,
			&collection.Name,
			&editors,
			&songs,
			&tags,
			&images,
			&collection.Version,
			&collection.CreatedAt,
			&collection.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}

		if err := unmarshalDocumentFields(&collection, editors, songs, tags, images); err != nil {
			return nil, err
		}

		collections = append(collections, collection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return collections, nil
}

// UpdateSongs atomically replaces the song list and derived images of the
// collection, guarded by the version the caller read.
//
// Returns shared.ErrConflict when the stored version no longer matches
// (a concurrent edit committed first) and shared.ErrNotFound when the
// collection does not exist.
func (r *CollectionRepository) UpdateSongs(id string, version int64, songs []models.SongEntry, images []string) error {
	songsJSON, err := json.Marshal(orEmptySongs(songs))
	if err != nil {
		return fmt.Errorf("failed to encode songs: %w", err)
	}
	imagesJSON, err := json.Marshal(orEmptyStrings(images))
	if err != nil {
		return fmt.Errorf("failed to encode derived images: %w", err)
	}

	query := `
		UPDATE collections
		SET songs = ?, derived_images = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Exec(query, songsJSON, imagesJSON, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update collection songs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.QueryRow("SELECT EXISTS(SELECT 1 FROM collections WHERE id = ?)", id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check collection existence: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: collection %s moved past version %d", shared.ErrConflict, id, version)
		}
		return fmt.Errorf("%w: collection %s", shared.ErrNotFound, id)
	}

	return nil
}

// UpdateMeta replaces the collection's name, editors, and tags.
func (r *CollectionRepository) UpdateMeta(collection models.Collection) error {
	editors, err := json.Marshal(orEmptyStrings(collection.EditorIDs))
	if err != nil {
		return fmt.Errorf("failed to encode editor ids: %w", err)
	}
	tags, err := json.Marshal(orEmptyStrings(collection.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		UPDATE collections
		SET name = ?, editor_ids = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, collection.Name, editors, tags, time.Now(), collection.ID)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: collection %s", shared.ErrNotFound, collection.ID)
	}

	return nil
}

// Delete removes a collection by ID.
func (r *CollectionRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM collections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: collection %s", shared.ErrNotFound, id)
	}

	return nil
}

func marshalDocumentFields(c *models.Collection) (editors, songs, tags, images []byte, err error) {
	if editors, err = json.Marshal(orEmptyStrings(c.EditorIDs)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode editor ids: %w", err)
	}
	if songs, err = json.Marshal(orEmptySongs(c.Songs)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode songs: %w", err)
	}
	if tags, err = json.Marshal(orEmptyStrings(c.Tags)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	if images, err = json.Marshal(orEmptyStrings(c.DerivedImages)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode derived images: %w", err)
	}
	return editors, songs, tags, images, nil
}

func unmarshalDocumentFields(c *models.Collection, editors, songs, tags, images []byte) error {
	if err := json.Unmarshal(editors, &c.EditorIDs); err != nil {
		return fmt.Errorf("failed to decode editor ids: %w", err)
	}
	if err := json.Unmarshal(songs, &c.Songs); err != nil {
		return fmt.Errorf("failed to decode songs: %w", err)
	}
	if err := json.Unmarshal(tags, &c.Tags); err != nil {
		return fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal(images, &c.DerivedImages); err != nil {
		return fmt.Errorf("failed to decode derived images: %w", err)
	}
	return nil
}

// JSON columns default to '[]'; keep nil slices from serializing as null.
func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptySongs(s []models.SongEntry) []models.SongEntry {
	if s == nil {
		return []models.SongEntry{}
	}
	return s
}
