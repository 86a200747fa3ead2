// Package sets implements the collection reconciler: the only writer of a
// collection's ordered song list.
//
// Both entry points share one invariant: the persisted song list never
// contains an id that was not validated through the metadata cache.
package sets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/shared"
)

const (
	// maxDerivedImages bounds the artwork strip derived from the song list.
	maxDerivedImages = 5

	// maxEditRetries bounds optimistic-concurrency retries on version conflict.
	maxEditRetries = 3
)

// CollectionStore is the slice of the collection repository the reconciler needs.
type CollectionStore interface {
	Get(id string) (models.Collection, error)
	UpdateSongs(id string, version int64, songs []models.SongEntry, images []string) error
}

// Hydrator resolves track ids into validated records (cache-then-catalog).
type Hydrator interface {
	Hydrate(ctx context.Context, accessToken string, trackIDs []string) ([]models.TrackRecord, error)
}

// TokenSource yields a valid catalog access token for an owner.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context, ownerID string) (string, error)
}

// Reconciler merges proposed song lists against stored collections.
type Reconciler struct {
	collections CollectionStore
	cache       Hydrator
	tokens      TokenSource
	logger      *log.Logger
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(collections CollectionStore, cache Hydrator, tokens TokenSource, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		collections: collections,
		cache:       cache,
		tokens:      tokens,
		logger:      logger,
	}
}

// AddResult reports the outcome of an add operation.
type AddResult struct {
	Songs      []models.SongEntry `json:"songs"`
	AddedCount int                `json:"added_count"`
	Skipped    []string           `json:"skipped,omitempty"`
}

// ReplaceResult reports the outcome of a replace/reorder operation.
type ReplaceResult struct {
	Songs        []models.SongEntry `json:"songs"`
	RemovedCount int                `json:"removed_count"`
	Removed      []models.SongEntry `json:"removed,omitempty"`
	OrderChanged bool               `json:"order_changed"`
	Length       int                `json:"length"`
}

// SongRef is one element of a client-proposed order: either a bare track id
// or an object carrying one.
type SongRef struct {
	TrackID string
}

func (r *SongRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.TrackID = id
		return nil
	}

	var obj struct {
		TrackID string `json:"track_id"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: song reference must be an id or an object", shared.ErrInvalidInput)
	}

	r.TrackID = obj.TrackID
	if r.TrackID == "" {
		r.TrackID = obj.ID
	}
	return nil
}

// AddSongs appends the candidate tracks to the end of the collection's list.
//
// Ids already present are silently dropped. Candidates the cache could not
// resolve are reported in Skipped, not raised: the edit makes maximal
// progress. Resolved tracks are appended in hydration-result order.
func (r *Reconciler) AddSongs(ctx context.Context, collectionID, actorID string, candidateIDs []string) (AddResult, error) {
	for attempt := 0; ; attempt++ {
		collection, err := r.collections.Get(collectionID)
		if err != nil {
			return AddResult{}, err
		}
		if !collection.CanEdit(actorID) {
			return AddResult{}, fmt.Errorf("%w: %s cannot edit collection %s", shared.ErrForbidden, actorID, collectionID)
		}

		current := make(map[string]bool, len(collection.Songs))
		for _, song := range collection.Songs {
			current[song.TrackID] = true
		}

		var incoming []string
		for _, id := range dedupe(candidateIDs) {
			if !current[id] {
				incoming = append(incoming, id)
			}
		}

		if len(incoming) == 0 {
			return AddResult{Songs: collection.Songs}, nil
		}

		token, err := r.tokens.EnsureAccessToken(ctx, actorID)
		if err != nil {
			return AddResult{}, err
		}

		records, err := r.cache.Hydrate(ctx, token, incoming)
		if err != nil {
			return AddResult{}, err
		}

		resolved := make(map[string]bool, len(records))
		songs := append([]models.SongEntry{}, collection.Songs...)
		for _, record := range records {
			resolved[record.TrackID] = true
			songs = append(songs, record.SongEntry())
		}

		var skipped []string
		for _, id := range incoming {
			if !resolved[id] {
				skipped = append(skipped, id)
			}
		}

		err = r.collections.UpdateSongs(collectionID, collection.Version, songs, deriveImages(songs))
		if errors.Is(err, shared.ErrConflict) && attempt < maxEditRetries {
			r.logger.Debug("collection version conflict, retrying add", "collection", collectionID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return AddResult{}, err
		}

		return AddResult{
			Songs:      songs,
			AddedCount: len(records),
			Skipped:    skipped,
		}, nil
	}
}

// ReplaceSongs rebuilds the collection's list to match the proposed order.
//
// The proposal may introduce new ids (add-with-reorder); those are hydrated
// like an add and dropped silently when unresolvable. First occurrence wins
// on duplicates, unknown ids are dropped rather than inserted as
// placeholders, and the result always follows the caller-supplied order.
func (r *Reconciler) ReplaceSongs(ctx context.Context, collectionID, actorID string, finalOrder []SongRef) (ReplaceResult, error) {
	for attempt := 0; ; attempt++ {
		collection, err := r.collections.Get(collectionID)
		if err != nil {
			return ReplaceResult{}, err
		}
		if !collection.CanEdit(actorID) {
			return ReplaceResult{}, fmt.Errorf("%w: %s cannot edit collection %s", shared.ErrForbidden, actorID, collectionID)
		}

		known := make(map[string]models.SongEntry, len(collection.Songs))
		for _, song := range collection.Songs {
			known[song.TrackID] = song
		}

		var proposed []string
		for _, ref := range finalOrder {
			if ref.TrackID != "" {
				proposed = append(proposed, ref.TrackID)
			}
		}
		proposed = dedupe(proposed)

		var unknown []string
		for _, id := range proposed {
			if _, ok := known[id]; !ok {
				unknown = append(unknown, id)
			}
		}

		hydrated := map[string]models.SongEntry{}
		if len(unknown) > 0 {
			token, err := r.tokens.EnsureAccessToken(ctx, actorID)
			if err != nil {
				return ReplaceResult{}, err
			}

			records, err := r.cache.Hydrate(ctx, token, unknown)
			if err != nil {
				return ReplaceResult{}, err
			}
			for _, record := range records {
				hydrated[record.TrackID] = record.SongEntry()
			}
		}

		songs := make([]models.SongEntry, 0, len(proposed))
		final := make(map[string]bool, len(proposed))
		for _, id := range proposed {
			if entry, ok := known[id]; ok {
				songs = append(songs, entry)
				final[id] = true
			} else if entry, ok := hydrated[id]; ok {
				songs = append(songs, entry)
				final[id] = true
			}
			// Resolvable by neither path: dropped.
		}

		var removed []models.SongEntry
		for _, song := range collection.Songs {
			if !final[song.TrackID] {
				removed = append(removed, song)
			}
		}

		orderChanged := len(songs) != len(collection.Songs)
		if !orderChanged {
			for i := range songs {
				if songs[i].TrackID != collection.Songs[i].TrackID {
					orderChanged = true
					break
				}
			}
		}

		err = r.collections.UpdateSongs(collectionID, collection.Version, songs, deriveImages(songs))
		if errors.Is(err, shared.ErrConflict) && attempt < maxEditRetries {
			r.logger.Debug("collection version conflict, retrying replace", "collection", collectionID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return ReplaceResult{}, err
		}

		return ReplaceResult{
			Songs:        songs,
			RemovedCount: len(removed),
			Removed:      removed,
			OrderChanged: orderChanged,
			Length:       len(songs),
		}, nil
	}
}

// deriveImages returns the first non-empty artwork URLs across the list.
func deriveImages(songs []models.SongEntry) []string {
	var images []string
	for _, song := range songs {
		if song.AlbumArtURL == "" {
			continue
		}
		images = append(images, song.AlbumArtURL)
		if len(images) == maxDerivedImages {
			break
		}
	}
	return images
}

// dedupe removes duplicate ids, preserving first-occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var unique []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
