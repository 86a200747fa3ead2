// package models defines the data model for the shared set service
package models

import (
	"time"
)

// SongEntry is one position in a collection's ordered song list.
//
// Entries are denormalized copies of catalog metadata taken from the track
// cache at the time the song was added.
type SongEntry struct {
	TrackID       string `json:"track_id"`
	Title         string `json:"title"`
	ArtistDisplay string `json:"artist_display"`
	AlbumArtURL   string `json:"album_art_url,omitempty"`
}

// TrackRecord is locally cached metadata for one external catalog track.
type TrackRecord struct {
	TrackID         string    `json:"track_id"`
	Title           string    `json:"title"`
	ArtistDisplay   string    `json:"artist_display"`
	AlbumArtURL     string    `json:"album_art_url,omitempty"`
	LastRefreshedAt time.Time `json:"last_refreshed_at"`
}

// Fresh reports whether the record is within the cache TTL at the given time.
func (t TrackRecord) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.LastRefreshedAt) < ttl
}

// SongEntry converts a cached track into a collection song entry.
func (t TrackRecord) SongEntry() SongEntry {
	return SongEntry{
		TrackID:       t.TrackID,
		Title:         t.Title,
		ArtistDisplay: t.ArtistDisplay,
		AlbumArtURL:   t.AlbumArtURL,
	}
}

// Collection is a named, ordered list of tracks with shared editors (a "set").
//
// Songs never contain a duplicate track id, and every track id was validated
// against the catalog (via the track cache) when it was added. Version
// increases monotonically on every songs update and is required by the
// persistence layer for optimistic concurrency.
type Collection struct {
	ID            string      `json:"id"`
	OwnerID       string      `json:"owner_id"`
	Name          string      `json:"name"`
	EditorIDs     []string    `json:"editor_ids"`
	Songs         []SongEntry `json:"songs"`
	Tags          []string    `json:"tags,omitempty"`
	DerivedImages []string    `json:"derived_images,omitempty"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CanEdit reports whether the actor may mutate this collection.
// The owner is always an editor.
func (c Collection) CanEdit(actorID string) bool {
	if actorID == "" {
		return false
	}
	if actorID == c.OwnerID {
		return true
	}
	for _, id := range c.EditorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}

// TrackIDs returns the song list's track ids in order.
func (c Collection) TrackIDs() []string {
	ids := make([]string, len(c.Songs))
	for i, s := range c.Songs {
		ids[i] = s.TrackID
	}
	return ids
}

// Credential is the stored OAuth token pair and expiry for one account.
//
// Mutated only by the token lifecycle manager; ExpiresAt always reflects the
// token currently stored as AccessToken.
type Credential struct {
	OwnerID      string    `json:"owner_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NeedsRefresh reports whether the access token should be refreshed at the
// given time, using the provided safety margin before actual expiry.
func (c Credential) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return now.After(c.ExpiresAt.Add(-margin))
}
