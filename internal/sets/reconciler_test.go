package sets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/shared"
)

type fakeCollections struct {
	collection models.Collection
	getErr     error
	updateErr  error

	// conflictsLeft makes UpdateSongs fail with ErrConflict that many times
	// before succeeding, bumping the stored version each time.
	conflictsLeft int
	updates       int
	lastSongs     []models.SongEntry
	lastImages    []string
}

func (f *fakeCollections) Get(id string) (models.Collection, error) {
	if f.getErr != nil {
		return models.Collection{}, f.getErr
	}
	if id != f.collection.ID {
		return models.Collection{}, shared.ErrNotFound
	}
	return f.collection, nil
}

func (f *fakeCollections) UpdateSongs(id string, version int64, songs []models.SongEntry, images []string) error {
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		f.collection.Version++
		return shared.ErrConflict
	}
	if version != f.collection.Version {
		return shared.ErrConflict
	}
	f.collection.Songs = songs
	f.collection.DerivedImages = images
	f.collection.Version++
	f.lastSongs = songs
	f.lastImages = images
	return nil
}

type fakeCache struct {
	records map[string]models.TrackRecord
	err     error
	calls   [][]string
}

func (f *fakeCache) Hydrate(_ context.Context, _ string, trackIDs []string) ([]models.TrackRecord, error) {
	f.calls = append(f.calls, trackIDs)
	if f.err != nil {
		return nil, f.err
	}
	var out []models.TrackRecord
	for _, id := range trackIDs {
		if record, ok := f.records[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) EnsureAccessToken(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func record(id string) models.TrackRecord {
	return models.TrackRecord{
		TrackID:         id,
		Title:           "Title " + id,
		ArtistDisplay:   "Artist " + id,
		AlbumArtURL:     "https://img.example/" + id + ".jpg",
		LastRefreshedAt: time.Now(),
	}
}

func song(id string) models.SongEntry {
	return record(id).SongEntry()
}

func testCollection(songs ...models.SongEntry) models.Collection {
	return models.Collection{
		ID:        "col-1",
		OwnerID:   "owner",
		Name:      "Road Trip",
		EditorIDs: []string{"editor"},
		Songs:     songs,
		Version:   3,
	}
}

func trackIDs(songs []models.SongEntry) []string {
	var ids []string
	for _, s := range songs {
		ids = append(ids, s.TrackID)
	}
	return ids
}

func equalIDs(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newReconciler(store *fakeCollections, cache *fakeCache, tokens *fakeTokens) *Reconciler {
	return NewReconciler(store, cache, tokens, shared.NewLogger(io.Discard))
}

func TestAddSongs(t *testing.T) {
	ctx := context.Background()

	t.Run("Appends In Hydration Order", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"))}
		cache := &fakeCache{records: map[string]models.TrackRecord{"b": record("b"), "c": record("c")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		result, err := r.AddSongs(ctx, "col-1", "owner", []string{"b", "c"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !equalIDs(trackIDs(result.Songs), "a", "b", "c") {
			t.Errorf("got order %v", trackIDs(result.Songs))
		}
		if result.AddedCount != 2 {
			t.Errorf("expected 2 added, got %d", result.AddedCount)
		}
		if len(result.Skipped) != 0 {
			t.Errorf("expected no skips, got %v", result.Skipped)
		}
	})

	t.Run("Sequential Adds Preserve Order", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a"), "b": record("b")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		if _, err := r.AddSongs(ctx, "col-1", "owner", []string{"a"}); err != nil {
			t.Fatalf("first add: %v", err)
		}
		result, err := r.AddSongs(ctx, "col-1", "owner", []string{"b"})
		if err != nil {
			t.Fatalf("second add: %v", err)
		}
		if !equalIDs(trackIDs(result.Songs), "a", "b") {
			t.Errorf("got order %v", trackIDs(result.Songs))
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"))}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a")}}
		tokens := &fakeTokens{token: "tok"}
		r := newReconciler(store, cache, tokens)

		result, err := r.AddSongs(ctx, "col-1", "owner", []string{"a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AddedCount != 0 || !equalIDs(trackIDs(result.Songs), "a") {
			t.Errorf("expected no-op, got %+v", result)
		}
		if tokens.calls != 0 || len(cache.calls) != 0 {
			t.Error("expected no token or catalog work for a no-op add")
		}
		if store.updates != 0 {
			t.Error("no-op add should not write")
		}
	})

	t.Run("Unresolvable Ids Reported As Skipped", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		result, err := r.AddSongs(ctx, "col-1", "owner", []string{"a", "ghost"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AddedCount != 1 {
			t.Errorf("expected 1 added, got %d", result.AddedCount)
		}
		if !equalIDs(result.Skipped, "ghost") {
			t.Errorf("expected ghost skipped, got %v", result.Skipped)
		}
	})

	t.Run("Duplicate Candidates Collapse", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		result, err := r.AddSongs(ctx, "col-1", "owner", []string{"a", "a", "a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AddedCount != 1 || !equalIDs(trackIDs(result.Songs), "a") {
			t.Errorf("expected single a, got %+v", result)
		}
	})

	t.Run("Editor Can Edit", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		if _, err := r.AddSongs(ctx, "col-1", "editor", []string{"a"}); err != nil {
			t.Fatalf("editor should be allowed: %v", err)
		}
	})

	t.Run("Stranger Forbidden", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		_, err := r.AddSongs(ctx, "col-1", "stranger", []string{"a"})
		if !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("Missing Collection", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		_, err := r.AddSongs(ctx, "nope", "owner", []string{"a"})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Token Failure Propagates", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{err: shared.ErrNoCredential})

		_, err := r.AddSongs(ctx, "col-1", "owner", []string{"a"})
		if !errors.Is(err, shared.ErrNoCredential) {
			t.Errorf("expected ErrNoCredential, got %v", err)
		}
		if store.updates != 0 {
			t.Error("failed token acquisition must not write")
		}
	})

	t.Run("Retries On Version Conflict", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(), conflictsLeft: 2}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		result, err := r.AddSongs(ctx, "col-1", "owner", []string{"a"})
		if err != nil {
			t.Fatalf("expected retry to succeed: %v", err)
		}
		if store.updates != 3 {
			t.Errorf("expected 3 update attempts, got %d", store.updates)
		}
		if !equalIDs(trackIDs(result.Songs), "a") {
			t.Errorf("got %v", trackIDs(result.Songs))
		}
	})

	t.Run("Gives Up After Bounded Retries", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(), conflictsLeft: maxEditRetries + 5}
		cache := &fakeCache{records: map[string]models.TrackRecord{"a": record("a")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		_, err := r.AddSongs(ctx, "col-1", "owner", []string{"a"})
		if !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict after retries, got %v", err)
		}
	})

	t.Run("Derives Images From Song List", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection()}
		records := map[string]models.TrackRecord{}
		var ids []string
		for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
			records[id] = record(id)
			ids = append(ids, id)
		}
		cache := &fakeCache{records: records}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		if _, err := r.AddSongs(ctx, "col-1", "owner", ids); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.lastImages) != maxDerivedImages {
			t.Fatalf("expected %d images, got %d", maxDerivedImages, len(store.lastImages))
		}
		if store.lastImages[0] != "https://img.example/a.jpg" {
			t.Errorf("images should follow song order, got %v", store.lastImages)
		}
	})
}

func TestReplaceSongs(t *testing.T) {
	ctx := context.Background()

	refs := func(ids ...string) []SongRef {
		var out []SongRef
		for _, id := range ids {
			out = append(out, SongRef{TrackID: id})
		}
		return out
	}

	t.Run("Reorders Without Catalog Calls", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"), song("b"), song("c"))}
		cache := &fakeCache{}
		tokens := &fakeTokens{token: "tok"}
		r := newReconciler(store, cache, tokens)

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", refs("c", "a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !equalIDs(trackIDs(result.Songs), "c", "a", "b") {
			t.Errorf("got order %v", trackIDs(result.Songs))
		}
		if !result.OrderChanged || result.RemovedCount != 0 {
			t.Errorf("expected pure reorder, got %+v", result)
		}
		if tokens.calls != 0 || len(cache.calls) != 0 {
			t.Error("reorder of known tracks must not touch token or catalog")
		}
	})

	t.Run("Same Order Is A NoOp Signal", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"), song("b"))}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", refs("a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.OrderChanged {
			t.Error("identical order should not report a change")
		}
		if result.RemovedCount != 0 || result.Length != 2 {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("Empty Proposal Clears Collection", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"), song("b"))}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Length != 0 || result.RemovedCount != 2 {
			t.Errorf("expected full removal, got %+v", result)
		}
		if !equalIDs(trackIDs(result.Removed), "a", "b") {
			t.Errorf("removed should keep stored order, got %v", trackIDs(result.Removed))
		}
		if len(store.lastImages) != 0 {
			t.Errorf("cleared collection should have no images, got %v", store.lastImages)
		}
	})

	t.Run("New Ids Are Hydrated", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"))}
		cache := &fakeCache{records: map[string]models.TrackRecord{"b": record("b")}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", refs("b", "a"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !equalIDs(trackIDs(result.Songs), "b", "a") {
			t.Errorf("got order %v", trackIDs(result.Songs))
		}
		if len(cache.calls) != 1 || !equalIDs(cache.calls[0], "b") {
			t.Errorf("expected only the new id hydrated, got %v", cache.calls)
		}
	})

	t.Run("Unknown Ids Dropped Silently", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"))}
		cache := &fakeCache{records: map[string]models.TrackRecord{}}
		r := newReconciler(store, cache, &fakeTokens{token: "tok"})

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", refs("a", "ghost"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !equalIDs(trackIDs(result.Songs), "a") {
			t.Errorf("ghost should be dropped, got %v", trackIDs(result.Songs))
		}
	})

	t.Run("First Occurrence Wins On Duplicates", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"), song("b"))}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", refs("b", "a", "b"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !equalIDs(trackIDs(result.Songs), "b", "a") {
			t.Errorf("got order %v", trackIDs(result.Songs))
		}
	})

	t.Run("Stranger Forbidden", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"))}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		_, err := r.ReplaceSongs(ctx, "col-1", "stranger", refs("a"))
		if !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("Retries On Version Conflict", func(t *testing.T) {
		store := &fakeCollections{collection: testCollection(song("a"), song("b")), conflictsLeft: 1}
		r := newReconciler(store, &fakeCache{}, &fakeTokens{token: "tok"})

		result, err := r.ReplaceSongs(ctx, "col-1", "owner", refs("b", "a"))
		if err != nil {
			t.Fatalf("expected retry to succeed: %v", err)
		}
		if store.updates != 2 {
			t.Errorf("expected 2 update attempts, got %d", store.updates)
		}
		if !equalIDs(trackIDs(result.Songs), "b", "a") {
			t.Errorf("got %v", trackIDs(result.Songs))
		}
	})
}

func TestSongRefUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		err  bool
	}{
		{name: "Bare Id", in: `"track-1"`, want: "track-1"},
		{name: "Object With TrackID", in: `{"track_id":"track-2"}`, want: "track-2"},
		{name: "Object With Id", in: `{"id":"track-3"}`, want: "track-3"},
		{name: "TrackID Preferred Over Id", in: `{"track_id":"track-4","id":"other"}`, want: "track-4"},
		{name: "Number Rejected", in: `42`, err: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ref SongRef
			err := json.Unmarshal([]byte(tc.in), &ref)
			if tc.err {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.TrackID != tc.want {
				t.Errorf("got %q, want %q", ref.TrackID, tc.want)
			}
		})
	}
}
