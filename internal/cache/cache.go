// Package cache implements the read-through track metadata cache.
//
// Hydration resolves bare catalog track ids into full metadata, serving fresh
// rows from the local store and bulk-fetching the rest from the catalog in
// fixed-size groups. Individual failures are recovered locally: a bulk edit
// should make maximal progress, not fail atomically on one bad id.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/services"
	"github.com/desertthunder/setshare/internal/shared"
)

const (
	// DefaultTTL is how long a cached track record is considered fresh.
	DefaultTTL = 7 * 24 * time.Hour

	// maxBackoff caps the pause honored after an upstream 429.
	maxBackoff = 5 * time.Second
)

// TrackStore is the slice of the track repository the cache needs.
type TrackStore interface {
	GetMany(trackIDs []string) (map[string]models.TrackRecord, error)
	UpsertBatch(records []models.TrackRecord) error
}

// Fetcher bulk-fetches track metadata from the external catalog.
type Fetcher interface {
	SeveralTracks(ctx context.Context, accessToken string, trackIDs []string) ([]models.TrackRecord, error)
}

// MetadataCache hydrates track ids through the local store and the catalog.
type MetadataCache struct {
	store     TrackStore
	catalog   Fetcher
	ttl       time.Duration
	batchSize int
	logger    *log.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

// NewMetadataCache creates a cache with the default TTL and batch size.
func NewMetadataCache(store TrackStore, catalog Fetcher, logger *log.Logger) *MetadataCache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &MetadataCache{
		store:     store,
		catalog:   catalog,
		ttl:       DefaultTTL,
		batchSize: services.BulkFetchLimit,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// SetTTL overrides the freshness window.
func (c *MetadataCache) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl = ttl
	}
}

// SetBatchSize overrides the upstream group size, bounded by the catalog's
// bulk fetch limit.
func (c *MetadataCache) SetBatchSize(n int) {
	if n > 0 && n <= services.BulkFetchLimit {
		c.batchSize = n
	}
}

// Hydrate resolves the given track ids into full records.
//
// The result contains only ids that exist upstream and were fetched (or were
// already fresh locally), deduplicated, in the same relative order as the
// input. Missing or failed ids are silently omitted; callers diff requested
// against returned to learn what was skipped. The call itself fails only when
// the local store does.
func (c *MetadataCache) Hydrate(ctx context.Context, accessToken string, trackIDs []string) ([]models.TrackRecord, error) {
	unique := dedupe(trackIDs)
	if len(unique) == 0 {
		return nil, nil
	}

	cached, err := c.store.GetMany(unique)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resolved := make(map[string]models.TrackRecord, len(unique))
	var missing []string

	for _, id := range unique {
		if record, ok := cached[id]; ok && record.Fresh(now, c.ttl) {
			resolved[id] = record
		} else {
			missing = append(missing, id)
		}
	}

	for start := 0; start < len(missing); start += c.batchSize {
		end := start + c.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		group := missing[start:end]

		fetched, err := c.catalog.SeveralTracks(ctx, accessToken, group)
		if err != nil {
			var rateErr *services.RateLimitError
			if errors.As(err, &rateErr) {
				pause := rateErr.RetryAfter
				if pause > maxBackoff {
					pause = maxBackoff
				}
				c.logger.Warn("catalog rate limited, pausing", "group_size", len(group), "pause", pause)
				c.sleep(pause)
			} else {
				c.logger.Warn("skipping track group after catalog failure", "group_size", len(group), "err", err)
			}
			continue
		}

		if err := c.store.UpsertBatch(fetched); err != nil {
			// Serve what we fetched even if persisting it failed.
			c.logger.Error("failed to persist hydrated tracks", "count", len(fetched), "err", err)
		}

		for _, record := range fetched {
			resolved[record.TrackID] = record
		}
	}

	// Project the deduplicated input order through what resolved.
	result := make([]models.TrackRecord, 0, len(resolved))
	for _, id := range unique {
		if record, ok := resolved[id]; ok {
			result = append(result, record)
		}
	}

	return result, nil
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
