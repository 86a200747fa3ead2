package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/setshare/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheWarm hydrates the given track ids, fetching anything stale or missing.
func (r *Runner) CacheWarm(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")
	trackIDs := cmd.Args().Slice()

	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: at least one track id is required", shared.ErrMissingArgument)
	}

	if err := r.ensureServices(); err != nil {
		return err
	}

	token, err := r.tokenMgr.EnsureAccessToken(ctx, owner)
	if err != nil {
		return err
	}

	records, err := r.metadata.Hydrate(ctx, token, trackIDs)
	if err != nil {
		return err
	}

	r.writePlain("✓ Resolved %d of %d tracks\n\n", len(records), len(trackIDs))
	for _, record := range records {
		r.writePlain("  %s - %s (%s)\n", record.ArtistDisplay, record.Title, record.TrackID)
	}
	return nil
}

// CacheShow prints the cached record for one track id, if present.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.String("id")

	if trackID == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	if err := r.ensureStores(); err != nil {
		return err
	}

	record, ok, err := r.tracks.Get(trackID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: track %s not cached", shared.ErrNotFound, trackID)
	}

	r.writePlain("Track: %s\n", record.TrackID)
	r.writePlain("Title: %s\n", record.Title)
	r.writePlain("Artist: %s\n", record.ArtistDisplay)
	if record.AlbumArtURL != "" {
		r.writePlain("Album art: %s\n", record.AlbumArtURL)
	}
	r.writePlain("Refreshed: %s\n", record.LastRefreshedAt.Format(time.RFC3339))
	return nil
}
