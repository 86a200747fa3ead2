package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/desertthunder/setshare/internal/formatter"
	"github.com/desertthunder/setshare/internal/models"
	"github.com/desertthunder/setshare/internal/sets"
	"github.com/desertthunder/setshare/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetsCreate creates a new, empty collection for the owner.
func (r *Runner) SetsCreate(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")
	name := cmd.String("name")
	tags := cmd.StringSlice("tag")

	if name == "" {
		return fmt.Errorf("%w: --name is required", shared.ErrMissingArgument)
	}

	if err := r.ensureStores(); err != nil {
		return err
	}

	collection := models.Collection{
		OwnerID: owner,
		Name:    name,
		Tags:    tags,
	}
	if err := r.collections.Create(&collection); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	r.logger.Info("collection created", "id", collection.ID, "name", name)

	r.writePlain("✓ Created set '%s'\n", name)
	r.writePlain("  ID: %s\n", collection.ID)
	return nil
}

// SetsList lists the owner's collections.
func (r *Runner) SetsList(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if err := r.ensureStores(); err != nil {
		return err
	}

	collections, err := r.collections.ListByOwner(owner)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	if useJSON {
		return r.writeJSON(collections, pretty)
	}

	r.writePlain("Found %d sets:\n\n", len(collections))
	for i, c := range collections {
		r.writePlain("%d. %s\n", i+1, c.Name)
		r.writePlain("   ID: %s\n", c.ID)
		r.writePlain("   Songs: %d\n", len(c.Songs))
		if len(c.Tags) > 0 {
			r.writePlain("   Tags: %v\n", c.Tags)
		}
		r.writePlain("\n")
	}

	return nil
}

// SetsShow prints one collection with its songs.
func (r *Runner) SetsShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if id == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	if err := r.ensureStores(); err != nil {
		return err
	}

	collection, err := r.collections.Get(id)
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(collection, pretty)
	}

	r.writePlain("Set: %s\n", collection.Name)
	r.writePlain("Owner: %s\n", collection.OwnerID)
	if len(collection.EditorIDs) > 0 {
		r.writePlain("Editors: %v\n", collection.EditorIDs)
	}
	if len(collection.Tags) > 0 {
		r.writePlain("Tags: %v\n", collection.Tags)
	}
	r.writePlain("Version: %d\n", collection.Version)
	r.writePlain("Updated: %s\n", collection.UpdatedAt.Format(time.RFC3339))
	r.writePlain("Songs: %d\n\n", len(collection.Songs))

	for i, song := range collection.Songs {
		r.writePlain("%d. %s - %s\n", i+1, song.ArtistDisplay, song.Title)
	}

	return nil
}

// SetsAdd appends tracks to a collection, hydrating metadata as needed.
func (r *Runner) SetsAdd(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	owner := cmd.String("owner")
	trackIDs := cmd.Args().Slice()

	if id == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}
	if len(trackIDs) == 0 {
		return fmt.Errorf("%w: at least one track id is required", shared.ErrMissingArgument)
	}

	if err := r.ensureServices(); err != nil {
		return err
	}

	result, err := r.reconciler.AddSongs(ctx, id, owner, trackIDs)
	if err != nil {
		return err
	}

	r.writePlain("✓ Added %d songs (%d total)\n", result.AddedCount, len(result.Songs))
	if len(result.Skipped) > 0 {
		r.writePlain("⚠ Skipped unknown tracks: %v\n", result.Skipped)
	}
	return nil
}

// SetsReplace replaces a collection's song list with a proposed order.
//
// The order comes from positional track ids, or from a JSON file of bare ids
// and/or objects with a track_id field when --file is given.
func (r *Runner) SetsReplace(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	owner := cmd.String("owner")
	orderFile := cmd.String("file")

	if id == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	var order []sets.SongRef
	if orderFile != "" {
		data, err := os.ReadFile(orderFile)
		if err != nil {
			return fmt.Errorf("failed to read order file: %w", err)
		}
		if err := json.Unmarshal(data, &order); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	} else {
		for _, trackID := range cmd.Args().Slice() {
			order = append(order, sets.SongRef{TrackID: trackID})
		}
	}

	if err := r.ensureServices(); err != nil {
		return err
	}

	result, err := r.reconciler.ReplaceSongs(ctx, id, owner, order)
	if err != nil {
		return err
	}

	r.writePlain("✓ Set now has %d songs\n", result.Length)
	if result.RemovedCount > 0 {
		r.writePlain("  Removed: %d\n", result.RemovedCount)
		for _, song := range result.Removed {
			r.writePlain("   - %s - %s\n", song.ArtistDisplay, song.Title)
		}
	}
	if result.OrderChanged {
		r.writePlain("  Order changed\n")
	}
	return nil
}

// SetsShare grants another user edit access to a collection. Owner only.
func (r *Runner) SetsShare(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	owner := cmd.String("owner")
	editor := cmd.String("editor")

	if id == "" || editor == "" {
		return fmt.Errorf("%w: --id and --editor are required", shared.ErrMissingArgument)
	}

	if err := r.ensureStores(); err != nil {
		return err
	}

	collection, err := r.collections.Get(id)
	if err != nil {
		return err
	}
	if collection.OwnerID != owner {
		return fmt.Errorf("%w: only the owner can share a set", shared.ErrForbidden)
	}

	if slices.Contains(collection.EditorIDs, editor) {
		r.writePlain("✓ %s is already an editor of '%s'\n", editor, collection.Name)
		return nil
	}

	collection.EditorIDs = append(collection.EditorIDs, editor)
	if err := r.collections.UpdateMeta(collection); err != nil {
		return fmt.Errorf("failed to update editors: %w", err)
	}

	r.writePlain("✓ %s can now edit '%s'\n", editor, collection.Name)
	return nil
}

// SetsDelete removes a collection. Owner only.
func (r *Runner) SetsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	owner := cmd.String("owner")

	if id == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	if err := r.ensureStores(); err != nil {
		return err
	}

	collection, err := r.collections.Get(id)
	if err != nil {
		return err
	}
	if collection.OwnerID != owner {
		return fmt.Errorf("%w: only the owner can delete a set", shared.ErrForbidden)
	}

	if err := r.collections.Delete(id); err != nil {
		return err
	}

	r.writePlain("✓ Deleted set '%s'\n", collection.Name)
	return nil
}

// SetsExport writes a collection to CSV, Markdown, or plain text.
func (r *Runner) SetsExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	format := cmd.String("format")
	output := cmd.String("output")

	if id == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	if err := r.ensureStores(); err != nil {
		return err
	}

	collection, err := r.collections.Get(id)
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(&collection, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s and %s\n", result.SongsFile, result.MetadataFile)
	case "md", "markdown":
		var coverURL string
		if len(collection.DerivedImages) > 0 {
			coverURL = collection.DerivedImages[0]
		}
		result, err := formatter.WriteMarkdownExport(&collection, output, coverURL)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", result.Directory)
	case "txt", "text":
		path, err := formatter.WriteTextExport(&collection, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", path)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}

	return nil
}
