// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// ownerFlag identifies the acting user for commands that read or mutate sets.
func ownerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "owner",
		Aliases: []string{"u"},
		Usage:   "Acting user id",
		Value:   "local",
	}
}

// linkCommand handles catalog account linking
func linkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "link",
		Usage:  "Link a catalog account via OAuth2",
		Flags:  []cli.Flag{ownerFlag()},
		Action: r.Link,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show stored credential state",
				Flags:  []cli.Flag{ownerFlag()},
				Action: r.LinkStatus,
			},
			{
				Name:   "remove",
				Usage:  "Remove the stored credential",
				Flags:  []cli.Flag{ownerFlag()},
				Action: r.Unlink,
			},
		},
	}
}

// setsCommand handles collection operations
func setsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sets",
		Usage: "Manage shared song collections",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new set",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Set name",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag to attach (repeatable)",
					},
				},
				Action: r.SetsCreate,
			},
			{
				Name:  "list",
				Usage: "List your sets",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SetsList,
			},
			{
				Name:  "show",
				Usage: "Show one set with its songs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Set ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SetsShow,
			},
			{
				Name:      "add",
				Usage:     "Add tracks to a set",
				ArgsUsage: "TRACK_ID [TRACK_ID...]",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Set ID",
						Required: true,
					},
				},
				Action: r.SetsAdd,
			},
			{
				Name:      "replace",
				Usage:     "Replace a set's songs with a new order",
				ArgsUsage: "[TRACK_ID...]",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Set ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON file with the proposed order",
					},
				},
				Action: r.SetsReplace,
			},
			{
				Name:  "share",
				Usage: "Grant another user edit access",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Set ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "editor",
						Usage:    "User id to grant edit access",
						Required: true,
					},
				},
				Action: r.SetsShare,
			},
			{
				Name:  "delete",
				Usage: "Delete a set",
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Set ID",
						Required: true,
					},
				},
				Action: r.SetsDelete,
			},
			{
				Name:  "export",
				Usage: "Export a set to CSV, Markdown, or text",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Set ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: csv, md, txt",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (base filename or directory)",
					},
				},
				Action: r.SetsExport,
			},
		},
	}
}

// cacheCommand handles track metadata cache operations
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and warm the track metadata cache",
		Commands: []*cli.Command{
			{
				Name:      "warm",
				Usage:     "Hydrate track ids into the cache",
				ArgsUsage: "TRACK_ID [TRACK_ID...]",
				Flags:     []cli.Flag{ownerFlag()},
				Action:    r.CacheWarm,
			},
			{
				Name:  "show",
				Usage: "Show a cached track record",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Track ID",
						Required: true,
					},
				},
				Action: r.CacheShow,
			},
		},
	}
}

// tuiCommand launches the interactive browser
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Browse your sets interactively",
		Flags:  []cli.Flag{ownerFlag()},
		Action: r.TUI,
	}
}
