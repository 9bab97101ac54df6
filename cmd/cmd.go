// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlags(defaultFormat string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: table, json, csv, md or txt",
			Value:   defaultFormat,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the export to a file instead of stdout",
		},
	}
}

func yesFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Answer yes to confirmation prompts",
	}
}

// lsCommand lists the library as a joined, sorted file table.
func lsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list", "library"},
		Usage:   "List stored songs with their tag mappings",
		Flags: append(formatFlags("table"),
			&cli.StringFlag{
				Name:    "sort",
				Aliases: []string{"s"},
				Usage:   "Sort column: name, size or date (default from config); a new column starts ascending",
			},
			&cli.BoolFlag{
				Name:  "asc",
				Usage: "Sort ascending",
			},
			&cli.BoolFlag{
				Name:  "desc",
				Usage: "Sort descending",
			},
		),
		Action: r.List,
	}
}

// songsCommand prints the raw /songs listing.
func songsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "songs",
		Usage: "Print the files stored on the jukebox",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Songs,
	}
}

// mappingsCommand prints the raw /mappings listing.
func mappingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "mappings",
		Usage: "Print the NFC tag to song mappings",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
		},
		Action: r.Mappings,
	}
}

// tagCommand reads the reader.
func tagCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tag",
		Aliases: []string{"scan"},
		Usage:   "Read the tag currently on the NFC reader",
		Action:  r.Tag,
	}
}

func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"up"},
		Usage:     "Upload MP3 files in order, stopping at the first failure",
		ArgsUsage: "FILE.mp3 [FILE.mp3...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide the progress bar"},
		},
		Action: r.Upload,
	}
}

func renameCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "rename",
		Aliases: []string{"mv"},
		Usage:   "Rename a stored file, rewriting its mappings",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "from", UsageText: "current file name"},
			&cli.StringArg{Name: "to", UsageText: "new file name"},
		},
		Action: r.Rename,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "delete",
		Aliases: []string{"rm"},
		Usage:   "Delete a stored file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Flags:  []cli.Flag{yesFlag()},
		Action: r.Delete,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"get"},
		Usage:   "Download a stored file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Destination path (defaults to the file name, - for stdout)",
			},
		},
		Action: r.Download,
	}
}

func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "Play a stored file in the browser",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "print", Usage: "Print the URL instead of opening it"},
		},
		Action: r.Preview,
	}
}

func mapCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "map",
		Aliases: []string{"assign"},
		Usage:   "Map an NFC tag to a stored song",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "song"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag ID to map"},
			&cli.BoolFlag{Name: "scan", Usage: "Use the tag currently on the reader"},
			yesFlag(),
		},
		Action: r.Map,
	}
}

func unmapCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "unmap",
		Usage: "Remove the tag mapping of a song, or of --tag",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "song"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tag ID to unmap"},
			yesFlag(),
		},
		Action: r.Unmap,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"log"},
		Usage:   "Show the local journal of changes sent to the jukebox",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Show only the most recent entries", Value: 20},
			&cli.StringFlag{Name: "kind", Usage: "Filter by upload, rename, delete, map or unmap"},
			&cli.BoolFlag{Name: "failed", Usage: "Only failed operations"},
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: r.History,
	}
}

// apiCommand handles raw requests against the device, for debugging
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct requests to the jukebox HTTP API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Dump songs, mappings and the reader state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.StringFlag{
						Name:  "save",
						Usage: "Also write the dump to this file",
					},
				},
				Action: r.APIDump,
			},
		},
	}
}

// setupCommand handles setup operations for the config file and journal database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template to --config",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the journal database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive library management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive control panel",
		Action:  r.TUI,
	}
}
