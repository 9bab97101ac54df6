package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/formatter"
	"github.com/desertthunder/nfcbox/internal/library"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// List loads the library and prints the joined file table.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	var column models.Column
	if c := cmd.String("sort"); c != "" {
		if column, err = models.ParseColumn(c); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}
	if cmd.Bool("asc") && cmd.Bool("desc") {
		return fmt.Errorf("%w: --asc and --desc are mutually exclusive", shared.ErrInvalidInput)
	}

	view, err := r.engine.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	// A newly chosen column starts ascending.
	state := view.SortState()
	if cmd.String("sort") != "" && column != state.Column {
		state = library.NextSort(state, column)
	}
	switch {
	case cmd.Bool("asc"):
		state.Ascending = true
	case cmd.Bool("desc"):
		state.Ascending = false
	}
	view = r.engine.SetSort(state)

	r.logger.Debug("library loaded", "songs", len(view.Songs()), "mappings", len(view.Mappings()), "sort", state)

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(view.Rows(), format, path)
		if err != nil {
			return err
		}
		r.logger.Info("library exported", "path", written, "rows", view.Len())
		return nil
	}

	if view.Empty() && format == formatter.FormatTable {
		return r.writePlain("No files on the jukebox.\n")
	}

	data, err := formatter.Export(view.Rows(), format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Songs prints the stored files without joining mappings.
func (r *Runner) Songs(ctx context.Context, cmd *cli.Command) error {
	songs, err := r.device.Songs(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}

	for _, s := range songs {
		r.writePlain("%-40s %10s  %s\n", s.Name, formatter.FormatSize(s.Size),
			formatter.FormatTimestamp(s.Timestamp, r.config.Library.DateLayout, nil))
	}
	return nil
}

// Mappings prints every tag mapping.
func (r *Runner) Mappings(ctx context.Context, cmd *cli.Command) error {
	mappings, err := r.device.Mappings(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(mappings, true)
	}

	if len(mappings) == 0 {
		return r.writePlain("No tags are mapped.\n")
	}
	r.writePlainHeader(fmt.Sprintf("%d tag mapping(s)", len(mappings)))
	for _, m := range mappings {
		r.writePlain("%-24s → %s\n", m.TagID, m.Song)
	}
	return nil
}

// Tag prints the tag on the reader.
func (r *Runner) Tag(ctx context.Context, cmd *cli.Command) error {
	tag, err := r.engine.ReadTag(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", tag)
}

// Download saves a stored file locally, or streams it to stdout with "-o -".
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: file name", shared.ErrMissingArgument)
	}

	dest := cmd.String("output")
	if dest == "-" {
		_, err := r.engine.Download(ctx, name, r.output)
		return err
	}
	if dest == "" {
		dest = filepath.Base(name)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	n, err := r.engine.Download(ctx, name, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}

	r.logger.Info("downloaded", "file", name, "path", dest, "bytes", n)
	return r.writePlain("✓ Saved %s (%s)\n", dest, formatter.FormatSize(n))
}

// Preview opens the device's download URL so the browser plays the file.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: file name", shared.ErrMissingArgument)
	}

	url := r.device.DownloadURL(name)
	if cmd.Bool("print") {
		return r.writePlain("%s\n", url)
	}

	if err := shared.OpenBrowser(url); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		return r.writePlain("Open this URL to play the file:\n%s\n", url)
	}
	return nil
}
