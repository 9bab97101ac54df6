package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Rename renames a stored file. The device rewrites mappings that point at it.
func (r *Runner) Rename(ctx context.Context, cmd *cli.Command) error {
	from, to := cmd.StringArg("from"), cmd.StringArg("to")
	r.recordOperations()

	result, err := r.engine.Rename(ctx, from, to)
	if err != nil {
		return err
	}

	r.writePlain("✓ Renamed %s → %s\n", from, to)
	if result.MappingsUpdated {
		for _, tag := range result.View.TagsForSong(to) {
			r.writePlain("  tag %s now plays %s\n", tag, to)
		}
	}
	return nil
}

// Delete removes a stored file after confirmation.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	r.recordOperations()

	view, err := r.engine.Delete(ctx, name, r.confirmer(cmd.Bool("yes")))
	if err != nil {
		return err
	}

	return r.writePlain("✓ Deleted %s (%d file(s) left)\n", name, view.Len())
}
