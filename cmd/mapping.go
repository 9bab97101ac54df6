package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/shared"
	"github.com/desertthunder/nfcbox/internal/tasks"
)

// Map assigns a tag to a song, asking before an existing mapping is replaced.
//
// The tag comes from --tag, or from the reader with --scan.
func (r *Runner) Map(ctx context.Context, cmd *cli.Command) error {
	song := cmd.StringArg("song")
	tag := cmd.String("tag")

	switch {
	case tag != "" && cmd.Bool("scan"):
		return fmt.Errorf("%w: use either --tag or --scan", shared.ErrInvalidInput)
	case cmd.Bool("scan"):
		scanned, err := r.engine.ReadTag(ctx)
		if err != nil {
			return err
		}
		r.writePlain("Read tag %s\n", scanned)
		tag = scanned
	case tag == "":
		return fmt.Errorf("%w: pass --tag or --scan", shared.ErrMissingTag)
	}

	if err := tasks.ValidateAssignment(tag, song); err != nil {
		return err
	}
	r.recordOperations()

	plan, outcome, err := r.engine.Assign(ctx, tag, song, r.confirmer(cmd.Bool("yes")))
	if err != nil {
		if outcome == tasks.MappingRemoved {
			r.writePlain("! Tag %s was unmapped from %s but mapping it to %s failed\n", plan.TagID, plan.Existing.Song, song)
		}
		return err
	}

	switch outcome {
	case tasks.MappingUnchanged:
		return r.writePlain("Tag %s already plays %s\n", tag, song)
	case tasks.MappingReplaced:
		return r.writePlain("✓ Tag %s now plays %s (was %s)\n", tag, song, plan.Existing.Song)
	default:
		return r.writePlain("✓ Tag %s now plays %s\n", tag, song)
	}
}

// Unmap removes the mapping of a song, or of the tag given with --tag.
func (r *Runner) Unmap(ctx context.Context, cmd *cli.Command) error {
	song, tag := cmd.StringArg("song"), cmd.String("tag")
	confirm := r.confirmer(cmd.Bool("yes"))

	if song != "" && tag != "" {
		return fmt.Errorf("%w: give a song or --tag, not both", shared.ErrInvalidInput)
	}
	if song == "" && tag == "" {
		return fmt.Errorf("%w: song name or --tag", shared.ErrMissingArgument)
	}
	r.recordOperations()

	var err error
	if tag != "" {
		m, uerr := r.engine.UnmapTag(ctx, tag, confirm)
		song, err = m.Song, uerr
	} else {
		m, uerr := r.engine.UnmapSong(ctx, song, confirm)
		tag, err = m.TagID, uerr
	}
	if err != nil {
		return err
	}

	return r.writePlain("✓ Removed tag %s from %s\n", tag, song)
}
