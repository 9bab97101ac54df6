package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/media"
	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/tasks"
)

// Upload sends the given MP3 files in argument order.
//
// Nothing is sent when any argument is not an MP3. The first failure halts the batch and is
// reported with the files that did reach the device.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	files, err := media.ProbeAll(cmd.Args().Slice())
	if err != nil {
		return err
	}
	r.recordOperations()

	progressCh := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renderProgress(progressCh, len(files), cmd.Bool("quiet"))
	}()

	batch, err := r.engine.Upload(ctx, files, progressCh)
	close(progressCh)
	<-done

	return r.reportBatch(batch, err)
}

// renderProgress draws a single-line bar per file until progress is closed.
func (r *Runner) renderProgress(updates <-chan tasks.ProgressUpdate, total int, quiet bool) {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))

	for u := range updates {
		if quiet {
			continue
		}
		switch u.Phase {
		case tasks.UploadFile:
			r.writePlain("\r[%d/%d] %s %s", u.Step, u.Total, bar.ViewAs(0), u.Message)
		case tasks.UploadBytes:
			r.writePlain("\r[%d/%d] %s %s", u.Step, u.Total, bar.ViewAs(u.Fraction()), u.Message)
		case tasks.UploadFileDone:
			r.writePlain("\r[%d/%d] %s %s\n", u.Step, u.Total, bar.ViewAs(1), u.Message)
		case tasks.UploadFailed:
			r.writePlain("\n")
		case tasks.Refresh:
			r.logger.Debug("refreshing library after upload", "files", total)
		}
	}
}

func (r *Runner) reportBatch(batch *models.UploadBatch, err error) error {
	if batch == nil {
		return err
	}

	for _, f := range batch.Uploaded() {
		r.logger.Debug("uploaded", "file", f.Name, "label", media.Label(f), "size", f.Size)
	}

	var failure *models.UploadFailure
	if errors.As(err, &failure) {
		r.writePlain("✗ %s: %s\n", failure.Name, failure.Reason)
		if batch.Cursor > 0 {
			r.writePlain("%d of %d files were uploaded before the failure.\n", batch.Cursor, len(batch.Files))
		}
		skipped := len(batch.Files) - batch.Cursor - 1
		if skipped > 0 {
			r.writePlain("%d remaining file(s) were not sent.\n", skipped)
		}
		return err
	}
	if err != nil && !batchComplete(batch) {
		return err
	}

	if werr := r.writePlain("✓ Uploaded %d file(s) (batch %s)\n", len(batch.Uploaded()), shortID(batch.ID)); werr != nil {
		return werr
	}
	if err != nil {
		r.logger.Warn("library refresh failed after upload", "batch", batch.ID, "error", err)
		return r.writePlain("! Could not refresh the library: %v\n", err)
	}
	return nil
}

// batchComplete reports whether every file in batch reached the device.
func batchComplete(batch *models.UploadBatch) bool {
	return batch.Failure == nil && len(batch.Uploaded()) == len(batch.Files)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
