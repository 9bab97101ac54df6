package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/services"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// Uploader sends one file to the device.
type Uploader interface {
	Upload(ctx context.Context, file models.FileBlob, progress services.ProgressFunc) error
}

// Pipeline uploads a batch one file at a time and halts on the first failure.
type Pipeline struct {
	uploader Uploader
	logger   *log.Logger
}

// NewPipeline creates a pipeline over uploader.
func NewPipeline(uploader Uploader, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{uploader: uploader, logger: logger}
}

// ValidateBatch rejects an empty batch or any name not ending in .mp3.
func ValidateBatch(files []models.FileBlob) error {
	if len(files) == 0 {
		return shared.ErrEmptyBatch
	}
	for _, f := range files {
		if !shared.HasMP3Extension(f.Name) {
			return fmt.Errorf("%w: invalid file %s", shared.ErrInvalidFilename, f.Name)
		}
	}
	return nil
}

// Run drives batch from Idle through Uploading(i) to Done or Failed(i, reason).
//
// Request i+1 is issued only after file i was acknowledged. On failure the remaining files are
// never sent and earlier files stay uploaded. The returned error is a [*models.UploadFailure].
// Validation errors leave the batch Idle and send nothing.
func (p *Pipeline) Run(ctx context.Context, batch *models.UploadBatch, progress chan<- ProgressUpdate) error {
	if batch.State != models.UploadIdle {
		return fmt.Errorf("%w: batch %s is %s", shared.ErrInvalidInput, batch.ID, batch.State)
	}
	if err := ValidateBatch(batch.Files); err != nil {
		return err
	}

	total := len(batch.Files)
	batch.State = models.UploadUploading
	logger := p.logger.With("batch", batch.ID)

	for batch.Cursor < total {
		i := batch.Cursor
		file := batch.Files[i]
		step := i + 1

		if err := ctx.Err(); err != nil {
			return p.fail(ctx, batch, progress, err)
		}

		deliverProgress(ctx, progress, uploadFileUpdate(step, total, file))
		logger.Info("uploading", "file", file.Name, "step", step, "total", total, "size", file.Size)

		err := p.uploader.Upload(ctx, file, func(sent, size int64) {
			sendProgress(progress, uploadBytesUpdate(step, total, file.Name, sent, size))
		})
		if err != nil {
			return p.fail(ctx, batch, progress, err)
		}

		batch.Cursor++
		deliverProgress(ctx, progress, uploadFileDoneUpdate(step, total, file))
	}

	batch.State = models.UploadDone
	logger.Info("batch uploaded", "files", total)
	deliverProgress(ctx, progress, uploadDoneUpdate(batch))
	return nil
}

func (p *Pipeline) fail(ctx context.Context, batch *models.UploadBatch, progress chan<- ProgressUpdate, err error) error {
	file := batch.Files[batch.Cursor]
	batch.State = models.UploadFailed
	batch.Failure = &models.UploadFailure{
		Index:  batch.Cursor,
		Name:   file.Name,
		Reason: failureReason(err),
		Err:    err,
	}

	p.logger.Error("upload failed", "batch", batch.ID, "file", file.Name, "index", batch.Cursor, "reason", batch.Failure.Reason)
	deliverProgress(ctx, progress, uploadFailedUpdate(batch))
	return batch.Failure
}

func failureReason(err error) string {
	var re *services.ResultError
	if errors.As(err, &re) {
		return re.Reason()
	}
	return err.Error()
}
