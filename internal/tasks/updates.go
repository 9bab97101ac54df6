package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/nfcbox/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Sent    int64  // File bytes sent, [UploadBytes] only
	Size    int64  // File size, [UploadBytes] only
	Data    any    // Optional phase-specific data for advanced UIs
}

// Fraction returns byte progress in [0, 1] for the current file.
func (u ProgressUpdate) Fraction() float64 {
	if u.Size <= 0 {
		return 0
	}
	return min(float64(u.Sent)/float64(u.Size), 1)
}

// Operation phase enumeration
type Phase int

const (
	UploadFile Phase = iota
	UploadBytes
	UploadFileDone
	UploadDone
	UploadFailed
	Refresh
)

func (p Phase) String() string {
	switch p {
	case UploadFile:
		return "upload_file"
	case UploadBytes:
		return "upload_bytes"
	case UploadFileDone:
		return "upload_file_done"
	case UploadDone:
		return "upload_done"
	case UploadFailed:
		return "upload_failed"
	case Refresh:
		return "refresh"
	default:
		return ""
	}
}

// Terminal reports whether no further updates follow for the batch.
func (p Phase) Terminal() bool {
	return p == UploadDone || p == UploadFailed
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// deliverProgress blocks until update is received or ctx ends.
// Once ctx has ended it falls back to a single non-blocking send.
func deliverProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
		sendProgress(progress, update)
	}
}

func uploadFileUpdate(step, total int, f models.FileBlob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFile,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Uploading %s (%d/%d)...", f.Name, step, total),
		Size:    f.Size,
		Data:    f,
	}
}

func uploadBytesUpdate(step, total int, name string, sent, size int64) ProgressUpdate {
	u := ProgressUpdate{
		Phase: UploadBytes,
		Step:  step,
		Total: total,
		Sent:  sent,
		Size:  size,
	}
	u.Message = fmt.Sprintf("Uploading %s: %.1f%%", name, u.Fraction()*100)
	return u
}

func uploadFileDoneUpdate(step, total int, f models.FileBlob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadFileDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s uploaded", step, total, f.Name),
		Sent:    f.Size,
		Size:    f.Size,
		Data:    f,
	}
}

func uploadDoneUpdate(batch *models.UploadBatch) ProgressUpdate {
	n := len(batch.Files)
	return ProgressUpdate{
		Phase:   UploadDone,
		Step:    n,
		Total:   n,
		Message: "All files uploaded successfully!",
		Data:    batch,
	}
}

func uploadFailedUpdate(batch *models.UploadBatch) ProgressUpdate {
	f := batch.Failure
	return ProgressUpdate{
		Phase:   UploadFailed,
		Step:    f.Index + 1,
		Total:   len(batch.Files),
		Message: fmt.Sprintf("[%d/%d] ✗ Upload failed for %s: %s", f.Index+1, len(batch.Files), f.Name, f.Reason),
		Data:    batch,
	}
}

func refreshUpdate(scope fmt.Stringer) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Refresh,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Refreshing library (%s)...", scope),
	}
}
