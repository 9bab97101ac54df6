// package services defines the [Jukebox] interface for the NFC jukebox REST surface
package services

import (
	"context"
	"fmt"
	"io"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// Jukebox defines the operations the appliance exposes over HTTP.
type Jukebox interface {
	// Songs lists stored audio files. An absent list is returned as empty.
	Songs(ctx context.Context) ([]models.Song, error)

	// Mappings lists tag to song associations. An absent list is returned as empty.
	Mappings(ctx context.Context) ([]models.Mapping, error)

	// TagID returns the tag currently on the reader, or [shared.ErrNoTag].
	TagID(ctx context.Context) (string, error)

	AddMapping(ctx context.Context, tagID, song string) error
	DeleteMapping(ctx context.Context, tagID string) error

	// Upload sends one file, reporting bytes sent through progress.
	Upload(ctx context.Context, file models.FileBlob, progress ProgressFunc) error

	// RenameFile renames a stored file and reports whether mappings were rewritten.
	RenameFile(ctx context.Context, oldName, newName string) (bool, error)

	DeleteFile(ctx context.Context, name string) error
	Download(ctx context.Context, name string, w io.Writer) (int64, error)

	// Name returns a label for the device, used in logs and the journal.
	Name() string
}

// ProgressFunc receives the bytes of file content sent so far and the file size.
type ProgressFunc func(sent, total int64)

// ResultError is a failure reported by the device in a `{result, message}` body.
type ResultError struct {
	Op      string
	Status  int
	Result  string
	Message string
}

func (e *ResultError) Error() string {
	switch {
	case e.Message != "" && e.Result != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Result)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Result != "":
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Unwrap(), e.Result)
	default:
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Unwrap(), e.Status)
	}
}

// Unwrap maps device result codes onto shared sentinel errors.
func (e *ResultError) Unwrap() error {
	switch e.Result {
	case "EXISTS":
		return shared.ErrFileExists
	case "INUSE":
		return shared.ErrFileInUse
	default:
		return shared.ErrDeviceFailure
	}
}

// Reason returns the device's message, falling back to the result code.
func (e *ResultError) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Result != "" {
		return e.Result
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

type resultBody struct {
	Result          string `json:"result"`
	Message         string `json:"message,omitempty"`
	MappingsUpdated bool   `json:"mappingsUpdated,omitempty"`
}
