package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileBlob is a local file selected for upload. Contents are opened lazily.
type FileBlob struct {
	Name   string // name the file will have on the jukebox
	Size   int64
	Title  string // ID3 title, if known
	Artist string // ID3 artist, if known
	Path   string // local path, empty for in-memory blobs

	open func() (io.ReadCloser, error)
}

// NewFileBlob creates a blob whose contents come from open.
func NewFileBlob(name string, size int64, open func() (io.ReadCloser, error)) FileBlob {
	return FileBlob{Name: name, Size: size, open: open}
}

// FileFromPath describes the file at path. The remote name is the base name.
func FileFromPath(path string) (FileBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileBlob{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileBlob{}, fmt.Errorf("%s is a directory", path)
	}

	blob := NewFileBlob(filepath.Base(path), info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	})
	blob.Path = path
	return blob, nil
}

// FileFromBytes wraps in-memory data as a blob.
func FileFromBytes(name string, data []byte) FileBlob {
	return NewFileBlob(name, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// Open returns a fresh reader over the blob's contents.
func (f FileBlob) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no contents", f.Name)
	}
	return f.open()
}

// UploadState is the state of an [UploadBatch].
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadUploading
	UploadDone
	UploadFailed
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadUploading:
		return "uploading"
	case UploadDone:
		return "done"
	case UploadFailed:
		return "failed"
	default:
		return ""
	}
}

// UploadBatch is an ordered selection of files and a cursor into it.
//
// Files before Cursor were acknowledged by the device.
type UploadBatch struct {
	ID      string
	Files   []FileBlob
	Cursor  int
	State   UploadState
	Failure *UploadFailure
}

// NewUploadBatch creates an idle batch.
func NewUploadBatch(id string, files []FileBlob) *UploadBatch {
	return &UploadBatch{ID: id, Files: files, State: UploadIdle}
}

// Current returns the file under the cursor.
func (b *UploadBatch) Current() (FileBlob, bool) {
	if b.Cursor < 0 || b.Cursor >= len(b.Files) {
		return FileBlob{}, false
	}
	return b.Files[b.Cursor], true
}

// Uploaded returns the files acknowledged so far.
func (b *UploadBatch) Uploaded() []FileBlob {
	return b.Files[:b.Cursor]
}

// UploadFailure describes the file that halted a batch.
type UploadFailure struct {
	Index  int
	Name   string
	Reason string
	Err    error
}

func (f *UploadFailure) Error() string {
	return fmt.Sprintf("upload failed for %s (%d): %s", f.Name, f.Index+1, f.Reason)
}

func (f *UploadFailure) Unwrap() error {
	return f.Err
}
