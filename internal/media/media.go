// package media describes local audio files before they are uploaded to the jukebox
package media

import (
	"fmt"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// Probe describes the MP3 at path, reading ID3 title and artist when present.
//
// Files without a readable tag are still returned; only a missing file is an error.
func Probe(path string) (models.FileBlob, error) {
	blob, err := models.FileFromPath(path)
	if err != nil {
		return models.FileBlob{}, err
	}

	title, artist, err := readTags(path)
	if err == nil {
		blob.Title, blob.Artist = title, artist
	}
	return blob, nil
}

// ProbeAll probes every path, rejecting the batch if any name is not an MP3.
func ProbeAll(paths []string) ([]models.FileBlob, error) {
	if len(paths) == 0 {
		return nil, shared.ErrEmptyBatch
	}

	for _, p := range paths {
		if !shared.HasMP3Extension(p) {
			return nil, fmt.Errorf("%w: %s", shared.ErrInvalidFilename, p)
		}
	}

	blobs := make([]models.FileBlob, 0, len(paths))
	for _, p := range paths {
		blob, err := Probe(p)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

// Label renders "Artist - Title" when both are known, else the file name.
func Label(f models.FileBlob) string {
	switch {
	case f.Artist != "" && f.Title != "":
		return f.Artist + " - " + f.Title
	case f.Title != "":
		return f.Title
	default:
		return f.Name
	}
}

func readTags(path string) (string, string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Title", "Artist"}})
	if err != nil {
		return "", "", err
	}
	defer tag.Close()

	return clean(tag.Title()), clean(tag.Artist()), nil
}

func clean(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
