// Package audiofile reads metadata from audio files on disk.
package audiofile

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"github.com/ewilliams-labs/emotune/internal/core/ports"
)

// TagReader reads ID3, MP4 and Vorbis tags.
type TagReader struct{}

var _ ports.TagReader = TagReader{}

// ReadTags returns the embedded title and artist. Either may be empty when
// the file carries a tag block without that field.
func (TagReader) ReadTags(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("audiofile: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", fmt.Errorf("audiofile: read tags %s: %w", path, err)
	}
	return strings.TrimSpace(m.Title()), strings.TrimSpace(m.Artist()), nil
}
