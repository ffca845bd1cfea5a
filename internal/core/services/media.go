package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
)

const defaultAudioType = "audio/mpeg"

// MediaFile is an open audio file ready to stream. Callers must Close it.
type MediaFile struct {
	io.ReadSeekCloser
	Name        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ByteRange is an inclusive byte span within a file.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ContentRange formats the Content-Range header value for a file of size.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// MediaService resolves track ids to files on disk.
type MediaService struct {
	store ports.TrackRepository
}

func NewMediaService(store ports.TrackRepository) *MediaService {
	return &MediaService{store: store}
}

// Open looks the track up in the store and opens its file. Both an unknown
// id and a missing file report domain.ErrNotFound.
func (s *MediaService) Open(ctx context.Context, songID string) (*MediaFile, error) {
	t, err := s.store.GetTrack(ctx, songID)
	if err != nil {
		return nil, fmt.Errorf("media: lookup %s: %w", songID, err)
	}

	f, err := os.Open(t.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("media: file for %s: %w", songID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("media: open %s: %w", songID, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("media: stat %s: %w", songID, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("media: file for %s: %w", songID, domain.ErrNotFound)
	}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(t.FilePath)))
	if ct == "" {
		ct = defaultAudioType
	}
	return &MediaFile{
		ReadSeekCloser: f,
		Name:           filepath.Base(t.FilePath),
		Size:           info.Size(),
		ContentType:    ct,
		ModTime:        info.ModTime(),
	}, nil
}

// ParseRange parses a single "bytes=start-end" range. An empty start means 0
// and an empty end means the last byte. The result is clamped to the file.
// ok is false for anything else, including multi-range requests, and the
// caller serves the whole file.
func ParseRange(header string, size int64) (ByteRange, bool) {
	if size <= 0 {
		return ByteRange{}, false
	}
	unit, spec, found := strings.Cut(strings.TrimSpace(header), "=")
	if !found || !strings.EqualFold(strings.TrimSpace(unit), "bytes") || strings.Contains(spec, ",") {
		return ByteRange{}, false
	}
	startStr, endStr, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found || strings.Contains(endStr, "-") {
		return ByteRange{}, false
	}

	start, end := int64(0), size-1
	var err error
	if s := strings.TrimSpace(startStr); s != "" {
		if start, err = strconv.ParseInt(s, 10, 64); err != nil {
			return ByteRange{}, false
		}
	}
	if e := strings.TrimSpace(endStr); e != "" {
		if end, err = strconv.ParseInt(e, 10, 64); err != nil {
			return ByteRange{}, false
		}
	}

	start = min(max(start, 0), size-1)
	end = min(max(end, start), size-1)
	return ByteRange{Start: start, End: end}, true
}
