package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"
	mp3frames "github.com/tcolgate/mp3"
)

// ErrUnsupportedFormat is returned for files the prober cannot measure.
var ErrUnsupportedFormat = errors.New("audiofile: unsupported format")

// ProbeDuration measures an MP3 file. It sums frame durations first, which
// needs no decoding, and falls back to decoding when no frame parses.
func ProbeDuration(path string) (float64, error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if d, err := frameDuration(path); err == nil && d > 0 {
		return d.Seconds(), nil
	}
	return decodedDuration(path)
}

func frameDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := mp3frames.NewDecoder(f)
	var (
		frame   mp3frames.Frame
		skipped int
		total   time.Duration
	)
	for {
		if err := d.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if total > 0 {
				// Trailing garbage after valid audio.
				break
			}
			return 0, fmt.Errorf("audiofile: scan frames %s: %w", path, err)
		}
		total += frame.Duration()
	}
	return total, nil
}

func decodedDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("audiofile: open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("audiofile: decode %s: %w", path, err)
	}
	// go-mp3 always emits 16-bit stereo: four bytes per sample frame.
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0, fmt.Errorf("audiofile: %s has no measurable length", path)
	}
	return float64(length) / 4 / float64(dec.SampleRate()), nil
}
