package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Root       string                 `json:"root"`
	Tracks     int                    `json:"tracks"`
	Categories map[domain.Emotion]int `json:"categories"`
	Elapsed    time.Duration          `json:"-"`
}

// Indexer scans the library root and keeps the catalog and store in step
// with the files on disk.
type Indexer struct {
	catalog    *domain.Catalog
	store      ports.TrackRepository
	tags       ports.TagReader
	probes     ports.ProbeScheduler
	root       string
	extensions map[string]struct{}
}

// NewIndexer constructs an Indexer. tags and probes may be nil.
func NewIndexer(catalog *domain.Catalog, store ports.TrackRepository, tags ports.TagReader, probes ports.ProbeScheduler, root string, extensions []string) *Indexer {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	if len(exts) == 0 {
		exts[".mp3"] = struct{}{}
	}
	return &Indexer{
		catalog:    catalog,
		store:      store,
		tags:       tags,
		probes:     probes,
		root:       root,
		extensions: exts,
	}
}

// Build scans one level of category folders under root. It never fails: an
// unreadable root yields a catalog holding only the fixed categories.
func (ix *Indexer) Build(ctx context.Context, root string) *domain.Catalog {
	cat := domain.NewCatalog()
	log := logging.Ctx(ctx)

	entries, err := os.ReadDir(root)
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("music library root unavailable, serving empty catalog")
		return cat
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("indexing interrupted")
			return cat
		}
		if !entry.IsDir() {
			continue
		}
		// Folder names are matched the way clients send labels, so Happy/
		// joins happy and Chill/ is reachable as chill.
		category := domain.ParseEmotion(entry.Name())
		cat.EnsureCategory(category)
		ix.scanCategory(ctx, cat, category, filepath.Join(root, entry.Name()))
	}
	return cat
}

func (ix *Indexer) scanCategory(ctx context.Context, cat *domain.Catalog, category domain.Emotion, dir string) {
	log := logging.Ctx(ctx)
	files, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("skipping unreadable category folder")
		return
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		ext := filepath.Ext(f.Name())
		if _, ok := ix.extensions[strings.ToLower(ext)]; !ok {
			continue
		}
		base := strings.TrimSuffix(f.Name(), ext)
		path, err := filepath.Abs(filepath.Join(dir, f.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name()).Msg("cannot resolve path")
			continue
		}

		t := domain.Track{
			ID:       domain.TrackID(category, base),
			Title:    base,
			Artist:   domain.UnknownArtist,
			Category: category,
			FilePath: path,
		}
		if ix.tags != nil {
			title, artist, err := ix.tags.ReadTags(path)
			if err != nil {
				log.Debug().Err(err).Str("file", path).Msg("no readable tags")
			}
			if title != "" {
				t.Title = title
			}
			if artist != "" {
				t.Artist = artist
			}
		}
		if !cat.Add(t) {
			log.Debug().Str("id", t.ID).Str("file", path).Msg("duplicate track id, keeping first file")
		}
	}
}

// Reindex rebuilds the catalog from disk, upserts every track, merges stored
// popularity and durations back in and swaps the result into the live catalog. The live
// catalog is replaced even when the store write fails so playback keeps
// working off the files on disk.
func (ix *Indexer) Reindex(ctx context.Context) (IndexReport, error) {
	start := time.Now()
	fresh := ix.Build(ctx, ix.root)
	tracks := fresh.All()

	var storeErr error
	if err := ix.store.UpsertTracks(ctx, tracks); err != nil {
		storeErr = fmt.Errorf("indexer: upsert %d tracks: %w", len(tracks), err)
	} else if scores, err := ix.store.PopularityScores(ctx); err != nil {
		storeErr = fmt.Errorf("indexer: load popularity: %w", err)
	} else if durations, err := ix.store.TrackDurations(ctx); err != nil {
		fresh.MergePopularity(scores)
		storeErr = fmt.Errorf("indexer: load durations: %w", err)
	} else {
		fresh.MergePopularity(scores)
		fresh.MergeDurations(durations)
	}

	ix.catalog.Replace(fresh)

	if ix.probes != nil && storeErr == nil {
		for _, t := range ix.catalog.All() {
			if t.DurationSeconds == 0 {
				ix.probes.Schedule(t.ID, t.FilePath)
			}
		}
	}

	counts := ix.catalog.Counts()
	gauge := make(map[string]int, len(counts))
	for e, n := range counts {
		gauge[string(e)] = n
	}
	metrics.SetIndexedTracks(gauge)

	report := IndexReport{
		Root:       ix.root,
		Tracks:     ix.catalog.Len(),
		Categories: counts,
		Elapsed:    time.Since(start),
	}
	logging.Ctx(ctx).Info().
		Str("root", ix.root).
		Int("tracks", report.Tracks).
		Int("categories", len(counts)).
		Dur("elapsed", report.Elapsed).
		Msg("music library indexed")
	return report, storeErr
}
