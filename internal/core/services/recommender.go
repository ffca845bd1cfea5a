package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

// RecommendationService ranks catalog tracks for an emotion.
type RecommendationService struct {
	catalog *domain.Catalog
	store   ports.TrackRepository
	shuffle func([]domain.Track)
}

var _ ports.Recommender = (*RecommendationService)(nil)

func NewRecommendationService(catalog *domain.Catalog, store ports.TrackRepository) *RecommendationService {
	return &RecommendationService{
		catalog: catalog,
		store:   store,
		shuffle: func(tracks []domain.Track) {
			rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
		},
	}
}

// Recommend returns at most limit tracks from the emotion's category. Auto
// mode orders by popularity, ties kept in catalog order; every other mode
// returns a fresh random permutation. Unknown categories yield an empty list.
func (s *RecommendationService) Recommend(_ context.Context, emotion domain.Emotion, _ string, limit int, mode string) []domain.Track {
	tracks, ok := s.catalog.Tracks(emotion)
	if !ok || limit <= 0 || len(tracks) == 0 {
		metrics.RecordRecommendation(string(emotion), mode, 0)
		return []domain.Track{}
	}

	if mode == domain.ModeAuto {
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].PopularityScore > tracks[j].PopularityScore
		})
	} else {
		s.shuffle(tracks)
	}

	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	metrics.RecordRecommendation(string(emotion), mode, len(tracks))
	return tracks
}

// Popular returns the category's most popular tracks as recorded in the
// store.
func (s *RecommendationService) Popular(ctx context.Context, emotion domain.Emotion, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		return []domain.Track{}, nil
	}
	tracks, err := s.store.PopularTracks(ctx, emotion, limit)
	if err != nil {
		return nil, fmt.Errorf("recommender: popular %s: %w", emotion, err)
	}
	return tracks, nil
}
