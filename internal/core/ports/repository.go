package ports

import (
	"context"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

// TrackRepository persists track metadata.
type TrackRepository interface {
	// UpsertTracks inserts or updates tracks by id. Stored popularity is
	// never overwritten.
	UpsertTracks(ctx context.Context, tracks []domain.Track) error
	GetTrack(ctx context.Context, id string) (domain.Track, error)
	PopularityScores(ctx context.Context) (map[string]float64, error)
	// TrackDurations returns every stored non-zero duration by track id.
	TrackDurations(ctx context.Context) (map[string]float64, error)
	PopularTracks(ctx context.Context, emotion domain.Emotion, limit int) ([]domain.Track, error)
	UpdateTrackDuration(ctx context.Context, id string, seconds float64) error
}

// InteractionRepository persists the interaction log and user aggregates.
type InteractionRepository interface {
	// RecordInteraction appends the event, applies its rating to the track's
	// popularity and returns the popularity after the write.
	RecordInteraction(ctx context.Context, in domain.Interaction) (float64, error)
	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
}

// CatalogStore is the full persistence port.
type CatalogStore interface {
	TrackRepository
	InteractionRepository
}
