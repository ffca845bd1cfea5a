package ports

import (
	"context"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

// Recommender ranks tracks for a category.
type Recommender interface {
	Recommend(ctx context.Context, emotion domain.Emotion, userID string, limit int, mode string) []domain.Track
}

// FeedbackRecorder persists interaction events.
type FeedbackRecorder interface {
	Record(ctx context.Context, in domain.Interaction) error
}

// ProbeScheduler queues background duration probes for indexed files.
type ProbeScheduler interface {
	Schedule(trackID, path string)
}

// TagReader extracts embedded title and artist tags from an audio file.
type TagReader interface {
	ReadTags(path string) (title, artist string, err error)
}
