package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

// FeedbackService records interaction events and keeps the in-memory
// popularity in step with the store.
type FeedbackService struct {
	store   ports.InteractionRepository
	catalog *domain.Catalog
	now     func() time.Time
}

var _ ports.FeedbackRecorder = (*FeedbackService)(nil)

func NewFeedbackService(store ports.InteractionRepository, catalog *domain.Catalog) *FeedbackService {
	return &FeedbackService{store: store, catalog: catalog, now: time.Now}
}

// Record appends the interaction. A non-zero rating raises the track's
// popularity by exactly that amount.
func (s *FeedbackService) Record(ctx context.Context, in domain.Interaction) error {
	if in.Mode == "" {
		in.Mode = domain.ModeAuto
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now().UTC()
	}
	if err := in.Validate(); err != nil {
		metrics.RecordInteraction(string(in.Action), err)
		return err
	}

	score, err := s.store.RecordInteraction(ctx, in)
	metrics.RecordInteraction(string(in.Action), err)
	if err != nil {
		return fmt.Errorf("feedback: record %s on %s: %w", in.Action, in.SongID, err)
	}

	if in.RatingDelta() != 0 {
		s.catalog.RaisePopularity(in.SongID, score)
	}
	logging.Ctx(ctx).Debug().
		Str("user_id", in.UserID).
		Str("song_id", in.SongID).
		Str("action", string(in.Action)).
		Int("rating", in.RatingDelta()).
		Float64("popularity", score).
		Msg("interaction recorded")
	return nil
}

// UserStats returns the aggregates for one user.
func (s *FeedbackService) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserStats{}, &domain.InputError{Field: "user_id", Reason: "is required"}
	}
	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("feedback: stats for %s: %w", userID, err)
	}
	return stats, nil
}
