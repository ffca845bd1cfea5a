package services

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

type mockStore struct {
	mu sync.Mutex

	upserted     [][]domain.Track
	upsertErr    error
	tracks       map[string]domain.Track
	getErr       error
	scores       map[string]float64
	scoresErr    error
	durations    map[string]float64
	popular      []domain.Track
	popularErr   error
	popularCalls int

	recorded  []domain.Interaction
	recordErr error
	newScore  float64
	stats     domain.UserStats
	statsErr  error
}

func (m *mockStore) UpsertTracks(_ context.Context, tracks []domain.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, tracks)
	return nil
}

func (m *mockStore) GetTrack(_ context.Context, id string) (domain.Track, error) {
	if m.getErr != nil {
		return domain.Track{}, m.getErr
	}
	t, ok := m.tracks[id]
	if !ok {
		return domain.Track{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *mockStore) PopularityScores(context.Context) (map[string]float64, error) {
	return m.scores, m.scoresErr
}

func (m *mockStore) TrackDurations(context.Context) (map[string]float64, error) {
	return m.durations, nil
}

func (m *mockStore) PopularTracks(_ context.Context, _ domain.Emotion, _ int) ([]domain.Track, error) {
	m.popularCalls++
	return m.popular, m.popularErr
}

func (m *mockStore) UpdateTrackDuration(context.Context, string, float64) error { return nil }

func (m *mockStore) RecordInteraction(_ context.Context, in domain.Interaction) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return 0, m.recordErr
	}
	m.recorded = append(m.recorded, in)
	return m.newScore, nil
}

func (m *mockStore) UserStats(context.Context, string) (domain.UserStats, error) {
	return m.stats, m.statsErr
}

type mockTags struct {
	titles map[string]string
}

func (m mockTags) ReadTags(path string) (string, string, error) {
	for suffix, title := range m.titles {
		if len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix {
			return title, "Tagged Artist", nil
		}
	}
	return "", "", nil
}

type mockProbes struct {
	mu  sync.Mutex
	ids []string
}

func (m *mockProbes) Schedule(trackID, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, trackID)
}

type mockRanker struct {
	mu    sync.Mutex
	calls []rankCall
	out   []domain.Track
}

type rankCall struct {
	emotion domain.Emotion
	userID  string
	limit   int
	mode    string
}

func (m *mockRanker) Recommend(_ context.Context, emotion domain.Emotion, userID string, limit int, mode string) []domain.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rankCall{emotion, userID, limit, mode})
	return m.out
}

type mockRecorder struct {
	mu    sync.Mutex
	calls []domain.Interaction
	err   error
}

func (m *mockRecorder) Record(_ context.Context, in domain.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in)
	return m.err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
