package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

// RealtimeRecommendationLimit caps recommendations pushed over the realtime
// channel.
const RealtimeRecommendationLimit = 3

// RecommendationUpdate is the reply to an emotion_detected event.
type RecommendationUpdate struct {
	Emotion         domain.Emotion `json:"emotion"`
	Confidence      float64        `json:"confidence"`
	Recommendations []domain.Track `json:"recommendations"`
}

// SessionManager owns the table of live realtime sessions. Every mutation
// happens under mu; ranking and recording run on a snapshot after the lock
// is released.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	ranker   ports.Recommender
	recorder ports.FeedbackRecorder
	now      func() time.Time
	newID    func() string
}

func NewSessionManager(ranker ports.Recommender, recorder ports.FeedbackRecorder) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*domain.Session),
		ranker:   ranker,
		recorder: recorder,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Connect registers a new session and returns it.
func (m *SessionManager) Connect() domain.Session {
	s := &domain.Session{ID: m.newID(), ConnectedAt: m.now().UTC()}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return *s
}

// Disconnect forgets the session. Unknown ids are ignored.
func (m *SessionManager) Disconnect(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		metrics.ActiveSessions.Dec()
	}
}

func (m *SessionManager) Get(id string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	return *s, true
}

func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartSession binds a user to the session and clears its emotion and song.
// It reports false when the session is unknown or the user id is blank.
func (m *SessionManager) StartSession(id, userID string) (domain.Session, bool) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Session{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	s.UserID = userID
	s.CurrentEmotion = ""
	s.CurrentSongID = ""
	return *s, true
}

// EmotionDetected stores the emotion and ranks tracks for it.
func (m *SessionManager) EmotionDetected(ctx context.Context, id string, emotion domain.Emotion, confidence float64) (RecommendationUpdate, bool) {
	emotion = domain.ParseEmotion(string(emotion))
	if emotion == "" {
		return RecommendationUpdate{}, false
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return RecommendationUpdate{}, false
	}
	s.CurrentEmotion = emotion
	userID := s.UserID
	m.mu.Unlock()

	recs := m.ranker.Recommend(ctx, emotion, userID, RealtimeRecommendationLimit, domain.ModeAuto)
	return RecommendationUpdate{Emotion: emotion, Confidence: confidence, Recommendations: recs}, true
}

// SongSelected stores the current song and, once the session has a user and
// an emotion, records a play. It reports whether a play was recorded.
func (m *SessionManager) SongSelected(ctx context.Context, id, songID string) bool {
	if strings.TrimSpace(songID) == "" {
		return false
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	s.CurrentSongID = songID
	snap := *s
	m.mu.Unlock()

	if !snap.CanAttribute() {
		return false
	}
	err := m.recorder.Record(ctx, domain.Interaction{
		UserID:  snap.UserID,
		SongID:  songID,
		Emotion: snap.CurrentEmotion,
		Action:  domain.ActionPlay,
		Mode:    domain.ModeAuto,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("session_id", id).Str("song_id", songID).Msg("failed to record play")
		return false
	}
	return true
}

// RatingSubmitted records a rating when the session has a user and an
// emotion. attributed is false when nothing was attempted; err carries a
// recorder failure.
func (m *SessionManager) RatingSubmitted(ctx context.Context, id, songID string, rating int) (attributed bool, err error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	snap := *s
	m.mu.Unlock()

	if !snap.CanAttribute() || strings.TrimSpace(songID) == "" {
		return false, nil
	}
	r := rating
	err = m.recorder.Record(ctx, domain.Interaction{
		UserID:  snap.UserID,
		SongID:  songID,
		Emotion: snap.CurrentEmotion,
		Action:  domain.ActionRating,
		Rating:  &r,
		Mode:    domain.ModeAuto,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("session_id", id).Str("song_id", songID).Msg("failed to record rating")
	}
	return true, err
}
