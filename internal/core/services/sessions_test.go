package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

func newTestManager() (*SessionManager, *mockRanker, *mockRecorder) {
	ranker := &mockRanker{out: []domain.Track{{ID: "happy_1"}}}
	recorder := &mockRecorder{}
	m := NewSessionManager(ranker, recorder)
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
	return m, ranker, recorder
}

func TestSessions_ConnectAndDisconnect(t *testing.T) {
	m, _, _ := newTestManager()
	a := m.Connect()
	b := m.Connect()
	if a.ID == b.ID {
		t.Fatalf("session ids must be unique, got %q twice", a.ID)
	}
	if a.State() != domain.SessionConnected {
		t.Errorf("new session state = %s", a.State())
	}
	if m.Count() != 2 {
		t.Fatalf("count = %d, want 2", m.Count())
	}
	m.Disconnect(a.ID)
	m.Disconnect("missing")
	if _, ok := m.Get(a.ID); ok {
		t.Error("disconnected session still present")
	}
	if m.Count() != 1 {
		t.Errorf("count = %d, want 1", m.Count())
	}
}

func TestSessions_RatingBeforeStartIsIgnored(t *testing.T) {
	m, _, recorder := newTestManager()
	s := m.Connect()
	ctx := context.Background()

	if attributed, _ := m.RatingSubmitted(ctx, s.ID, "happy_1", 5); attributed {
		t.Fatal("rating without user should not be attributed")
	}
	if m.SongSelected(ctx, s.ID, "happy_1") {
		t.Fatal("play without user should not be recorded")
	}

	m.StartSession(s.ID, "u1")
	if attributed, _ := m.RatingSubmitted(ctx, s.ID, "happy_1", 5); attributed {
		t.Fatal("rating without emotion should not be attributed")
	}
	if recorder.count() != 0 {
		t.Fatalf("recorder called %d times", recorder.count())
	}
}

func TestSessions_FullFlow(t *testing.T) {
	m, ranker, recorder := newTestManager()
	ctx := context.Background()
	s := m.Connect()

	started, ok := m.StartSession(s.ID, "u1")
	if !ok || started.State() != domain.SessionActive {
		t.Fatalf("start failed: %+v %v", started, ok)
	}

	update, ok := m.EmotionDetected(ctx, s.ID, "Happy", 0.8)
	if !ok {
		t.Fatal("emotion event on live session should succeed")
	}
	if update.Emotion != domain.Happy || update.Confidence != 0.8 || len(update.Recommendations) != 1 {
		t.Fatalf("unexpected update %+v", update)
	}
	call := ranker.calls[0]
	if call.limit != RealtimeRecommendationLimit || call.mode != domain.ModeAuto || call.userID != "u1" {
		t.Fatalf("unexpected ranking call %+v", call)
	}

	if !m.SongSelected(ctx, s.ID, "happy_1") {
		t.Fatal("play should be recorded")
	}
	attributed, err := m.RatingSubmitted(ctx, s.ID, "happy_1", 4)
	if !attributed || err != nil {
		t.Fatalf("rating: attributed=%v err=%v", attributed, err)
	}

	if recorder.count() != 2 {
		t.Fatalf("expected play and rating, got %d calls", recorder.count())
	}
	play, rating := recorder.calls[0], recorder.calls[1]
	if play.Action != domain.ActionPlay || play.Emotion != domain.Happy || play.Rating != nil {
		t.Errorf("unexpected play %+v", play)
	}
	if rating.Action != domain.ActionRating || rating.RatingDelta() != 4 || rating.UserID != "u1" {
		t.Errorf("unexpected rating %+v", rating)
	}

	cur, _ := m.Get(s.ID)
	if cur.CurrentSongID != "happy_1" {
		t.Errorf("current song = %q", cur.CurrentSongID)
	}

	restarted, _ := m.StartSession(s.ID, "u2")
	if restarted.CurrentEmotion != "" || restarted.CurrentSongID != "" {
		t.Errorf("start_session should reset emotion and song: %+v", restarted)
	}
}

func TestSessions_UnknownSession(t *testing.T) {
	m, ranker, recorder := newTestManager()
	ctx := context.Background()

	if _, ok := m.StartSession("ghost", "u1"); ok {
		t.Error("start on unknown session should be ignored")
	}
	if _, ok := m.EmotionDetected(ctx, "ghost", domain.Sad, 1); ok {
		t.Error("emotion on unknown session should be ignored")
	}
	if m.SongSelected(ctx, "ghost", "x") {
		t.Error("song on unknown session should be ignored")
	}
	if len(ranker.calls) != 0 || recorder.count() != 0 {
		t.Errorf("collaborators should not be called")
	}
}

func TestSessions_RecorderFailure(t *testing.T) {
	m, _, recorder := newTestManager()
	recorder.err = domain.ErrNotFound
	ctx := context.Background()
	s := m.Connect()
	m.StartSession(s.ID, "u1")
	m.EmotionDetected(ctx, s.ID, domain.Sad, 0.5)

	attributed, err := m.RatingSubmitted(ctx, s.ID, "sad_x", 3)
	if !attributed || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("attributed=%v err=%v", attributed, err)
	}
}

func TestSessions_Concurrent(t *testing.T) {
	m := NewSessionManager(&mockRanker{}, &mockRecorder{})
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := m.Connect()
			m.StartSession(s.ID, fmt.Sprintf("u%d", i))
			m.EmotionDetected(ctx, s.ID, domain.Sad, 0.5)
			m.SongSelected(ctx, s.ID, "x")
			m.RatingSubmitted(ctx, s.ID, "x", 1)
			m.Disconnect(s.ID)
		}(i)
	}
	wg.Wait()
	if m.Count() != 0 {
		t.Fatalf("expected all sessions gone, got %d", m.Count())
	}
}
