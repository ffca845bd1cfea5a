package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

func TestRefresher_RefreshOnce(t *testing.T) {
	cat := domain.NewCatalog()
	cat.Add(domain.Track{ID: "happy_1", Category: domain.Happy, PopularityScore: 3})
	cat.Add(domain.Track{ID: "happy_2", Category: domain.Happy, PopularityScore: 9})
	store := &mockStore{scores: map[string]float64{"happy_1": 5, "happy_2": 4, "gone": 1}}
	r := NewPopularityRefresher(cat, store, time.Minute)

	if changed := r.RefreshOnce(context.Background()); changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	one, _ := cat.Track("happy_1")
	two, _ := cat.Track("happy_2")
	if one.PopularityScore != 5 || two.PopularityScore != 9 {
		t.Fatalf("scores after merge: %v %v", one.PopularityScore, two.PopularityScore)
	}

	store.scoresErr = errors.New("locked")
	if changed := r.RefreshOnce(context.Background()); changed != 0 {
		t.Fatalf("failed refresh should change nothing, got %d", changed)
	}
}

func TestRefresher_ServeStopsOnCancel(t *testing.T) {
	for _, interval := range []time.Duration{0, time.Millisecond} {
		r := NewPopularityRefresher(domain.NewCatalog(), &mockStore{}, interval)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- r.Serve(ctx) }()
		time.Sleep(5 * time.Millisecond)
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("interval %v: unexpected error %v", interval, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("interval %v: Serve did not return", interval)
		}
	}
}
