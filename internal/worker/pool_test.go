package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	durations map[string]float64
	err       error
}

func (f *fakeStore) UpsertTracks(context.Context, []domain.Track) error { return nil }
func (f *fakeStore) GetTrack(context.Context, string) (domain.Track, error) {
	return domain.Track{}, domain.ErrNotFound
}
func (f *fakeStore) PopularityScores(context.Context) (map[string]float64, error) { return nil, nil }
func (f *fakeStore) TrackDurations(context.Context) (map[string]float64, error)   { return nil, nil }
func (f *fakeStore) PopularTracks(context.Context, domain.Emotion, int) ([]domain.Track, error) {
	return nil, nil
}

func (f *fakeStore) UpdateTrackDuration(_ context.Context, id string, seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.durations == nil {
		f.durations = map[string]float64{}
	}
	f.durations[id] = seconds
	return nil
}

func TestPool_ProcessesJobs(t *testing.T) {
	cat := domain.NewCatalog()
	cat.Add(domain.Track{ID: "happy_a", Category: domain.Happy})
	cat.Add(domain.Track{ID: "happy_b", Category: domain.Happy})
	store := &fakeStore{}

	p := NewPool(store, cat, 8)
	p.probe = func(path string) (float64, error) {
		if path == "/broken.mp3" {
			return 0, errors.New("bad frames")
		}
		return 183.5, nil
	}
	p.Start(2)
	p.Schedule("happy_a", "/a.mp3")
	p.Schedule("happy_b", "/broken.mp3")
	p.Stop()

	if store.durations["happy_a"] != 183.5 {
		t.Fatalf("store durations = %v", store.durations)
	}
	if _, ok := store.durations["happy_b"]; ok {
		t.Fatal("failed probe should not be stored")
	}
	a, _ := cat.Track("happy_a")
	if a.DurationSeconds != 183.5 {
		t.Errorf("catalog duration = %v", a.DurationSeconds)
	}
}

func TestPool_StoreFailureLeavesCatalog(t *testing.T) {
	cat := domain.NewCatalog()
	cat.Add(domain.Track{ID: "sad_a", Category: domain.Sad})
	p := NewPool(&fakeStore{err: domain.ErrStorage}, cat, 1)
	p.probe = func(string) (float64, error) { return 10, nil }
	p.Start(1)
	p.Schedule("sad_a", "/a.mp3")
	p.Stop()

	a, _ := cat.Track("sad_a")
	if a.DurationSeconds != 0 {
		t.Errorf("duration should stay unset, got %v", a.DurationSeconds)
	}
}

func TestPool_SubmitDropsWhenFullOrStopped(t *testing.T) {
	p := NewPool(&fakeStore{}, domain.NewCatalog(), 1)
	if !p.Submit(Job{TrackID: "1"}) {
		t.Fatal("first job should be queued")
	}
	if p.Submit(Job{TrackID: "2"}) {
		t.Fatal("second job should be dropped with no workers running")
	}
	p.probe = func(string) (float64, error) { return 0, errors.New("skip") }
	p.Start(1)
	p.Stop()
	p.Stop()
	if p.Submit(Job{TrackID: "3"}) {
		t.Fatal("submit after stop should be rejected")
	}
}

func TestPool_ShutdownDiscardsQueuedJobs(t *testing.T) {
	cat := domain.NewCatalog()
	store := &fakeStore{}
	p := NewPool(store, cat, 8)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var probed []string
	p.probe = func(path string) (float64, error) {
		mu.Lock()
		probed = append(probed, path)
		first := len(probed) == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
		return 42, nil
	}
	p.Start(1)
	p.Schedule("happy_a", "/a.mp3")
	<-entered
	p.Schedule("happy_b", "/b.mp3")
	p.Schedule("happy_c", "/c.mp3")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown with a probe in flight = %v, want deadline exceeded", err)
	}

	close(release)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(probed) != 1 {
		t.Fatalf("queued jobs should be discarded, probed %v", probed)
	}
	if len(store.durations) != 0 {
		t.Fatalf("cancelled probe must not be stored, got %v", store.durations)
	}
	if p.Submit(Job{TrackID: "late"}) {
		t.Fatal("submit after shutdown should be rejected")
	}
}
