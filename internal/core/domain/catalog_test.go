package domain

import (
	"reflect"
	"sync"
	"testing"
)

func TestNewCatalog_HasEveryKnownCategory(t *testing.T) {
	c := NewCatalog()
	for _, e := range KnownEmotions() {
		tracks, ok := c.Tracks(e)
		if !ok {
			t.Fatalf("category %q missing", e)
		}
		if len(tracks) != 0 {
			t.Fatalf("category %q: expected empty, got %d", e, len(tracks))
		}
	}
	if got := c.Categories(); !reflect.DeepEqual(got, KnownEmotions()) {
		t.Fatalf("categories: got %v", got)
	}
}

func TestCatalog_Add(t *testing.T) {
	tests := []struct {
		name      string
		tracks    []Track
		wantLen   int
		wantExtra bool
	}{
		{
			name: "adds tracks to known categories",
			tracks: []Track{
				{ID: "happy_a", Category: Happy},
				{ID: "happy_b", Category: Happy},
			},
			wantLen: 2,
		},
		{
			name: "rejects duplicate ids",
			tracks: []Track{
				{ID: "sad_a", Category: Sad},
				{ID: "sad_a", Category: Sad},
			},
			wantLen: 1,
		},
		{
			name: "admits operator-added categories",
			tracks: []Track{
				{ID: "chill_a", Category: Emotion("chill")},
			},
			wantLen:   1,
			wantExtra: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCatalog()
			for _, tr := range tc.tracks {
				c.Add(tr)
			}
			if got := c.Len(); got != tc.wantLen {
				t.Fatalf("expected %d tracks, got %d", tc.wantLen, got)
			}
			_, ok := c.Tracks(Emotion("chill"))
			if ok != tc.wantExtra {
				t.Fatalf("extra category present=%v, want %v", ok, tc.wantExtra)
			}
		})
	}
}

func TestCatalog_TracksReturnsCopy(t *testing.T) {
	c := NewCatalog()
	c.Add(Track{ID: "happy_a", Category: Happy, Title: "A"})

	tracks, _ := c.Tracks(Happy)
	tracks[0].Title = "mutated"

	got, _ := c.Track("happy_a")
	if got.Title != "A" {
		t.Fatalf("catalog mutated through returned slice: %q", got.Title)
	}
}

func TestCatalog_RaisePopularityIsMonotonic(t *testing.T) {
	c := NewCatalog()
	c.Add(Track{ID: "happy_a", Category: Happy})

	if !c.RaisePopularity("happy_a", 5) {
		t.Fatal("expected raise to 5 to apply")
	}
	if c.RaisePopularity("happy_a", 3) {
		t.Fatal("expected lower score to be ignored")
	}
	if c.RaisePopularity("missing", 10) {
		t.Fatal("expected unknown id to be ignored")
	}
	got, _ := c.Track("happy_a")
	if got.PopularityScore != 5 {
		t.Fatalf("popularity: got %v, want 5", got.PopularityScore)
	}

	changed := c.MergePopularity(map[string]float64{"happy_a": 8, "missing": 1})
	if changed != 1 {
		t.Fatalf("merge changed %d tracks, want 1", changed)
	}
}

func TestCatalog_ReplaceKeepsKnownPopularity(t *testing.T) {
	c := NewCatalog()
	c.Add(Track{ID: "happy_a", Category: Happy, PopularityScore: 7, DurationSeconds: 180})

	fresh := NewCatalog()
	fresh.Add(Track{ID: "happy_a", Category: Happy})
	fresh.Add(Track{ID: "sad_a", Category: Sad})
	c.Replace(fresh)

	got, ok := c.Track("happy_a")
	if !ok {
		t.Fatal("happy_a missing after replace")
	}
	if got.PopularityScore != 7 || got.DurationSeconds != 180 {
		t.Fatalf("expected popularity and duration to survive, got %+v", got)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 tracks, got %d", c.Len())
	}
}

func TestCatalog_MergeDurationsKeepsKnownValues(t *testing.T) {
	c := NewCatalog()
	c.Add(Track{ID: "happy_a", Category: Happy})
	c.Add(Track{ID: "happy_b", Category: Happy, DurationSeconds: 60})

	changed := c.MergeDurations(map[string]float64{"happy_a": 120, "happy_b": 90, "missing": 30})
	if changed != 1 {
		t.Fatalf("merge changed %d tracks, want 1", changed)
	}
	a, _ := c.Track("happy_a")
	b, _ := c.Track("happy_b")
	if a.DurationSeconds != 120 || b.DurationSeconds != 60 {
		t.Fatalf("got a=%v b=%v", a.DurationSeconds, b.DurationSeconds)
	}
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := NewCatalog()
	for i := 0; i < 20; i++ {
		c.Add(Track{ID: TrackID(Happy, string(rune('a'+i))), Category: Happy})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RaisePopularity("happy_a", float64(n*100+j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = c.Tracks(Happy)
			}
		}()
	}
	wg.Wait()

	got, _ := c.Track("happy_a")
	if got.PopularityScore != 799 {
		t.Fatalf("expected max score 799, got %v", got.PopularityScore)
	}
}
