package domain

import "sync"

// Catalog is the in-memory track library partitioned by category. It is
// safe for concurrent use; readers receive copies and never observe a
// partially applied Replace.
type Catalog struct {
	mu         sync.RWMutex
	order      []Emotion
	categories map[Emotion][]Track
	index      map[string]trackRef
}

type trackRef struct {
	category Emotion
	pos      int
}

// NewCatalog returns a catalog holding every known category with no tracks.
func NewCatalog() *Catalog {
	c := &Catalog{
		categories: make(map[Emotion][]Track, len(knownEmotions)),
		index:      make(map[string]trackRef),
	}
	for _, e := range knownEmotions {
		c.ensureCategoryLocked(e)
	}
	return c
}

func (c *Catalog) ensureCategoryLocked(e Emotion) {
	if _, ok := c.categories[e]; ok {
		return
	}
	c.categories[e] = []Track{}
	c.order = append(c.order, e)
}

// EnsureCategory admits e as a category even if it never receives tracks.
func (c *Catalog) EnsureCategory(e Emotion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureCategoryLocked(e)
}

// Add appends t to its category. It returns false when a track with the same
// id is already present.
func (c *Catalog) Add(t Track) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.index[t.ID]; dup {
		return false
	}
	c.ensureCategoryLocked(t.Category)
	c.index[t.ID] = trackRef{category: t.Category, pos: len(c.categories[t.Category])}
	c.categories[t.Category] = append(c.categories[t.Category], t)
	return true
}

// Categories lists categories in insertion order, fixed labels first.
func (c *Catalog) Categories() []Emotion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Emotion, len(c.order))
	copy(out, c.order)
	return out
}

// Tracks returns a copy of the category's tracks in insertion order. The
// boolean is false for categories the catalog does not hold.
func (c *Catalog) Tracks(e Emotion) ([]Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tracks, ok := c.categories[e]
	if !ok {
		return nil, false
	}
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out, true
}

// All returns every track, category by category.
func (c *Catalog) All() []Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Track, 0, len(c.index))
	for _, e := range c.order {
		out = append(out, c.categories[e]...)
	}
	return out
}

func (c *Catalog) Track(id string) (Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.index[id]
	if !ok {
		return Track{}, false
	}
	return c.categories[ref.category][ref.pos], true
}

// Len is the total number of tracks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Counts returns the number of tracks per category.
func (c *Catalog) Counts() map[Emotion]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[Emotion]int, len(c.categories))
	for e, tracks := range c.categories {
		out[e] = len(tracks)
	}
	return out
}

// RaisePopularity sets the track's score to score if that is higher than the
// current value. Scores never move down, so stale reads cannot undo a newer
// increment.
func (c *Catalog) RaisePopularity(id string, score float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raiseLocked(id, score)
}

// MergePopularity applies RaisePopularity for every entry and returns how
// many tracks changed.
func (c *Catalog) MergePopularity(scores map[string]float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := 0
	for id, score := range scores {
		if c.raiseLocked(id, score) {
			changed++
		}
	}
	return changed
}

func (c *Catalog) raiseLocked(id string, score float64) bool {
	ref, ok := c.index[id]
	if !ok {
		return false
	}
	t := &c.categories[ref.category][ref.pos]
	if score <= t.PopularityScore {
		return false
	}
	t.PopularityScore = score
	return true
}

// SetDuration records a probed duration for a track.
func (c *Catalog) SetDuration(id string, seconds float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.index[id]
	if !ok {
		return false
	}
	c.categories[ref.category][ref.pos].DurationSeconds = seconds
	return true
}

// MergeDurations fills in durations for tracks that have none and returns
// how many tracks changed.
func (c *Catalog) MergeDurations(durations map[string]float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := 0
	for id, seconds := range durations {
		ref, ok := c.index[id]
		if !ok || seconds <= 0 {
			continue
		}
		t := &c.categories[ref.category][ref.pos]
		if t.DurationSeconds == 0 {
			t.DurationSeconds = seconds
			changed++
		}
	}
	return changed
}

// Replace swaps in the contents of other. Popularity already known to c is
// kept when other reports a lower value for the same track.
func (c *Catalog) Replace(other *Catalog) {
	other.mu.RLock()
	order := append([]Emotion(nil), other.order...)
	categories := make(map[Emotion][]Track, len(other.categories))
	index := make(map[string]trackRef, len(other.index))
	for e, tracks := range other.categories {
		categories[e] = append([]Track{}, tracks...)
	}
	for id, ref := range other.index {
		index[id] = ref
	}
	other.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ref := range index {
		old, ok := c.index[id]
		if !ok {
			continue
		}
		prev := c.categories[old.category][old.pos]
		t := &categories[ref.category][ref.pos]
		if prev.PopularityScore > t.PopularityScore {
			t.PopularityScore = prev.PopularityScore
		}
		if t.DurationSeconds == 0 {
			t.DurationSeconds = prev.DurationSeconds
		}
	}
	c.order = order
	c.categories = categories
	c.index = index
}
