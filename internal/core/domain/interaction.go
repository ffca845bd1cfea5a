package domain

import (
	"strings"
	"time"
)

// Action is the kind of an interaction event. play and rating are produced by
// the realtime channel; HTTP clients may record other actions.
type Action string

const (
	ActionPlay   Action = "play"
	ActionRating Action = "rating"
)

// ModeAuto ranks by popularity; any other mode shuffles.
const ModeAuto = "auto"

// Interaction is one append-only play_history row.
type Interaction struct {
	UserID    string
	SongID    string
	Emotion   Emotion
	Action    Action
	Rating    *int
	Mode      string
	Timestamp time.Time
}

// Validate checks the fields every interaction needs.
func (i Interaction) Validate() error {
	switch {
	case strings.TrimSpace(i.UserID) == "":
		return &InputError{Field: "user_id", Reason: "is required"}
	case strings.TrimSpace(i.SongID) == "":
		return &InputError{Field: "song_id", Reason: "is required"}
	case strings.TrimSpace(string(i.Emotion)) == "":
		return &InputError{Field: "emotion", Reason: "is required"}
	case strings.TrimSpace(string(i.Action)) == "":
		return &InputError{Field: "action", Reason: "is required"}
	case i.Rating != nil && *i.Rating < 0:
		return &InputError{Field: "rating", Reason: "must not be negative"}
	}
	return nil
}

// RatingDelta is the popularity increment this interaction carries.
func (i Interaction) RatingDelta() int {
	if i.Rating == nil {
		return 0
	}
	return *i.Rating
}

// EmotionStat aggregates one user's history for one emotion.
type EmotionStat struct {
	Emotion   Emotion `json:"emotion"`
	PlayCount int     `json:"play_count"`
	AvgRating float64 `json:"avg_rating"`
}

// Preference is a rated (emotion, song) pair from a user's history.
type Preference struct {
	Emotion   Emotion `json:"emotion"`
	SongID    string  `json:"song_id"`
	Rating    int     `json:"rating"`
	PlayCount int     `json:"play_count"`
}

// UserSummary mirrors the user_stats aggregate row.
type UserSummary struct {
	UserID          string    `json:"user_id"`
	TotalPlays      int       `json:"total_plays"`
	FavoriteEmotion Emotion   `json:"favorite_emotion,omitempty"`
	LastActivity    time.Time `json:"last_activity"`
}

type UserStats struct {
	Summary      *UserSummary  `json:"summary,omitempty"`
	EmotionStats []EmotionStat `json:"emotion_stats"`
	Preferences  []Preference  `json:"preferences"`
}
