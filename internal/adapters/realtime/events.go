// Package realtime serves the websocket channel that drives listening
// sessions: clients report emotions, song choices and ratings, and receive
// recommendations in reply.
package realtime

import json "github.com/goccy/go-json"

// Client events.
const (
	EventStartSession    = "start_session"
	EventEmotionDetected = "emotion_detected"
	EventSongSelected    = "song_selected"
	EventRatingSubmitted = "rating_submitted"
)

// Server events.
const (
	EventSessionCreated         = "session_created"
	EventSessionStarted         = "session_started"
	EventRecommendationsUpdated = "recommendations_updated"
	EventRatingRecorded         = "rating_recorded"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type startSessionData struct {
	UserID string `json:"user_id"`
}

type emotionDetectedData struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

type songSelectedData struct {
	SongID string `json:"song_id"`
}

type ratingSubmittedData struct {
	SongID string `json:"song_id"`
	Rating int    `json:"rating"`
}

type sessionCreated struct {
	SessionID string `json:"session_id"`
}

type sessionStarted struct {
	UserID string `json:"user_id"`
}

type ratingRecorded struct {
	Success bool `json:"success"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
