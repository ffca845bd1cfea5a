package domain

import "time"

type SessionState string

const (
	SessionConnected SessionState = "connected"
	SessionActive    SessionState = "active"
)

// Session is the server-side state of one realtime connection.
type Session struct {
	ID             string
	UserID         string
	CurrentEmotion Emotion
	CurrentSongID  string
	ConnectedAt    time.Time
}

// State is Active once a user has been bound.
func (s Session) State() SessionState {
	if s.UserID == "" {
		return SessionConnected
	}
	return SessionActive
}

// CanAttribute reports whether events can be attributed to a user and emotion.
func (s Session) CanAttribute() bool {
	return s.UserID != "" && s.CurrentEmotion != ""
}
