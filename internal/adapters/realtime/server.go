package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/services"
	"github.com/ewilliams-labs/emotune/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// Server upgrades HTTP requests to websocket connections and feeds their
// events into the session manager.
type Server struct {
	sessions *services.SessionManager
	upgrader websocket.Upgrader
}

// NewServer constructs a Server. origins lists allowed Origin values; "*"
// or an empty list allows any.
func NewServer(sessions *services.SessionManager, origins []string) *Server {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &Server{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if allowAll || origin == "" {
					return true
				}
				_, ok := allowed[strings.TrimRight(origin, "/")]
				return ok
			},
		},
	}
}

// ServeHTTP upgrades the connection and blocks until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := s.sessions.Connect()
	c := &connection{
		server:    s,
		conn:      conn,
		sessionID: session.ID,
		send:      make(chan []byte, sendBuffer),
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := logging.Ctx(ctx).With().Str("session_id", session.ID).Logger()
	log.Info().Msg("realtime session connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.reply(EventSessionCreated, sessionCreated{SessionID: session.ID})
	c.readPump(ctx)

	s.sessions.Disconnect(session.ID)
	close(c.send)
	<-done
	log.Info().Msg("realtime session closed")
}

type connection struct {
	server    *Server
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// reply queues a frame for this connection only. Frames are dropped when the
// client stops reading.
func (c *connection) reply(event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("failed to encode realtime event")
		return
	}
	select {
	case c.send <- frame:
	default:
		logging.Warn().Str("session_id", c.sessionID).Str("event", event).Msg("realtime send buffer full, dropping event")
	}
}

// readPump handles client frames in arrival order until the socket closes.
func (c *connection) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logging.Ctx(ctx).Debug().Err(err).Msg("realtime connection closed unexpectedly")
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("dropping malformed realtime frame")
			continue
		}
		c.dispatch(ctx, env)
	}
}

func (c *connection) dispatch(ctx context.Context, env Envelope) {
	sessions := c.server.sessions
	switch env.Event {
	case EventStartSession:
		var d startSessionData
		if !decodeData(env.Data, &d) {
			return
		}
		if s, ok := sessions.StartSession(c.sessionID, d.UserID); ok {
			c.reply(EventSessionStarted, sessionStarted{UserID: s.UserID})
		}
	case EventEmotionDetected:
		var d emotionDetectedData
		if !decodeData(env.Data, &d) {
			return
		}
		if u, ok := sessions.EmotionDetected(ctx, c.sessionID, domain.Emotion(d.Emotion), d.Confidence); ok {
			c.reply(EventRecommendationsUpdated, u)
		}
	case EventSongSelected:
		var d songSelectedData
		if !decodeData(env.Data, &d) {
			return
		}
		sessions.SongSelected(ctx, c.sessionID, d.SongID)
	case EventRatingSubmitted:
		var d ratingSubmittedData
		if !decodeData(env.Data, &d) {
			return
		}
		if attributed, err := sessions.RatingSubmitted(ctx, c.sessionID, d.SongID, d.Rating); attributed {
			c.reply(EventRatingRecorded, ratingRecorded{Success: err == nil})
		}
	default:
		logging.Ctx(ctx).Debug().Str("event", env.Event).Msg("ignoring unknown realtime event")
	}
}

func decodeData(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
