// Package sqlite provides a SQLite-backed implementation of the catalog store port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

const memoryPath = ":memory:"

// Adapter implements ports.CatalogStore for SQLite.
//
// database/sql hands every call its own pooled connection for the duration of
// the statement or transaction, so handlers never share a handle. Writes use
// immediate transactions and a busy timeout so concurrent writers queue
// instead of failing.
type Adapter struct {
	db *sql.DB
}

var _ ports.CatalogStore = (*Adapter)(nil)

// Option tunes the connection pool.
type Option func(*options)

type options struct {
	maxOpenConns int
	busyTimeout  time.Duration
}

// WithMaxOpenConns caps the pool size. Ignored for in-memory databases,
// which are limited to a single connection.
func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// WithBusyTimeout sets how long a writer waits for a lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// NewAdapter creates a connection pool and runs the schema migration
func NewAdapter(storagePath string, opts ...Option) (*Adapter, error) {
	o := options{maxOpenConns: 8, busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", dsn(storagePath, o.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if storagePath == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	// Schema is created once, before any handler can reach the store.
	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

func dsn(path string, busy time.Duration) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on&_txlock=immediate", busy.Milliseconds())
	if path == memoryPath {
		return memoryPath + "?" + params
	}
	return "file:" + path + "?" + params + "&_journal_mode=WAL"
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w: %w", op, domain.ErrStorage, err)
}

func (a *Adapter) UpsertTracks(ctx context.Context, tracks []domain.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin upsert", err)
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (id, title, artist, emotion_category, file_path, duration, popularity_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			emotion_category=excluded.emotion_category,
			file_path=excluded.file_path,
			duration=CASE WHEN excluded.duration > 0 THEN excluded.duration ELSE tracks.duration END,
			indexed_at=CURRENT_TIMESTAMP
	`)
	if err != nil {
		return storageErr("prepare upsert", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.ExecContext(
			ctx,
			t.ID,
			t.Title,
			t.Artist,
			string(t.Category),
			t.FilePath,
			t.DurationSeconds,
			t.PopularityScore,
		); err != nil {
			return storageErr("upsert track "+t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit upsert", err)
	}
	return nil
}

const trackColumns = `id, title, artist, emotion_category, file_path, duration, popularity_score`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (domain.Track, error) {
	var t domain.Track
	var category string
	if err := row.Scan(&t.ID, &t.Title, &t.Artist, &category, &t.FilePath, &t.DurationSeconds, &t.PopularityScore); err != nil {
		return domain.Track{}, err
	}
	t.Category = domain.Emotion(category)
	return t, nil
}

func (a *Adapter) GetTrack(ctx context.Context, id string) (domain.Track, error) {
	row := a.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE id = ?", id)
	t, err := scanTrack(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Track{}, fmt.Errorf("track %q: %w", id, domain.ErrNotFound)
		}
		return domain.Track{}, storageErr("load track", err)
	}
	return t, nil
}

func (a *Adapter) PopularityScores(ctx context.Context) (map[string]float64, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id, popularity_score FROM tracks")
	if err != nil {
		return nil, storageErr("load popularity", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, storageErr("scan popularity", err)
		}
		scores[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate popularity", err)
	}
	return scores, nil
}

func (a *Adapter) TrackDurations(ctx context.Context) (map[string]float64, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT id, duration FROM tracks WHERE duration > 0")
	if err != nil {
		return nil, storageErr("load durations", err)
	}
	defer rows.Close()

	durations := make(map[string]float64)
	for rows.Next() {
		var id string
		var seconds float64
		if err := rows.Scan(&id, &seconds); err != nil {
			return nil, storageErr("scan duration", err)
		}
		durations[id] = seconds
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate durations", err)
	}
	return durations, nil
}

// PopularTracks returns the category's tracks by stored popularity, highest
// first, ties in insertion order.
func (a *Adapter) PopularTracks(ctx context.Context, emotion domain.Emotion, limit int) ([]domain.Track, error) {
	tracks := []domain.Track{}
	if limit <= 0 {
		return tracks, nil
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE emotion_category = ?
		ORDER BY popularity_score DESC, rowid ASC
		LIMIT ?
	`, string(emotion), limit)
	if err != nil {
		return nil, storageErr("load popular tracks", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, storageErr("scan popular track", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate popular tracks", err)
	}
	return tracks, nil
}

func (a *Adapter) UpdateTrackDuration(ctx context.Context, id string, seconds float64) error {
	res, err := a.db.ExecContext(ctx, "UPDATE tracks SET duration = ? WHERE id = ?", seconds, id)
	if err != nil {
		return storageErr("update duration", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("track %q: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecordInteraction appends the event and, for non-zero ratings, increments
// popularity with a single UPDATE so concurrent ratings never lose writes.
func (a *Adapter) RecordInteraction(ctx context.Context, in domain.Interaction) (float64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin interaction", err)
	}
	defer tx.Rollback() // no-op after commit

	var score float64
	err = tx.QueryRowContext(ctx, "SELECT popularity_score FROM tracks WHERE id = ?", in.SongID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("track %q: %w", in.SongID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, storageErr("load track", err)
	}

	var rating sql.NullInt64
	if in.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*in.Rating), Valid: true}
	}
	ts := in.Timestamp.UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO play_history (user_id, song_id, emotion, action, rating, play_mode, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.UserID, in.SongID, string(in.Emotion), string(in.Action), rating, in.Mode, ts); err != nil {
		return 0, storageErr("insert interaction", err)
	}

	if delta := in.RatingDelta(); delta != 0 {
		if err := tx.QueryRowContext(ctx, `
			UPDATE tracks SET popularity_score = popularity_score + ?
			WHERE id = ?
			RETURNING popularity_score
		`, delta, in.SongID).Scan(&score); err != nil {
			return 0, storageErr("increment popularity", err)
		}
	}

	plays := 0
	if in.Action == domain.ActionPlay {
		plays = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, total_plays, last_activity)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_plays = user_stats.total_plays + excluded.total_plays,
			last_activity = excluded.last_activity
	`, in.UserID, plays, ts); err != nil {
		return 0, storageErr("update user stats", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_stats SET favorite_emotion = (
			SELECT emotion FROM play_history
			WHERE user_id = ?
			GROUP BY emotion
			ORDER BY COUNT(*) DESC, MAX(id) DESC
			LIMIT 1
		)
		WHERE user_id = ?
	`, in.UserID, in.UserID); err != nil {
		return 0, storageErr("update favorite emotion", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit interaction", err)
	}
	return score, nil
}

func (a *Adapter) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	stats := domain.UserStats{
		EmotionStats: []domain.EmotionStat{},
		Preferences:  []domain.Preference{},
	}

	var summary domain.UserSummary
	var favorite sql.NullString
	err := a.db.QueryRowContext(ctx, `
		SELECT user_id, total_plays, favorite_emotion, last_activity
		FROM user_stats WHERE user_id = ?
	`, userID).Scan(&summary.UserID, &summary.TotalPlays, &favorite, &summary.LastActivity)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.UserStats{}, storageErr("load user summary", err)
	default:
		if favorite.Valid {
			summary.FavoriteEmotion = domain.Emotion(favorite.String)
		}
		stats.Summary = &summary
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT emotion, COUNT(*), COALESCE(AVG(rating), 0)
		FROM play_history
		WHERE user_id = ?
		GROUP BY emotion
		ORDER BY emotion
	`, userID)
	if err != nil {
		return domain.UserStats{}, storageErr("load emotion stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.EmotionStat
		var emotion string
		if err := rows.Scan(&emotion, &s.PlayCount, &s.AvgRating); err != nil {
			return domain.UserStats{}, storageErr("scan emotion stats", err)
		}
		s.Emotion = domain.Emotion(emotion)
		stats.EmotionStats = append(stats.EmotionStats, s)
	}
	if err := rows.Err(); err != nil {
		return domain.UserStats{}, storageErr("iterate emotion stats", err)
	}

	prefRows, err := a.db.QueryContext(ctx, `
		SELECT emotion, song_id, rating, COUNT(*) AS play_count
		FROM play_history
		WHERE user_id = ? AND rating IS NOT NULL
		GROUP BY emotion, song_id, rating
		ORDER BY rating DESC, play_count DESC
		LIMIT 10
	`, userID)
	if err != nil {
		return domain.UserStats{}, storageErr("load preferences", err)
	}
	defer prefRows.Close()
	for prefRows.Next() {
		var p domain.Preference
		var emotion string
		if err := prefRows.Scan(&emotion, &p.SongID, &p.Rating, &p.PlayCount); err != nil {
			return domain.UserStats{}, storageErr("scan preferences", err)
		}
		p.Emotion = domain.Emotion(emotion)
		stats.Preferences = append(stats.Preferences, p)
	}
	if err := prefRows.Err(); err != nil {
		return domain.UserStats{}, storageErr("iterate preferences", err)
	}

	return stats, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		emotion_category TEXT NOT NULL,
		file_path TEXT NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		popularity_score REAL NOT NULL DEFAULT 0,
		indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tracks_category ON tracks (emotion_category, popularity_score DESC);

	CREATE TABLE IF NOT EXISTS play_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		emotion TEXT NOT NULL,
		action TEXT NOT NULL,
		rating INTEGER,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY(song_id) REFERENCES tracks(id)
	);

	CREATE INDEX IF NOT EXISTS idx_play_history_user ON play_history (user_id);

	CREATE TABLE IF NOT EXISTS user_stats (
		user_id TEXT PRIMARY KEY,
		total_plays INTEGER NOT NULL DEFAULT 0,
		favorite_emotion TEXT,
		last_activity DATETIME NOT NULL
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// Databases created before play modes were tracked lack the column.
	if _, err := a.db.Exec("ALTER TABLE play_history ADD COLUMN play_mode TEXT NOT NULL DEFAULT 'auto'"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
