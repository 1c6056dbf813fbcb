package history

import (
	"context"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB persists delivered transcripts. Optional: the engine runs without it.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Entry is one delivered dictation.
type Entry struct {
	ID           int64     `json:"id"`
	Text         string    `json:"text"`
	Provider     string    `json:"provider"`
	FallbackUsed bool      `json:"fallback_used"`
	DurationMs   int       `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id            BIGSERIAL PRIMARY KEY,
    text          TEXT NOT NULL,
    provider      TEXT NOT NULL,
    fallback_used BOOLEAN NOT NULL DEFAULT FALSE,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions (created_at DESC);
`

// Connect opens a pool, pings it, and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	db := &DB{Pool: pool, log: log}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Str("url", maskDSN(databaseURL)).Msg("history database connected")
	return db, nil
}

// Insert stores one delivered transcript and returns its id.
func (db *DB) Insert(ctx context.Context, e *Entry) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO transcriptions (text, provider, fallback_used, duration_ms)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		e.Text, e.Provider, e.FallbackUsed, e.DurationMs,
	).Scan(&id)
	return id, err
}

// ListRecent returns the newest entries, newest first.
func (db *DB) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, text, provider, fallback_used, duration_ms, created_at
		 FROM transcriptions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Text, &e.Provider, &e.FallbackUsed, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HealthCheck pings the pool with a short deadline.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() {
	db.log.Info().Msg("closing history database pool")
	db.Pool.Close()
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
