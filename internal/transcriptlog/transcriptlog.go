// Package transcriptlog persists an audit trail of gateway activity: one row
// per completed transcription and one per synthesis request. The log is
// optional — a nil [*Postgres] is a valid, silent no-op recorder — and is
// strictly best-effort: a failed insert is logged and never surfaces to the
// protocol.
package transcriptlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TranscriptEntry records one completed speech-to-text exchange.
type TranscriptEntry struct {
	SessionID    string
	Language     string
	Text         string
	AudioSeconds float64
	Elapsed      time.Duration
	Failed       bool
}

// SynthesisEntry records one text-to-speech exchange.
type SynthesisEntry struct {
	SessionID  string
	Voice      string
	Speed      float64
	Text       string
	AudioBytes int
	Elapsed    time.Duration
	Failed     bool
}

// Postgres is a transcript log backed by a PostgreSQL connection pool. All
// methods are safe for concurrent use and safe on a nil receiver.
type Postgres struct {
	pool *pgxpool.Pool
}

// schema is applied idempotently on Open.
const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT NOT NULL,
	language      TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL,
	audio_seconds DOUBLE PRECISION NOT NULL,
	elapsed_ms    BIGINT NOT NULL,
	failed        BOOLEAN NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS syntheses (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT NOT NULL,
	voice       TEXT NOT NULL DEFAULT '',
	speed       DOUBLE PRECISION NOT NULL,
	text        TEXT NOT NULL,
	audio_bytes BIGINT NOT NULL,
	elapsed_ms  BIGINT NOT NULL,
	failed      BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS transcripts_session_idx ON transcripts (session_id);
CREATE INDEX IF NOT EXISTS syntheses_session_idx ON syntheses (session_id);
`

// Open connects to the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("transcript log: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("transcript log: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("transcript log: ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Ping reports whether the database is reachable. Nil receivers are always
// healthy (the log is disabled).
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.pool.Ping(ctx)
}

// RecordTranscript inserts a transcript row. Failures are logged, not
// returned, so a flapping database never disturbs protocol traffic.
func (p *Postgres) RecordTranscript(ctx context.Context, e TranscriptEntry) {
	if p == nil {
		return
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO transcripts (session_id, language, text, audio_seconds, elapsed_ms, failed)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.SessionID, e.Language, e.Text, e.AudioSeconds, e.Elapsed.Milliseconds(), e.Failed,
	)
	if err != nil {
		slog.Warn("transcript log insert failed", "table", "transcripts", "err", err)
	}
}

// RecordSynthesis inserts a synthesis row. Failures are logged, not returned.
func (p *Postgres) RecordSynthesis(ctx context.Context, e SynthesisEntry) {
	if p == nil {
		return
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO syntheses (session_id, voice, speed, text, audio_bytes, elapsed_ms, failed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.SessionID, e.Voice, e.Speed, e.Text, e.AudioBytes, e.Elapsed.Milliseconds(), e.Failed,
	)
	if err != nil {
		slog.Warn("transcript log insert failed", "table", "syntheses", "err", err)
	}
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p != nil {
		p.pool.Close()
	}
}
