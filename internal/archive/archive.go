// Package archive persists committed segments to PostgreSQL for later search
// and review.
//
// The archive is secondary storage: the session log file remains the durable
// record, and per-segment insert failures are reported to the caller but
// never abort a session.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verbalis/verbalis/internal/session"
)

var _ session.Archiver = (*Store)(nil)

const ddlSegments = `
CREATE TABLE IF NOT EXISTS segments (
    id              BIGSERIAL    PRIMARY KEY,
    session_id      TEXT         NOT NULL,
    sequence        BIGINT       NOT NULL,
    committed_at    TIMESTAMPTZ  NOT NULL,
    original        TEXT         NOT NULL,
    translated      TEXT         NOT NULL DEFAULT '',
    source_language TEXT         NOT NULL DEFAULT '',
    target_language TEXT         NOT NULL DEFAULT '',
    UNIQUE (session_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_segments_session_id
    ON segments (session_id);

CREATE INDEX IF NOT EXISTS idx_segments_fts
    ON segments USING GIN (to_tsvector('simple', original || ' ' || translated));
`

// Store is a PostgreSQL-backed segment archive scoped to one session.
// All methods are safe for concurrent use.
type Store struct {
	pool      *pgxpool.Pool
	sessionID string
}

// New connects to the PostgreSQL database at dsn, verifies the connection,
// runs migrations, and returns a Store that archives under sessionID.
func New(ctx context.Context, dsn, sessionID string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, ddlSegments); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}

	return &Store{pool: pool, sessionID: sessionID}, nil
}

// SessionID returns the session this store archives under.
func (s *Store) SessionID() string { return s.sessionID }

// Ping verifies database connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertSegment implements [session.Archiver].
func (s *Store) InsertSegment(ctx context.Context, seg session.Segment) error {
	const q = `
		INSERT INTO segments
		    (session_id, sequence, committed_at, original, translated, source_language, target_language)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q,
		s.sessionID,
		seg.Sequence,
		seg.CommittedAt,
		seg.Original,
		seg.Translated,
		seg.SourceLanguage,
		seg.TargetLanguage,
	)
	if err != nil {
		return fmt.Errorf("archive: insert segment %d: %w", seg.Sequence, err)
	}
	return nil
}

// Segments returns all archived segments for this session in commit order.
func (s *Store) Segments(ctx context.Context) ([]session.Segment, error) {
	const q = `
		SELECT sequence, committed_at, original, translated, source_language, target_language
		FROM   segments
		WHERE  session_id = $1
		ORDER  BY sequence`

	rows, err := s.pool.Query(ctx, q, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("archive: query segments: %w", err)
	}
	return collectSegments(rows)
}

// Search performs a full-text search over original and translated text
// across all archived sessions, newest first, limited to limit rows.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]session.Segment, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT sequence, committed_at, original, translated, source_language, target_language
		FROM   segments
		WHERE  to_tsvector('simple', original || ' ' || translated)
		       @@ plainto_tsquery('simple', $1)
		ORDER  BY committed_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	return collectSegments(rows)
}

func collectSegments(rows pgx.Rows) ([]session.Segment, error) {
	defer rows.Close()

	var out []session.Segment
	for rows.Next() {
		var seg session.Segment
		if err := rows.Scan(
			&seg.Sequence,
			&seg.CommittedAt,
			&seg.Original,
			&seg.Translated,
			&seg.SourceLanguage,
			&seg.TargetLanguage,
		); err != nil {
			return nil, fmt.Errorf("archive: scan segment: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate segments: %w", err)
	}
	return out, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
