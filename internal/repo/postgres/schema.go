package postgres

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS probe_records (
  id               BIGSERIAL PRIMARY KEY,
  run_id           TEXT NOT NULL,
  channel_url      TEXT NOT NULL,
  host             TEXT NOT NULL,
  passed           BOOLEAN NOT NULL,
  reason           TEXT NOT NULL,
  bytes_per_second DOUBLE PRECISION NULL,
  hops             INTEGER NOT NULL,
  dereferenced_url TEXT NOT NULL,
  checked_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_channel_time ON probe_records (channel_url, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_run          ON probe_records (run_id);

CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  playlists   TEXT[] NULL,
  channels    INTEGER NOT NULL,
  passed      INTEGER NOT NULL,
  failed      INTEGER NOT NULL,
  files       TEXT[] NULL,
  error       TEXT NOT NULL,
  started_at  TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
  channel_url  TEXT PRIMARY KEY,
  last_state   BOOLEAN NOT NULL,
  last_reason  TEXT NOT NULL DEFAULT '',
  down_since   TIMESTAMPTZ NULL,
  last_sent_at TIMESTAMPTZ NULL
);

ALTER TABLE alerts ADD COLUMN IF NOT EXISTS last_reason TEXT NOT NULL DEFAULT '';
ALTER TABLE alerts ADD COLUMN IF NOT EXISTS down_since  TIMESTAMPTZ NULL;
`

// EnsureSchema creates the tables the store needs if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if s.log != nil {
		s.log.Debug("schema_ready")
	}
	return nil
}
