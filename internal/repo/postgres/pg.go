package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/repo"
)

var _ repo.RecordStore = (*Store)(nil)
var _ repo.RunStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- RecordStore ----

func (s *Store) Append(ctx context.Context, r *domain.ProbeRecord) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO probe_records
		   (run_id, channel_url, host, passed, reason, bytes_per_second, hops, dereferenced_url, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(r.RunID), r.ChannelURL, r.Host, r.Passed, r.Reason,
		r.BytesPerSecond, r.Hops, r.DereferencedURL, r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.ProbeRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (channel_url)
       run_id,
       channel_url,
       host,
       passed,
       reason,
       bytes_per_second,
       hops,
       dereferenced_url,
       checked_at
  FROM probe_records
 ORDER BY channel_url, checked_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []domain.ProbeRecord
	for rows.Next() {
		var (
			r     domain.ProbeRecord
			runID string
			bps   *float64
		)
		if err := rows.Scan(&runID, &r.ChannelURL, &r.Host, &r.Passed, &r.Reason,
			&bps, &r.Hops, &r.DereferencedURL, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		r.RunID = domain.RunID(runID)
		r.BytesPerSecond = bps
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- RunStore ----

func (s *Store) SaveRun(ctx context.Context, r *domain.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs
		   (id, playlists, channels, passed, failed, files, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   playlists=EXCLUDED.playlists, channels=EXCLUDED.channels,
		   passed=EXCLUDED.passed, failed=EXCLUDED.failed, files=EXCLUDED.files,
		   error=EXCLUDED.error, started_at=EXCLUDED.started_at, finished_at=EXCLUDED.finished_at`,
		string(r.ID), r.Playlists, r.Channels, r.Passed, r.Failed, r.Files, r.Error,
		r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) Runs(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, playlists, channels, passed, failed, files, error, started_at, finished_at
		   FROM runs
		  ORDER BY started_at DESC, id DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		var (
			r  domain.Run
			id string
		)
		if err := rows.Scan(&id, &r.Playlists, &r.Channels, &r.Passed, &r.Failed,
			&r.Files, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ID = domain.RunID(id)
		out = append(out, r)
	}
	return out, rows.Err()
}
