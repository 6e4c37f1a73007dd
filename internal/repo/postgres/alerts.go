package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/playlistchecker/internal/repo"
)

var _ repo.AlertStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, channelURL string) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_reason, down_since, last_sent_at FROM alerts WHERE channel_url=$1`
	r := repo.AlertRecord{ChannelURL: channelURL}
	err := s.pool.QueryRow(ctx, q, channelURL).Scan(&r.LastState, &r.LastReason, &r.DownSince, &r.LastSentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &r, nil
}

func (s *Store) Set(ctx context.Context, rec *repo.AlertRecord) error {
	const q = `
		INSERT INTO alerts (channel_url, last_state, last_reason, down_since, last_sent_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (channel_url)
		DO UPDATE SET last_state=EXCLUDED.last_state, last_reason=EXCLUDED.last_reason,
			down_since=EXCLUDED.down_since, last_sent_at=EXCLUDED.last_sent_at
	`
	if _, err := s.pool.Exec(ctx, q, rec.ChannelURL, rec.LastState, rec.LastReason, rec.DownSince, rec.LastSentAt); err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
