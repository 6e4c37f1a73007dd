package repo

import (
	"context"
	"time"
)

// AlertRecord is the alerter's memory of one channel: the last verdict it
// saw, why it failed, when the current outage began and when it last sent a
// message (for cooldown).
type AlertRecord struct {
	ChannelURL string
	LastState  bool
	LastReason string
	DownSince  *time.Time
	LastSentAt *time.Time
}

// AlertStore is implemented by a persistence layer to store alert state.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, channelURL string) (*AlertRecord, error)
	// Set upserts the record keyed by ChannelURL. Nil times are stored as NULL.
	Set(ctx context.Context, rec *AlertRecord) error
}
