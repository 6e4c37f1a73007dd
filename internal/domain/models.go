package domain

import "time"

type RunID string

// Run summarises one pass over a set of playlists.
type Run struct {
	ID         RunID     `json:"id"`
	Playlists  []string  `json:"playlists"`
	Channels   int       `json:"channels"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Files      []string  `json:"files,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ProbeRecord is the persisted verdict for one channel in one run.
type ProbeRecord struct {
	RunID           RunID     `json:"run_id"`
	ChannelURL      string    `json:"channel_url"`
	Host            string    `json:"host"`
	Passed          bool      `json:"passed"`
	Reason          string    `json:"reason,omitempty"`
	BytesPerSecond  *float64  `json:"bytes_per_second"` // nil when throughput is undefined
	Hops            int       `json:"hops"`
	DereferencedURL string    `json:"dereferenced_url,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
}
