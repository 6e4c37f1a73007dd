package repo

import (
	"context"

	"github.com/hamed0406/playlistchecker/internal/domain"
)

// Ports (interfaces); memory and postgres implement all three.
type RecordStore interface {
	Append(ctx context.Context, r *domain.ProbeRecord) error
	// Latest returns the most recent record per channel URL.
	Latest(ctx context.Context) ([]domain.ProbeRecord, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, r *domain.Run) error
	// Runs returns up to limit runs, newest first.
	Runs(ctx context.Context, limit int) ([]domain.Run, error)
}
