package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/repo"
)

type Store struct {
	mu      sync.RWMutex
	records []*domain.ProbeRecord
	runs    []*domain.Run
	alerts  map[string]repo.AlertRecord
}

func New() *Store {
	return &Store{
		records: make([]*domain.ProbeRecord, 0, 128),
		alerts:  make(map[string]repo.AlertRecord),
	}
}

// ---- RecordStore ----

func (m *Store) Append(ctx context.Context, r *domain.ProbeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.ProbeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[string]*domain.ProbeRecord)
	for _, r := range m.records {
		cur := latest[r.ChannelURL]
		if cur == nil || !r.CheckedAt.Before(cur.CheckedAt) {
			latest[r.ChannelURL] = r
		}
	}

	out := make([]domain.ProbeRecord, 0, len(latest))
	for _, r := range latest {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelURL < out[j].ChannelURL })
	return out, nil
}

// ---- RunStore ----

func (m *Store) SaveRun(ctx context.Context, r *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	for i, old := range m.runs {
		if old.ID == r.ID {
			m.runs[i] = &cp
			return nil
		}
	}
	m.runs = append(m.runs, &cp)
	return nil
}

func (m *Store) Runs(ctx context.Context, limit int) ([]domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *m.runs[i])
	}
	return out, nil
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, channelURL string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[channelURL]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, rec *repo.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[rec.ChannelURL] = *rec
	return nil
}
