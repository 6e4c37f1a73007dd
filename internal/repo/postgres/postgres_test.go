package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func TestPostgresStore_Append_Latest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// unique channel per run to stay independent of earlier rows
	ch := fmt.Sprintf("http://tv.example/test-%d.m3u8", time.Now().UTC().UnixNano())
	t0 := time.Now().UTC().Truncate(time.Microsecond)
	bps := 150000.0

	first := &domain.ProbeRecord{RunID: "R1", ChannelURL: ch, Host: "tv.example", Reason: "download-error", Hops: 1, CheckedAt: t0}
	second := &domain.ProbeRecord{RunID: "R2", ChannelURL: ch, Host: "tv.example", Passed: true, BytesPerSecond: &bps, Hops: 2, CheckedAt: t0.Add(time.Second)}
	for _, r := range []*domain.ProbeRecord{first, second} {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	var row *domain.ProbeRecord
	for i := range latest {
		if latest[i].ChannelURL == ch {
			row = &latest[i]
			break
		}
	}
	if row == nil {
		t.Fatalf("latest for %s not found", ch)
	}
	if row.RunID != "R2" || !row.Passed || row.Hops != 2 {
		t.Fatalf("unexpected latest row: %+v", row)
	}
	if row.BytesPerSecond == nil || *row.BytesPerSecond != bps {
		t.Fatalf("expected throughput %v, got %v", bps, row.BytesPerSecond)
	}
}

func TestPostgresStore_Runs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id := domain.RunID(fmt.Sprintf("run-%d", time.Now().UnixNano()))
	run := &domain.Run{ID: id, Playlists: []string{"http://a/list.m3u"}, StartedAt: time.Now().UTC()}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	run.Channels, run.Passed, run.FinishedAt = 3, 2, time.Now().UTC()
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	for _, r := range runs {
		if r.ID == id {
			if r.Channels != 3 || r.Passed != 2 || len(r.Playlists) != 1 {
				t.Fatalf("unexpected run: %+v", r)
			}
			return
		}
	}
	t.Fatalf("run %s not found", id)
}
