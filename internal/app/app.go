// Package app assembles the probing pipeline from a Config. Both binaries
// build on it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/config"
	"github.com/hamed0406/playlistchecker/internal/notify"
	"github.com/hamed0406/playlistchecker/internal/playlist"
	"github.com/hamed0406/playlistchecker/internal/probe"
	"github.com/hamed0406/playlistchecker/internal/repo"
	"github.com/hamed0406/playlistchecker/internal/repo/memory"
	"github.com/hamed0406/playlistchecker/internal/repo/postgres"
	"github.com/hamed0406/playlistchecker/internal/scheduler"
)

type Stores struct {
	Records repo.RecordStore
	Runs    repo.RunStore
	Alerts  repo.AlertStore
	Backend string

	close func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to Postgres when a DSN is configured and falls back
// to the in-memory store otherwise.
func OpenStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	if cfg.DatabaseURL == "" {
		m := memory.New()
		logger.Info("store_selected", zap.String("backend", "memory"))
		return &Stores{Records: m, Runs: m, Alerts: m, Backend: "memory"}, nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("store_selected", zap.String("backend", "postgres"))
	return &Stores{Records: pg, Runs: pg, Alerts: pg, Backend: "postgres", close: pg.Close}, nil
}

func Thresholds(cfg config.Config) probe.Thresholds {
	return probe.Thresholds{
		MaxHops:                   cfg.MaxHops,
		HopTimeout:                cfg.HopTimeout,
		MinCompletedBytes:         cfg.MinCompletedBytes,
		MinTimedOutBytesPerSecond: cfg.MinTimedOutBPS,
	}
}

// Notifier returns nil when no webhook is configured.
func Notifier(cfg config.Config) notify.Notifier {
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		return s
	}
	return nil
}

// Pipeline holds the pieces shared by a pass and by ad-hoc probes.
type Pipeline struct {
	Downloader *probe.Downloader
	Prober     *probe.Prober
	Runner     *scheduler.Runner
}

func NewPipeline(cfg config.Config, logger *zap.Logger, stores *Stores) *Pipeline {
	d := probe.NewDownloader(cfg.UserAgent)
	p := probe.NewProber(d, Thresholds(cfg))

	ann := scheduler.NewAnnotator(logger, p, cfg.Concurrency)
	r := &scheduler.Runner{
		Logger:       logger,
		Fetcher:      &probe.RetryFetcher{Inner: d, Attempts: cfg.FetchAttempts, Backoff: cfg.FetchBackoff},
		Annotator:    ann,
		FetchTimeout: cfg.HopTimeout,
		OutputDir:    cfg.OutputDir,
		Write: playlist.WriteOptions{
			MarkFailed:         cfg.MarkFailed,
			FailedMarker:       cfg.FailedMarker,
			UseDereferencedURL: cfg.UseDereferencedURL,
		},
		Notifier: Notifier(cfg),
	}
	if stores != nil {
		ann.Results = stores.Records
		r.Runs = stores.Runs
	}
	return &Pipeline{Downloader: d, Prober: p, Runner: r}
}
