package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/notify"
	"github.com/hamed0406/playlistchecker/internal/playlist"
	"github.com/hamed0406/playlistchecker/internal/probe"
	"github.com/hamed0406/playlistchecker/internal/repo"
)

var (
	ErrRunInProgress = errors.New("run in progress")
	ErrNoPlaylists   = errors.New("no playlists configured")
)

// Runner performs a full pass: fetch playlists, probe every channel, write
// the filtered playlists and report.
type Runner struct {
	Logger       *zap.Logger
	Fetcher      probe.Fetcher
	Annotator    *Annotator
	FetchTimeout time.Duration
	OutputDir    string
	Write        playlist.WriteOptions

	// optional
	Runs     repo.RunStore
	Notifier notify.Notifier

	mu      sync.Mutex
	running bool
}

type RunReport struct {
	Run     domain.Run `json:"run"`
	Summary Summary    `json:"summary"`
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Runner) begin(urls []string) (*domain.Run, error) {
	if len(urls) == 0 {
		return nil, ErrNoPlaylists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil, ErrRunInProgress
	}
	r.running = true
	return &domain.Run{
		ID:        domain.RunID(uuid.NewString()),
		Playlists: append([]string(nil), urls...),
		StartedAt: time.Now().UTC(),
	}, nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// RunOnce blocks until the run finishes. The report is returned even when
// err is set, unless the run never started.
func (r *Runner) RunOnce(ctx context.Context, urls []string) (*RunReport, error) {
	run, err := r.begin(urls)
	if err != nil {
		return nil, err
	}
	defer r.end()
	return r.execute(ctx, run)
}

// Start launches a run in the background and returns its ID.
func (r *Runner) Start(ctx context.Context, urls []string) (domain.RunID, error) {
	run, err := r.begin(urls)
	if err != nil {
		return "", err
	}
	go func() {
		defer r.end()
		if _, err := r.execute(ctx, run); err != nil {
			r.Logger.Warn("run_failed", zap.String("run_id", string(run.ID)), zap.Error(err))
		}
	}()
	return run.ID, nil
}

func (r *Runner) execute(ctx context.Context, run *domain.Run) (*RunReport, error) {
	log := r.Logger.With(zap.String("run_id", string(run.ID)))
	log.Info("run_started", zap.Strings("playlists", run.Playlists))
	r.saveRun(ctx, run)

	rep := &RunReport{Summary: Summary{ByReason: map[string]int{}}}

	lists, err := r.fetchAll(ctx, run.Playlists)
	if err != nil {
		run.Error = err.Error()
		r.finish(ctx, log, run, rep)
		return rep, err
	}

	var channels []*playlist.Channel
	for _, l := range lists {
		channels = append(channels, l.Channels...)
	}

	ann := *r.Annotator
	ann.RunID = run.ID
	rep.Summary = ann.Annotate(ctx, channels)

	names := playlist.OutputFilenames(run.Playlists)
	werr := playlist.WriteFiles(r.OutputDir, lists, names, r.Write)
	if werr == nil {
		for _, n := range names {
			run.Files = append(run.Files, filepath.Join(r.OutputDir, n))
		}
	} else {
		run.Error = werr.Error()
	}
	if ctx.Err() != nil {
		werr = multierr.Append(werr, ctx.Err())
	}

	run.Channels = len(channels)
	run.Passed = rep.Summary.Passed
	run.Failed = run.Channels - run.Passed
	r.finish(ctx, log, run, rep)
	return rep, werr
}

// fetchAll downloads every playlist concurrently; the first failure cancels
// the rest.
func (r *Runner) fetchAll(ctx context.Context, urls []string) ([]*playlist.List, error) {
	timeout := r.FetchTimeout
	if timeout <= 0 {
		timeout = probe.DefaultThresholds().HopTimeout
	}
	lists := make([]*playlist.List, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			l, err := playlist.Fetch(gctx, r.Fetcher, u, timeout)
			if err != nil {
				return fmt.Errorf("fetch playlist: %w", err)
			}
			lists[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, run *domain.Run, rep *RunReport) {
	run.FinishedAt = time.Now().UTC()
	rep.Run = *run
	r.saveRun(ctx, run)

	log.Info("run_finished",
		zap.Int("channels", run.Channels),
		zap.Int("passed", run.Passed),
		zap.Int("failed", run.Failed),
		zap.Int("skipped", rep.Summary.Skipped),
		zap.Strings("files", run.Files),
		zap.String("error", run.Error),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)),
	)

	if r.Notifier != nil {
		title, text := notify.RunSummary(run, rep.Summary.ByReason)
		// the run context may already be cancelled
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.Notifier.Send(nctx, title, text); err != nil {
			log.Warn("notify_error", zap.Error(err))
		}
	}
}

func (r *Runner) saveRun(ctx context.Context, run *domain.Run) {
	if r.Runs == nil {
		return
	}
	if err := r.Runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		r.Logger.Warn("run_save_error", zap.String("run_id", string(run.ID)), zap.Error(err))
	}
}
