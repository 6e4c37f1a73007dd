package scheduler

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/playlist"
	"github.com/hamed0406/playlistchecker/internal/probe"
	"github.com/hamed0406/playlistchecker/internal/repo"
)

const DefaultConcurrency = 5

type ChannelProber interface {
	Probe(ctx context.Context, startURL string, hosts *probe.HostCache) *probe.Result
}

// Annotator probes a batch of channels with bounded concurrency and writes
// each verdict back onto its channel.
type Annotator struct {
	Logger      *zap.Logger
	Prober      ChannelProber
	Concurrency int

	// optional
	Results repo.RecordStore
	RunID   domain.RunID
	Rand    *rand.Rand
}

func NewAnnotator(logger *zap.Logger, prober ChannelProber, concurrency int) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Annotator{Logger: logger, Prober: prober, Concurrency: concurrency}
}

type Summary struct {
	Probed   int            `json:"probed"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"` // no usable URL
	ByReason map[string]int `json:"by_reason"`
}

func (s *Summary) add(res *probe.Result) {
	s.Probed++
	if res.Passed() {
		s.Passed++
	} else {
		s.Failed++
	}
	if res.Reason != probe.ReasonNone {
		s.ByReason[string(res.Reason)]++
	}
}

// Annotate returns once every channel with a URL has been probed. Channels
// are probed in random order and share one host cache.
func (a *Annotator) Annotate(ctx context.Context, channels []*playlist.Channel) Summary {
	sum := Summary{ByReason: map[string]int{}}

	todo := make([]*playlist.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.URL == "" {
			sum.Skipped++
			continue
		}
		todo = append(todo, ch)
	}
	if len(todo) == 0 {
		return sum
	}
	a.shuffle(todo)

	concurrency := a.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	hosts := probe.NewHostCache()
	sem := make(chan struct{}, concurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, channel := range todo {
		ch := channel
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()

			res := a.probeOne(ctx, ch, hosts)
			ch.FillInProbeResult(res)
			a.logResult(ch, res)
			a.persist(ctx, ch, res)

			mu.Lock()
			sum.add(res)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return sum
}

func (a *Annotator) shuffle(chs []*playlist.Channel) {
	swap := func(i, j int) { chs[i], chs[j] = chs[j], chs[i] }
	if a.Rand != nil {
		a.Rand.Shuffle(len(chs), swap)
		return
	}
	rand.Shuffle(len(chs), swap)
}

// probeOne isolates a panicking probe to its own channel.
func (a *Annotator) probeOne(ctx context.Context, ch *playlist.Channel, hosts *probe.HostCache) (res *probe.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error("probe_panic",
				zap.String("url", ch.URL),
				zap.Any("panic", r),
			)
			res = &probe.Result{Reason: probe.ReasonDownloadError}
		}
	}()
	return a.Prober.Probe(ctx, ch.URL, hosts)
}

func (a *Annotator) logResult(ch *playlist.Channel, res *probe.Result) {
	fields := []zap.Field{
		zap.String("host", hostOf(ch.URL)),
		zap.String("url", ch.URL),
		zap.Bool("passed", res.Passed()),
	}
	if bps, ok := res.BytesPerSecond(); ok && res.Passed() && res.Reason == probe.ReasonNone {
		fields = append(fields, zap.Int64("kbps", int64(math.Round(bps/1000))))
	} else {
		fields = append(fields, zap.String("reason", string(res.Reason)))
	}
	a.Logger.Info("channel_probed", fields...)
}

func (a *Annotator) persist(ctx context.Context, ch *playlist.Channel, res *probe.Result) {
	if a.Results == nil {
		return
	}
	rec := NewRecord(a.RunID, ch.URL, res, time.Now().UTC())
	if err := a.Results.Append(ctx, rec); err != nil {
		a.Logger.Warn("record_append_error",
			zap.String("url", ch.URL),
			zap.Error(err),
		)
	}
}
