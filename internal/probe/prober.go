package probe

import (
	"context"
	"net/url"
	"time"
)

// Thresholds tune how a probe resolves and judges a channel.
type Thresholds struct {
	MaxHops    int
	HopTimeout time.Duration
	// a completed media download passes at this size
	MinCompletedBytes int
	// a timed-out media download passes at this throughput
	MinTimedOutBytesPerSecond float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxHops:                   5,
		HopTimeout:                10 * time.Second,
		MinCompletedBytes:         30000,
		MinTimedOutBytesPerSecond: 100000,
	}
}

// Prober resolves a channel URL through nested playlists down to a media
// stream and judges whether it is watchable.
type Prober struct {
	Fetcher    Fetcher
	Thresholds Thresholds
}

func NewProber(f Fetcher, t Thresholds) *Prober {
	d := DefaultThresholds()
	if t.MaxHops < 1 {
		t.MaxHops = d.MaxHops
	}
	if t.HopTimeout <= 0 {
		t.HopTimeout = d.HopTimeout
	}
	if t.MinCompletedBytes <= 0 {
		t.MinCompletedBytes = d.MinCompletedBytes
	}
	if t.MinTimedOutBytesPerSecond <= 0 {
		t.MinTimedOutBytesPerSecond = d.MinTimedOutBytesPerSecond
	}
	return &Prober{Fetcher: f, Thresholds: t}
}

// resolving is the non-terminal state: the next URL to fetch and its hop index.
type resolving struct {
	hop int
	url string
}

// Probe always returns a Result; failures are reported through Result.Reason.
// hosts may be nil.
func (p *Prober) Probe(ctx context.Context, startURL string, hosts *HostCache) *Result {
	res := &Result{}
	state := resolving{hop: 0, url: startURL}

	for {
		if passed, ok := hosts.Get(hostname(state.url)); ok {
			return res.shortCircuit(passed)
		}

		out := p.Fetcher.Download(ctx, state.url, p.Thresholds.HopTimeout)
		res.Downloads = append(res.Downloads, out)

		if out.Status == StatusAborted {
			return res.fail(ReasonDownloadError)
		}
		if !out.IsPlaylist() {
			return p.judge(res, out, hosts)
		}

		// an empty playlist is no-media at any depth
		next, ok := nextHop(out)
		if !ok {
			return res.fail(ReasonPlaylistNoMedia)
		}
		if state.hop+1 >= p.Thresholds.MaxHops {
			return p.judge(res, out, hosts)
		}
		state = resolving{hop: state.hop + 1, url: next}
	}
}

// judge classifies the terminal download and records the verdict under both
// the request and the response hostname.
func (p *Prober) judge(res *Result, out *Outcome, hosts *HostCache) *Result {
	switch {
	case out.Status == StatusNetworkError || out.ByteLength() == 0:
		res.Reason = ReasonDownloadError
	case out.LooksLikeText():
		res.Reason = ReasonPlaylistTooNested
	case p.fastEnough(out):
		res.Reason = ReasonNone
	default:
		res.Reason = ReasonMediaTooSlow
	}
	hosts.Record(res.Passed(), urlHost(out.ReqURL), urlHost(out.RespURL))
	return res
}

func (p *Prober) fastEnough(out *Outcome) bool {
	switch out.Status {
	case StatusCompleted:
		return out.ByteLength() >= p.Thresholds.MinCompletedBytes
	case StatusTimedOut:
		bps, ok := out.BytesPerSecond()
		return ok && bps >= p.Thresholds.MinTimedOutBytesPerSecond
	}
	return false
}

// nextHop resolves the first media line of a playlist body against the
// URL the body was served from.
func nextHop(out *Outcome) (string, bool) {
	line, ok := firstMediaLine(out.Text())
	if !ok {
		return "", false
	}
	ref, err := url.Parse(line)
	if err != nil {
		return "", false
	}
	base := out.RespURL
	if base == nil {
		base = out.ReqURL
	}
	if base == nil {
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func urlHost(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Hostname()
}
