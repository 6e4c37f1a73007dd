package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeFetcher serves canned outcomes keyed by URL and records every call.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	serve func(u *url.URL) *Outcome
}

func (f *fakeFetcher) Download(ctx context.Context, rawURL string, timeout time.Duration) *Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	u, _ := url.Parse(rawURL)
	if ctx.Err() != nil {
		return newOutcome(u).finish(StatusAborted, ctx.Err())
	}
	return f.serve(u)
}

func textOutcome(u *url.URL, body string) *Outcome {
	o := newOutcome(u)
	t0 := time.Unix(0, 0)
	o.pushChunk(t0, nil)
	o.pushChunk(t0.Add(time.Millisecond), []byte(body))
	return o.finish(StatusCompleted, nil)
}

func mediaOutcome(u *url.URL, status Status, n int, span time.Duration) *Outcome {
	o := newOutcome(u)
	t0 := time.Unix(0, 0)
	o.pushChunk(t0, nil)
	if n > 0 {
		o.pushChunk(t0.Add(span), append([]byte{0x47, 0x40, 0x11}, make([]byte, n-3)...))
	}
	return o.finish(status, nil)
}

func TestProber_SingleLinePlaylist(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		if u.Path == "/live/list.m3u8" {
			return textOutcome(u, "#EXTM3U\n#EXTINF:-1,\nseg.ts\n")
		}
		return mediaOutcome(u, StatusCompleted, 40000, 100*time.Millisecond)
	}}
	p := NewProber(f, Thresholds{})
	res := p.Probe(context.Background(), "http://tv.example/live/list.m3u8", NewHostCache())

	if !res.Passed() || res.Reason != ReasonNone {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	if len(res.Downloads) != 2 {
		t.Fatalf("want 2 downloads, got %d", len(res.Downloads))
	}
	if f.calls[1] != "http://tv.example/live/seg.ts" {
		t.Fatalf("relative media line not resolved: %s", f.calls[1])
	}
}

func TestProber_TooNested(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		var n int
		fmt.Sscanf(strings.TrimPrefix(u.Path, "/"), "%d", &n)
		return textOutcome(u, fmt.Sprintf("#EXTM3U\n/%d\n", n+1))
	}}
	p := NewProber(f, Thresholds{})
	res := p.Probe(context.Background(), "http://nest.example/0", nil)

	if res.Reason != ReasonPlaylistTooNested {
		t.Fatalf("want too nested, got %q", res.Reason)
	}
	if len(res.Downloads) > 5 {
		t.Fatalf("followed %d hops", len(res.Downloads))
	}
}

func TestProber_NoMedia(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		return textOutcome(u, "#EXTM3U\n#EXT-X-VERSION:3\n\n")
	}}
	hosts := NewHostCache()
	res := NewProber(f, Thresholds{}).Probe(context.Background(), "http://empty.example/a.m3u8", hosts)

	if res.Reason != ReasonPlaylistNoMedia || res.Passed() {
		t.Fatalf("want no media, got %q", res.Reason)
	}
	if hosts.Len() != 0 {
		t.Fatalf("no-media verdict should not be cached")
	}
}

func TestProber_EmptyPlaylistAtLastHop(t *testing.T) {
	// four nested playlists, then one that lists nothing
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		var n int
		fmt.Sscanf(strings.TrimPrefix(u.Path, "/"), "%d", &n)
		if n == 4 {
			return textOutcome(u, "#EXTM3U\n#EXT-X-ENDLIST\n")
		}
		return textOutcome(u, fmt.Sprintf("#EXTM3U\n/%d\n", n+1))
	}}
	hosts := NewHostCache()
	res := NewProber(f, Thresholds{}).Probe(context.Background(), "http://nest.example/0", hosts)

	if res.Reason != ReasonPlaylistNoMedia {
		t.Fatalf("want no media, got %q", res.Reason)
	}
	if len(res.Downloads) != 5 {
		t.Fatalf("want 5 downloads, got %d", len(res.Downloads))
	}
	if hosts.Len() != 0 {
		t.Fatalf("no-media verdict should not be cached")
	}
}

func TestProber_PreviouslyChecked(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		t.Fatalf("unexpected download of %s", u)
		return nil
	}}
	hosts := NewHostCache()
	hosts.Record(false, "dead.example")
	hosts.Record(true, "alive.example")
	p := NewProber(f, Thresholds{})

	res := p.Probe(context.Background(), "http://dead.example/x.ts", hosts)
	if res.Reason != ReasonPreviouslyChecked || res.Passed() || len(res.Downloads) != 0 {
		t.Fatalf("dead host: reason=%q passed=%v downloads=%d", res.Reason, res.Passed(), len(res.Downloads))
	}

	res = p.Probe(context.Background(), "http://alive.example/x.ts", hosts)
	if res.Reason != ReasonPreviouslyChecked || !res.Passed() {
		t.Fatalf("alive host: reason=%q passed=%v", res.Reason, res.Passed())
	}
}

func TestProber_Judge(t *testing.T) {
	cases := []struct {
		name string
		out  func(*url.URL) *Outcome
		want Reason
	}{
		{
			name: "small binary",
			out: func(u *url.URL) *Outcome {
				o := newOutcome(u)
				o.pushChunk(time.Unix(0, 0), nil)
				o.pushChunk(time.Unix(0, 0), []byte{0, 0, 0, 0x1c, 0x66, 0x74, 0x79, 0x70})
				return o.finish(StatusCompleted, nil)
			},
			want: ReasonMediaTooSlow,
		},
		{
			name: "large completed",
			out:  func(u *url.URL) *Outcome { return mediaOutcome(u, StatusCompleted, 30000, time.Second) },
			want: ReasonNone,
		},
		{
			name: "fast timed out",
			out:  func(u *url.URL) *Outcome { return mediaOutcome(u, StatusTimedOut, 200000, time.Second) },
			want: ReasonNone,
		},
		{
			name: "slow timed out",
			out:  func(u *url.URL) *Outcome { return mediaOutcome(u, StatusTimedOut, 50000, time.Second) },
			want: ReasonMediaTooSlow,
		},
		{
			name: "timed out before body",
			out:  func(u *url.URL) *Outcome { return mediaOutcome(u, StatusTimedOut, 0, 0) },
			want: ReasonDownloadError,
		},
		{
			name: "network error",
			out: func(u *url.URL) *Outcome {
				return newOutcome(u).finish(StatusNetworkError, fmt.Errorf("connection refused"))
			},
			want: ReasonDownloadError,
		},
	}
	for _, c := range cases {
		f := &fakeFetcher{serve: c.out}
		hosts := NewHostCache()
		res := NewProber(f, Thresholds{}).Probe(context.Background(), "http://media.example/s.ts", hosts)
		if res.Reason != c.want {
			t.Fatalf("%s: want %q, got %q", c.name, c.want, res.Reason)
		}
		passed, ok := hosts.Get("media.example")
		if !ok || passed != (c.want == ReasonNone) {
			t.Fatalf("%s: cache entry passed=%v ok=%v", c.name, passed, ok)
		}
	}
}

func TestProber_CachesRequestAndResponseHosts(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		o := mediaOutcome(u, StatusCompleted, 40000, time.Second)
		o.RespURL = &url.URL{Scheme: "http", Host: "cdn.example", Path: "/s.ts"}
		return o
	}}
	hosts := NewHostCache()
	res := NewProber(f, Thresholds{}).Probe(context.Background(), "http://origin.example/s.ts", hosts)
	if !res.Passed() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	for _, h := range []string{"origin.example", "cdn.example"} {
		if passed, ok := hosts.Get(h); !ok || !passed {
			t.Fatalf("host %s not cached as passed", h)
		}
	}
}

func TestProber_AbortNotCached(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		t.Fatalf("download should observe cancellation")
		return nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hosts := NewHostCache()
	res := NewProber(f, Thresholds{}).Probe(ctx, "http://media.example/s.ts", hosts)
	if res.Reason != ReasonDownloadError {
		t.Fatalf("want download error, got %q", res.Reason)
	}
	if hosts.Len() != 0 {
		t.Fatalf("aborted probe should not be cached")
	}
}

func TestProber_DereferencedURL(t *testing.T) {
	f := &fakeFetcher{serve: func(u *url.URL) *Outcome {
		switch u.Path {
		case "/start.m3u8":
			return textOutcome(u, "#EXTM3U\n/variant.m3u8\n")
		case "/variant.m3u8":
			return textOutcome(u, "#EXTM3U\n/a.ts\n/b.ts\n")
		}
		return mediaOutcome(u, StatusCompleted, 40000, time.Second)
	}}
	res := NewProber(f, Thresholds{}).Probe(context.Background(), "http://tv.example/start.m3u8", nil)
	if !res.Passed() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	if got := res.DereferencedURL(); got != "http://tv.example/variant.m3u8" {
		t.Fatalf("dereferenced url = %q", got)
	}
}

func TestProber_OverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.handle("/top.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:-1,\n/redirect?url=" + url.QueryEscape(ts.URL+"/stream.ts") + "\n"))
	})
	ts.handle("/stream.ts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(append([]byte{0x47, 0x40, 0x11, 0x10}, make([]byte, 40000)...))
	})

	hosts := NewHostCache()
	p := NewProber(NewDownloader(""), Thresholds{HopTimeout: 2 * time.Second})
	res := p.Probe(context.Background(), ts.direct("/top.m3u8"), hosts)
	if !res.Passed() {
		t.Fatalf("want pass, got %q", res.Reason)
	}
	if len(res.Downloads) != 2 {
		t.Fatalf("want 2 downloads, got %d", len(res.Downloads))
	}
	if last := res.Last(); last.RespURL.Path != "/stream.ts" {
		t.Fatalf("redirect not followed: %s", last.RespURL)
	}
	if hosts.Len() != 1 {
		t.Fatalf("want one cached host, got %d", hosts.Len())
	}
}
