package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "iPlayTV/3.0.0"

const readBufferSize = 32 * 1024

var (
	ErrUnsupportedScheme = errors.New("unsupported protocol")
	ErrBadStatus         = errors.New("bad http status")
)

// Fetcher performs one download and never returns nil.
type Fetcher interface {
	Download(ctx context.Context, rawURL string, timeout time.Duration) *Outcome
}

type Downloader struct {
	Client    *http.Client
	UserAgent string

	now func() time.Time
}

func NewDownloader(userAgent string) *Downloader {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableKeepAlives:   true,
		DisableCompression:  true,
	}
	return &Downloader{
		// no Client.Timeout: each call carries its own deadline
		Client:    &http.Client{Transport: transport},
		UserAgent: userAgent,
		now:       time.Now,
	}
}

// Download fetches rawURL, following redirects, and returns once the body
// ends, the timeout fires, an error occurs or ctx is cancelled. A timed-out
// outcome keeps whatever arrived before the deadline.
func (d *Downloader) Download(ctx context.Context, rawURL string, timeout time.Duration) *Outcome {
	u, err := url.Parse(rawURL)
	if err != nil {
		return newOutcome(&url.URL{}).finish(StatusNetworkError, fmt.Errorf("parse url: %w", err))
	}
	out := newOutcome(u)
	if u.Scheme != "http" && u.Scheme != "https" {
		return out.finish(StatusNetworkError, fmt.Errorf("%w %s", ErrUnsupportedScheme, u.Scheme))
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return out.finish(StatusNetworkError, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return out.finish(d.classify(ctx, dctx), err)
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		out.RespURL = resp.Request.URL
	}
	out.StatusCode = resp.StatusCode
	out.pushChunk(d.clock(), nil)

	// error responses end at the headers; the body is never waited for
	if resp.StatusCode >= 400 {
		return out.finish(StatusNetworkError, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status))
	}

	buf := make([]byte, readBufferSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			out.pushChunk(d.clock(), buf[:n])
		}
		if rerr == nil {
			continue
		}
		switch {
		case errors.Is(rerr, io.EOF):
			return out.finish(StatusCompleted, nil)
		default:
			return out.finish(d.classify(ctx, dctx), rerr)
		}
	}
}

// classify maps a transport failure onto a terminal status: the caller
// going away wins over our own deadline.
func (d *Downloader) classify(parent, dctx context.Context) Status {
	if parent.Err() != nil {
		return StatusAborted
	}
	if errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return StatusTimedOut
	}
	return StatusNetworkError
}

func (d *Downloader) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}
