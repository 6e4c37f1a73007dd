package playlist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/playlistchecker/internal/probe"
)

var ErrNotPlaylist = errors.New("not a playlist")

// List is a parsed playlist file.
type List struct {
	URL        string
	HeaderText string
	Channels   []*Channel
}

// Parse splits playlist text into a header and channels. Header lines run
// until the first media start or URL line. Channel URLs are resolved against
// listURL.
func Parse(text, listURL string) *List {
	base, _ := url.Parse(listURL)
	l := &List{URL: listURL}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	i := 0
	var header []string
	for ; i < len(lines); i++ {
		if isMediaStart(lines[i]) || !strings.HasPrefix(lines[i], "#") {
			break
		}
		header = append(header, lines[i])
	}
	l.HeaderText = strings.Join(header, "\n")

	for i < len(lines) {
		n, ok := channelSpan(lines[i:])
		if ok {
			c := newChannel(lines[i : i+n])
			c.URL = resolve(base, c.RawURL)
			l.Channels = append(l.Channels, c)
		}
		i += n
	}
	return l
}

// channelSpan returns how many lines belong to the channel starting at
// lines[0], and whether a URL line was among them. A channel ends before the
// second URL line or before a media start that follows its URL.
func channelSpan(lines []string) (int, bool) {
	seen := false
	for i, line := range lines {
		comment := strings.HasPrefix(line, "#")
		if seen && (!comment || isMediaStart(line)) {
			return i, true
		}
		if !comment {
			seen = true
		}
	}
	return len(lines), seen
}

func resolve(base *url.URL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme == "" {
		return ""
	}
	return ref.String()
}

type WriteOptions struct {
	// keep failed and unprobed channels with FailedMarker prefixed to name and group
	MarkFailed         bool
	FailedMarker       string
	UseDereferencedURL bool
}

// Render returns the header followed by the channels that passed.
func (l *List) Render(opts WriteOptions) string {
	texts := []string{l.HeaderText}
	for _, c := range l.Channels {
		co := ComposeOptions{UseDereferencedURL: opts.UseDereferencedURL}
		if !c.Passed() {
			if !opts.MarkFailed {
				continue
			}
			co.ChannelName = opts.FailedMarker + c.Name
			if c.Group != "" {
				co.ChannelGroup = opts.FailedMarker + c.Group
			}
		}
		texts = append(texts, c.ComposeText(co))
	}
	return strings.Join(texts, "\n")
}

// Counts returns how many channels passed and how many did not.
func (l *List) Counts() (passed, failed int) {
	for _, c := range l.Channels {
		if c.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// OutputFilenames derives one file name per playlist URL from the last path
// element without its extension. Repeated names get a counter suffix.
func OutputFilenames(urls []string) []string {
	out := make([]string, len(urls))
	seen := make(map[string]int, len(urls))
	for i, raw := range urls {
		base := ""
		if u, err := url.Parse(raw); err == nil {
			name := path.Base(u.Path)
			if name != "." && name != "/" {
				base = strings.TrimSuffix(name, path.Ext(name))
			}
		}
		if base == "" {
			base = "no-name"
		}
		seen[base]++
		if n := seen[base]; n >= 2 {
			base += strconv.Itoa(n)
		}
		out[i] = base + ".m3u8"
	}
	return out
}

// WriteFiles writes each list to dir under the matching name. It keeps going
// after a failed file and returns the combined error.
func WriteFiles(dir string, lists []*List, names []string, opts WriteOptions) error {
	if len(lists) != len(names) {
		return fmt.Errorf("write playlists: %d lists but %d names", len(lists), len(names))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	var err error
	for i, l := range lists {
		p := filepath.Join(dir, names[i])
		if werr := os.WriteFile(p, []byte(l.Render(opts)), 0o644); werr != nil {
			err = multierr.Append(err, fmt.Errorf("write %s: %w", p, werr))
		}
	}
	return err
}

// Fetch downloads and parses a playlist. Anything but a completed text body
// is ErrNotPlaylist.
func Fetch(ctx context.Context, f probe.Fetcher, rawURL string, timeout time.Duration) (*List, error) {
	out := f.Download(ctx, rawURL, timeout)
	if out.Status != probe.StatusCompleted || !out.LooksLikeText() {
		if out.Err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrNotPlaylist, rawURL, out.Status, out.Err)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrNotPlaylist, rawURL, out.Status)
	}
	base := rawURL
	if out.RespURL != nil {
		base = out.RespURL.String()
	}
	return Parse(out.Text(), base), nil
}
