package probe

import (
	"bufio"
	"strings"
)

// Reason explains why a channel failed. The zero value means no failure.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonPlaylistNoMedia   Reason = "playlist-has-no-media"
	ReasonPlaylistTooNested Reason = "playlist-too-nested"
	ReasonMediaTooSlow      Reason = "media-too-slow"
	ReasonDownloadError     Reason = "download-error"
	ReasonPreviouslyChecked Reason = "previously-checked"
)

// Result is the end-to-end outcome of probing one channel.
type Result struct {
	Downloads []*Outcome
	Reason    Reason

	// verdict found in the host cache; only meaningful with ReasonPreviouslyChecked
	cachedPassed bool
}

// Passed is true when no failure reason is set, or when the probe was cut
// short by a cached verdict that was itself a pass.
func (r *Result) Passed() bool {
	if r.Reason == ReasonPreviouslyChecked {
		return r.cachedPassed
	}
	return r.Reason == ReasonNone
}

// Last returns the most recent download, or nil.
func (r *Result) Last() *Outcome {
	if len(r.Downloads) == 0 {
		return nil
	}
	return r.Downloads[len(r.Downloads)-1]
}

// BytesPerSecond is the throughput of the last download, if measurable.
func (r *Result) BytesPerSecond() (float64, bool) {
	if last := r.Last(); last != nil {
		return last.BytesPerSecond()
	}
	return 0, false
}

// DereferencedURL walks the chain of single-entry playlists from the first
// download and returns the response URL of the deepest one that still points
// at another playlist. Media URLs are never returned. The result is empty
// unless the probe passed and the URL differs from the first request.
func (r *Result) DereferencedURL() string {
	if !r.Passed() || len(r.Downloads) == 0 {
		return ""
	}
	i := 0
	for i+1 < len(r.Downloads) {
		cur, next := r.Downloads[i], r.Downloads[i+1]
		if !cur.IsPlaylist() || !next.IsPlaylist() || countMediaLines(cur.Text()) != 1 {
			break
		}
		i++
	}
	resp, req := r.Downloads[i].RespURL, r.Downloads[0].ReqURL
	if resp == nil || req == nil || resp.String() == req.String() {
		return ""
	}
	return resp.String()
}

func (r *Result) shortCircuit(passed bool) *Result {
	r.Reason = ReasonPreviouslyChecked
	r.cachedPassed = passed
	return r
}

func (r *Result) fail(reason Reason) *Result {
	r.Reason = reason
	return r
}

// mediaLines yields the non-blank, non-comment lines of a playlist body.
func mediaLines(text string, yield func(line string) bool) {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !yield(line) {
			return
		}
	}
}

func firstMediaLine(text string) (string, bool) {
	var found string
	mediaLines(text, func(line string) bool {
		found = line
		return false
	})
	return found, found != ""
}

func countMediaLines(text string) int {
	n := 0
	mediaLines(text, func(string) bool {
		n++
		return true
	})
	return n
}
