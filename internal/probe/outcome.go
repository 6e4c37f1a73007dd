package probe

import (
	"net/url"
	"time"
)

// Status is the terminal state of one download attempt.
type Status string

const (
	StatusPending      Status = ""
	StatusCompleted    Status = "completed"
	StatusNetworkError Status = "network-error"
	StatusTimedOut     Status = "timed-out"
	StatusAborted      Status = "aborted"
)

// Text sniffing looks at the first chunk holding at least textSampleLen bytes.
const textSampleLen = 10

// Chunk is one read from the response body, stamped on arrival.
// The header chunk has Len 0.
type Chunk struct {
	At  time.Time
	Len int
}

// Outcome is the result of one HTTP fetch. Once Status is set the outcome
// no longer changes.
type Outcome struct {
	ReqURL     *url.URL
	RespURL    *url.URL
	Status     Status
	StatusCode int
	Err        error

	body   []byte
	chunks []Chunk
	// set once the text sample says binary; later chunks are only logged
	binary bool
}

func newOutcome(u *url.URL) *Outcome {
	return &Outcome{ReqURL: u, RespURL: u}
}

// Done reports whether a terminal status was assigned.
func (o *Outcome) Done() bool { return o.Status != StatusPending }

func (o *Outcome) pushChunk(at time.Time, b []byte) {
	if o.Done() {
		return
	}
	o.chunks = append(o.chunks, Chunk{At: at, Len: len(b)})
	if o.binary {
		return
	}
	o.body = append(o.body, b...)
	if len(b) >= textSampleLen || o.sampled() {
		o.binary = !o.LooksLikeText()
	}
}

// sampled reports whether some chunk is long enough to sniff.
func (o *Outcome) sampled() bool {
	for _, c := range o.chunks {
		if c.Len >= textSampleLen {
			return true
		}
	}
	return false
}

func (o *Outcome) finish(s Status, err error) *Outcome {
	if o.Done() {
		return o
	}
	o.Status = s
	o.Err = err
	return o
}

// Body returns the bytes received so far. Once a body is known to be binary
// only the prefix up to and including the text sample is kept; ByteLength
// still counts every chunk.
func (o *Outcome) Body() []byte { return o.body }

// Text returns the body as a string.
func (o *Outcome) Text() string { return string(o.body) }

// ByteLength is the sum of all chunk lengths.
func (o *Outcome) ByteLength() int {
	n := 0
	for _, c := range o.chunks {
		n += c.Len
	}
	return n
}

// Chunks returns a copy of the timestamped chunk log.
func (o *Outcome) Chunks() []Chunk {
	out := make([]Chunk, len(o.chunks))
	copy(out, o.chunks)
	return out
}

// BytesPerSecond derives throughput from the first and last chunk. ok is
// false when fewer than two chunks were seen or they share a timestamp.
func (o *Outcome) BytesPerSecond() (bps float64, ok bool) {
	if len(o.chunks) < 2 {
		return 0, false
	}
	span := o.chunks[len(o.chunks)-1].At.Sub(o.chunks[0].At)
	if span <= 0 {
		return 0, false
	}
	return float64(o.ByteLength()) / span.Seconds(), true
}

// LooksLikeText samples up to 10 bytes of the first chunk that is at least
// 10 bytes long. Every sampled byte must fall in [8,128).
func (o *Outcome) LooksLikeText() bool {
	off := 0
	for _, c := range o.chunks {
		if c.Len >= textSampleLen {
			for _, b := range o.body[off : off+textSampleLen] {
				if b < 8 || b >= 128 {
					return false
				}
			}
			return true
		}
		off += c.Len
	}
	return false
}

// IsPlaylist reports whether the outcome is a completed, non-empty text body
// that should be followed as a nested playlist.
func (o *Outcome) IsPlaylist() bool {
	return o.Status == StatusCompleted && o.ByteLength() > 0 && o.LooksLikeText()
}
