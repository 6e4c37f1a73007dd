package playlist

import (
	"regexp"
	"strings"

	"github.com/hamed0406/playlistchecker/internal/probe"
)

const (
	urlSlot   = "{{URL}}"
	nameSlot  = "{{NAME}}"
	groupSlot = "{{GROUP}}"
)

var (
	groupRe = regexp.MustCompile(`\b(group-title=['"])(.*?)(['"])`)
	nameRe  = regexp.MustCompile(`,([^,=]*)$`)
)

// Channel is one entry of a playlist: a run of lines holding exactly one URL
// line. Its text is kept as a pattern so it can be written back with a
// different URL, name or group.
type Channel struct {
	// URL resolved against the playlist URL; empty when it cannot be resolved.
	URL    string
	RawURL string
	Name   string
	Group  string

	ProbePassed     *bool
	DereferencedURL string

	textPattern string
}

func isMediaStart(line string) bool {
	return strings.HasPrefix(line, "#EXTINF:") || strings.HasPrefix(line, "#EXT-X-STREAM-INF:")
}

// newChannel expects trimmed lines containing exactly one URL line.
func newChannel(lines []string) *Channel {
	c := &Channel{}
	pattern := make([]string, len(lines))
	for i, line := range lines {
		if !strings.HasPrefix(line, "#") {
			c.RawURL = line
			line = urlSlot
		}
		if isMediaStart(line) {
			if m := groupRe.FindStringSubmatchIndex(line); m != nil {
				c.Group = line[m[4]:m[5]]
				line = line[:m[4]] + groupSlot + line[m[5]:]
			}
			if m := nameRe.FindStringSubmatchIndex(line); m != nil {
				c.Name = strings.TrimSpace(line[m[2]:m[3]])
				line = line[:m[2]] + nameSlot
			}
		}
		pattern[i] = line
	}
	c.textPattern = strings.Join(pattern, "\n")
	return c
}

// Passed reports whether the channel was probed and passed.
func (c *Channel) Passed() bool {
	return c.ProbePassed != nil && *c.ProbePassed
}

// FillInProbeResult stores the verdict of a probe on the channel.
func (c *Channel) FillInProbeResult(r *probe.Result) {
	passed := r.Passed()
	c.ProbePassed = &passed
	c.DereferencedURL = r.DereferencedURL()
}

type ComposeOptions struct {
	ChannelName        string
	ChannelGroup       string
	UseDereferencedURL bool
}

// ComposeText renders the channel back to playlist lines.
func (c *Channel) ComposeText(opts ComposeOptions) string {
	u := c.RawURL
	if opts.UseDereferencedURL && c.DereferencedURL != "" {
		u = c.DereferencedURL
	}
	name := c.Name
	if opts.ChannelName != "" {
		name = opts.ChannelName
	}
	group := c.Group
	if opts.ChannelGroup != "" {
		group = opts.ChannelGroup
	}
	r := strings.NewReplacer(urlSlot, u, nameSlot, name, groupSlot, group)
	return r.Replace(c.textPattern)
}

// Text is the channel as it was parsed.
func (c *Channel) Text() string {
	return c.ComposeText(ComposeOptions{})
}
