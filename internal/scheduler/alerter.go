package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/notify"
	"github.com/hamed0406/playlistchecker/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
	// channels of one host going down in the same scan are sent as a
	// single host message once there are at least this many; 0 disables
	HostGroupMin int
}

type alertKind int

const (
	alertNone alertKind = iota
	alertDown
	alertReasonChanged
	alertRecovered
)

// pending is one channel's next alert state and the message it earned.
type pending struct {
	kind alertKind
	row  domain.ProbeRecord
	prev *repo.AlertRecord
	next repo.AlertRecord
}

// Alerter watches the latest verdict per channel and notifies when a
// channel goes down, fails for a new reason or comes back. Channels of one
// host that go down together are folded into one message.
type Alerter struct {
	logger   *zap.Logger
	results  repo.RecordStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	now      func() time.Time
}

func NewAlerter(
	logger *zap.Logger,
	results repo.RecordStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		logger:   logger,
		results:  results,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	if a.cfg.PollInterval <= 0 {
		return nil
	}
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.scanLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			a.scanLogged(ctx)
		}
	}
}

func (a *Alerter) scanLogged(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.logger.Warn("alert_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.Latest(ctx)
	if err != nil {
		return fmt.Errorf("latest results: %w", err)
	}
	now := a.now()

	var out []*pending
	for _, r := range rows {
		prev, err := a.alertDB.Get(ctx, r.ChannelURL)
		if err != nil {
			return fmt.Errorf("alert state %s: %w", r.ChannelURL, err)
		}
		if p := a.decide(prev, r, now); p != nil {
			out = append(out, p)
		}
	}

	// down alerts grouped per host; the rest go out one by one
	byHost := map[string][]*pending{}
	for _, p := range out {
		switch p.kind {
		case alertNone:
			a.save(ctx, p)
		case alertDown:
			byHost[p.row.Host] = append(byHost[p.row.Host], p)
		default:
			title, text := channelMessage(p)
			a.send(ctx, now, []*pending{p}, title, text)
		}
	}

	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		group := byHost[h]
		if a.cfg.HostGroupMin > 0 && len(group) >= a.cfg.HostGroupMin {
			title, text := hostMessage(h, group)
			a.send(ctx, now, group, title, text)
			continue
		}
		for _, p := range group {
			title, text := channelMessage(p)
			a.send(ctx, now, []*pending{p}, title, text)
		}
	}
	return nil
}

// decide works out the next stored state for a channel and whether it
// earned a message. It returns nil when nothing changed.
func (a *Alerter) decide(prev *repo.AlertRecord, r domain.ProbeRecord, now time.Time) *pending {
	p := &pending{row: r, prev: prev, next: repo.AlertRecord{
		ChannelURL: r.ChannelURL,
		LastState:  r.Passed,
		LastReason: r.Reason,
	}}
	if prev != nil {
		p.next.DownSince = prev.DownSince
		p.next.LastSentAt = prev.LastSentAt
	}
	cooled := prev == nil || prev.LastSentAt == nil || now.Sub(*prev.LastSentAt) >= a.cfg.Cooldown

	switch {
	case !r.Passed && (prev == nil || prev.LastState):
		at := r.CheckedAt
		p.next.DownSince = &at
		if cooled {
			p.kind = alertDown
		}
	case !r.Passed && prev.LastReason != r.Reason:
		if cooled {
			p.kind = alertReasonChanged
		}
	case r.Passed && prev == nil:
		// first sighting of a healthy channel: remember it quietly
	case r.Passed && !prev.LastState:
		p.next.DownSince = nil
		if a.cfg.AlertOnRecovery {
			p.kind = alertRecovered
		}
	default:
		return nil
	}
	return p
}

// send delivers one message for the given channels. A failed send leaves
// their stored state untouched so the next scan tries again.
func (a *Alerter) send(ctx context.Context, now time.Time, ps []*pending, title, text string) {
	if err := a.notifier.Send(ctx, title, text); err != nil {
		a.logger.Warn("alert_send_error", zap.String("title", title), zap.Int("channels", len(ps)), zap.Error(err))
		return
	}
	a.logger.Info("alert_sent", zap.String("title", title), zap.Int("channels", len(ps)))
	for _, p := range ps {
		sent := now
		p.next.LastSentAt = &sent
		a.save(ctx, p)
	}
}

func (a *Alerter) save(ctx context.Context, p *pending) {
	if err := a.alertDB.Set(ctx, &p.next); err != nil {
		a.logger.Warn("alert_state_error", zap.String("url", p.row.ChannelURL), zap.Error(err))
	}
}

func reasonOrOK(r string) string {
	if r == "" {
		return "ok"
	}
	return r
}

func channelMessage(p *pending) (title, text string) {
	r := p.row
	lines := []string{
		"URL: " + r.ChannelURL,
		"Host: " + r.Host,
	}
	switch p.kind {
	case alertDown:
		title = "🔴 Channel DOWN"
		lines = append(lines, "Reason: "+reasonOrOK(r.Reason))
	case alertReasonChanged:
		title = "🟠 Channel still DOWN"
		lines = append(lines, fmt.Sprintf("Reason: %s -> %s", reasonOrOK(p.prev.LastReason), reasonOrOK(r.Reason)))
		if p.prev.DownSince != nil {
			lines = append(lines, "Down since: "+p.prev.DownSince.Format(time.RFC3339))
		}
	case alertRecovered:
		title = "🟢 Channel RECOVERED"
		speed := "n/a"
		if r.BytesPerSecond != nil {
			speed = fmt.Sprintf("%.0f KB/s", *r.BytesPerSecond/1000)
		}
		lines = append(lines, "Speed: "+speed)
		if p.prev.DownSince != nil {
			lines = append(lines, "Down for: "+r.CheckedAt.Sub(*p.prev.DownSince).Round(time.Second).String())
		}
	}
	lines = append(lines, "Checked: "+r.CheckedAt.Format(time.RFC3339))
	return title, strings.Join(lines, "\n")
}

func hostMessage(host string, group []*pending) (title, text string) {
	title = fmt.Sprintf("🔴 %d channels DOWN on %s", len(group), host)
	sort.Slice(group, func(i, j int) bool { return group[i].row.ChannelURL < group[j].row.ChannelURL })
	lines := make([]string, 0, len(group))
	for _, p := range group {
		lines = append(lines, fmt.Sprintf("%s (%s)", p.row.ChannelURL, reasonOrOK(p.row.Reason)))
	}
	return title, strings.Join(lines, "\n")
}
