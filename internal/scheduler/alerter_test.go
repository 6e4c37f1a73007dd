package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/domain"
	"github.com/hamed0406/playlistchecker/internal/repo/memory"
)

func record(ch string, passed bool, reason string) *domain.ProbeRecord {
	return &domain.ProbeRecord{
		ChannelURL: ch,
		Host:       "tv.example",
		Passed:     passed,
		Reason:     reason,
		CheckedAt:  time.Now().UTC(),
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Send(ctx context.Context, title, text string) error {
	f.calls++
	return errors.New("webhook unavailable")
}

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        time.Minute,
		PollInterval:    10 * time.Millisecond,
	})

	_ = store.Append(ctx, record("http://tv.example/a", false, "media-too-slow"))

	// first scan -> should alert
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 1 || !strings.Contains(nt.title, "DOWN") || !strings.Contains(nt.text, "media-too-slow") {
		t.Fatalf("want 1 down alert, got n=%d title=%q", nt.n, nt.title)
	}

	// same DOWN again -> no new alert
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 1 {
		t.Fatalf("want no repeat, got %d", nt.n)
	}

	// flip to passing -> recovery alert
	time.Sleep(time.Millisecond)
	bps := 250000.0
	up := record("http://tv.example/a", true, "")
	up.BytesPerSecond = &bps
	_ = store.Append(ctx, up)
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 2 || !strings.Contains(nt.title, "RECOVERED") || !strings.Contains(nt.text, "250 KB/s") {
		t.Fatalf("want recovery alert, got n=%d title=%q text=%q", nt.n, nt.title, nt.text)
	}
	if !strings.Contains(nt.text, "Down for: ") {
		t.Fatalf("recovery should carry the outage length: %q", nt.text)
	}
	st, _ := store.Get(ctx, "http://tv.example/a")
	if st == nil || !st.LastState || st.DownSince != nil {
		t.Fatalf("state after recovery = %+v", st)
	}
}

func TestAlerter_FirstPassingSightingIsSilent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{AlertOnRecovery: true})

	_ = store.Append(ctx, record("http://tv.example/b", true, ""))
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 0 {
		t.Fatalf("unexpected alert: %d", nt.n)
	}
	if st, _ := store.Get(ctx, "http://tv.example/b"); st == nil || !st.LastState || st.LastSentAt != nil {
		t.Fatalf("healthy channel should be remembered without a send: %+v", st)
	}

	// go DOWN -> should alert
	time.Sleep(time.Millisecond)
	_ = store.Append(ctx, record("http://tv.example/b", false, "download-error"))
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 1 {
		t.Fatalf("want one down alert, got %d", nt.n)
	}
}

func TestAlerter_ReasonChangeWhileDown(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{})

	first := record("http://tv.example/c", false, "download-error")
	_ = store.Append(ctx, first)
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 1 {
		t.Fatalf("want down alert, got %d", nt.n)
	}

	time.Sleep(time.Millisecond)
	_ = store.Append(ctx, record("http://tv.example/c", false, "media-too-slow"))
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 2 || !strings.Contains(nt.title, "still DOWN") {
		t.Fatalf("want reason change alert, got n=%d title=%q", nt.n, nt.title)
	}
	if !strings.Contains(nt.text, "download-error -> media-too-slow") {
		t.Fatalf("text should show both reasons: %q", nt.text)
	}
	if !strings.Contains(nt.text, first.CheckedAt.Format(time.RFC3339)) {
		t.Fatalf("down-since should stay at the first failure: %q", nt.text)
	}

	// same reason again is quiet
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 2 {
		t.Fatalf("want no repeat, got %d", nt.n)
	}
}

func TestAlerter_ReasonChangeHonoursCooldown(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{Cooldown: time.Hour})

	_ = store.Append(ctx, record("http://tv.example/d", false, "download-error"))
	_ = al.scanOnce(ctx)
	time.Sleep(time.Millisecond)
	_ = store.Append(ctx, record("http://tv.example/d", false, "playlist-no-media"))
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 1 {
		t.Fatalf("reason change inside cooldown should be quiet, got %d sends", nt.n)
	}
	st, _ := store.Get(ctx, "http://tv.example/d")
	if st == nil || st.LastReason != "playlist-no-media" {
		t.Fatalf("stored reason should still advance: %+v", st)
	}
}

func TestAlerter_FoldsHostOutage(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{HostGroupMin: 3})

	for _, p := range []string{"/1", "/2", "/3"} {
		_ = store.Append(ctx, record("http://tv.example"+p, false, "download-error"))
	}
	other := record("http://other.example/x", false, "media-too-slow")
	other.Host = "other.example"
	_ = store.Append(ctx, other)

	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if nt.n != 2 {
		t.Fatalf("want one host message and one channel message, got %d", nt.n)
	}
	// hosts are sent in order, so the last message is tv.example's
	if nt.title != "🔴 3 channels DOWN on tv.example" {
		t.Fatalf("title = %q", nt.title)
	}
	for _, p := range []string{"/1", "/2", "/3"} {
		if !strings.Contains(nt.text, "http://tv.example"+p+" (download-error)") {
			t.Fatalf("host message missing %s: %q", p, nt.text)
		}
		st, _ := store.Get(ctx, "http://tv.example"+p)
		if st == nil || st.LastSentAt == nil || st.DownSince == nil {
			t.Fatalf("grouped channel %s not marked sent: %+v", p, st)
		}
	}
}

func TestAlerter_FailedSendRetriesNextScan(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	bad := &failingNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, bad, AlerterConfig{})

	_ = store.Append(ctx, record("http://tv.example/e", false, "download-error"))
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if st, _ := store.Get(ctx, "http://tv.example/e"); st != nil {
		t.Fatalf("failed send should not store state: %+v", st)
	}

	nt := &memNotifier{}
	al.notifier = nt
	if err := al.scanOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if bad.calls != 1 || nt.n != 1 || !strings.Contains(nt.title, "DOWN") {
		t.Fatalf("want the down alert retried, got failed=%d sent=%d", bad.calls, nt.n)
	}
}

func TestAlerter_RunDisabledWithoutInterval(t *testing.T) {
	store := memory.New()
	al := NewAlerter(nil, store, store, &memNotifier{}, AlerterConfig{})
	if err := al.Run(context.Background()); err != nil {
		t.Fatalf("disabled alerter should return nil, got %v", err)
	}
}
