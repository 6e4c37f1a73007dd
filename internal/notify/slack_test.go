package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/playlistchecker/internal/domain"
)

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	if err := s.Send(context.Background(), "Title", "Hello"); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got != "*Title*\nHello" {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	if err := NewSlack(ts.URL).Send(context.Background(), "X", "Y"); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestSlack_Disabled(t *testing.T) {
	s := NewSlack("")
	if err := s.Send(context.Background(), "X", "Y"); !errors.Is(err, ErrSlackDisabled) {
		t.Fatalf("want ErrSlackDisabled, got %v", err)
	}
}

type countNotifier struct {
	n   int
	err error
}

func (c *countNotifier) Send(ctx context.Context, title, text string) error {
	c.n++
	return c.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &countNotifier{err: errors.New("a down")}
	b := &countNotifier{}
	c := &countNotifier{err: errors.New("c down")}
	err := Multi{a, nil, b, c}.Send(context.Background(), "t", "x")
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("not every notifier called: %d %d %d", a.n, b.n, c.n)
	}
	if err == nil || !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "c down") {
		t.Fatalf("combined error wrong: %v", err)
	}
}

func TestRunSummary(t *testing.T) {
	start := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	run := &domain.Run{
		ID:         "R1",
		Playlists:  []string{"http://a/x.m3u"},
		Channels:   10,
		Passed:     7,
		Failed:     3,
		Files:      []string{"x.m3u8"},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
	title, text := RunSummary(run, map[string]int{"media-too-slow": 1, "download-error": 2})
	if !strings.Contains(title, "finished") || strings.Contains(title, "errors") {
		t.Fatalf("title = %q", title)
	}
	for _, want := range []string{"Channels: 10 (passed 7, failed 3)", "  download-error: 2\n  media-too-slow: 1", "Files: x.m3u8", "Took: 1m30s"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
}
