// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/playlistchecker/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	file := ""
	if len(os.Args) > 1 {
		file = os.Args[1]
	}
	cfg, err := config.Load(file)
	if err != nil {
		fail(err.Error())
	}

	for _, c := range preflight(cfg, os.Getenv) {
		switch c.level {
		case levelFail:
			fail(c.msg)
		case levelWarn:
			warn(c.msg)
		default:
			ok(c.msg)
		}
	}
	ok("preflight passed")
}

type level int

const (
	levelOK level = iota
	levelWarn
	levelFail
)

type check struct {
	level level
	msg   string
}

// preflight inspects a loaded config. getenv is consulted only for
// formatting hints on the raw list settings.
func preflight(cfg config.Config, getenv func(string) string) []check {
	var out []check
	add := func(l level, msg string) { out = append(out, check{l, msg}) }

	if len(cfg.AdminAPIKeys) == 0 {
		add(levelFail, "ADMIN_API_KEYS is empty (admin routes are open).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		add(levelFail, "PUBLIC_API_KEYS is empty (read routes are open).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS", "PLAYLIST_URLS"} {
		if strings.Contains(getenv(name), " ") {
			add(levelWarn, name+" contains spaces; use comma-separated with no spaces, e.g. a,b")
		}
	}

	add(levelOK, "API_ADDR="+cfg.Addr)

	if cfg.DatabaseURL == "" {
		add(levelWarn, "DATABASE_URL empty; results and runs are kept in memory only.")
	} else {
		add(levelOK, "DATABASE_URL present")
	}

	if len(cfg.PlaylistURLs) == 0 {
		add(levelWarn, "PLAYLIST_URLS empty; runs must name their playlists.")
	} else {
		add(levelOK, fmt.Sprintf("%d playlist(s) configured", len(cfg.PlaylistURLs)))
	}
	if cfg.RecheckInterval == 0 {
		add(levelWarn, "RECHECK_INTERVAL is 0; playlists are only checked on request.")
	}

	if cfg.AlertPollInterval > 0 && cfg.SlackWebhookURL == "" {
		add(levelWarn, "ALERT_POLL_INTERVAL set but SLACK_WEBHOOK_URL empty; no alerts will be sent.")
	}

	if len(cfg.AllowedOrigins) == 0 {
		add(levelWarn, "ALLOWED_ORIGINS empty; every origin is allowed.")
	} else {
		add(levelOK, "ALLOWED_ORIGINS="+strings.Join(cfg.AllowedOrigins, ","))
	}
	return out
}
