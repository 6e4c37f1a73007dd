package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/domain"
	apimw "github.com/hamed0406/playlistchecker/internal/httpapi/middleware"
	"github.com/hamed0406/playlistchecker/internal/probe"
	"github.com/hamed0406/playlistchecker/internal/repo"
	"github.com/hamed0406/playlistchecker/internal/scheduler"
)

// RunStarter launches a background pass over a set of playlists.
type RunStarter interface {
	Start(ctx context.Context, urls []string) (domain.RunID, error)
}

type Server struct {
	Logger  *zap.Logger
	Prober  scheduler.ChannelProber
	Results repo.RecordStore
	Runs    repo.RunStore
	Runner  RunStarter

	// Playlists are used by POST /api/runs when the body names none.
	Playlists []string
	// BaseContext outlives requests; background runs hang off it.
	BaseContext context.Context
	// DNS defaults to probe.CheckDNS.
	DNS func(ctx context.Context, host string) probe.DNSStatus

	validate *validator.Validate
}

func NewServer(l *zap.Logger, p scheduler.ChannelProber, results repo.RecordStore, runs repo.RunStore, runner RunStarter) *Server {
	return &Server{
		Logger:      l,
		Prober:      p,
		Results:     results,
		Runs:        runs,
		Runner:      runner,
		BaseContext: context.Background(),
		DNS:         probe.CheckDNS,
		validate:    validator.New(),
	}
}

// Router wires the routes. Read endpoints take any key, write endpoints
// need an admin key. A nil or empty origin list allows every origin.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))
		r.Use(apimw.RateLimit(pubRPM, pubBurst))
		r.Get("/api/results/latest", s.handleLatest)
		r.Get("/api/runs", s.handleListRuns)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Use(apimw.RateLimit(admRPM, admBurst))
		r.Post("/api/probe", s.handleProbe)
		r.Post("/api/runs", s.handleStartRun)
	})

	return r
}

type probePayload struct {
	URL string `json:"url" validate:"required,url"`
}

type probeResponse struct {
	Report domain.ProbeReport `json:"report"`
	DNS    *probe.DNSStatus   `json:"dns,omitempty"`
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var p probePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.validator().Struct(p); err != nil || !isValidHTTPURL(p.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	target := normalizeHTTPURL(p.URL)

	// a fresh cache so an ad-hoc probe never reuses another verdict
	res := s.Prober.Probe(r.Context(), target, probe.NewHostCache())
	resp := probeResponse{Report: scheduler.NewReport(target, res)}

	if res.Reason == probe.ReasonDownloadError {
		dnsFn := s.DNS
		if dnsFn == nil {
			dnsFn = probe.CheckDNS
		}
		dns := dnsFn(r.Context(), extractHost(target))
		resp.DNS = &dns
		s.Logger.Info("dns_check",
			zap.String("host", dns.Host),
			zap.String("class", dns.Class),
			zap.Strings("ips", dns.IPs),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("cname", dns.CNAME),
			zap.String("resolver_error", dns.ResolverError),
		)
	}

	if s.Results != nil {
		rec := scheduler.NewRecord("", target, res, time.Now().UTC())
		if err := s.Results.Append(r.Context(), rec); err != nil {
			s.Logger.Warn("probe_save_error", zap.String("url", target), zap.Error(err))
		}
	}

	s.Logger.Info("adhoc_probe",
		zap.String("url", target),
		zap.Bool("passed", res.Passed()),
		zap.String("reason", string(res.Reason)),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		writeJSON(w, http.StatusOK, []domain.ProbeRecord{})
		return
	}
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("latest_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if rows == nil {
		rows = []domain.ProbeRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1..500")
			return
		}
		limit = n
	}
	if s.Runs == nil {
		writeJSON(w, http.StatusOK, []domain.Run{})
		return
	}
	runs, err := s.Runs.Runs(r.Context(), limit)
	if err != nil {
		s.Logger.Warn("runs_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type runPayload struct {
	URLs []string `json:"urls" validate:"omitempty,dive,required,url"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var p runPayload
	// an empty body means the configured playlists
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.validator().Struct(p); err != nil {
		writeError(w, http.StatusBadRequest, "urls must be absolute URLs")
		return
	}
	urls := p.URLs
	if len(urls) == 0 {
		urls = s.Playlists
	}

	ctx := s.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := s.Runner.Start(ctx, urls)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, scheduler.ErrNoPlaylists):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not start run")
		return
	}
	s.Logger.Info("run_requested", zap.String("run_id", string(id)), zap.Strings("playlists", urls))
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": string(id)})
}

func (s *Server) validator() *validator.Validate {
	if s.validate == nil {
		s.validate = validator.New()
	}
	return s.validate
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// isValidHTTPURL accepts absolute http(s) URLs with a host.
func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// normalizeHTTPURL lowercases scheme and host, drops default ports and a
// bare trailing slash. Anything unparsable is returned trimmed.
func normalizeHTTPURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// extractHost pulls the hostname from a URL string
func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
