package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/playlistchecker/internal/app"
	"github.com/hamed0406/playlistchecker/internal/config"
	"github.com/hamed0406/playlistchecker/internal/httpapi"
	apimw "github.com/hamed0406/playlistchecker/internal/httpapi/middleware"
	"github.com/hamed0406/playlistchecker/internal/logging"
	"github.com/hamed0406/playlistchecker/internal/scheduler"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default: $HOME/.playlistchecker.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogConsole)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer stores.Close()

	p := app.NewPipeline(cfg, logger, stores)

	api := httpapi.NewServer(logger, p.Prober, stores.Records, stores.Runs, p.Runner)
	api.Playlists = cfg.PlaylistURLs
	api.BaseContext = ctx
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	if len(keys.Public) == 0 && len(keys.Admin) == 0 {
		logger.Warn("api_keys_missing", zap.String("hint", "all routes are open"))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		scheduler.NewRechecker(logger, p.Runner, cfg.PlaylistURLs, cfg.RecheckInterval).Run(gctx)
		return nil
	})
	if n := app.Notifier(cfg); n != nil && cfg.AlertPollInterval > 0 {
		al := scheduler.NewAlerter(logger, stores.Records, stores.Alerts, n, scheduler.AlerterConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
			PollInterval:    cfg.AlertPollInterval,
			HostGroupMin:    cfg.AlertHostGroupMin,
		})
		g.Go(func() error {
			if err := al.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("api_stopped", zap.Error(err))
		return
	}
	logger.Info("api_stopped")
}
