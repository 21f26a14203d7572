package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"audiobot/internal/cache"
	"audiobot/internal/config"
	"audiobot/internal/extractor"
	"audiobot/internal/fetch"
	"audiobot/internal/logger"
	"audiobot/internal/pipeline"
	"audiobot/internal/ratelimit"
	"audiobot/internal/resolver/spotify"
	"audiobot/internal/resolver/youtube"
	"audiobot/internal/shutdown"
	"audiobot/internal/tool"
	"audiobot/internal/transcode"
	"audiobot/internal/web"
	"audiobot/pkg/utils"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the track request server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.LoadConfigFile(cmd.String("config"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return serve(cfg, cmd.Bool("verbose"))
		},
	}
}

func serve(cfg config.Config, verbose bool) error {
	l := logger.New(os.Stderr, verbose || cfg.Verbose)

	if err := utils.CheckDependencies(); err != nil {
		return fmt.Errorf("dependency check failed: %w", err)
	}

	httpTimeout := time.Duration(cfg.HTTPTimeoutS) * time.Second
	f := fetch.New(fetch.Options{
		Timeout:       httpTimeout,
		MaxRedirects:  cfg.HTTPMaxRedirect,
		RetryAttempts: cfg.RetryAttempts,
		BackoffBase:   cfg.BackoffBase,
	}, logger.For(l, "fetch"))

	sp, err := spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret, f)
	if err != nil {
		return err
	}
	yt, err := youtube.New(cfg.YouTubeAPIKey, f)
	if err != nil {
		return err
	}

	store, err := cache.New(cfg.CacheDir, logger.For(l, "cache"))
	if err != nil {
		return err
	}

	runner := tool.ExecRunner{}
	// Downloads get generous headroom compared to a single API call.
	ex := extractor.New(runner, logger.For(l, "extractor"), 4*httpTimeout)
	tc := transcode.New(runner, f, logger.For(l, "transcode"), cfg.AudioBitrate, cfg.MaxFileSizeBytes())

	orch := pipeline.New(sp, yt, ex, tc, store, logger.For(l, "pipeline"))
	limiter := ratelimit.New(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowS)*time.Second)

	sh := shutdown.New()
	sh.Listen()

	reqMgr := web.NewRequestManager()
	reqMgr.StartCleanup(sh.Context())

	server := web.NewServer(sh.Context(), reqMgr, limiter, orch, cfg.CacheDir, logger.For(l, "web"))

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("starting server", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sh.Context().Done():
	}

	l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		l.Error("server shutdown error", "error", err)
	}

	l.Info("server stopped")
	return nil
}
