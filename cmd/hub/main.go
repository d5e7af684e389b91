// Command hub runs the webhook orchestrator: it ingests source-host webhook
// deliveries, drives JIRA-shaped issue transitions and Slack-shaped chat
// notifications off of them, and runs the backport/force-push/version-script
// jobs spec.md describes.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/api"
	"github.com/octohub/webhook-hub/internal/backport"
	"github.com/octohub/webhook-hub/internal/chat"
	"github.com/octohub/webhook-hub/internal/config"
	"github.com/octohub/webhook-hub/internal/dedup"
	"github.com/octohub/webhook-hub/internal/dirpool"
	"github.com/octohub/webhook-hub/internal/dispatch"
	"github.com/octohub/webhook-hub/internal/forcepush"
	"github.com/octohub/webhook-hub/internal/ingress"
	"github.com/octohub/webhook-hub/internal/logging"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/migrate"
	"github.com/octohub/webhook-hub/internal/sourcehost"
	"github.com/octohub/webhook-hub/internal/store"
	"github.com/octohub/webhook-hub/internal/teamcache"
	"github.com/octohub/webhook-hub/internal/tracker"
	"github.com/octohub/webhook-hub/internal/versionscript"
	"github.com/octohub/webhook-hub/internal/worker"
)

// cleanupInterval is how often the daily directory-pool/delivery-log
// housekeeping runs (spec.md §5's cleanup task), kept far below a day so a
// short-lived dev process still exercises it.
const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.LogLevel)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := migrate.Run(db.DB); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	host := buildSourceHost(cfg)
	trackerClient, err := tracker.New(cfg.TrackerBaseURL, cfg.TrackerUsername, cfg.TrackerToken, cfg.TrackerPendingVersionField)
	if err != nil {
		log.Fatal().Err(err).Msg("build tracker client")
	}
	chatClient := chat.New(cfg.ChatBotToken)
	msgr := messenger.New(chatClient, db, cfg.BotLogin)
	teams := teamcache.New(host.TeamMembers)
	dirPool, err := dirpool.New(cfg.CloneRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("build directory pool")
	}

	jobs := worker.NewPool(cfg.WorkerConcurrency, cfg.WorkerQueueDepth)
	jobs.Start()
	defer jobs.Stop()

	backportRunner := &backport.Runner{
		DirPool:             dirPool,
		HostName:            sourceHostName(cfg),
		Host:                host,
		Notifier:            msgr,
		ReleaseBranchPrefix: cfg.ReleaseBranchPrefix,
	}
	forcePushRunner := &forcepush.Runner{
		DirPool:  dirPool,
		HostName: sourceHostName(cfg),
		Host:     host,
	}
	versionScriptRunner := &versionscript.Runner{
		DirPool:  dirPool,
		HostName: sourceHostName(cfg),
		CloneURL: host.CloneURL,
		Tracker:  trackerClient,
		Notifier: msgr,
	}

	dispatcher := &dispatch.Dispatcher{
		Host:                host,
		Tracker:             trackerClient,
		Notifier:            msgr,
		Repos:               db,
		Teams:               teams,
		Jobs:                jobs,
		Backport:            backportRunner,
		ForcePush:           forcePushRunner,
		VersionScript:       versionScriptRunner,
		BotLogin:            cfg.BotLogin,
		IgnoredUsers:        cfg.IgnoredUsers,
		ReleaseBranchPrefix: cfg.ReleaseBranchPrefix,
	}

	dedupe := dedup.New(db)
	webhookHandler := &ingress.Handler{
		Secret:     cfg.WebhookSecret,
		Dedup:      dedupe,
		Dispatcher: dispatcher,
		Host:       host,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	ingress.RegisterWebhookRoutes(r, webhookHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(api.AdminAuthMiddleware(cfg))
		api.RegisterRepoRoutes(r, db)
		api.RegisterUserRoutes(r, db)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go runCleanup(cleanupCtx, db, dirPool)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("hub listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	stopCleanup()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// buildSourceHost authenticates as a GitHub App installation when app
// credentials are configured, falling back to a static token for
// development or hosts without App support set up.
func buildSourceHost(cfg *config.Config) *sourcehost.GitHubHost {
	ctx := context.Background()
	if cfg.SourceHostAppID != 0 {
		keyBytes, err := os.ReadFile(cfg.SourceHostPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("read source host private key")
		}
		return sourcehost.NewAppHost(ctx, sourcehost.AppCredentials{
			AppID:         cfg.SourceHostAppID,
			PrivateKeyPEM: keyBytes,
		})
	}
	return sourcehost.NewTokenHost(ctx, cfg.SourceHostToken)
}

// sourceHostName is the dirpool key prefix distinguishing this source host
// from any other the hub might one day be configured against.
func sourceHostName(cfg *config.Config) string {
	return "github.com"
}

// runCleanup performs spec.md §5's daily housekeeping: pruning delivery
// dedup records and reclaiming idle clone directories.
func runCleanup(ctx context.Context, db *store.DB, pool *dirpool.Pool) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-24 * time.Hour).Format(time.RFC3339)
			if n, err := db.PruneDeliveriesOlderThan(ctx, cutoff); err != nil {
				log.Error().Err(err).Msg("prune deliveries")
			} else if n > 0 {
				log.Info().Int64("pruned", n).Msg("pruned old deliveries")
			}
			for _, key := range pool.ReclaimIdle(cleanupInterval) {
				log.Info().Str("owner", key.Owner).Str("repo", key.Repo).Msg("reclaimed idle clone directory")
			}
		}
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
