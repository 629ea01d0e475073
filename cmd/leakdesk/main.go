package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"leakdesk/internal/attachment"
	"leakdesk/internal/cache"
	"leakdesk/internal/config"
	"leakdesk/internal/database"
	"leakdesk/internal/failover"
	"leakdesk/internal/indicator"
	"leakdesk/internal/lifecycle"
	"leakdesk/internal/notify"
	"leakdesk/internal/poller"
	"leakdesk/internal/remote"
	"leakdesk/internal/repository"
	"leakdesk/internal/repository/memory"
	"leakdesk/internal/repository/postgres"
	"leakdesk/internal/router"
	"leakdesk/internal/scheduler"
	"leakdesk/internal/service"
	"leakdesk/pkg/logger"
)

func main() {
	// config + flags + logger
	cfg := config.Load()
	port := pflag.String("port", cfg.Port, "HTTP listen port")
	endpoints := pflag.String("endpoints", strings.Join(cfg.Endpoints, ","), "comma-separated store endpoints, in failover order")
	catalog := pflag.String("catalog", cfg.IndicatorCatalog, "indicator catalog YAML (built-in when empty)")
	env := pflag.String("env", cfg.Env, "environment (dev enables console logging)")
	pflag.Parse()
	cfg.Port, cfg.Env, cfg.IndicatorCatalog = *port, *env, *catalog
	cfg.Endpoints = config.SplitList(*endpoints)

	l := logger.New(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	clock := clockwork.NewRealClock()

	// remote store
	fo, err := failover.New(cfg.Endpoints, &http.Client{Timeout: cfg.RequestTimeout}, l)
	if err != nil {
		l.Fatal().Err(err).Msg("failover client")
	}
	rc := remote.New(fo, l)

	cat, err := indicator.Load(cfg.IndicatorCatalog)
	if err != nil {
		l.Fatal().Err(err).Msg("indicator catalog")
	}

	journal, closeJournal := openJournal(ctx, cfg, l)
	defer closeJournal()

	var photos attachment.Store = attachment.Passthrough{}
	if cfg.CloudinaryEnabled() {
		cld, err := attachment.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder, l)
		if err != nil {
			l.Fatal().Err(err).Msg("cloudinary")
		}
		photos = cld
		l.Info().Str("folder", cfg.CloudinaryFolder).Msg("photos upload to cloudinary")
	}

	var notifier lifecycle.Notifier
	if cfg.NotifyMode == config.NotifyLocal {
		notifier = newDispatcher(ctx, cfg, clock, l)
	}

	// engine
	c := cache.New()
	p := poller.New(rc, c, clock, l)
	sched := scheduler.New(p, c, clock, cfg.PollInterval, l)
	m := lifecycle.New(lifecycle.Deps{
		Cache:    c,
		Remote:   rc,
		Refresh:  sched,
		Photos:   photos,
		Notifier: notifier,
		Catalog:  cat,
		Journal:  journal,
		Clock:    clock,
		Log:      l,
	}, lifecycle.Options{
		RequireClosure:    cfg.ClosureRequired,
		MinClosureLength:  cfg.ClosureMinLength,
		GraceUpdate:       cfg.GraceUpdate,
		GraceCreate:       cfg.GraceCreate,
		GraceCreatePhotos: cfg.GraceCreatePhotos,
		NotifyLocally:     notifier != nil,
	})

	// http
	r := router.New(l, cfg, router.App{
		Cache:   c,
		Machine: m,
		Poller:  p,
		Journal: journal,
		Catalog: cat,
		Auth:    service.NewAuthService(c, cfg.SessionSecret, l),
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout*time.Duration(len(cfg.Endpoints)) + 15*time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sched.Start(ctx)
	go func() {
		l.Info().Str("addr", srv.Addr).Strs("endpoints", fo.Endpoints()).Str("notify", cfg.NotifyMode).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	sched.Stop()
	l.Info().Msg("shutdown complete")
}

func openJournal(ctx context.Context, cfg config.Config, l zerolog.Logger) (repository.JournalRepository, func()) {
	if cfg.DBURL == "" {
		l.Info().Msg("mutation journal kept in memory")
		return memory.NewJournalRepo(), func() {}
	}
	pool, err := database.Open(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		l.Fatal().Err(err).Msg("db migrate failed")
	}
	return postgres.NewJournalRepo(pool), pool.Close
}

func newDispatcher(ctx context.Context, cfg config.Config, clock clockwork.Clock, l zerolog.Logger) *notify.Dispatcher {
	var quota notify.Quota = notify.NewMemoryQuota(cfg.MailDailyQuota, clock)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			l.Warn().Err(err).Msg("redis unreachable, mail quota kept in memory")
		} else {
			quota = notify.NewRedisQuota(rdb, cfg.MailDailyQuota, clock)
		}
	}
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	return notify.NewDispatcher(mailer, quota, cfg.MailCC, l)
}
