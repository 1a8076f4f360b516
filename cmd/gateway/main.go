package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/cleanup"
	"github.com/Developersbbs/Embedd-Mailer/internal/config"
	"github.com/Developersbbs/Embedd-Mailer/internal/db"
	"github.com/Developersbbs/Embedd-Mailer/internal/enrich"
	"github.com/Developersbbs/Embedd-Mailer/internal/httpserver"
	"github.com/Developersbbs/Embedd-Mailer/internal/intake"
	"github.com/Developersbbs/Embedd-Mailer/internal/mailer"
	"github.com/Developersbbs/Embedd-Mailer/internal/metrics"
	"github.com/Developersbbs/Embedd-Mailer/internal/migrate"
	"github.com/Developersbbs/Embedd-Mailer/internal/spam"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("config: %s", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.NewGorm(ctx, cfg.PostgresURL, db.Options{})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	migCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := migrate.AutoMigrate(migCtx, gdb); err != nil {
		cancel()
		log.Fatalf("db migrate: %v", err)
	}
	cancel()

	var recorder *metrics.RedisRecorder
	if cfg.EnableMetrics {
		rdb, err := metrics.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping: %v", err)
		}
		cancel()
		defer rdb.Close()
		recorder = metrics.NewRedisRecorder(rdb)
	}

	geoip, err := enrich.NewGeoIP(cfg.GeoIPCityMMDB)
	if err != nil {
		log.Fatalf("geoip: %v", err)
	}
	if geoip != nil {
		defer geoip.Close()
	}

	dispatcher := mailer.NewDispatcher(mailer.WithDialTimeout(cfg.SMTPDialTimeout))
	defer dispatcher.Close()

	svc := intake.NewService(gdb, spam.NewChecker(), dispatcher, geoip, recorder)
	srv := httpserver.New(cfg, svc, gdb, recorder)

	if cfg.RunCleanup {
		go cleanup.NewWorker(gdb).Run(ctx)
		log.Printf("retention cleanup enabled")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("http listening on %s", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		log.Printf("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
