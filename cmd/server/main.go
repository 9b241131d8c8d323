package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/icct/registration/internal/admin"
	"github.com/icct/registration/internal/artifacts"
	"github.com/icct/registration/internal/config"
	"github.com/icct/registration/internal/httpapi"
	"github.com/icct/registration/internal/idempotency"
	"github.com/icct/registration/internal/notify"
	"github.com/icct/registration/internal/quota"
	"github.com/icct/registration/internal/registration"
	"github.com/icct/registration/internal/resilience"
	"github.com/icct/registration/internal/sequence"
	"github.com/icct/registration/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	initStart := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to connect to database")
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, store.Schema); err != nil {
		log.WithField("error", err.Error()).Fatal("failed to apply schema")
	}

	seq := sequence.New(cfg.TeamIDPrefix)
	if err := seq.Reconcile(ctx, pool); err != nil {
		log.WithField("error", err.Error()).Fatal("failed to reconcile team sequence")
	}

	s3Client, err := newS3Client(ctx, cfg)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("failed to configure object store client")
	}

	uploader := artifacts.New(s3Client, artifacts.Config{
		Bucket:      cfg.S3Bucket,
		Concurrency: cfg.UploadConcurrency,
		Retry: resilience.RetryPolicy{
			MaxAttempts:  cfg.RetryUploadMaxAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		CircuitThreshold: cfg.CircuitThresholdFailures,
		CircuitCoolOff:   cfg.CircuitCoolOff,
	})

	repo := store.New(pool)
	guard := quota.New(cfg.MaxTeamsPerChurch)
	idem := idempotency.NewStore(pool, cfg.IdempotencyTTL)

	sink := notify.New(cfg.NotificationQueueCapacity, cfg.NotificationWorkers, notify.SMTPConfig{
		Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Password: cfg.SMTPPassword,
		From: cfg.MailFrom, To: cfg.MailTo,
	}, resilience.RetryPolicy{
		MaxAttempts:  cfg.RetryMailMaxAttempts,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}, log)
	sink.Start(ctx)

	coordinator := registration.New(repo, seq, guard, uploader, idem, sink, registration.Config{
		MaxInsertAttempts: cfg.RetryDBInsertMaxAttempts,
		EndToEndDeadline:  cfg.EndToEndDeadline,
	}, log)

	adminController := admin.New(repo, uploader)

	srv := &httpapi.Server{
		Coordinator:  coordinator,
		Admin:        adminController,
		Pool:         pool,
		Log:          log,
		MaxPerChurch: cfg.MaxTeamsPerChurch,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go runIdempotencySweeper(ctx, idem, log)

	log.WithFields(logrus.Fields{
		"addr":        cfg.HTTPAddr,
		"startup_sec": time.Since(initStart).Seconds(),
	}).Info("registration service starting")

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
	case err := <-serveErr:
		log.WithField("error", err.Error()).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithField("error", err.Error()).Error("graceful shutdown failed")
	}
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3PathStyle
	}), nil
}

// runIdempotencySweeper periodically deletes idempotency records past their
// expiry so the table doesn't grow unbounded.
func runIdempotencySweeper(ctx context.Context, idem *idempotency.Store, log *logrus.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := idem.Sweep(ctx)
			if err != nil {
				log.WithField("error", err.Error()).Warn("idempotency sweep failed")
				continue
			}
			if n > 0 {
				log.WithField("removed", n).Info("swept expired idempotency records")
			}
		}
	}
}
