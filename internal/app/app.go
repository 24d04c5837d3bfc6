// Package app wires the intake server and the resize worker: configuration,
// storage backends, health probes, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Freeman-md/funcify/internal/intake"
	"github.com/Freeman-md/funcify/internal/storage/minio"
	"github.com/Freeman-md/funcify/internal/storage/postgres"
	"github.com/Freeman-md/funcify/internal/storage/rabbitmq"
	"github.com/Freeman-md/funcify/pkg/health"
	"github.com/Freeman-md/funcify/pkg/httpmiddleware"
)

// RunServer creates all intake server dependencies, starts the HTTP server,
// and handles graceful shutdown. It is the single wiring point for the
// intake binary.
func RunServer(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	lg.Info("Initializing intake server", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	blobs, err := minio.New(minio.Config{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		return errors.Wrap(err, "create blob store")
	}

	queue, err := rabbitmq.New(rabbitmq.Config{
		URL:          cfg.Queue.URL,
		Name:         cfg.Queue.Name,
		Base64Encode: cfg.Queue.Base64Encode,
		DialAttempts: 5,
		DialDelay:    2 * time.Second,
	})
	if err != nil {
		return errors.Wrap(err, "create task queue")
	}
	defer queue.Close()

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("blob", 5*time.Second, health.PingCheck(blobs))
	healthSvc.AddReadinessCheck("queue", 5*time.Second, health.PingCheck(queue))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	products := postgres.NewProductRepository(pool)
	service := intake.NewService(products, blobs, queue, intake.Config{
		UnprocessedBucket: cfg.Blob.UnprocessedBucket,
		PartitionKey:      cfg.Intake.PartitionKey,
	})
	handler := intake.NewHTTPHandler(service, intake.HTTPConfig{
		UnprocessedBucket: cfg.Blob.UnprocessedBucket,
		MaxUploadBytes:    cfg.Intake.MaxUploadBytes,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.Routes(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{"Content-Type"},
				MaxAge:       cfg.CORS.MaxAge,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("funcify-intake"),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, wait for load balancers to drain,
	// then stop the listener.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
