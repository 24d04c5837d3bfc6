package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeman-md/funcify/internal/resize"
	"github.com/Freeman-md/funcify/internal/storage/minio"
	"github.com/Freeman-md/funcify/internal/storage/postgres"
	"github.com/Freeman-md/funcify/internal/storage/rabbitmq"
	"github.com/Freeman-md/funcify/pkg/health"
)

// RunWorker creates all resize worker dependencies and consumes the task
// queue until the context is cancelled. A small HTTP server exposes the
// health probes.
func RunWorker(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	lg.Info("Initializing resize worker", zap.String("queue", cfg.Queue.Name))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	blobs, err := minio.New(minio.Config{
		Endpoint:   cfg.Blob.Endpoint,
		AccessKey:  cfg.Blob.AccessKey,
		SecretKey:  cfg.Blob.SecretKey,
		UseSSL:     cfg.Blob.UseSSL,
		ScratchDir: cfg.Resize.ScratchDir,
	})
	if err != nil {
		return errors.Wrap(err, "create blob store")
	}

	consumer, err := rabbitmq.NewConsumer(rabbitmq.Config{
		URL:          cfg.Queue.URL,
		Name:         cfg.Queue.Name,
		Base64Encode: cfg.Queue.Base64Encode,
		DialAttempts: 5,
		DialDelay:    2 * time.Second,
	})
	if err != nil {
		return errors.Wrap(err, "create consumer")
	}
	defer consumer.Close()

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("blob", 5*time.Second, health.PingCheck(blobs))
	healthSvc.AddReadinessCheck("queue", 5*time.Second, health.PingCheck(consumer))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)
	defer healthSvc.Stop()

	products := postgres.NewProductRepository(pool)
	service := resize.NewService(blobs, products, resize.NewVipsProcessor(), resize.Config{
		UnprocessedBucket: cfg.Blob.UnprocessedBucket,
	})
	handler := resize.NewHandler(service, cfg.Blob.ProcessedBucket, cfg.Intake.PartitionKey)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	probeServer := &http.Server{
		ReadHeaderTimeout: time.Second,
		Addr:              cfg.Addr,
		Handler:           mux,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Consuming tasks", zap.String("queue", cfg.Queue.Name))
		return consumer.Run(ctx, handler.Handle)
	})
	g.Go(func() error {
		if err := probeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "probe server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()
		return probeServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	lg.Info("Worker stopped")
	return nil
}
