package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/taskqueue/config"
	"github.com/shashiranjanraj/taskqueue/pkg/database"
	"github.com/shashiranjanraj/taskqueue/pkg/logger"
	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

var queueWorkersFlag int

// taskqueue queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start a worker pool against the configured driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workers := queueWorkersFlag
		if workers < 1 {
			workers = atoiOr(config.Get("QUEUE_WORKERS_COUNT", "5"), 5)
		}

		driver, metrics, err := buildDriver()
		if err != nil {
			return fmt.Errorf("queue:work: %w", err)
		}

		pool := queue.NewWorkerPool(driver, workers, workerConfigFromEnv(), metrics)

		fmt.Printf("queue worker pool started (%d workers, driver=%s). Press Ctrl+C to stop.\n",
			workers, config.QueueDriver())
		pool.Start()

		<-ctx.Done()
		fmt.Println("\nstopping queue worker pool...")
		pool.Stop()
		_ = driver.Dispose()
		fmt.Println("queue worker pool stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 0, "Number of concurrent workers (0 = QUEUE_WORKERS_COUNT or 5)")
}

// buildDriver constructs the Driver named by QUEUE_DRIVER, wiring a SQL DLQ
// when the app's database is configured, mirroring the teacher's
// queue.UseDB(database.DB) boot-time wiring.
func buildDriver() (queue.Driver, *queue.Metrics, error) {
	metrics := queue.NewMetrics()
	log := logger.L
	queueLog := queue.NewSlogLogger(log)

	var dlq queue.DLQ
	database.Connect()
	if sqlDLQ, err := queue.NewSQLDLQ(database.DB); err == nil {
		dlq = sqlDLQ
	}

	retry := queue.RetryPolicy{
		MaxAttempts: atoiOr(config.QueueRetryMaxAttempts(), 3),
		BaseDelay:   time.Duration(atoiOr(config.QueueRetryBaseDelaySeconds(), 30)) * time.Second,
		Backoff:     queue.LinearBackoff,
	}

	cfg := queue.DriverConfig{
		Name:   config.QueueDriver(),
		UseDLQ: dlq != nil,
		Retry:  retry,
		Settings: map[string]string{
			"storagePath": config.QueueDriverSetting("file", "storagePath", "storage/queue"),
			"queueName":   config.QueueDriverSetting("redis", "queueName", "default"),
			"maxRetries":  config.QueueDriverSetting("redis", "maxRetries", "3"),
		},
	}

	pipeline := buildPipeline(queueLog)

	switch cfg.Name {
	case "memory":
		d, err := queue.NewMemoryDriver(cfg, nil, metrics, dlq, pipeline, queueLog)
		return d, metrics, err
	case "file":
		d, err := queue.NewFileDriver(cfg, nil, metrics, dlq, pipeline, queueLog)
		return d, metrics, err
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr(), Password: config.RedisPassword()})
		d, err := queue.NewRedisDriver(cfg, rdb, nil, metrics, dlq, pipeline, queueLog)
		return d, metrics, err
	default:
		d, err := queue.NewSyncDriver(cfg, nil, metrics, dlq, pipeline, queueLog)
		return d, metrics, err
	}
}

// buildPipeline assembles the production middleware chain (spec 4.3):
// logging and timing wrap every attempt, an immediate in-process retry
// absorbs transient errors without touching the driver's own attempt
// budget, and a per-attempt timeout bounds the handler call itself.
func buildPipeline(log queue.Logger) *queue.Pipeline {
	timeout := time.Duration(atoiOr(config.QueueWorkersTimeoutSeconds(), 0)) * time.Second

	p := queue.NewPipeline()
	p.Add(queue.NewLoggingMiddleware(log))
	p.Add(&queue.TimingMiddleware{})
	p.Add(&queue.RetryMiddleware{
		MaxAttempts: 2,
		BaseDelay:   50 * time.Millisecond,
		ShouldRetry: func(err error) bool { return !queue.IsPermanent(err) },
	})
	p.Add(&queue.TimeoutMiddleware{Deadline: timeout})
	return p
}

func workerConfigFromEnv() queue.WorkerConfig {
	return queue.WorkerConfig{
		MaxJobs:                 atoiOr(config.QueueWorkersMaxJobs(), 0),
		Delay:                   time.Duration(atoiOr(config.QueueWorkersDelaySeconds(), 1)) * time.Second,
		Timeout:                 time.Duration(atoiOr(config.QueueWorkersTimeoutSeconds(), 0)) * time.Second,
		GracefulShutdownTimeout: time.Duration(atoiOr(config.QueueWorkersGracefulShutdownSeconds(), 30)) * time.Second,
		OnError: func(err error, _ string) {
			logger.Error("queue: worker error", "error", err)
		},
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
