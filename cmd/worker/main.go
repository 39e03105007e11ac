package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	logrus "github.com/sirupsen/logrus"

	"autotrade/internal/broker"
	"autotrade/internal/evaluator"
	"autotrade/internal/executor"
	"autotrade/internal/marketdata"
	"autotrade/internal/notify"
	"autotrade/internal/store"
	"autotrade/pkg/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using process environment")
	}

	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ for execution notifications
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	publisher, err := config.NewPublisher()
	if err != nil {
		logrus.Fatal("Failed to create notification publisher: ", err)
	}
	defer publisher.Close()

	callTimeout := envDuration("EVALUATOR_CALL_TIMEOUT", 10*time.Second)

	// Market data provider, with an optional Redis quote cache in front
	var provider marketdata.Provider = marketdata.NewAlpacaProvider(callTimeout)
	if os.Getenv("REDIS_HOST") != "" {
		config.InitRedis()
		defer config.Redis.Close()
		provider = marketdata.NewCachedProvider(provider, config.Redis, envDuration("QUOTE_CACHE_TTL", 5*time.Second))
	}

	exec := executor.New(
		broker.NewAlpacaBroker(callTimeout),
		notify.NewQueueNotifier(publisher),
	)

	actions := store.NewActionStore(config.DB)
	leases := store.NewLeaseManager(config.DB)

	eval := evaluator.New(actions, leases, provider, exec, evaluator.Config{
		BatchSize:   envInt("EVALUATOR_BATCH_SIZE", 50),
		Workers:     envInt("EVALUATOR_WORKERS", 4),
		LeaseTTL:    envDuration("EVALUATOR_LEASE_TTL", time.Minute),
		CallTimeout: callTimeout,
	})

	pollInterval := envDuration("EVALUATOR_POLL_INTERVAL", 10*time.Second)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Schedule evaluation cycles. SkipIfStillRunning keeps a slow cycle from
	// overlapping with the next tick.
	c := cron.New(cron.WithSeconds(), cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	_, err = c.AddFunc(fmt.Sprintf("@every %s", pollInterval), func() {
		if err := eval.RunCycle(rootCtx); err != nil {
			logrus.Errorf("Evaluation cycle failed: %v", err)
		}
	})
	if err != nil {
		logrus.Fatal("Failed to schedule evaluation cycles: ", err)
	}

	// Nightly sweep closes out actions whose validity window has passed
	// without the evaluator ever touching them again.
	_, err = c.AddFunc("0 5 0 * * *", func() {
		n, err := actions.SweepExpired(rootCtx, time.Now().UTC())
		if err != nil {
			logrus.Errorf("Expiry sweep failed: %v", err)
			return
		}
		if n > 0 {
			logrus.Infof("Expiry sweep completed %d actions", n)
		}
	})
	if err != nil {
		logrus.Fatal("Failed to schedule expiry sweep: ", err)
	}

	c.Start()
	logrus.Infof("Action evaluator started, polling every %s", pollInterval)

	<-rootCtx.Done()
	logrus.Info("Shutdown signal received, waiting for in-flight cycles...")
	<-c.Stop().Done()
	logrus.Info("Action evaluator stopped")
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		logrus.Warnf("Ignoring invalid %s=%q", key, v)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logrus.Warnf("Ignoring invalid %s=%q", key, v)
	}
	return def
}
