// Package main runs the eventgate HTTP service: page view requests come in
// over HTTP and are published to the configured broker, with the broker's
// acknowledgment (or the reason there is none) returned to the caller.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/knadh/koanf/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/miladsoleymani/eventgate/broker"
	"github.com/miladsoleymani/eventgate/core"
	"github.com/miladsoleymani/eventgate/core/middleware"
	"github.com/miladsoleymani/eventgate/internal/config"
	"github.com/miladsoleymani/eventgate/internal/ledger"
	"github.com/miladsoleymani/eventgate/internal/metrics"
	transporthttp "github.com/miladsoleymani/eventgate/internal/transport/http"
	"github.com/miladsoleymani/eventgate/internal/util"

	// Import plugins to trigger self-registration via init()
	_ "github.com/miladsoleymani/eventgate/plugins/kafka"
	_ "github.com/miladsoleymani/eventgate/plugins/nats"
	_ "github.com/miladsoleymani/eventgate/plugins/rabbitmq"
	_ "github.com/miladsoleymani/eventgate/plugins/redis"
)

var (
	// build is set during compilation via -ldflags "-X main.build=<version>"
	build = "dev"

	confFlag string

	lo *slog.Logger
	ko *koanf.Koanf
)

func init() {
	flag.StringVar(&confFlag, "config", "config.toml", "Path to configuration file (TOML format)")
	flag.Parse()

	lo = util.InitLogger()
	slog.SetDefault(lo)

	var err error
	ko, err = util.InitConfig(lo, confFlag)
	if err != nil {
		lo.Error("could not load configuration", "error", err)
		os.Exit(1)
	}
}

func main() {
	lo.Info("starting eventgate", "build", build)

	cfg, err := config.Load(ko)
	if err != nil {
		lo.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := notifyShutdown()
	defer stop()

	producer, err := broker.Create(cfg.Broker.Type, cfg.Broker.Config)
	if err != nil {
		lo.Error("could not initialize producer", "broker", cfg.Broker.Type, "error", err)
		os.Exit(1)
	}
	lo.Debug("loaded producer", "broker", cfg.Broker.Type, "brokers", cfg.Broker.Config.Brokers)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg)

	mws := []core.Middleware{
		middleware.Recovery(lo),
		middleware.Logging(lo),
		middleware.Metrics(collector),
	}

	var (
		outcomeLedger *ledger.Ledger
		ledgerStore   ledger.Store
		ledgerCancel  context.CancelFunc = func() {}
	)
	if cfg.Ledger.Enabled {
		ledgerStore, err = openLedgerStore(ctx, cfg.Ledger)
		if err != nil {
			lo.Error("could not initialize ledger", "type", cfg.Ledger.Type, "error", err)
			os.Exit(1)
		}
		outcomeLedger = ledger.New(ledger.Opts{
			Store:     ledgerStore,
			Logg:      lo,
			QueueSize: cfg.Ledger.QueueSize,
			BatchSize: cfg.Ledger.BatchSize,
			BatchWait: cfg.Ledger.BatchWait,
			OnDrop:    collector.LedgerDropped,
		})
		var ledgerCtx context.Context
		ledgerCtx, ledgerCancel = context.WithCancel(context.Background())
		outcomeLedger.Start(ledgerCtx)
		mws = append(mws, middleware.Audit(outcomeLedger))
		lo.Debug("started outcome ledger", "type", cfg.Ledger.Type)
	}

	gateway := core.New(producer,
		core.WithTimeout(cfg.Gateway.PublishTimeout),
		core.WithKeyPolicy(cfg.Gateway.KeyPolicy),
		core.WithAllowedTopics(cfg.Gateway.AllowedTopics...),
		core.WithLogger(lo),
		core.WithMiddleware(mws...),
	)

	apiServer := &http.Server{
		Addr: cfg.Server.Address,
		Handler: transporthttp.New(transporthttp.ServerOpts{
			Gateway:  gateway,
			Gatherer: reg,
			APIKeys:  cfg.Server.APIKeys,
			Logg:     lo,
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		lo.Info("starting API server", "address", cfg.Server.Address)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lo.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	lo.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// In-flight requests finish before the producer flushes.
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			lo.Error("API server shutdown error", "error", err)
		}
		if err := producer.Close(); err != nil {
			lo.Error("producer close error", "error", err)
		}
		if outcomeLedger != nil {
			ledgerCancel()
			outcomeLedger.Wait()
			if err := ledgerStore.Close(); err != nil {
				lo.Error("ledger close error", "error", err)
			}
		}
		lo.Info("graceful shutdown complete")
	}()

	shutdownDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		lo.Info("service stopped successfully")
	case <-shutdownCtx.Done():
		lo.Error("graceful shutdown timeout exceeded, forcing exit")
		os.Exit(1)
	}
}

func openLedgerStore(ctx context.Context, c config.Ledger) (ledger.Store, error) {
	if c.Type == "postgres" {
		s, err := ledger.NewPostgresStore(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := ledger.NewBoltStore(c.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// notifyShutdown creates a context that is cancelled when the application receives
// a shutdown signal (SIGINT, SIGTERM, or interrupt).
func notifyShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
}
