package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stakepool/config"
	"stakepool/core"
	"stakepool/core/bus"
	"stakepool/core/state"
	"stakepool/gateway/middleware"
	"stakepool/gateway/routes"
	"stakepool/observability"
	"stakepool/observability/logging"
	telemetry "stakepool/observability/otel"
	"stakepool/storage"
)

const (
	envName         = "POOLD_ENV"
	metricsInterval = 15 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	scenarioFlag := flag.String("scenario", "", "YAML scenario replayed after bootstrap (overrides config Scenario)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv(envName))
	if env == "" {
		env = cfg.Telemetry.Environment
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, env, logging.ParseLevel(*logLevel))

	if err := run(cfg, env, *scenarioFlag, logger); err != nil {
		logger.Error("poold stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, env, scenarioPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	headers := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Attributes:  map[string]string{"pool.symbol": cfg.Pool.LedgerSymbol},
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()
	logger.Info("telemetry configured",
		"traces", cfg.Telemetry.Traces,
		"metrics", cfg.Telemetry.Metrics,
		"endpoint", cfg.Telemetry.OTLPEndpoint,
		logging.MaskHeaders(headers),
	)

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	store := state.New(db)

	node, err := core.NewNode(cfg, uint64(time.Now().Unix()), logger,
		bus.WithStore(store),
		bus.WithEmitter(observability.MetricsEmitter{}),
	)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if scenarioPath == "" {
		scenarioPath = cfg.Scenario
	}
	if scenarioPath != "" {
		sc, err := LoadScenario(scenarioPath)
		if err != nil {
			return err
		}
		if err := sc.Run(ctx, node, logger); err != nil {
			return fmt.Errorf("replay %s: %w", scenarioPath, err)
		}
	}
	if err := node.RecordMetrics(); err != nil {
		return err
	}
	go recordMetrics(ctx, node, logger)

	handler, err := newGateway(cfg, node, store, logger)
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}
	server := &http.Server{
		Addr:              cfg.Gateway.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.Gateway.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("poold stopped", "run", node.Net.RunID().String())
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(cfg.DataDir)
}

func newGateway(cfg *config.Config, node *core.Node, store *state.Store, logger *slog.Logger) (http.Handler, error) {
	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: cfg.Telemetry.ServiceName + "-gateway",
		LogRequests: true,
		Enabled:     true,
		Gatherers:   []prometheus.Gatherer{prometheus.DefaultGatherer},
	}, logger)
	var limiter *middleware.RateLimiter
	if cfg.Gateway.RateLimitPerSecond > 0 {
		limiter = middleware.NewRateLimiter(map[string]middleware.RateLimit{
			"api": {RatePerSecond: cfg.Gateway.RateLimitPerSecond, Burst: cfg.Gateway.RateLimitBurst},
		}, logger)
	}
	return routes.New(routes.Config{
		Source:        routes.NetworkSource{Net: node.Net, Pool: node.Pool, Ledger: node.Ledger},
		Store:         store,
		Logger:        logger,
		RateLimiter:   limiter,
		RateLimitKey:  "api",
		Observability: obs,
		CORS:          middleware.CORSConfig{AllowedOrigins: cfg.Gateway.AllowedOrigins},
	})
}

// recordMetrics refreshes the pool gauges until ctx ends.
func recordMetrics(ctx context.Context, node *core.Node, logger *slog.Logger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := node.RecordMetrics(); err != nil {
				logger.Warn("record pool metrics", "error", err)
			}
		}
	}
}
