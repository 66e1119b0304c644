// Package main runs the bonding-curve engine as one process:
// - HTTP API: quotes, trades, graduation, agent creation
// - Websocket push: trade receipts and graduation events
// - Reconciliation: payout retries and stalled-graduation recovery
// - Prometheus metrics on a separate listener
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"agent-curve-engine/internal/api"
	"agent-curve-engine/internal/engine"
	"agent-curve-engine/internal/graduation"
	"agent-curve-engine/internal/locking"
	"agent-curve-engine/internal/notify"
	"agent-curve-engine/internal/observability"
	"agent-curve-engine/internal/quote"
	"agent-curve-engine/internal/reconcile"
	"agent-curve-engine/internal/storage"
	chstore "agent-curve-engine/internal/storage/clickhouse"
	"agent-curve-engine/internal/storage/memory"
	"agent-curve-engine/internal/storage/migrations"
	pgstore "agent-curve-engine/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	agents    storage.AgentStore
	positions storage.PositionStore
	trades    storage.TradeRecordStore
	events    storage.GraduationEventStore
	payouts   storage.FeePayoutStore
	ticks     storage.PriceTickStore
	ledger    storage.TradeLedger
}

func main() {
	// Load .env if present; system env vars win.
	_ = godotenv.Load()

	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "API HTTP address")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, price ticks)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	platformAddress := flag.String("platform-address", os.Getenv("PLATFORM_ADDRESS"), "Address receiving the platform fee share")
	sweepInterval := flag.Duration("sweep-interval", 30*time.Second, "Reconciliation sweep interval")
	maxPayoutAttempts := flag.Int("max-payout-attempts", 5, "Delivery attempts before a payout is abandoned")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if *platformAddress == "" {
		logger.Fatal("--platform-address is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("curve_engine")
	hub := notify.NewHub(metrics, log.New(os.Stdout, "[notify] ", log.LstdFlags))
	defer hub.Close()

	// One lock set for trades and graduations: a graduation's read-snapshot-
	// flip sequence must not interleave with a trade on the same agent.
	agentLocks := locking.NewKeyedMutex()

	graduations := graduation.NewManager(graduation.Options{
		Agents:      stores.agents,
		Positions:   stores.positions,
		Events:      stores.events,
		OnCompleted: hub.GraduationCompleted,
		Locks:       agentLocks,
		Metrics:     metrics,
		Logger:      log.New(os.Stdout, "[graduation] ", log.LstdFlags),
	})

	executor := engine.NewExecutor(engine.Options{
		Agents:          stores.agents,
		Positions:       stores.positions,
		Ledger:          stores.ledger,
		Ticks:           stores.ticks,
		Locks:           agentLocks,
		Metrics:         metrics,
		Logger:          log.New(os.Stdout, "[engine] ", log.LstdFlags),
		PlatformAddress: *platformAddress,
		Sink:            hub,
		OnGraduationEligible: func(agentID string) {
			// Trade-triggered graduation. AlreadyGraduated just means another
			// signal won the race.
			if _, err := graduations.Graduate(context.Background(), agentID); err != nil {
				logger.Printf("auto-graduation for agent %s: %v", agentID, err)
			}
		},
	})

	sweeper := reconcile.NewSweeper(reconcile.Options{
		Payouts:           stores.payouts,
		Events:            stores.events,
		Graduations:       graduations,
		Metrics:           metrics,
		Logger:            log.New(os.Stdout, "[reconcile] ", log.LstdFlags),
		Interval:          *sweepInterval,
		MaxPayoutAttempts: *maxPayoutAttempts,
	})
	go sweeper.Run(ctx)

	apiServer := api.NewServer(api.Options{
		Agents: stores.agents,
		Trades: stores.trades,
		Ticks:  stores.ticks,
		Quotes: quote.NewService(quote.Options{
			Agents:    stores.agents,
			Positions: stores.positions,
			Metrics:   metrics,
		}),
		Engine:      executor,
		Graduations: graduations,
		Stream:      hub,
		Metrics:     metrics,
		Logger:      logger,
	})

	go startMetricsServer(*metricsAddr, logger)

	httpServer := &http.Server{
		Addr:              *listenAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}
	}()

	logger.Printf("API listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores, running migrations on the
// persistent backends.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		agents := memory.NewAgentStore()
		positions := memory.NewPositionStore()
		trades := memory.NewTradeRecordStore()
		payouts := memory.NewPayoutStore()
		stores := &allStores{
			agents:    agents,
			positions: positions,
			trades:    trades,
			events:    memory.NewGraduationEventStore(),
			payouts:   payouts,
			ticks:     memory.NewPriceTickStore(),
			ledger:    memory.NewLedger(agents, positions, trades, payouts),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		agents:    pgstore.NewAgentStore(pool),
		positions: pgstore.NewPositionStore(pool),
		trades:    pgstore.NewTradeRecordStore(pool),
		events:    pgstore.NewGraduationEventStore(pool),
		payouts:   pgstore.NewPayoutStore(pool),
		ledger:    pgstore.NewLedger(pool),
	}
	cleanup := func() { pool.Close() }

	// ClickHouse is optional: without it price ticks are simply not
	// recorded (the engine treats the tick store as best-effort anyway).
	if clickhouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			chConn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.ticks = chstore.NewPriceTickStore(chConn)
		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

func startMetricsServer(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Printf("Metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("Metrics server error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
