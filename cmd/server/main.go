// Package main runs the token engine behind an HTTP API:
// - Engine: signed initialize, transfer and claim requests
// - Price feed: WebSocket push with RPC polling fallback
// - Ops: health and Prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/ledger"
	"solana-token-guard/internal/observability"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/orchestrator"
	"solana-token-guard/internal/solana"
)

const shutdownTimeout = 30 * time.Second

func main() {
	rt, err := config.LoadRuntime(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	flag.StringVar(&rt.RPCEndpoint, "rpc-endpoint", rt.RPCEndpoint, "Solana RPC HTTP endpoint")
	flag.StringVar(&rt.WSEndpoint, "ws-endpoint", rt.WSEndpoint, "Solana WebSocket endpoint (optional, enables push updates)")
	flag.StringVar(&rt.PriceFeedAccount, "feed-account", rt.PriceFeedAccount, "Pyth price account")
	flag.StringVar(&rt.TokenMint, "mint", rt.TokenMint, "Token mint address")
	flag.StringVar(&rt.MintAuthority, "mint-authority", rt.MintAuthority, "Mint authority (deployer) address")
	flag.StringVar(&rt.PostgresDSN, "postgres-dsn", rt.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&rt.ClickhouseDSN, "clickhouse-dsn", rt.ClickhouseDSN, "ClickHouse connection string")
	flag.BoolVar(&rt.UseMemory, "use-memory", rt.UseMemory, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	flag.StringVar(&rt.HTTPAddr, "http-addr", rt.HTTPAddr, "API HTTP address")
	flag.StringVar(&rt.MetricsAddr, "metrics-addr", rt.MetricsAddr, "Separate health/metrics HTTP address (empty to serve on the API address only)")
	flag.StringVar(&rt.LogLevel, "log-level", rt.LogLevel, "Log level (debug, info, warn, error)")
	pollInterval := flag.Duration("poll-interval", 10*time.Second, "Price feed RPC poll interval when pushes go quiet")
	flag.Parse()

	logger, err := observability.NewLogger(rt.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(rt, *pollInterval, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(rt *config.Runtime, pollInterval time.Duration, logger *zap.Logger) error {
	// Validate required settings
	if rt.RPCEndpoint == "" {
		return errors.New("--rpc-endpoint is required")
	}
	mint, err := domain.ParsePubkey(rt.TokenMint)
	if err != nil {
		return fmt.Errorf("--mint: %w", err)
	}
	mintAuthority, err := domain.ParsePubkey(rt.MintAuthority)
	if err != nil {
		return fmt.Errorf("--mint-authority: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go handleSignals(cancel, done, logger)

	stores, cleanup, err := createStores(ctx, rt)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	// The host owns balances: an in-memory ledger for the configured mint.
	policy := config.DefaultPolicy()
	book := ledger.NewMemory()
	if err := book.CreateMint(mint, mintAuthority, policy.Decimals); err != nil {
		return fmt.Errorf("create mint: %w", err)
	}

	engine, err := orchestrator.New(orchestrator.Options{
		Policy:   policy,
		Mint:     mint,
		Holders:  stores.holders,
		Vaults:   stores.vaults,
		Claims:   stores.claims,
		Ledger:   book,
		Events:   stores.events,
		Observer: metricsObserver{},
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	adapter, err := oracle.NewAdapter(policy)
	if err != nil {
		return fmt.Errorf("create oracle adapter: %w", err)
	}

	rpc := solana.NewHTTPClient(rt.RPCEndpoint, solana.WithObserver(recordRPC))
	var ws solana.WSClient
	if rt.WSEndpoint != "" {
		wsClient, err := solana.NewWSClient(ctx, rt.WSEndpoint, nil)
		if err != nil {
			logger.Warn("websocket unavailable, polling only", zap.Error(err))
		} else {
			defer wsClient.Close()
			ws = wsClient
		}
	}

	watcher, err := oracle.NewFeedWatcher(oracle.WatcherOptions{
		Account:      rt.PriceFeedAccount,
		Source:       oracle.NewRPCFeedSource(rpc, rt.PriceFeedAccount),
		WS:           ws,
		Adapter:      adapter,
		PollInterval: pollInterval,
		Logger:       logger,
		OnQuote:      recordQuote(policy.PriceDecimals),
	})
	if err != nil {
		return fmt.Errorf("create feed watcher: %w", err)
	}

	server := NewServer(ServerOptions{
		Engine:   engine,
		Feed:     watcher,
		Adapter:  adapter,
		Events:   stores.events,
		Accounts: book,
		Logger:   logger,
	})

	logger.Info("starting server",
		zap.String("mint", mint.String()),
		zap.String("feed_account", rt.PriceFeedAccount),
		zap.String("http_addr", rt.HTTPAddr),
		zap.Bool("memory", rt.UseMemory),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		return serveHTTP(gctx, rt.HTTPAddr, server.Routes(), logger)
	})
	if rt.MetricsAddr != "" && rt.MetricsAddr != rt.HTTPAddr {
		g.Go(func() error {
			return serveHTTP(gctx, rt.MetricsAddr, server.OpsRoutes(), logger)
		})
	}
	return g.Wait()
}

// serveHTTP serves handler on addr until ctx is done, then shuts down.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", addr, err)
	}
	return ctx.Err()
}

// handleSignals cancels on the first signal and exits on a second one or
// when graceful shutdown takes too long.
func handleSignals(cancel context.CancelFunc, done <-chan struct{}, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
		os.Exit(1)
	case <-time.After(shutdownTimeout):
		logger.Error("graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
		os.Exit(1)
	case <-done:
	}
}
