// Package main watches a Pyth price account and prints every snapshot with
// the engine's verdict on it. Optionally decodes a holder record account and
// reads a token balance before watching.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/observability"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/reporting"
	"solana-token-guard/internal/solana"
)

func main() {
	rt, err := config.LoadRuntime(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", rt.RPCEndpoint, "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", rt.WSEndpoint, "Solana WebSocket endpoint (optional)")
	feedAccount := flag.String("feed-account", rt.PriceFeedAccount, "Pyth price account")
	pollInterval := flag.Duration("poll-interval", 10*time.Second, "RPC poll interval when pushes go quiet")
	holderAccount := flag.String("holder-account", "", "HolderData account to decode once (optional)")
	tokenAccount := flag.String("token-account", "", "SPL token account to read the balance of once (optional)")
	once := flag.Bool("once", false, "Print a single snapshot and exit")
	logLevel := flag.String("log-level", rt.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if *rpcEndpoint == "" {
		fmt.Fprintln(os.Stderr, "Error: --rpc-endpoint is required")
		os.Exit(1)
	}

	logger, err := observability.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := config.DefaultPolicy()
	rpc := solana.NewHTTPClient(*rpcEndpoint)

	if *holderAccount != "" {
		if err := printHolder(ctx, os.Stdout, rpc, *holderAccount); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading holder account: %v\n", err)
			os.Exit(1)
		}
	}
	if *tokenAccount != "" {
		if err := printBalance(ctx, os.Stdout, rpc, *tokenAccount); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading token account: %v\n", err)
			os.Exit(1)
		}
	}

	adapter, err := oracle.NewAdapter(policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating adapter: %v\n", err)
		os.Exit(1)
	}
	source := oracle.NewRPCFeedSource(rpc, *feedAccount)

	if *once {
		feed, err := source.Fetch(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching feed: %v\n", err)
			os.Exit(1)
		}
		q, qerr := adapter.GetNormalizedPrice(feed.Data)
		fmt.Fprintln(os.Stdout, formatQuote(*feed, q, qerr, policy.PriceDecimals))
		return
	}

	var ws solana.WSClient
	if *wsEndpoint != "" {
		wsClient, err := solana.NewWSClient(ctx, *wsEndpoint, nil)
		if err != nil {
			logger.Warn("websocket unavailable, polling only", zap.Error(err))
		} else {
			defer wsClient.Close()
			ws = wsClient
		}
	}

	watcher, err := oracle.NewFeedWatcher(oracle.WatcherOptions{
		Account:      *feedAccount,
		Source:       source,
		WS:           ws,
		Adapter:      adapter,
		PollInterval: *pollInterval,
		Logger:       logger,
		OnQuote: func(feed oracle.Feed, q domain.PriceQuote, err error) {
			fmt.Fprintln(os.Stdout, formatQuote(feed, q, err, policy.PriceDecimals))
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating watcher: %v\n", err)
		os.Exit(1)
	}

	if slot, err := rpc.GetSlot(ctx); err == nil {
		logger.Info("watching price feed", zap.String("account", *feedAccount), zap.Int64("current_slot", slot))
	}

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("watcher stopped", zap.Error(err))
	}
}

// formatQuote renders one snapshot verdict as a single line.
func formatQuote(feed oracle.Feed, q domain.PriceQuote, err error, priceDecimals uint8) string {
	if err != nil {
		return fmt.Sprintf("slot=%d REJECTED reason=%s error=%q", feed.Slot, oracle.RejectReason(err), err.Error())
	}
	return fmt.Sprintf("slot=%d publish_slot=%d price=$%s status=%s raw_price=%d conf=%d expo=%d",
		feed.Slot,
		q.PublishSlot,
		reporting.FormatUnits(q.Price, priceDecimals),
		q.Status,
		q.RawPrice,
		q.RawConfidence,
		q.Exponent,
	)
}

// printHolder fetches and decodes a HolderData account.
func printHolder(ctx context.Context, w io.Writer, rpc solana.RPCClient, account string) error {
	info, err := rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("account %s not found", account)
	}
	rec, err := domain.DecodeHolderRecord(info.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "holder %s authority=%s rewards_earned=%d last_claim=%d last_transfer=%d daily_count=%d last_day=%d\n",
		account,
		rec.Authority,
		rec.RewardsEarned,
		rec.LastClaimTimestamp,
		rec.LastTransferTimestamp,
		rec.DailyTransactionCount,
		rec.LastTransactionDay,
	)
	return nil
}

// printBalance reads an SPL token account balance.
func printBalance(ctx context.Context, w io.Writer, rpc solana.RPCClient, account string) error {
	bal, err := rpc.GetTokenAccountBalance(ctx, account)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "token account %s balance=%s (%d raw, %d decimals) slot=%d\n",
		account,
		reporting.FormatUnits(bal.Amount, bal.Decimals),
		bal.Amount,
		bal.Decimals,
		bal.Slot,
	)
	return nil
}
