package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/solana"
)

const defaultPollInterval = 10 * time.Second

// WatcherOptions configures a FeedWatcher.
type WatcherOptions struct {
	Account string
	Source  FeedSource      // polled at start and whenever pushes go quiet; required
	WS      solana.WSClient // optional push updates for Account
	Adapter *Adapter        // evaluates every accepted snapshot; required

	PollInterval time.Duration
	Logger       *zap.Logger

	// OnQuote is called for every accepted snapshot with the adapter's verdict.
	OnQuote func(feed Feed, quote domain.PriceQuote, err error)

	// Now overrides the clock in tests.
	Now func() time.Time
}

// FeedWatcher keeps the latest price feed snapshot in memory.
// Pushed updates are preferred; the source is polled when no push arrived
// within PollInterval. Snapshots older than the cached slot are dropped.
type FeedWatcher struct {
	account      string
	source       FeedSource
	ws           solana.WSClient
	adapter      *Adapter
	pollInterval time.Duration
	log          *zap.Logger
	onQuote      func(Feed, domain.PriceQuote, error)
	now          func() time.Time

	mu         sync.RWMutex
	latest     *Feed
	lastUpdate time.Time
}

// NewFeedWatcher creates a watcher. Call Run to start it.
func NewFeedWatcher(opts WatcherOptions) (*FeedWatcher, error) {
	if opts.Source == nil {
		return nil, errors.New("feed watcher: source is required")
	}
	if opts.Adapter == nil {
		return nil, errors.New("feed watcher: adapter is required")
	}
	w := &FeedWatcher{
		account:      opts.Account,
		source:       opts.Source,
		ws:           opts.WS,
		adapter:      opts.Adapter,
		pollInterval: opts.PollInterval,
		log:          opts.Logger,
		onQuote:      opts.OnQuote,
		now:          opts.Now,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	w.log = w.log.Named("feed").With(zap.String("account", w.account))
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

// Run watches the feed until ctx is cancelled.
func (w *FeedWatcher) Run(ctx context.Context) error {
	var updates <-chan solana.AccountNotification
	if w.ws != nil {
		ch, err := w.ws.SubscribeAccount(ctx, w.account)
		if err != nil {
			w.log.Warn("subscribe failed, polling only", zap.Error(err))
		} else {
			updates = ch
			w.log.Info("subscribed")
		}
	}

	w.poll(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-updates:
			if !ok {
				w.log.Warn("subscription closed, polling only")
				updates = nil
				continue
			}
			w.Update(Feed{Account: n.Pubkey, Data: n.Account.Data, Slot: n.Account.Slot})

		case <-ticker.C:
			if updates != nil && w.now().Sub(w.lastUpdateTime()) < w.pollInterval {
				continue
			}
			w.poll(ctx)
		}
	}
}

// Update offers a snapshot to the cache. It reports whether the snapshot
// was accepted (not older than the cached one).
func (w *FeedWatcher) Update(feed Feed) bool {
	w.mu.Lock()
	if w.latest != nil && feed.Slot < w.latest.Slot {
		w.mu.Unlock()
		w.log.Debug("dropping stale snapshot", zap.Uint64("slot", feed.Slot), zap.Uint64("cached_slot", w.latest.Slot))
		return false
	}
	stored := feed
	stored.Data = append([]byte(nil), feed.Data...)
	w.latest = &stored
	w.lastUpdate = w.now()
	w.mu.Unlock()

	quote, err := w.adapter.GetNormalizedPrice(stored.Data)
	if err != nil {
		w.log.Info("feed rejected", zap.Uint64("slot", stored.Slot), zap.Error(err))
	} else {
		w.log.Debug("feed price", zap.Uint64("slot", stored.Slot), zap.Uint64("price", quote.Price))
	}
	if w.onQuote != nil {
		w.onQuote(stored, quote, err)
	}
	return true
}

// Fetch returns the cached snapshot, falling back to the source when
// nothing has been cached yet.
func (w *FeedWatcher) Fetch(ctx context.Context) (*Feed, error) {
	w.mu.RLock()
	latest := w.latest
	w.mu.RUnlock()

	if latest != nil {
		f := *latest
		f.Data = append([]byte(nil), latest.Data...)
		return &f, nil
	}

	feed, err := w.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	w.Update(*feed)
	return feed, nil
}

func (w *FeedWatcher) poll(ctx context.Context) {
	feed, err := w.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("poll failed", zap.Error(err))
		}
		return
	}
	w.Update(*feed)
}

func (w *FeedWatcher) lastUpdateTime() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastUpdate
}

var _ FeedSource = (*FeedWatcher)(nil)
