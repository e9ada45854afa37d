// Package txtracker implements the wallet transaction tracking pipeline:
// it polls the chain for transfers touching tracked wallets, normalizes
// them into one canonical transaction model, merges them newest first,
// advances per-wallet watermarks, and hands newly observed transactions
// to a persistence sink.
package txtracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"

	"github.com/google/uuid"
)

// ErrCycleInProgress is returned by TrackCycle when another cycle is still
// running. Cycles never overlap: a manual trigger arriving mid-cycle is
// rejected instead of racing the scheduled one over the same watermarks.
var ErrCycleInProgress = errors.New("tracking cycle already in progress")

// defaultMaxConcurrentFetches bounds the per-wallet fan-out so the
// upstream API's rate limits are respected.
const defaultMaxConcurrentFetches = 4

// Service drives poll cycles and answers queries against the transactions
// observed by recent cycles.
type Service interface {
	// TrackCycle runs one full poll cycle synchronously and returns the
	// cycle-wide aggregate of newly observed transactions, newest first.
	//
	// It returns ErrCycleInProgress when a cycle is already running, and
	// an error when the wallet source is unreachable. Per-wallet fetch
	// failures and sink failures are logged and degraded, never
	// propagated.
	TrackCycle(ctx context.Context) ([]Transaction, error)

	// WalletTransactions returns the transactions observed for one
	// wallet across recent cycles, newest first.
	WalletTransactions(ctx context.Context, address string) ([]Transaction, error)

	// AllTransactions returns the transactions observed for every wallet
	// across recent cycles, newest first.
	AllTransactions(ctx context.Context) ([]Transaction, error)

	// Wallets returns the wallet set as currently reported by the wallet
	// source, with watermarks resolved from storage.
	Wallets(ctx context.Context) ([]Wallet, error)
}

type service struct {
	cycleMu sync.Mutex // held for the duration of a cycle, TryLock'd by TrackCycle

	walletSource WalletSource
	fetcher      TransactionFetcher
	sink         Sink

	watermarks WatermarkStorage
	repository TransactionRepository

	maxConcurrentFetches int
	now                  func() time.Time
}

// Compile-time check that *service implements the Service interface.
var _ Service = (*service)(nil)

type config struct {
	watermarks           WatermarkStorage
	repository           TransactionRepository
	maxConcurrentFetches int
	now                  func() time.Time
}

// Option customizes the tracker service created by New.
type Option func(*config)

// WithWatermarkStorage injects a durable watermark store. The default
// keeps watermarks in process memory only.
func WithWatermarkStorage(ws WatermarkStorage) Option {
	return func(c *config) {
		c.watermarks = ws
	}
}

// WithRepository injects the transaction repository backing the query
// operations. The default is an in-memory store.
func WithRepository(r TransactionRepository) Option {
	return func(c *config) {
		c.repository = r
	}
}

// WithMaxConcurrentFetches caps how many wallets are fetched in parallel
// during a cycle. Default: 4.
func WithMaxConcurrentFetches(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxConcurrentFetches = n
		}
	}
}

// WithClock overrides the time source used for cycle start timestamps.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a tracker service polling wallets from walletSource through
// fetcher and persisting newly observed transactions to sink.
func New(walletSource WalletSource, fetcher TransactionFetcher, sink Sink, opts ...Option) *service {
	cfg := config{
		watermarks:           NewMemoryWatermarkStorage(),
		repository:           NewMemoryRepository(),
		maxConcurrentFetches: defaultMaxConcurrentFetches,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		walletSource:         walletSource,
		fetcher:              fetcher,
		sink:                 sink,
		watermarks:           cfg.watermarks,
		repository:           cfg.repository,
		maxConcurrentFetches: cfg.maxConcurrentFetches,
		now:                  cfg.now,
	}
}

// resolveWatermark returns the wallet with its watermark replaced by the
// persisted value when one exists. Wallets never seen before keep the
// lower bound supplied by the wallet source (typically a trailing window).
func (s *service) resolveWatermark(ctx context.Context, wallet Wallet) Wallet {
	stored, err := s.watermarks.LoadWatermark(ctx, wallet.Address)
	if err != nil {
		if !errors.Is(err, ErrNoWatermarkFound) {
			logger.Warn(ctx, "failed to load wallet watermark, using source lower bound",
				"wallet.address", wallet.Address,
				"error", err,
			)
		}
		return wallet
	}

	wallet.LastChecked = stored
	return wallet
}

// walletFetchResult carries one wallet's outcome from the fan-out workers
// back to the aggregating goroutine.
type walletFetchResult struct {
	wallet Wallet
	txs    []Transaction
	err    error
}

// fetchWalletTransactions performs the per-wallet fetch step. Failures are
// returned, not raised: the caller degrades them to zero transactions for
// this cycle and leaves the wallet's watermark untouched so the failed
// window is retried next cycle.
func (s *service) fetchWalletTransactions(ctx context.Context, wallet Wallet) walletFetchResult {
	txs, err := s.fetcher.FetchTransactions(ctx, wallet.Address, wallet.NextFetchLowerBound())
	return walletFetchResult{
		wallet: wallet,
		txs:    txs,
		err:    err,
	}
}

// fanOutWalletFetches fetches every wallet concurrently, bounded by
// maxConcurrentFetches, and returns a channel that yields one result per
// wallet before being closed. Wallets have no data dependency on each
// other, so the only coordination point is the fan-in.
func (s *service) fanOutWalletFetches(ctx context.Context, wallets []Wallet) <-chan walletFetchResult {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, s.maxConcurrentFetches)
		resultsCh = make(chan walletFetchResult, len(wallets))
	)

	for _, wallet := range wallets {
		wg.Add(1)
		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			resultsCh <- s.fetchWalletTransactions(ctx, wallet)
		}()
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	return resultsCh
}

// TrackCycle implements the Service interface. One cycle walks the states
// fetch-wallets -> per-wallet-fetch -> aggregate -> persist, returning to
// idle whatever happens; nothing in here is fatal to the host process.
func (s *service) TrackCycle(ctx context.Context) ([]Transaction, error) {
	if !s.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	var (
		cycleID    = uuid.NewString()
		cycleStart = s.now().UnixMilli()
	)

	logger.Info(ctx, "starting transaction tracking cycle", "cycle.id", cycleID)

	wallets, err := s.walletSource.ListWallets(ctx)
	if err != nil {
		logger.Error(ctx, "failed to list wallets, ending cycle", "cycle.id", cycleID, "error", err)
		return nil, fmt.Errorf("listing wallets: %w", err)
	}

	if len(wallets) == 0 {
		logger.Warn(ctx, "no wallets to track", "cycle.id", cycleID)
		return nil, nil
	}

	for i, wallet := range wallets {
		wallets[i] = s.resolveWatermark(ctx, wallet)
	}

	perWalletLists := make([][]Transaction, 0, len(wallets))
	for result := range s.fanOutWalletFetches(ctx, wallets) {
		if result.err != nil {
			// Degraded to zero transactions; the watermark stays put so
			// the failed window is re-fetched next cycle.
			logger.Error(ctx, "failed to fetch wallet transactions",
				"cycle.id", cycleID,
				"wallet.address", result.wallet.Address,
				"error", result.err,
			)
			continue
		}

		s.advanceWatermark(ctx, result.wallet, cycleStart)

		if len(result.txs) == 0 {
			continue
		}

		if err := s.repository.StoreWalletTransactions(ctx, result.wallet.Address, result.txs); err != nil {
			logger.Error(ctx, "failed to store wallet transactions",
				"cycle.id", cycleID,
				"wallet.address", result.wallet.Address,
				"error", err,
			)
		}

		perWalletLists = append(perWalletLists, result.txs)
	}

	aggregate := Merge(perWalletLists...)

	if len(aggregate) > 0 {
		// A sink failure does not roll back watermarks already advanced:
		// at-least-once delivery with a possible gap is the accepted
		// tradeoff, and the next cycle proceeds normally.
		if err := s.sink.Append(ctx, aggregate); err != nil {
			logger.Error(ctx, "failed to append transactions to sink",
				"cycle.id", cycleID,
				"transactions.count", len(aggregate),
				"error", err,
			)
		}
	}

	logger.Info(ctx, "completed transaction tracking cycle",
		"cycle.id", cycleID,
		"wallets.count", len(wallets),
		"transactions.count", len(aggregate),
	)

	return aggregate, nil
}

// advanceWatermark persists the wallet's new watermark after a successful
// per-wallet fetch. The new value is the cycle start time, not the newest
// transaction timestamp. Persistence failures are logged only; the next
// cycle will simply re-cover a wider window.
func (s *service) advanceWatermark(ctx context.Context, wallet Wallet, cycleStart int64) {
	advanced := wallet.Advanced(cycleStart)
	if err := s.watermarks.SaveWatermark(ctx, advanced.Address, advanced.LastChecked); err != nil {
		logger.Error(ctx, "failed to save wallet watermark",
			"wallet.address", advanced.Address,
			"watermark", advanced.LastChecked,
			"error", err,
		)
	}
}

// WalletTransactions implements the Service interface.
func (s *service) WalletTransactions(ctx context.Context, address string) ([]Transaction, error) {
	return s.repository.WalletTransactions(ctx, address)
}

// AllTransactions implements the Service interface.
func (s *service) AllTransactions(ctx context.Context) ([]Transaction, error) {
	return s.repository.AllTransactions(ctx)
}

// Wallets implements the Service interface.
func (s *service) Wallets(ctx context.Context) ([]Wallet, error) {
	wallets, err := s.walletSource.ListWallets(ctx)
	if err != nil {
		return nil, err
	}

	for i, wallet := range wallets {
		wallets[i] = s.resolveWatermark(ctx, wallet)
	}
	return wallets, nil
}
