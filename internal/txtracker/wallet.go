package txtracker

import (
	"context"
	"errors"
	"sync"
)

// ErrNoWatermarkFound is returned by WatermarkStorage implementations when
// a wallet has no persisted watermark yet. Callers fall back to the lower
// bound supplied by the wallet source.
var ErrNoWatermarkFound = errors.New("no watermark found for wallet")

// Wallet is a tracked wallet address together with its watermark: the
// timestamp below which its transactions are assumed already processed.
type Wallet struct {
	// Address uniquely identifies the wallet within the tracked set.
	Address string

	// LastChecked is the watermark in epoch milliseconds. It is
	// monotonically non-decreasing across successful poll cycles.
	LastChecked int64
}

// NextFetchLowerBound returns the inclusive lower bound to pass to the
// chain fetcher. It is the watermark unmodified: the upstream API's own
// minimum-timestamp semantics govern exact boundary inclusion, and
// boundary duplicates are tolerated because deduplication happens at the
// sink, not here.
func (w Wallet) NextFetchLowerBound() int64 {
	return w.LastChecked
}

// Advanced returns a copy of the wallet with its watermark moved to the
// given cycle start time. The watermark never moves backwards; advancing
// to the cycle start (rather than to the newest transaction seen)
// deliberately re-covers a small overlap window on every cycle so that
// clock skew or API lag cannot hide transactions.
func (w Wallet) Advanced(cycleStart int64) Wallet {
	if cycleStart > w.LastChecked {
		w.LastChecked = cycleStart
	}
	return w
}

// WalletSource supplies the current set of wallets to track. It is
// consulted at the start of every poll cycle, so additions and removals
// take effect without a restart.
type WalletSource interface {
	// ListWallets returns the wallets currently under tracking. An empty
	// slice means nothing to do this cycle; an error is treated the same
	// way by the orchestrator and ends the cycle early.
	ListWallets(ctx context.Context) ([]Wallet, error)
}

// WatermarkStorage persists per-wallet watermarks across poll cycles and
// process restarts.
//
// Implementations must serialize concurrent saves for the same wallet;
// the orchestrator itself only advances a wallet's watermark from a
// single goroutine per cycle.
type WatermarkStorage interface {
	// LoadWatermark returns the persisted watermark for the address in
	// epoch milliseconds, or ErrNoWatermarkFound when none exists.
	LoadWatermark(ctx context.Context, address string) (int64, error)

	// SaveWatermark persists the watermark for the address.
	SaveWatermark(ctx context.Context, address string, epochMillis int64) error
}

// memoryWatermarkStorage keeps watermarks in process memory. It is the
// default storage and the one used in tests; production wiring injects
// the redis-backed implementation instead.
type memoryWatermarkStorage struct {
	mu         sync.RWMutex
	watermarks map[string]int64
}

// NewMemoryWatermarkStorage creates an empty in-memory WatermarkStorage.
func NewMemoryWatermarkStorage() *memoryWatermarkStorage {
	return &memoryWatermarkStorage{
		watermarks: make(map[string]int64),
	}
}

func (m *memoryWatermarkStorage) LoadWatermark(ctx context.Context, address string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	watermark, ok := m.watermarks[address]
	if !ok {
		return 0, ErrNoWatermarkFound
	}
	return watermark, nil
}

func (m *memoryWatermarkStorage) SaveWatermark(ctx context.Context, address string, epochMillis int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.watermarks[address] = epochMillis
	return nil
}

// Compile-time assertion that the in-memory store satisfies the interface.
var _ WatermarkStorage = (*memoryWatermarkStorage)(nil)
