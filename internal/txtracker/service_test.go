package txtracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init(logger.WithLevel("error"))
}

type walletSourceFake struct {
	wallets []Wallet
	err     error
}

func (f *walletSourceFake) ListWallets(ctx context.Context) ([]Wallet, error) {
	return f.wallets, f.err
}

type fetcherFake struct {
	mu    sync.Mutex
	fetch func(address string, minTimestamp int64) ([]Transaction, error)
	calls map[string]int64
}

func (f *fetcherFake) FetchTransactions(ctx context.Context, address string, minTimestamp int64) ([]Transaction, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int64)
	}
	f.calls[address] = minTimestamp
	f.mu.Unlock()

	if f.fetch == nil {
		return nil, nil
	}
	return f.fetch(address, minTimestamp)
}

func (f *fetcherFake) lowerBoundFor(address string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bound, ok := f.calls[address]
	return bound, ok
}

type sinkFake struct {
	mu      sync.Mutex
	batches [][]Transaction
	err     error
}

func (f *sinkFake) Append(ctx context.Context, txs []Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, txs)
	return f.err
}

type failingWatermarkStorage struct{}

func (failingWatermarkStorage) LoadWatermark(ctx context.Context, address string) (int64, error) {
	return 0, errors.New("storage unavailable")
}

func (failingWatermarkStorage) SaveWatermark(ctx context.Context, address string, epochMillis int64) error {
	return errors.New("storage unavailable")
}

func TestNew(t *testing.T) {
	t.Run("creates service with defaults", func(t *testing.T) {
		svc := New(&walletSourceFake{}, &fetcherFake{}, &sinkFake{})

		require.NotNil(t, svc)
		assert.NotNil(t, svc.watermarks)
		assert.NotNil(t, svc.repository)
		assert.Equal(t, defaultMaxConcurrentFetches, svc.maxConcurrentFetches)
	})

	t.Run("applies options", func(t *testing.T) {
		watermarks := NewMemoryWatermarkStorage()
		repo := NewMemoryRepository()

		svc := New(&walletSourceFake{}, &fetcherFake{}, &sinkFake{},
			WithWatermarkStorage(watermarks),
			WithRepository(repo),
			WithMaxConcurrentFetches(2),
		)

		assert.Equal(t, WatermarkStorage(watermarks), svc.watermarks)
		assert.Equal(t, TransactionRepository(repo), svc.repository)
		assert.Equal(t, 2, svc.maxConcurrentFetches)
	})

	t.Run("ignores non-positive fan-out caps", func(t *testing.T) {
		svc := New(&walletSourceFake{}, &fetcherFake{}, &sinkFake{}, WithMaxConcurrentFetches(0))

		assert.Equal(t, defaultMaxConcurrentFetches, svc.maxConcurrentFetches)
	})
}

func TestTrackCycle(t *testing.T) {
	cycleStart := time.UnixMilli(1715769000000)

	t.Run("aggregates wallet transactions newest first and persists them", func(t *testing.T) {
		walletA := Wallet{Address: "wallet-a", LastChecked: 100}
		walletB := Wallet{Address: "wallet-b", LastChecked: 100}

		fetcher := &fetcherFake{
			fetch: func(address string, minTimestamp int64) ([]Transaction, error) {
				switch address {
				case "wallet-a":
					return []Transaction{{ID: "tx-a", BlockTimestamp: 300}}, nil
				default:
					return []Transaction{{ID: "tx-b", BlockTimestamp: 500}}, nil
				}
			},
		}
		sink := &sinkFake{}
		watermarks := NewMemoryWatermarkStorage()

		svc := New(
			&walletSourceFake{wallets: []Wallet{walletA, walletB}},
			fetcher,
			sink,
			WithWatermarkStorage(watermarks),
			WithClock(func() time.Time { return cycleStart }),
		)

		txs, err := svc.TrackCycle(t.Context())

		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "tx-b", txs[0].ID)
		assert.Equal(t, "tx-a", txs[1].ID)

		require.Len(t, sink.batches, 1)
		assert.Len(t, sink.batches[0], 2)

		for _, address := range []string{"wallet-a", "wallet-b"} {
			watermark, err := watermarks.LoadWatermark(t.Context(), address)
			require.NoError(t, err)
			assert.Equal(t, cycleStart.UnixMilli(), watermark)
		}
	})

	t.Run("stored watermark overrides the source lower bound", func(t *testing.T) {
		fetcher := &fetcherFake{}
		watermarks := NewMemoryWatermarkStorage()
		require.NoError(t, watermarks.SaveWatermark(t.Context(), "wallet-a", 900))

		svc := New(
			&walletSourceFake{wallets: []Wallet{{Address: "wallet-a", LastChecked: 100}}},
			fetcher,
			&sinkFake{},
			WithWatermarkStorage(watermarks),
		)

		_, err := svc.TrackCycle(t.Context())
		require.NoError(t, err)

		bound, ok := fetcher.lowerBoundFor("wallet-a")
		require.True(t, ok)
		assert.Equal(t, int64(900), bound)
	})

	t.Run("wallet source failure ends the cycle", func(t *testing.T) {
		sourceErr := errors.New("sheet unreachable")
		svc := New(&walletSourceFake{err: sourceErr}, &fetcherFake{}, &sinkFake{})

		txs, err := svc.TrackCycle(t.Context())

		require.ErrorIs(t, err, sourceErr)
		assert.Nil(t, txs)
	})

	t.Run("empty wallet set is a no-op", func(t *testing.T) {
		sink := &sinkFake{}
		svc := New(&walletSourceFake{}, &fetcherFake{}, sink)

		txs, err := svc.TrackCycle(t.Context())

		require.NoError(t, err)
		assert.Nil(t, txs)
		assert.Empty(t, sink.batches)
	})

	t.Run("per-wallet fetch failure skips the wallet and holds its watermark", func(t *testing.T) {
		fetchErr := errors.New("rate limited")
		fetcher := &fetcherFake{
			fetch: func(address string, minTimestamp int64) ([]Transaction, error) {
				if address == "wallet-a" {
					return nil, fetchErr
				}
				return []Transaction{{ID: "tx-b", BlockTimestamp: 500}}, nil
			},
		}
		watermarks := NewMemoryWatermarkStorage()

		svc := New(
			&walletSourceFake{wallets: []Wallet{
				{Address: "wallet-a", LastChecked: 100},
				{Address: "wallet-b", LastChecked: 100},
			}},
			fetcher,
			&sinkFake{},
			WithWatermarkStorage(watermarks),
			WithClock(func() time.Time { return cycleStart }),
		)

		txs, err := svc.TrackCycle(t.Context())

		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "tx-b", txs[0].ID)

		_, err = watermarks.LoadWatermark(t.Context(), "wallet-a")
		assert.ErrorIs(t, err, ErrNoWatermarkFound)

		watermark, err := watermarks.LoadWatermark(t.Context(), "wallet-b")
		require.NoError(t, err)
		assert.Equal(t, cycleStart.UnixMilli(), watermark)
	})

	t.Run("sink failure does not fail the cycle", func(t *testing.T) {
		fetcher := &fetcherFake{
			fetch: func(address string, minTimestamp int64) ([]Transaction, error) {
				return []Transaction{{ID: "tx-a", BlockTimestamp: 300}}, nil
			},
		}
		sink := &sinkFake{err: errors.New("disk full")}

		svc := New(
			&walletSourceFake{wallets: []Wallet{{Address: "wallet-a"}}},
			fetcher,
			sink,
		)

		txs, err := svc.TrackCycle(t.Context())

		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("watermark storage failures degrade to the source lower bound", func(t *testing.T) {
		fetcher := &fetcherFake{}

		svc := New(
			&walletSourceFake{wallets: []Wallet{{Address: "wallet-a", LastChecked: 100}}},
			fetcher,
			&sinkFake{},
			WithWatermarkStorage(failingWatermarkStorage{}),
		)

		_, err := svc.TrackCycle(t.Context())
		require.NoError(t, err)

		bound, ok := fetcher.lowerBoundFor("wallet-a")
		require.True(t, ok)
		assert.Equal(t, int64(100), bound)
	})

	t.Run("single wallet cycle reports token and native transfers newest first", func(t *testing.T) {
		usdt := Transaction{
			ID:             "token-tx",
			BlockTimestamp: 1600,
			From:           "counterparty",
			To:             "wallet-a",
			Amount:         decimal.NewFromFloat(2.0),
			Currency:       "USDT",
			Status:         StatusSuccess,
		}
		trx := Transaction{
			ID:             "native-tx",
			BlockTimestamp: 1500,
			From:           "wallet-a",
			To:             "counterparty",
			Amount:         decimal.NewFromFloat(50.0),
			Currency:       "TRX",
			Status:         StatusSuccess,
		}

		fetcher := &fetcherFake{
			fetch: func(address string, minTimestamp int64) ([]Transaction, error) {
				return Merge([]Transaction{trx}, []Transaction{usdt}), nil
			},
		}
		sink := &sinkFake{}
		repo := NewMemoryRepository()

		svc := New(
			&walletSourceFake{wallets: []Wallet{{Address: "wallet-a", LastChecked: 1000}}},
			fetcher,
			sink,
			WithRepository(repo),
			WithClock(func() time.Time { return cycleStart }),
		)

		txs, err := svc.TrackCycle(t.Context())

		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "USDT", txs[0].Currency)
		assert.Equal(t, "TRX", txs[1].Currency)

		require.Len(t, sink.batches, 1)
		assert.Equal(t, txs, sink.batches[0])

		stored, err := repo.WalletTransactions(t.Context(), "wallet-a")
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("rejects overlapping cycles", func(t *testing.T) {
		fetchStarted := make(chan struct{})
		release := make(chan struct{})

		fetcher := &fetcherFake{
			fetch: func(address string, minTimestamp int64) ([]Transaction, error) {
				close(fetchStarted)
				<-release
				return nil, nil
			},
		}

		svc := New(
			&walletSourceFake{wallets: []Wallet{{Address: "wallet-a"}}},
			fetcher,
			&sinkFake{},
		)

		firstDone := make(chan error, 1)
		go func() {
			_, err := svc.TrackCycle(context.Background())
			firstDone <- err
		}()

		<-fetchStarted

		_, err := svc.TrackCycle(t.Context())
		require.ErrorIs(t, err, ErrCycleInProgress)

		close(release)
		require.NoError(t, <-firstDone)
	})
}

func TestWalletTransactions(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.StoreWalletTransactions(t.Context(), "wallet-a", []Transaction{{ID: "tx-a"}}))

	svc := New(&walletSourceFake{}, &fetcherFake{}, &sinkFake{}, WithRepository(repo))

	txs, err := svc.WalletTransactions(t.Context(), "wallet-a")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-a", txs[0].ID)
}

func TestAllTransactions(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.StoreWalletTransactions(t.Context(), "wallet-a", []Transaction{{ID: "tx-a", BlockTimestamp: 100}}))
	require.NoError(t, repo.StoreWalletTransactions(t.Context(), "wallet-b", []Transaction{{ID: "tx-b", BlockTimestamp: 200}}))

	svc := New(&walletSourceFake{}, &fetcherFake{}, &sinkFake{}, WithRepository(repo))

	txs, err := svc.AllTransactions(t.Context())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-b", txs[0].ID)
}

func TestWallets(t *testing.T) {
	t.Run("resolves watermarks from storage", func(t *testing.T) {
		watermarks := NewMemoryWatermarkStorage()
		require.NoError(t, watermarks.SaveWatermark(t.Context(), "wallet-a", 900))

		svc := New(
			&walletSourceFake{wallets: []Wallet{
				{Address: "wallet-a", LastChecked: 100},
				{Address: "wallet-b", LastChecked: 100},
			}},
			&fetcherFake{},
			&sinkFake{},
			WithWatermarkStorage(watermarks),
		)

		wallets, err := svc.Wallets(t.Context())
		require.NoError(t, err)
		require.Len(t, wallets, 2)
		assert.Equal(t, int64(900), wallets[0].LastChecked)
		assert.Equal(t, int64(100), wallets[1].LastChecked)
	})

	t.Run("propagates wallet source failures", func(t *testing.T) {
		sourceErr := errors.New("sheet unreachable")
		svc := New(&walletSourceFake{err: sourceErr}, &fetcherFake{}, &sinkFake{})

		_, err := svc.Wallets(t.Context())
		require.ErrorIs(t, err, sourceErr)
	})
}
