package txtracker

import (
	"context"
	"sync"

	"github.com/gabapcia/tronwatch/internal/pkg/types"
)

// TransactionRepository holds the transactions observed by recent poll
// cycles and backs the query operations exposed over the API.
//
// It is an explicit dependency of the orchestrator rather than package
// state, so query endpoints and tests can share or swap the store freely.
type TransactionRepository interface {
	// StoreWalletTransactions records newly observed transactions for a
	// wallet. New transactions are placed ahead of previously stored
	// ones, keeping each wallet's history newest first.
	StoreWalletTransactions(ctx context.Context, address string, txs []Transaction) error

	// WalletTransactions returns the stored transactions for a wallet,
	// newest first. An unknown wallet yields an empty slice.
	WalletTransactions(ctx context.Context, address string) ([]Transaction, error)

	// AllTransactions returns the stored transactions of every wallet
	// merged into one sequence, newest first.
	AllTransactions(ctx context.Context) ([]Transaction, error)
}

// memoryRepository is the default, process-local TransactionRepository.
// A plain mutex guards every operation: the per-wallet histories default-
// initialize on first access, so even reads may write to the map.
type memoryRepository struct {
	mu           sync.Mutex
	transactions types.DefaultMap[string, []Transaction]
}

// NewMemoryRepository creates an empty in-memory TransactionRepository.
func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		transactions: types.NewDefaultMap[string](func() []Transaction { return nil }),
	}
}

func (r *memoryRepository) StoreWalletTransactions(ctx context.Context, address string, txs []Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.transactions.Get(address)
	r.transactions.Set(address, append(append([]Transaction{}, txs...), stored...))
	return nil
}

func (r *memoryRepository) WalletTransactions(ctx context.Context, address string) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.transactions.Get(address)
	txs := make([]Transaction, len(stored))
	copy(txs, stored)
	return txs, nil
}

func (r *memoryRepository) AllTransactions(ctx context.Context) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.transactions.ToMap()
	lists := make([][]Transaction, 0, len(stored))
	for _, txs := range stored {
		lists = append(lists, txs)
	}

	return Merge(lists...), nil
}

// Compile-time assertion that the in-memory store satisfies the interface.
var _ TransactionRepository = (*memoryRepository)(nil)
