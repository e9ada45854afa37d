package txtracker

import "context"

// TransactionFetcher retrieves the canonical transactions relevant to a
// wallet from the chain's public API.
//
// Implementations own the raw wire formats: they fetch both the native
// and the token transfer feeds, map each through the category mappers,
// filter to successful transfers touching the address, and return the two
// lists merged newest first.
type TransactionFetcher interface {
	// FetchTransactions returns every successful transfer involving the
	// address with a block timestamp at or after minTimestamp (epoch
	// milliseconds).
	//
	// A failure of either underlying feed may be degraded inside the
	// implementation; an error returned here means the wallet produced
	// no usable data this cycle. Calls must carry a hard timeout so a
	// stalled upstream cannot stall the whole cycle.
	FetchTransactions(ctx context.Context, address string, minTimestamp int64) ([]Transaction, error)
}
