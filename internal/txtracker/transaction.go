package txtracker

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Status indicates whether a transaction was executed successfully on chain.
type Status string

const (
	// StatusSuccess marks a transaction whose result code explicitly
	// indicated success.
	StatusSuccess Status = "SUCCESS"

	// StatusFailed marks every other transaction, including records that
	// carried no result code at all.
	StatusFailed Status = "FAILED"
)

// Direction describes how a transaction relates to a specific wallet.
type Direction string

const (
	DirectionIn   Direction = "IN"   // wallet is the receiver
	DirectionOut  Direction = "OUT"  // wallet is the sender
	DirectionSelf Direction = "SELF" // wallet is both sender and receiver
)

// Transaction is the canonical record every raw chain encoding is mapped
// into. Native coin transfers and token transfers share this single shape.
//
// Transactions are immutable once constructed: mappers build them, and no
// component mutates them afterwards.
type Transaction struct {
	// ID is the chain-assigned transaction identifier and the natural
	// deduplication key at the sink.
	ID string

	// BlockNumber is the height of the block containing the transaction.
	BlockNumber int64

	// BlockTimestamp is the block time in epoch milliseconds. Every
	// producer uses milliseconds; there is no mixed-unit call site.
	BlockTimestamp int64

	// Date is the RFC3339 rendering of BlockTimestamp. Informational
	// only; ordering always uses BlockTimestamp.
	Date string

	// From is the sender address, To the receiver address, both in the
	// chain's display (base58check) format.
	From string
	To   string

	// Hash equals ID for simple transfers.
	Hash string

	// Amount is the transferred value already scaled to human units.
	Amount decimal.Decimal

	// Currency is the native symbol, the token symbol, or a generic
	// fallback when the asset is unknown.
	Currency string

	// USDValue is the fiat value at observation time, when available.
	USDValue *decimal.Decimal

	// Status is SUCCESS or FAILED. Only SUCCESS transactions ever reach
	// a sink.
	Status Status
}

// DirectionFor reports how the transaction relates to the given wallet
// address: SELF when sender and receiver are the same wallet, OUT when the
// wallet is the sender, IN otherwise.
func (t Transaction) DirectionFor(wallet string) Direction {
	switch {
	case t.From == t.To:
		return DirectionSelf
	case t.From == wallet:
		return DirectionOut
	default:
		return DirectionIn
	}
}

// Involves reports whether the address is the sender or the receiver.
func (t Transaction) Involves(address string) bool {
	return t.From == address || t.To == address
}

// FormatBlockTime renders an epoch-millisecond block timestamp as RFC3339
// in UTC. All Date fields are produced through this single function.
func FormatBlockTime(epochMillis int64) string {
	return time.UnixMilli(epochMillis).UTC().Format(time.RFC3339)
}

// Merge concatenates the given transaction lists into a single sequence
// ordered by BlockTimestamp descending (most recent first). The sort is
// stable: transactions sharing a timestamp keep their input order, with
// list order taking precedence over position within a list.
//
// The same comparator serves both the per-wallet merge of native and token
// transfers and the cross-wallet aggregate merge.
func Merge(lists ...[]Transaction) []Transaction {
	var total int
	for _, list := range lists {
		total += len(list)
	}

	merged := make([]Transaction, 0, total)
	for _, list := range lists {
		merged = append(merged, list...)
	}

	slices.SortStableFunc(merged, func(a, b Transaction) int {
		return cmp.Compare(b.BlockTimestamp, a.BlockTimestamp)
	})

	return merged
}
