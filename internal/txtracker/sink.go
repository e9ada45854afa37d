package txtracker

import "context"

// Sink appends canonical transactions to persistent storage (a flat file,
// a spreadsheet, ...).
//
// Every transaction handed to a Sink has Status SUCCESS and involves at
// least one tracked wallet. Because watermark advancement deliberately
// re-covers an overlap window, Append must tolerate lists containing
// transactions it has already persisted: deduplication by transaction ID
// is a sink concern.
type Sink interface {
	Append(ctx context.Context, txs []Transaction) error
}
