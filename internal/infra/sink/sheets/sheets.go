// Package sheets implements both the txtracker.WalletSource and the
// txtracker.Sink interfaces on a Google Sheet: tracked wallet addresses
// are read from one column, and observed transactions are appended as
// rows.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/pkg/resilience/retry"
	"github.com/gabapcia/tronwatch/internal/pkg/types"
	"github.com/gabapcia/tronwatch/internal/txtracker"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const (
	// defaultWalletRange is the column holding tracked wallet addresses.
	defaultWalletRange = "Sheet1!I:I"

	// walletHeaderLabel marks the wallet column's header row, which is
	// filtered out of the wallet list.
	walletHeaderLabel = "wallets"

	// transactionIDRange is the column holding the ids of transactions
	// already appended, scanned to deduplicate re-appended batches.
	transactionIDRange = "Sheet1!D:D"

	// firstDataRow is where transaction rows start, right below the header.
	firstDataRow = 2

	// rawValueInput appends cell values without any sheet-side parsing.
	rawValueInput = "RAW"

	// defaultTrailingWindow is the fetch lower bound for wallets that
	// have no persisted watermark yet.
	defaultTrailingWindow = 24 * time.Hour
)

type client struct {
	svc           *sheets.Service
	spreadsheetID string
	walletRange   string

	trailingWindow time.Duration
	retry          retry.Retry
	now            func() time.Time
}

// Compile-time assertions for both roles the sheet plays.
var (
	_ txtracker.WalletSource = (*client)(nil)
	_ txtracker.Sink         = (*client)(nil)
)

type config struct {
	walletRange    string
	trailingWindow time.Duration
	retry          retry.Retry
	now            func() time.Time
}

// Option customizes the sheets client created by NewClient.
type Option func(*config)

// WithWalletRange overrides the sheet range scanned for tracked wallet
// addresses. Default: "Sheet1!I:I".
func WithWalletRange(r string) Option {
	return func(c *config) {
		c.walletRange = r
	}
}

// WithTrailingWindow sets the fetch lower bound handed out for wallets
// with no persisted watermark. Default: 24 hours.
func WithTrailingWindow(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.trailingWindow = d
		}
	}
}

// WithRetry sets the retry policy applied to sheet writes.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}

// WithClock overrides the time source used for watermark defaults.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewClient creates a Google Sheets client for the given API key and
// spreadsheet.
func NewClient(ctx context.Context, apiKey, spreadsheetID string, opts ...Option) (*client, error) {
	cfg := config{
		walletRange:    defaultWalletRange,
		trailingWindow: defaultTrailingWindow,
		retry:          retry.New(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc, err := sheets.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("initializing sheets service: %w", err)
	}

	return &client{
		svc:            svc,
		spreadsheetID:  spreadsheetID,
		walletRange:    cfg.walletRange,
		trailingWindow: cfg.trailingWindow,
		retry:          cfg.retry,
		now:            cfg.now,
	}, nil
}

// ListWallets implements the txtracker.WalletSource interface. It reads
// the wallet column, skipping empty cells and the header row, and hands
// out a trailing-window lower bound; the orchestrator replaces it with
// the persisted watermark for wallets seen before.
func (c *client) ListWallets(ctx context.Context) ([]txtracker.Wallet, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.walletRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading wallet list: %w", err)
	}

	lowerBound := c.now().Add(-c.trailingWindow).UnixMilli()

	wallets := make([]txtracker.Wallet, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}

		address, ok := row[0].(string)
		if !ok {
			continue
		}

		address = strings.TrimSpace(address)
		if address == "" || address == walletHeaderLabel {
			continue
		}

		wallets = append(wallets, txtracker.Wallet{
			Address:     address,
			LastChecked: lowerBound,
		})
	}

	return wallets, nil
}

// appendedTransactionIDs returns the ids of transactions already present
// in the sheet, plus the next free row index.
func (c *client) appendedTransactionIDs(ctx context.Context) (types.Set[string], int, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, transactionIDRange).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("reading appended transaction ids: %w", err)
	}

	seen := types.NewSet[string]()
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id != "" {
			seen.Add(id)
		}
	}

	nextRow := len(resp.Values) + 1
	if nextRow < firstDataRow {
		nextRow = firstDataRow
	}

	return seen, nextRow, nil
}

// Append implements the txtracker.Sink interface. Transactions whose id
// is already present in the sheet are skipped, and the remainder is
// written below the last occupied row. The write is retried on transient
// failures.
func (c *client) Append(ctx context.Context, txs []txtracker.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	seen, nextRow, err := c.appendedTransactionIDs(ctx)
	if err != nil {
		return err
	}

	values := make([][]any, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.Hash]; ok {
			continue
		}
		seen.Add(tx.Hash)

		usdValue := ""
		if tx.USDValue != nil {
			usdValue = tx.USDValue.String()
		}

		values = append(values, []any{
			tx.Date,
			tx.From,
			tx.To,
			tx.Hash,
			tx.Amount.String(),
			tx.Currency,
			usdValue,
		})
	}

	if len(values) == 0 {
		logger.Info(ctx, "no unseen transactions to append to sheet", "sheet.id", c.spreadsheetID)
		return nil
	}

	writeRange := fmt.Sprintf("Sheet1!A%d", nextRow)
	body := &sheets.ValueRange{Values: values}

	err = c.retry.Execute(ctx, func() error {
		_, err := c.svc.Spreadsheets.Values.
			Update(c.spreadsheetID, writeRange, body).
			ValueInputOption(rawValueInput).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("appending transactions to sheet: %w", err)
	}

	logger.Info(ctx, "appended transactions to sheet",
		"sheet.id", c.spreadsheetID,
		"transactions.count", len(values),
	)
	return nil
}
