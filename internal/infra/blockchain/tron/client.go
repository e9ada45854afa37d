// Package tron implements the txtracker.TransactionFetcher interface on
// top of the trongrid HTTP API. It owns the raw wire formats of the two
// transfer feeds (native TRX transactions and TRC20 token transfers) and
// maps them into canonical transactions.
package tron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	transport "github.com/gabapcia/tronwatch/internal/pkg/transport/http"
	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultBaseURL is the public trongrid API endpoint.
	DefaultBaseURL = "https://api.trongrid.io"

	// apiKeyHeader carries the trongrid API key on every request.
	apiKeyHeader = "TRON-PRO-API-KEY"

	// orderNewestFirst asks the API for records sorted newest first,
	// matching the merge order used everywhere downstream.
	orderNewestFirst = "block_timestamp,desc"

	// defaultPageLimit is the number of records requested per feed.
	defaultPageLimit = 50
)

type (
	nativeTransactionsEnvelope struct {
		Data []NativeTransactionResponse `json:"data"`
	}

	tokenTransfersEnvelope struct {
		Data []TokenTransferResponse `json:"data"`
	}
)

type client struct {
	conn    *retryablehttp.Client
	baseURL string
	apiKey  string

	pageLimit    int
	degradedMode bool
	now          func() time.Time
}

// Compile-time assertion that *client implements the fetcher interface.
var _ txtracker.TransactionFetcher = (*client)(nil)

type config struct {
	conn         *retryablehttp.Client
	pageLimit    int
	degradedMode bool
	now          func() time.Time
}

// Option customizes the trongrid client created by NewClient.
type Option func(*config)

// WithHTTPClient replaces the default retrying HTTP client. Every request
// still carries the client's hard per-call timeout.
func WithHTTPClient(conn *retryablehttp.Client) Option {
	return func(c *config) {
		c.conn = conn
	}
}

// WithPageLimit sets how many records are requested per feed per fetch.
// Default: 50.
func WithPageLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithDegradedMode toggles the degraded-mode policy: when enabled,
// missing credentials or upstream failures are answered with fabricated
// sample transactions instead of errors, keeping the pipeline exercisable
// without a reachable API. Off by default; intended for development.
func WithDegradedMode(enabled bool) Option {
	return func(c *config) {
		c.degradedMode = enabled
	}
}

// WithClock overrides the time source used for sample data timestamps.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewClient creates a trongrid client for the given base URL and API key.
// An empty API key is valid only in degraded mode.
func NewClient(baseURL, apiKey string, opts ...Option) *client {
	cfg := config{
		conn:      transport.NewClient(),
		pageLimit: defaultPageLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &client{
		conn:         cfg.conn,
		baseURL:      baseURL,
		apiKey:       apiKey,
		pageLimit:    cfg.pageLimit,
		degradedMode: cfg.degradedMode,
		now:          cfg.now,
	}
}

// get performs one authenticated GET against the API and decodes the JSON
// response into out.
func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.conn.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// feedQuery builds the query parameters shared by both transfer feeds.
// minTimestamp is the inclusive lower bound in epoch milliseconds and is
// omitted when zero.
func (c *client) feedQuery(minTimestamp int64) url.Values {
	query := url.Values{
		"limit":    []string{strconv.Itoa(c.pageLimit)},
		"order_by": []string{orderNewestFirst},
	}
	if minTimestamp > 0 {
		query.Set("min_timestamp", strconv.FormatInt(minTimestamp, 10))
	}
	return query
}

// fetchNativeTransfers retrieves raw native transaction records for the
// address from the account transactions feed.
func (c *client) fetchNativeTransfers(ctx context.Context, address string, minTimestamp int64) ([]NativeTransactionResponse, error) {
	path := fmt.Sprintf("/v1/accounts/%s/transactions", address)

	var envelope nativeTransactionsEnvelope
	if err := c.get(ctx, path, c.feedQuery(minTimestamp), &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// fetchTokenTransfers retrieves raw TRC20 transfer records for the
// address from the token transfers feed.
func (c *client) fetchTokenTransfers(ctx context.Context, address string, minTimestamp int64) ([]TokenTransferResponse, error) {
	path := fmt.Sprintf("/v1/accounts/%s/transactions/trc20", address)

	var envelope tokenTransfersEnvelope
	if err := c.get(ctx, path, c.feedQuery(minTimestamp), &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// FetchTransactions implements the txtracker.TransactionFetcher interface.
//
// Both feeds are fetched independently: a single failing feed is degraded
// to an empty list for this call, and only when both feeds fail does the
// wallet produce an error. In degraded mode, failures (and missing
// credentials) are answered with sample transactions instead.
func (c *client) FetchTransactions(ctx context.Context, address string, minTimestamp int64) ([]txtracker.Transaction, error) {
	if c.degradedMode && c.apiKey == "" {
		logger.Warn(ctx, "no api key configured, serving sample transactions", "wallet.address", address)
		return c.sampleTransactions(address), nil
	}

	nativeRecords, nativeErr := c.fetchNativeTransfers(ctx, address, minTimestamp)
	tokenRecords, tokenErr := c.fetchTokenTransfers(ctx, address, minTimestamp)

	if nativeErr != nil && tokenErr != nil {
		if c.degradedMode {
			logger.Warn(ctx, "both transfer feeds failed, serving sample transactions",
				"wallet.address", address,
				"error", errors.Join(nativeErr, tokenErr),
			)
			return c.sampleTransactions(address), nil
		}
		return nil, errors.Join(nativeErr, tokenErr)
	}

	if nativeErr != nil {
		logger.Warn(ctx, "native transfer feed failed, continuing with token transfers only",
			"wallet.address", address,
			"error", nativeErr,
		)
	}
	if tokenErr != nil {
		logger.Warn(ctx, "token transfer feed failed, continuing with native transfers only",
			"wallet.address", address,
			"error", tokenErr,
		)
	}

	return txtracker.Merge(
		MapNativeTransfers(nativeRecords, address),
		MapTokenTransfers(tokenRecords, address),
	), nil
}
