// Package file implements the txtracker.Sink interface on a flat text
// file: one labeled block per transaction, newest cycle prepended ahead
// of prior content behind a timestamped banner.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/pkg/types"
	"github.com/gabapcia/tronwatch/internal/txtracker"
)

const (
	// blockDelimiter closes every transaction block in the file.
	blockDelimiter = "----------------------------------------"

	// bannerDelimiter frames the banner separating a new cycle's output
	// from prior file content.
	bannerDelimiter = "======================"

	// hashFieldPrefix labels the transaction id line inside a block. It
	// doubles as the marker scanned to rebuild the set of already
	// persisted ids.
	hashFieldPrefix = "Hash: "

	// missingUSDValue is written when no fiat value is available.
	missingUSDValue = "N/A"

	fileMode = 0o644
)

type sink struct {
	mu   sync.Mutex // serializes writers of the same file
	path string

	trackedAddresses types.Set[string]
	now              func() time.Time
}

// Compile-time assertion that *sink implements the Sink interface.
var _ txtracker.Sink = (*sink)(nil)

type config struct {
	trackedAddresses []string
	now              func() time.Time
}

// Option customizes the file sink created by NewSink.
type Option func(*config)

// WithTrackedAddresses declares the wallet addresses under tracking, used
// to label each block's Type field as IN, OUT, or SELF. Without it, every
// non-self transfer is labeled IN.
func WithTrackedAddresses(addresses ...string) Option {
	return func(c *config) {
		c.trackedAddresses = append(c.trackedAddresses, addresses...)
	}
}

// WithClock overrides the time source used for the banner timestamp.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewSink creates a flat-file sink writing to path. The file is created
// on first append.
func NewSink(path string, opts ...Option) *sink {
	cfg := config{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &sink{
		path:             path,
		trackedAddresses: types.NewSet(cfg.trackedAddresses...),
		now:              cfg.now,
	}
}

// direction labels a transaction relative to the tracked wallet set.
func (s *sink) direction(tx txtracker.Transaction) txtracker.Direction {
	if tx.From == tx.To {
		return txtracker.DirectionSelf
	}
	if _, tracked := s.trackedAddresses[tx.From]; tracked {
		return txtracker.DirectionOut
	}
	return txtracker.DirectionIn
}

// formatTransaction renders one transaction as a labeled block.
func (s *sink) formatTransaction(tx txtracker.Transaction) string {
	usdValue := missingUSDValue
	if tx.USDValue != nil {
		usdValue = tx.USDValue.String()
	}

	return strings.Join([]string{
		"Date: " + tx.Date,
		"Type: " + string(s.direction(tx)),
		"From: " + tx.From,
		"To: " + tx.To,
		fmt.Sprintf("Amount: %s %s", tx.Amount.String(), tx.Currency),
		"USD Value: " + usdValue,
		hashFieldPrefix + tx.Hash,
		fmt.Sprintf("Block: %d", tx.BlockNumber),
		"Status: " + string(tx.Status),
		blockDelimiter,
	}, "\n")
}

// persistedHashes rebuilds the set of transaction ids already present in
// the file content by scanning for hash field lines.
func persistedHashes(content string) types.Set[string] {
	seen := types.NewSet[string]()
	for line := range strings.Lines(content) {
		if hash, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), hashFieldPrefix); ok {
			seen.Add(hash)
		}
	}
	return seen
}

// banner frames the boundary between a new cycle's output and the prior
// file content, carrying the write timestamp.
func (s *sink) banner() string {
	return strings.Join([]string{
		bannerDelimiter,
		fmt.Sprintf("NEW TRANSACTIONS (%s)", s.now().UTC().Format(time.RFC3339)),
		bannerDelimiter,
	}, "\n")
}

// Append implements the txtracker.Sink interface. Transactions whose id
// is already present in the file are skipped, so re-appending an
// overlapping batch never produces duplicate blocks. New output is
// prepended ahead of the prior content.
func (s *sink) Append(ctx context.Context, txs []txtracker.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading existing transactions file: %w", err)
	}

	seen := persistedHashes(string(previous))

	blocks := make([]string, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.Hash]; ok {
			continue
		}
		seen.Add(tx.Hash)

		blocks = append(blocks, s.formatTransaction(tx))
	}

	if len(blocks) == 0 {
		logger.Info(ctx, "no unseen transactions to persist", "sink.path", s.path)
		return nil
	}

	content := strings.Join(blocks, "\n\n")
	if len(previous) > 0 {
		content = content + "\n\n" + s.banner() + "\n\n" + string(previous)
	}

	if err := os.WriteFile(s.path, []byte(content), fileMode); err != nil {
		return fmt.Errorf("writing transactions file: %w", err)
	}

	logger.Info(ctx, "persisted transactions to file",
		"sink.path", s.path,
		"transactions.count", len(blocks),
	)
	return nil
}
