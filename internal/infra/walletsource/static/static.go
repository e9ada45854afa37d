// Package static implements the txtracker.WalletSource interface over a
// fixed, configuration-supplied list of wallet addresses.
package static

import (
	"context"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/validator"
	"github.com/gabapcia/tronwatch/internal/txtracker"
)

// defaultTrailingWindow is the fetch lower bound handed out for wallets
// with no persisted watermark yet.
const defaultTrailingWindow = 24 * time.Hour

// trackedWallet is the validated form of a configured address.
type trackedWallet struct {
	Address string `validate:"required"`
}

type source struct {
	addresses      []string
	trailingWindow time.Duration
	now            func() time.Time
}

// Compile-time assertion that *source implements the WalletSource interface.
var _ txtracker.WalletSource = (*source)(nil)

type config struct {
	trailingWindow time.Duration
	now            func() time.Time
}

// Option customizes the wallet source created by NewSource.
type Option func(*config)

// WithTrailingWindow sets the fetch lower bound handed out for wallets
// with no persisted watermark. Default: 24 hours.
func WithTrailingWindow(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.trailingWindow = d
		}
	}
}

// WithClock overrides the time source used for watermark defaults.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// NewSource creates a wallet source over the given addresses. Every
// address is validated up front so a misconfigured list fails at startup
// rather than mid-cycle.
func NewSource(addresses []string, opts ...Option) (*source, error) {
	cfg := config{
		trailingWindow: defaultTrailingWindow,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	for _, address := range addresses {
		if err := validator.Validate(trackedWallet{Address: address}); err != nil {
			return nil, err
		}
	}

	return &source{
		addresses:      addresses,
		trailingWindow: cfg.trailingWindow,
		now:            cfg.now,
	}, nil
}

// ListWallets implements the txtracker.WalletSource interface. Each
// wallet carries a trailing-window lower bound; the orchestrator replaces
// it with the persisted watermark for wallets seen before.
func (s *source) ListWallets(ctx context.Context) ([]txtracker.Wallet, error) {
	lowerBound := s.now().Add(-s.trailingWindow).UnixMilli()

	wallets := make([]txtracker.Wallet, 0, len(s.addresses))
	for _, address := range s.addresses {
		wallets = append(wallets, txtracker.Wallet{
			Address:     address,
			LastChecked: lowerBound,
		})
	}
	return wallets, nil
}
