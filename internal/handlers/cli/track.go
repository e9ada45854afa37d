package cli

import (
	"context"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/pkg/types"
	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/urfave/cli/v3"
)

// trackCommand returns the CLI command that runs a single tracking cycle
// and logs every newly observed transaction.
//
// Usage example:
//
//	tronwatch track
//	tronwatch track --address TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE
func trackCommand(tracker txtracker.Service) *cli.Command {
	return &cli.Command{
		Name:        "track",
		Description: "Runs one transaction tracking cycle and reports the newly observed transactions.",
		Usage:       "Fetches, normalizes, and persists new transactions for every tracked wallet, then exits.",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "report only transactions involving this wallet address (repeatable)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			txs, err := tracker.TrackCycle(ctx)
			if err != nil {
				return err
			}

			txs = filterByAddresses(txs, c.StringSlice("address"))

			for _, tx := range txs {
				logger.Info(ctx, "observed transaction",
					"tx.hash", tx.Hash,
					"tx.from", tx.From,
					"tx.to", tx.To,
					"tx.amount", tx.Amount.String(),
					"tx.currency", tx.Currency,
					"tx.date", tx.Date,
					"tx.block", tx.BlockNumber,
				)
			}

			logger.Info(ctx, "tracking cycle finished", "transactions.count", len(txs))
			return nil
		},
	}
}

// filterByAddresses keeps only the transactions involving one of the given
// addresses. An empty filter keeps everything.
func filterByAddresses(txs []txtracker.Transaction, addresses []string) []txtracker.Transaction {
	if len(addresses) == 0 {
		return txs
	}

	wanted := types.NewSet(addresses...)

	filtered := make([]txtracker.Transaction, 0, len(txs))
	for _, tx := range txs {
		if _, ok := wanted[tx.From]; ok {
			filtered = append(filtered, tx)
			continue
		}
		if _, ok := wanted[tx.To]; ok {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}
