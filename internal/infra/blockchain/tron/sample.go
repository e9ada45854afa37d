package tron

import (
	"time"

	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// sampleCounterpart is the fixed counterparty address used in fabricated
// sample transactions.
const sampleCounterpart = "TQn9Y2khEsLJW1ChVWFMSMeRDow5KcbLSE"

// sampleTransactions fabricates one outgoing native transfer and one
// incoming token transfer for the wallet, timestamped within the last
// hour. Served only under the degraded-mode policy so the rest of the
// pipeline stays exercisable without a reachable API.
func (c *client) sampleTransactions(address string) []txtracker.Transaction {
	var (
		now      = c.now()
		nativeTS = now.Add(-30 * time.Minute).UnixMilli()
		tokenTS  = now.Add(-10 * time.Minute).UnixMilli()
		usdValue = decimal.NewFromFloat(25.5)
	)

	native := txtracker.Transaction{
		ID:             uuid.NewString(),
		BlockNumber:    55_000_000,
		BlockTimestamp: nativeTS,
		Date:           txtracker.FormatBlockTime(nativeTS),
		From:           address,
		To:             sampleCounterpart,
		Amount:         decimal.NewFromFloat(100.5),
		Currency:       nativeCurrency,
		Status:         txtracker.StatusSuccess,
	}
	native.Hash = native.ID

	token := txtracker.Transaction{
		ID:             uuid.NewString(),
		BlockNumber:    55_000_100,
		BlockTimestamp: tokenTS,
		Date:           txtracker.FormatBlockTime(tokenTS),
		From:           sampleCounterpart,
		To:             address,
		Amount:         usdValue,
		Currency:       "USDT",
		USDValue:       &usdValue,
		Status:         txtracker.StatusSuccess,
	}
	token.Hash = token.ID

	return txtracker.Merge([]txtracker.Transaction{native, token})
}
