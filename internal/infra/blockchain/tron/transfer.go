package tron

import (
	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/shopspring/decimal"
)

const (
	// transferContractType tags a native TRX transfer in the account
	// transactions feed. Records with any other contract type (contract
	// calls, staking, ...) are not transfers and are skipped.
	transferContractType = "TransferContract"

	// successResult is the only result code that marks a record as
	// successfully executed. Anything else, including an absent result,
	// maps to FAILED.
	successResult = "SUCCESS"

	// nativeCurrency is the chain's base asset symbol.
	nativeCurrency = "TRX"

	// nativeDecimals is the fixed precision of the base asset: raw
	// amounts arrive in sun, 10^6 sun per TRX.
	nativeDecimals = 6

	// fallbackTokenCurrency labels token transfers whose token metadata
	// carries no symbol.
	fallbackTokenCurrency = "TRC20"
)

type (
	// TransactionResult is one entry of a native record's result list.
	TransactionResult struct {
		ContractRet string `json:"contractRet"`
	}

	// TransferValue is the parameter block of a native transfer contract.
	// Addresses may arrive in raw hex form and are converted to display
	// form during mapping.
	TransferValue struct {
		OwnerAddress string `json:"owner_address"`
		ToAddress    string `json:"to_address"`
		Amount       int64  `json:"amount"`
	}

	// Contract is one contract invocation inside a native record.
	Contract struct {
		Type      string `json:"type"`
		Parameter struct {
			Value TransferValue `json:"value"`
		} `json:"parameter"`
	}

	// NativeTransactionResponse is a raw record from the account
	// transactions endpoint. Only the fields the mapper reads are
	// declared; the rest of the payload is ignored.
	NativeTransactionResponse struct {
		TxID           string              `json:"txID"`
		BlockNumber    int64               `json:"blockNumber"`
		BlockTimestamp int64               `json:"block_timestamp"`
		Ret            []TransactionResult `json:"ret"`
		RawData        struct {
			Contract []Contract `json:"contract"`
		} `json:"raw_data"`
	}

	// TokenInfo is the token metadata attached to a token transfer
	// record. Decimals is a pointer because the field may be absent for
	// exotic tokens, in which case raw amounts stay unconverted.
	TokenInfo struct {
		Symbol   string `json:"symbol"`
		Decimals *int32 `json:"decimals"`
	}

	// TokenTransferResponse is a raw record from the token transfers
	// endpoint: flat fields, unlike the nested native encoding.
	TokenTransferResponse struct {
		TransactionID  string     `json:"transaction_id"`
		BlockNumber    int64      `json:"block_number"`
		BlockTimestamp int64      `json:"block_timestamp"`
		From           string     `json:"from"`
		To             string     `json:"to"`
		Value          string     `json:"value"`
		Status         string     `json:"status"`
		TokenInfo      *TokenInfo `json:"token_info"`
	}
)

// resultStatus derives the canonical status from a native record's result
// list. SUCCESS requires an explicit success code in the first entry.
func resultStatus(ret []TransactionResult) txtracker.Status {
	if len(ret) > 0 && ret[0].ContractRet == successResult {
		return txtracker.StatusSuccess
	}
	return txtracker.StatusFailed
}

// toTransaction maps one native record into a canonical transaction. The
// boolean is false for records that are not well-formed TRX transfers;
// such records are skipped, never raised.
func (r NativeTransactionResponse) toTransaction() (txtracker.Transaction, bool) {
	if r.TxID == "" || len(r.RawData.Contract) == 0 {
		return txtracker.Transaction{}, false
	}

	contract := r.RawData.Contract[0]
	if contract.Type != transferContractType {
		return txtracker.Transaction{}, false
	}

	value := contract.Parameter.Value
	if value.OwnerAddress == "" || value.ToAddress == "" {
		return txtracker.Transaction{}, false
	}

	return txtracker.Transaction{
		ID:             r.TxID,
		BlockNumber:    r.BlockNumber,
		BlockTimestamp: r.BlockTimestamp,
		Date:           txtracker.FormatBlockTime(r.BlockTimestamp),
		From:           Base58CheckAddress(value.OwnerAddress),
		To:             Base58CheckAddress(value.ToAddress),
		Hash:           r.TxID,
		Amount:         decimal.New(value.Amount, -nativeDecimals),
		Currency:       nativeCurrency,
		Status:         resultStatus(r.Ret),
	}, true
}

// toTransaction maps one token record into a canonical transaction. The
// raw amount is scaled by the token's declared decimals when present and
// kept unconverted otherwise; a value that does not parse as a number
// drops the record.
func (r TokenTransferResponse) toTransaction() (txtracker.Transaction, bool) {
	if r.TransactionID == "" || r.From == "" || r.To == "" {
		return txtracker.Transaction{}, false
	}

	amount, err := decimal.NewFromString(r.Value)
	if err != nil {
		return txtracker.Transaction{}, false
	}
	if r.TokenInfo != nil && r.TokenInfo.Decimals != nil {
		amount = amount.Shift(-*r.TokenInfo.Decimals)
	}

	currency := fallbackTokenCurrency
	if r.TokenInfo != nil && r.TokenInfo.Symbol != "" {
		currency = r.TokenInfo.Symbol
	}

	status := txtracker.StatusFailed
	if r.Status == successResult {
		status = txtracker.StatusSuccess
	}

	return txtracker.Transaction{
		ID:             r.TransactionID,
		BlockNumber:    r.BlockNumber,
		BlockTimestamp: r.BlockTimestamp,
		Date:           txtracker.FormatBlockTime(r.BlockTimestamp),
		From:           Base58CheckAddress(r.From),
		To:             Base58CheckAddress(r.To),
		Hash:           r.TransactionID,
		Amount:         amount,
		Currency:       currency,
		Status:         status,
	}, true
}

// MapNativeTransfers converts raw native records into canonical
// transactions, keeping only well-formed TRX transfers that executed
// successfully and involve the tracked address. Zero and negative amounts
// are valid; self-transfers are kept and labeled downstream.
func MapNativeTransfers(records []NativeTransactionResponse, trackedAddress string) []txtracker.Transaction {
	txs := make([]txtracker.Transaction, 0, len(records))
	for _, record := range records {
		tx, ok := record.toTransaction()
		if !ok {
			continue
		}

		if tx.Status == txtracker.StatusSuccess && tx.Involves(trackedAddress) {
			txs = append(txs, tx)
		}
	}
	return txs
}

// MapTokenTransfers converts raw token records into canonical
// transactions, applying the same success and relevance filters as the
// native mapper.
func MapTokenTransfers(records []TokenTransferResponse, trackedAddress string) []txtracker.Transaction {
	txs := make([]txtracker.Transaction, 0, len(records))
	for _, record := range records {
		tx, ok := record.toTransaction()
		if !ok {
			continue
		}

		if tx.Status == txtracker.StatusSuccess && tx.Involves(trackedAddress) {
			txs = append(txs, tx)
		}
	}
	return txs
}
