package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/txtracker"
)

type (
	// transactionResponse is the wire form of a canonical transaction.
	// Field names follow the tracker's established export format:
	// outputAddress is the sender, inputAddress the receiver.
	transactionResponse struct {
		TxID           string  `json:"txID"`
		BlockNumber    int64   `json:"blockNumber"`
		BlockTimestamp int64   `json:"blockTimestamp"`
		Date           string  `json:"date"`
		OutputAddress  string  `json:"outputAddress"`
		InputAddress   string  `json:"inputAddress"`
		Hash           string  `json:"hash"`
		Amount         string  `json:"amount"`
		Currency       string  `json:"currency"`
		USDValue       *string `json:"usdValue,omitempty"`
		Status         string  `json:"status"`
	}

	walletResponse struct {
		Address              string `json:"address"`
		LastCheckedTimestamp int64  `json:"lastCheckedTimestamp"`
	}

	statusResponse struct {
		Status    string `json:"status"`
		Version   string `json:"version"`
		Timestamp string `json:"timestamp"`
	}

	trackResponse struct {
		Success      bool                  `json:"success"`
		Message      string                `json:"message"`
		Transactions []transactionResponse `json:"transactions"`
	}
)

// toTransactionResponse maps a canonical transaction to its wire form.
func toTransactionResponse(tx txtracker.Transaction) transactionResponse {
	var usdValue *string
	if tx.USDValue != nil {
		v := tx.USDValue.String()
		usdValue = &v
	}

	return transactionResponse{
		TxID:           tx.ID,
		BlockNumber:    tx.BlockNumber,
		BlockTimestamp: tx.BlockTimestamp,
		Date:           tx.Date,
		OutputAddress:  tx.From,
		InputAddress:   tx.To,
		Hash:           tx.Hash,
		Amount:         tx.Amount.String(),
		Currency:       tx.Currency,
		USDValue:       usdValue,
		Status:         string(tx.Status),
	}
}

func toTransactionResponses(txs []txtracker.Transaction) []transactionResponse {
	responses := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		responses[i] = toTransactionResponse(tx)
	}
	return responses
}

// writeJSON serializes v to the response with the given status code.
func writeJSON(r *http.Request, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(r.Context(), "failed to encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, statusResponse{
		Status:    "running",
		Version:   s.version,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.tracker.Wallets(r.Context())
	if err != nil {
		writeJSON(r, w, http.StatusBadGateway, map[string]string{"error": "failed to list wallets"})
		return
	}

	responses := make([]walletResponse, len(wallets))
	for i, wallet := range wallets {
		responses[i] = walletResponse{
			Address:              wallet.Address,
			LastCheckedTimestamp: wallet.LastChecked,
		}
	}
	writeJSON(r, w, http.StatusOK, responses)
}

func (s *Server) handleAllTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.tracker.AllTransactions(r.Context())
	if err != nil {
		writeJSON(r, w, http.StatusInternalServerError, map[string]string{"error": "failed to load transactions"})
		return
	}
	writeJSON(r, w, http.StatusOK, toTransactionResponses(txs))
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	txs, err := s.tracker.WalletTransactions(r.Context(), address)
	if err != nil {
		writeJSON(r, w, http.StatusInternalServerError, map[string]string{"error": "failed to load transactions"})
		return
	}
	writeJSON(r, w, http.StatusOK, toTransactionResponses(txs))
}

// handleTrack triggers one synchronous tracking cycle. Failures surface
// only through the response body: success=false with an explanatory
// message and an empty transaction list, never a process-level error.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	txs, err := s.tracker.TrackCycle(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, txtracker.ErrCycleInProgress) {
			status = http.StatusConflict
		}

		writeJSON(r, w, status, trackResponse{
			Success:      false,
			Message:      fmt.Sprintf("Error tracking transactions: %v", err),
			Transactions: []transactionResponse{},
		})
		return
	}

	writeJSON(r, w, http.StatusOK, trackResponse{
		Success:      true,
		Message:      fmt.Sprintf("Transaction tracking completed successfully. Found %d transactions.", len(txs)),
		Transactions: toTransactionResponses(txs),
	})
}
