package tron

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init(logger.WithLevel("error"))
}

// noRetryHTTPClient keeps failure tests fast by disabling retries and
// their backoff waits.
func noRetryHTTPClient() *retryablehttp.Client {
	conn := retryablehttp.NewClient()
	conn.RetryMax = 0
	conn.Logger = nil
	return conn
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, envelope any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(envelope))
}

func TestFetchTransactions(t *testing.T) {
	t.Run("merges native and token transfers newest first", func(t *testing.T) {
		native := nativeTransfer("native-tx", trackedAddress, counterpartyAddress, 100_000_000, "SUCCESS")
		native.BlockTimestamp = 1715769000000

		token := TokenTransferResponse{
			TransactionID:  "token-tx",
			BlockTimestamp: 1715769060000,
			From:           counterpartyAddress,
			To:             trackedAddress,
			Value:          "1",
			Status:         "SUCCESS",
		}

		var nativeQuery, tokenQuery map[string]string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/accounts/{address}/transactions", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, trackedAddress, r.PathValue("address"))
			assert.Equal(t, "test-api-key", r.Header.Get("TRON-PRO-API-KEY"))

			nativeQuery = map[string]string{
				"limit":         r.URL.Query().Get("limit"),
				"order_by":      r.URL.Query().Get("order_by"),
				"min_timestamp": r.URL.Query().Get("min_timestamp"),
			}
			writeEnvelope(t, w, nativeTransactionsEnvelope{Data: []NativeTransactionResponse{native}})
		})
		mux.HandleFunc("GET /v1/accounts/{address}/transactions/trc20", func(w http.ResponseWriter, r *http.Request) {
			tokenQuery = map[string]string{
				"limit":         r.URL.Query().Get("limit"),
				"order_by":      r.URL.Query().Get("order_by"),
				"min_timestamp": r.URL.Query().Get("min_timestamp"),
			}
			writeEnvelope(t, w, tokenTransfersEnvelope{Data: []TokenTransferResponse{token}})
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		c := NewClient(server.URL, "test-api-key", WithHTTPClient(noRetryHTTPClient()), WithPageLimit(25))

		txs, err := c.FetchTransactions(t.Context(), trackedAddress, 1715765400000)

		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "token-tx", txs[0].ID)
		assert.Equal(t, "native-tx", txs[1].ID)

		expectedQuery := map[string]string{
			"limit":         "25",
			"order_by":      "block_timestamp,desc",
			"min_timestamp": "1715765400000",
		}
		assert.Equal(t, expectedQuery, nativeQuery)
		assert.Equal(t, expectedQuery, tokenQuery)
	})

	t.Run("omits min_timestamp for wallets never fetched before", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/accounts/{address}/transactions", func(w http.ResponseWriter, r *http.Request) {
			assert.False(t, r.URL.Query().Has("min_timestamp"))
			writeEnvelope(t, w, nativeTransactionsEnvelope{})
		})
		mux.HandleFunc("GET /v1/accounts/{address}/transactions/trc20", func(w http.ResponseWriter, r *http.Request) {
			assert.False(t, r.URL.Query().Has("min_timestamp"))
			writeEnvelope(t, w, tokenTransfersEnvelope{})
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		c := NewClient(server.URL, "test-api-key", WithHTTPClient(noRetryHTTPClient()))

		txs, err := c.FetchTransactions(t.Context(), trackedAddress, 0)

		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("degrades a single failing feed to an empty list", func(t *testing.T) {
		token := TokenTransferResponse{
			TransactionID:  "token-tx",
			BlockTimestamp: 1715769060000,
			From:           counterpartyAddress,
			To:             trackedAddress,
			Value:          "1",
			Status:         "SUCCESS",
		}

		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1/accounts/{address}/transactions", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		mux.HandleFunc("GET /v1/accounts/{address}/transactions/trc20", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, tokenTransfersEnvelope{Data: []TokenTransferResponse{token}})
		})

		server := httptest.NewServer(mux)
		defer server.Close()

		c := NewClient(server.URL, "test-api-key", WithHTTPClient(noRetryHTTPClient()))

		txs, err := c.FetchTransactions(t.Context(), trackedAddress, 0)

		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "token-tx", txs[0].ID)
	})

	t.Run("fails when both feeds fail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-api-key", WithHTTPClient(noRetryHTTPClient()))

		_, err := c.FetchTransactions(t.Context(), trackedAddress, 0)

		require.Error(t, err)
	})

	t.Run("serves sample transactions when both feeds fail in degraded mode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, "test-api-key",
			WithHTTPClient(noRetryHTTPClient()),
			WithDegradedMode(true),
		)

		txs, err := c.FetchTransactions(t.Context(), trackedAddress, 0)

		require.NoError(t, err)
		require.Len(t, txs, 2)
		for _, tx := range txs {
			assert.True(t, tx.Involves(trackedAddress))
			assert.Equal(t, txtracker.StatusSuccess, tx.Status)
		}
	})

	t.Run("serves sample transactions without an api key in degraded mode", func(t *testing.T) {
		c := NewClient(DefaultBaseURL, "", WithDegradedMode(true))

		txs, err := c.FetchTransactions(t.Context(), trackedAddress, 0)

		require.NoError(t, err)
		require.Len(t, txs, 2)

		// Newest first: the fabricated token transfer postdates the native one.
		assert.Equal(t, "USDT", txs[0].Currency)
		assert.Equal(t, "TRX", txs[1].Currency)
	})
}
