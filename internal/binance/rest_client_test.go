package binance

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dca-trade-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:    client,
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		now:       time.Now,
	}

	return rc, server
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		expectedTime := time.Now().UnixMilli()
		mockResponse := fmt.Sprintf(`{"serverTime": %d}`, expectedTime)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/time", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(mockResponse))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime()

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, expectedTime, serverTime)
	})

	t.Run("APIError", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/time", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -1001, "msg": "Internal error"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		// Act
		serverTime, err := rc.GetServerTime()

		// Assert
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Equal(t, int64(0), serverTime)
	})
}

func TestGetSymbolPrice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ticker/price", r.URL.Path)
			assert.Equal(t, "BTCUSDC", r.URL.Query().Get("symbol"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol": "BTCUSDC", "price": "94321.50000000"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		price, err := rc.GetSymbolPrice("BTCUSDC")

		assert.NoError(t, err)
		assert.Equal(t, 94321.5, price)
	})

	t.Run("UnparsablePrice", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol": "BTCUSDC", "price": "not-a-number"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetSymbolPrice("BTCUSDC")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse price")
	})

	t.Run("NonPositivePrice", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol": "BTCUSDC", "price": "0.00000000"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetSymbolPrice("BTCUSDC")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "non-positive price")
	})
}

func TestCreateMarketBuyByQuote(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "/order", r.URL.Path)
			assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))

			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "BTCUSDC", r.PostForm.Get("symbol"))
			assert.Equal(t, OrderSideBuy, r.PostForm.Get("side"))
			assert.Equal(t, OrderTypeMarket, r.PostForm.Get("type"))
			assert.Equal(t, "20.00", r.PostForm.Get("quoteOrderQty"))
			assert.NotEmpty(t, r.PostForm.Get("timestamp"))
			assert.NotEmpty(t, r.PostForm.Get("signature"))
			assert.Contains(t, r.PostForm.Get("newClientOrderId"), "dca-")

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"symbol": "BTCUSDC",
				"orderId": 42,
				"clientOrderId": "dca-test",
				"executedQty": "0.00021000",
				"cummulativeQuoteQty": "20.00000000",
				"status": "FILLED",
				"side": "BUY"
			}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		order, err := rc.CreateMarketBuyByQuote("BTCUSDC", 20.0)

		assert.NoError(t, err)
		assert.Equal(t, int64(42), order.OrderID)
		assert.Equal(t, "FILLED", order.Status)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code": -2010, "msg": "Account has insufficient balance for requested action."}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		order, err := rc.CreateMarketBuyByQuote("BTCUSDC", 20.0)

		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Nil(t, order)
	})
}

func TestCreateLimitOrder(t *testing.T) {
	t.Run("InvalidSide", func(t *testing.T) {
		rc, server := setupTestServer(http.NotFoundHandler())
		defer server.Close()

		_, err := rc.CreateLimitOrder("BTCUSDC", "HOLD", 0.001, 90000)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid order side")
	})

	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, OrderTypeLimit, r.PostForm.Get("type"))
			assert.Equal(t, "GTC", r.PostForm.Get("timeInForce"))
			assert.Equal(t, "90000", r.PostForm.Get("price"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol": "BTCUSDC", "orderId": 7, "status": "NEW", "side": "BUY"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		order, err := rc.CreateLimitOrder("BTCUSDC", OrderSideBuy, 0.001, 90000)

		assert.NoError(t, err)
		assert.Equal(t, int64(7), order.OrderID)
		assert.Equal(t, "NEW", order.Status)
	})
}

func TestGetAccount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account", r.URL.Path)
		assert.Equal(t, "test_api_key", r.Header.Get("X-MBX-APIKEY"))
		assert.NotEmpty(t, r.URL.Query().Get("signature"))
		assert.NotEmpty(t, r.URL.Query().Get("timestamp"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"accountType": "SPOT",
			"canTrade": true,
			"balances": [
				{"asset": "USDC", "free": "120.50000000", "locked": "0.00000000"},
				{"asset": "BTC", "free": "0.00200000", "locked": "0.00000000"}
			]
		}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	account, err := rc.GetAccount()

	assert.NoError(t, err)
	assert.Equal(t, "SPOT", account.AccountType)
	assert.Len(t, account.Balances, 2)
	assert.Equal(t, 120.5, account.FreeBalance("USDC"))
	assert.Equal(t, 0.0, account.FreeBalance("ETH"))
}

func TestGetDayHighLow(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/klines", r.URL.Path)
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			assert.Equal(t, "BTCUSDC", r.URL.Query().Get("symbol"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[[1724976000000, "92000.0", "95500.5", "91000.1", "94000.0", "120.5", 1725062399999, "0", 100, "0", "0", "0"]]`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		high, low, err := rc.GetDayHighLow("BTCUSDC", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))

		assert.NoError(t, err)
		assert.Equal(t, 95500.5, high)
		assert.Equal(t, 91000.1, low)
	})

	t.Run("NoData", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, _, err := rc.GetDayHighLow("BTCUSDC", time.Now())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no kline data")
	})
}

func TestGetOpenOrdersAndCancel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openOrders":
			assert.Equal(t, "BTCUSDC", r.URL.Query().Get("symbol"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"symbol": "BTCUSDC", "orderId": 9, "status": "NEW", "side": "BUY"}]`))
		case "/order":
			assert.Equal(t, "DELETE", r.Method)
			assert.Equal(t, "9", r.URL.Query().Get("orderId"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"symbol": "BTCUSDC", "orderId": 9, "status": "CANCELED"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	orders, err := rc.GetOpenOrders("BTCUSDC")
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, int64(9), orders[0].OrderID)

	assert.NoError(t, rc.CancelOrder("BTCUSDC", orders[0].OrderID))
}

func TestGetMyTrades(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/myTrades", r.URL.Path)
		assert.Equal(t, "BTCUSDC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1000", r.URL.Query().Get("startTime"))
		assert.Empty(t, r.URL.Query().Get("endTime")) // zero bound stays open
		assert.NotEmpty(t, r.URL.Query().Get("signature"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol": "BTCUSDC", "orderId": 42, "price": "94000.0", "qty": "0.0002", "quoteQty": "18.8", "commission": "0.0000002", "commissionAsset": "BTC", "time": 1724976000000, "isBuyer": true}
		]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	trades, err := rc.GetMyTrades("BTCUSDC", 1000, 0)

	assert.NoError(t, err)
	assert.Len(t, trades, 1)
	assert.Equal(t, int64(42), trades[0].OrderID)
	assert.True(t, trades[0].IsBuyer)
}

func TestDecodeAPIError(t *testing.T) {
	assert.Nil(t, decodeAPIError([]byte(`not json`)))
	assert.Nil(t, decodeAPIError([]byte(`{"serverTime": 1}`)))

	apiErr := decodeAPIError([]byte(`{"code": -2010, "msg": "nope"}`))
	assert.NotNil(t, apiErr)
	assert.Equal(t, codeInsufficientBalance, apiErr.Code)
}

func TestNewRestClient(t *testing.T) {
	t.Run("Testnet", func(t *testing.T) {
		cfg := &config.Binance{Testnet: true}
		logger := zap.NewNop()
		rc := NewRestClient(cfg, logger)
		assert.NotNil(t, rc)
		assert.Equal(t, cfg.ApiKey, rc.apiKey)
		assert.Equal(t, cfg.SecretKey, rc.secretKey)
	})

	t.Run("Production", func(t *testing.T) {
		cfg := &config.Binance{Testnet: false}
		logger := zap.NewNop()
		rc := NewRestClient(cfg, logger)
		assert.NotNil(t, rc)
		assert.Equal(t, cfg.ApiKey, rc.apiKey)
		assert.Equal(t, cfg.SecretKey, rc.secretKey)
	})
}
