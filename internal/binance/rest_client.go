package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dca-trade-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.binance.com/api/v3"
	testnetBaseURL = "https://testnet.binance.vision/api/v3"
	recvWindow     = "5000" // How long a request is valid in milliseconds

	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
	OrderSideBuy    = "BUY"
	OrderSideSell   = "SELL"

	codeInsufficientBalance = -2010
)

var (
	// ErrInsufficientBalance is returned when the account cannot cover an order.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrRateLimited is returned when the API keeps rejecting requests with
	// 429/418 after all retries.
	ErrRateLimited = errors.New("rate limited by exchange")
)

// RestClientInterface defines the interface for the Binance REST API client.
type RestClientInterface interface {
	GetServerTime() (int64, error)
	GetSymbolPrice(symbol string) (float64, error)
	GetAllTickerPrices() (map[string]string, error)
	GetExchangeInfo() (*ExchangeInfoResponse, error)
	GetAccount() (*AccountResponse, error)
	CreateMarketBuyByQuote(symbol string, quoteAmount float64) (*CreateOrderResponse, error)
	CreateLimitOrder(symbol, side string, quantity, price float64) (*CreateOrderResponse, error)
	CancelOrder(symbol string, orderID int64) error
	GetOpenOrders(symbol string) ([]OpenOrder, error)
	GetMyTrades(symbol string, startTime, endTime int64) ([]AccountTrade, error)
	GetDayHighLow(symbol string, day time.Time) (high, low float64, err error)
}

// RestClient is a client for the Binance REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
	now       func() time.Time
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance REST API client.
func NewRestClient(cfg *config.Binance, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Binance Testnet")
	} else {
		url = baseURL
		logger.Info("Using Binance Production API")
	}

	client := resty.New().SetBaseURL(url)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
		now:       time.Now,
	}
}

// sign creates a HMAC-SHA256 signature for the request.
func (c *RestClient) sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// signParams stamps the params with timestamp/recvWindow and appends the
// signature, returning the encoded query string for a signed endpoint.
func (c *RestClient) signParams(params url.Values) string {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", recvWindow)

	queryString := params.Encode()
	signature := c.sign(queryString)
	params.Set("signature", signature)

	return params.Encode()
}

// apiError is the error payload Binance returns alongside non-2xx statuses.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	rateLimited := false
	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests || statusCode == 418 { // HTTP 429 or 418
				shouldRetry = true
				rateLimited = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			if apiErr := decodeAPIError(resp.Body()); apiErr != nil && apiErr.Code == codeInsufficientBalance {
				return nil, fmt.Errorf("%s: %w", apiErr.Message, ErrInsufficientBalance)
			}
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if rateLimited {
		return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, ErrRateLimited)
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

func decodeAPIError(body []byte) *apiError {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == 0 {
		return nil
	}
	return &apiErr
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime() (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetResult(&ServerTimeResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// TickerPrice represents the response for a single ticker price.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetSymbolPrice fetches the current price for a single trading pair.
func (c *RestClient) GetSymbolPrice(symbol string) (float64, error) {
	var ticker TickerPrice

	req := c.client.R().
		SetResult(&ticker).
		SetQueryParam("symbol", symbol)
	ctx := context.Background()

	_, err := c.doRequest(ctx, "GET", "/ticker/price", req)
	if err != nil {
		return 0, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q for %s: %w", ticker.Price, symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("exchange returned non-positive price %f for %s", price, symbol)
	}

	return price, nil
}

// GetAllTickerPrices fetches the latest price for all symbols.
func (c *RestClient) GetAllTickerPrices() (map[string]string, error) {
	var prices []*TickerPrice

	req := c.client.R().
		SetResult(&prices).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/ticker/price", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get all ticker prices: %w", err)
	}

	result := resp.Result().(*[]*TickerPrice)
	priceMap := make(map[string]string, len(*result))
	for _, p := range *result {
		priceMap[p.Symbol] = p.Price
	}

	return priceMap, nil
}

// ExchangeInfoResponse represents the full response from the /exchangeInfo endpoint.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo contains information about a specific trading symbol.
type SymbolInfo struct {
	Symbol               string   `json:"symbol"`
	Status               string   `json:"status"`
	BaseAsset            string   `json:"baseAsset"`
	QuoteAsset           string   `json:"quoteAsset"`
	IsSpotTradingAllowed bool     `json:"isSpotTradingAllowed"`
	Filters              []Filter `json:"filters"`
}

// Filter represents a single filter for a symbol.
// We are interested in the LOT_SIZE filter to get the stepSize.
type Filter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty,omitempty"`
	MaxQty     string `json:"maxQty,omitempty"`
	StepSize   string `json:"stepSize,omitempty"`
}

// GetExchangeInfo fetches exchange trading rules and symbol information.
func (c *RestClient) GetExchangeInfo() (*ExchangeInfoResponse, error) {
	var exchangeInfo ExchangeInfoResponse

	req := c.client.R().
		SetResult(&exchangeInfo).
		SetHeader("Content-Type", "application/json")
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/exchangeInfo", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	return resp.Result().(*ExchangeInfoResponse), nil
}

// AccountBalance is a single asset balance inside the account response.
type AccountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// AccountResponse represents the signed /account endpoint response.
type AccountResponse struct {
	AccountType string           `json:"accountType"`
	CanTrade    bool             `json:"canTrade"`
	Balances    []AccountBalance `json:"balances"`
}

// FreeBalance returns the free balance for an asset, zero if absent or
// unparsable.
func (a *AccountResponse) FreeBalance(asset string) float64 {
	for _, b := range a.Balances {
		if b.Asset == asset {
			free, _ := strconv.ParseFloat(b.Free, 64)
			return free
		}
	}
	return 0
}

// GetAccount fetches the account information, including wallet balances.
func (c *RestClient) GetAccount() (*AccountResponse, error) {
	params := url.Values{}
	query := c.signParams(params)

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query).
		SetResult(&AccountResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/account", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return resp.Result().(*AccountResponse), nil
}

// CreateOrderResponse represents the response from creating a new order.
type CreateOrderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	TransactTime        int64  `json:"transactTime"`
	Price               string `json:"price"`
	OrigQuantity        string `json:"origQty"`
	ExecutedQuantity    string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	TimeInForce         string `json:"timeInForce"`
	Type                string `json:"type"`
	Side                string `json:"side"`
}

// newClientOrderID generates a unique client order id so a submission can be
// identified even if the response is lost.
func newClientOrderID() string {
	return "dca-" + uuid.NewString()
}

// CreateMarketBuyByQuote places a market BUY order that spends the given
// amount of the quote currency (quoteOrderQty), letting the exchange compute
// the base quantity at execution price.
func (c *RestClient) CreateMarketBuyByQuote(symbol string, quoteAmount float64) (*CreateOrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", OrderSideBuy)
	params.Set("type", OrderTypeMarket)
	params.Set("quoteOrderQty", strconv.FormatFloat(quoteAmount, 'f', 2, 64))
	params.Set("newClientOrderId", newClientOrderID())

	return c.submitOrder(symbol, params)
}

// CreateLimitOrder places a limit order at the given price with GTC time in
// force.
func (c *RestClient) CreateLimitOrder(symbol, side string, quantity, price float64) (*CreateOrderResponse, error) {
	if side != OrderSideBuy && side != OrderSideSell {
		return nil, fmt.Errorf("invalid order side %q", side)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", OrderTypeLimit)
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
	params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
	params.Set("timeInForce", "GTC") // Good-Til-Canceled
	params.Set("newClientOrderId", newClientOrderID())

	return c.submitOrder(symbol, params)
}

// submitOrder signs the order params and posts them to /order.
func (c *RestClient) submitOrder(symbol string, params url.Values) (*CreateOrderResponse, error) {
	body := c.signParams(params)

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(body).
		SetResult(&CreateOrderResponse{})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "POST", "/order", req)
	if err != nil {
		c.logger.Error("Failed to create order after multiple attempts",
			zap.Error(err),
			zap.String("symbol", symbol),
		)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := resp.Result().(*CreateOrderResponse)
	c.logger.Info("Successfully created order", zap.Any("order", result))
	return result, nil
}

// CancelOrder cancels an open order by id.
func (c *RestClient) CancelOrder(symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	query := c.signParams(params)

	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query)
	ctx := context.Background()

	if _, err := c.doRequest(ctx, "DELETE", "/order", req); err != nil {
		return fmt.Errorf("failed to cancel order %d for %s: %w", orderID, symbol, err)
	}

	c.logger.Info("Order canceled", zap.String("symbol", symbol), zap.Int64("order_id", orderID))
	return nil
}

// OpenOrder represents one order from the /openOrders endpoint.
type OpenOrder struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status              string `json:"status"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Time                int64  `json:"time"`
}

// GetOpenOrders fetches all open orders, optionally filtered by symbol.
func (c *RestClient) GetOpenOrders(symbol string) ([]OpenOrder, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	query := c.signParams(params)

	var orders []OpenOrder
	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query).
		SetResult(&orders)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/openOrders", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}

	return *resp.Result().(*[]OpenOrder), nil
}

// AccountTrade represents one executed trade from the /myTrades endpoint.
type AccountTrade struct {
	Symbol          string `json:"symbol"`
	OrderID         int64  `json:"orderId"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	QuoteQty        string `json:"quoteQty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
}

// GetMyTrades fetches the account's trade history for a symbol. A zero
// startTime/endTime leaves the corresponding bound open.
func (c *RestClient) GetMyTrades(symbol string, startTime, endTime int64) ([]AccountTrade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if startTime > 0 {
		params.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		params.Set("endTime", strconv.FormatInt(endTime, 10))
	}
	query := c.signParams(params)

	var trades []AccountTrade
	req := c.client.R().
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetQueryString(query).
		SetResult(&trades)
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/myTrades", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades for %s: %w", symbol, err)
	}

	return *resp.Result().(*[]AccountTrade), nil
}

// GetDayHighLow fetches the high and low price of the given UTC calendar day
// from the daily kline.
func (c *RestClient) GetDayHighLow(symbol string, day time.Time) (float64, float64, error) {
	start := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	req := c.client.R().
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  "1d",
			"startTime": strconv.FormatInt(start.UnixMilli(), 10),
			"endTime":   strconv.FormatInt(end.UnixMilli(), 10),
			"limit":     "1",
		})
	ctx := context.Background()

	resp, err := c.doRequest(ctx, "GET", "/klines", req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	// Klines come back as arrays: [openTime, open, high, low, close, ...].
	var klines [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &klines); err != nil {
		return 0, 0, fmt.Errorf("failed to decode klines for %s: %w", symbol, err)
	}
	if len(klines) == 0 || len(klines[0]) < 5 {
		return 0, 0, fmt.Errorf("no kline data for %s on %s", symbol, start.Format("2006-01-02"))
	}

	high, err := parseKlineField(klines[0][2])
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse kline high for %s: %w", symbol, err)
	}
	low, err := parseKlineField(klines[0][3])
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse kline low for %s: %w", symbol, err)
	}

	return high, low, nil
}

func parseKlineField(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}
