// Package lighter is the Lighter venue adapter. Lighter is the taker venue:
// the order book streams over WebSocket while orders, balances, and positions
// go through HMAC-signed REST.
package lighter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/crypto"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Client is the Lighter REST client. It implements domain.Venue; GetQuote is
// served from the WebSocket feed's cache by the engine, but the REST fallback
// here keeps the adapter complete for the shutdown path.
type Client struct {
	baseURL      string
	market       string
	accountIndex int
	httpClient   *http.Client
	auth         *crypto.HMACAuth
}

// New creates a Lighter client for one market.
func New(baseURL, market string, accountIndex int, auth *crypto.HMACAuth) *Client {
	return &Client{
		baseURL:      baseURL,
		market:       market,
		accountIndex: accountIndex,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		auth: auth,
	}
}

// Compile-time interface check.
var _ domain.Venue = (*Client)(nil)

// Name implements domain.Venue.
func (c *Client) Name() string { return domain.VenueLighter }

type bookResponse struct {
	Bids []priceLevel `json:"bids"`
	Asks []priceLevel `json:"asks"`
}

type priceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// GetQuote fetches the top of book over REST.
func (c *Client) GetQuote(ctx context.Context) (domain.Quote, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/orderBookOrders?market="+c.market, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("lighter: get orderbook: %w", err)
	}

	var book bookResponse
	if err := json.Unmarshal(respBody, &book); err != nil {
		return domain.Quote{}, fmt.Errorf("lighter: decode orderbook: %w", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return domain.Quote{}, fmt.Errorf("lighter: empty book for %s: %w", c.market, domain.ErrUnavailable)
	}

	bid, err := decimal.NewFromString(book.Bids[0].Price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("lighter: parse bid %q: %w", book.Bids[0].Price, err)
	}
	ask, err := decimal.NewFromString(book.Asks[0].Price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("lighter: parse ask %q: %w", book.Asks[0].Price, err)
	}
	return domain.Quote{Bid: bid, Ask: ask, At: time.Now()}, nil
}

type placeRequest struct {
	Market       string `json:"market"`
	AccountIndex int    `json:"account_index"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Size         string `json:"size"`
	TimeInForce  string `json:"time_in_force"` // "ioc" or "gtc"
	PostOnly     bool   `json:"post_only,omitempty"`
	ReduceOnly   bool   `json:"reduce_only,omitempty"`
}

type placeResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PlaceOrder submits an order. The engine only sends IOC takers here, but
// post-only is mapped through for completeness.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	body := placeRequest{
		Market:       c.market,
		AccountIndex: c.accountIndex,
		Side:         string(req.Side),
		Price:        req.Price.String(),
		Size:         req.Quantity.String(),
		TimeInForce:  "gtc",
		PostOnly:     req.Kind == domain.OrderKindMaker,
		ReduceOnly:   req.ReduceOnly,
	}
	if req.Kind == domain.OrderKindTaker {
		body.TimeInForce = "ioc"
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/v1/order", body)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("lighter: place order: %w", err)
	}

	var result placeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.OrderAck{}, fmt.Errorf("lighter: decode order response: %w", err)
	}
	if result.Status == "rejected" {
		if body.PostOnly {
			return domain.OrderAck{}, fmt.Errorf("lighter: %s: %w", result.Message, domain.ErrMakerRejected)
		}
		return domain.OrderAck{}, fmt.Errorf("lighter: order rejected: %s", result.Message)
	}

	return domain.OrderAck{
		OrderID: result.OrderID,
		Price:   req.Price,
		At:      time.Now(),
	}, nil
}

// CancelOrder cancels one order; a 404 maps to ErrOrderNotFound.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v1/order/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("lighter: cancel order %s: %w", orderID, err)
	}
	return nil
}

// CancelAllOrders cancels every open order for the configured market.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v1/orders?market="+c.market, nil)
	if err != nil {
		return fmt.Errorf("lighter: cancel all orders: %w", err)
	}
	return nil
}

type balanceResponse struct {
	Available string `json:"available_balance"`
}

// GetBalance returns available USDC collateral for the account.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	path := "/api/v1/account?account_index=" + strconv.Itoa(c.accountIndex)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lighter: get balance: %w", err)
	}

	var result balanceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return decimal.Zero, fmt.Errorf("lighter: decode balance: %w", err)
	}
	bal, err := decimal.NewFromString(result.Available)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lighter: parse balance %q: %w", result.Available, err)
	}
	return bal, nil
}

type positionResponse struct {
	Positions []struct {
		Market string `json:"market"`
		Size   string `json:"size"` // signed, positive long
	} `json:"positions"`
}

// GetPosition returns the signed net position for the configured market.
func (c *Client) GetPosition(ctx context.Context) (decimal.Decimal, error) {
	path := "/api/v1/positions?account_index=" + strconv.Itoa(c.accountIndex)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lighter: get position: %w", err)
	}

	var result positionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return decimal.Zero, fmt.Errorf("lighter: decode positions: %w", err)
	}
	for _, p := range result.Positions {
		if p.Market != c.market {
			continue
		}
		qty, err := decimal.NewFromString(p.Size)
		if err != nil {
			return decimal.Zero, fmt.Errorf("lighter: parse position %q: %w", p.Size, err)
		}
		return qty, nil
	}
	return decimal.Zero, nil
}

// ClosePosition submits a reduce-only IOC order flattening signedQty.
func (c *Client) ClosePosition(ctx context.Context, signedQty decimal.Decimal) error {
	if signedQty.IsZero() {
		return nil
	}

	q, err := c.GetQuote(ctx)
	if err != nil {
		return fmt.Errorf("lighter: close position: %w", err)
	}

	margin := decimal.RequireFromString("0.01")
	one := decimal.NewFromInt(1)
	req := domain.OrderRequest{
		Quantity:   signedQty.Abs(),
		Kind:       domain.OrderKindTaker,
		ReduceOnly: true,
	}
	if signedQty.IsPositive() {
		req.Side = domain.OrderSideSell
		req.Price = q.Bid.Mul(one.Sub(margin))
	} else {
		req.Side = domain.OrderSideBuy
		req.Price = q.Ask.Mul(one.Add(margin))
	}

	if _, err := c.PlaceOrder(ctx, req); err != nil {
		return fmt.Errorf("lighter: close position: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.auth.Headers(method, path, bodyStr) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, string(body))
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUnavailable, statusCode, string(body))
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
}
