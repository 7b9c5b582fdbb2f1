// Package o1 is the 01exchange venue adapter. 01 is the maker venue: plain
// REST with ed25519-signed requests, no streaming feed, and no order-status
// endpoint, which is why the engine detects fills with a cancel probe instead
// of querying.
package o1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/crypto"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

// Client is the 01exchange REST client. It implements domain.Venue.
type Client struct {
	baseURL    string
	market     string
	httpClient *http.Client
	signer     *crypto.Ed25519Signer
}

// New creates a 01 client for one market.
func New(baseURL, market string, signer *crypto.Ed25519Signer) *Client {
	return &Client{
		baseURL: baseURL,
		market:  market,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}
}

// Compile-time interface check.
var _ domain.Venue = (*Client)(nil)

// Name implements domain.Venue.
func (c *Client) Name() string { return domain.VenueO1 }

type bookResponse struct {
	Bids [][2]string `json:"bids"` // [price, quantity], best first
	Asks [][2]string `json:"asks"`
}

// GetQuote returns the top of book for the configured market.
func (c *Client) GetQuote(ctx context.Context) (domain.Quote, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/orderbook?symbol="+c.market, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("o1: get orderbook: %w", err)
	}

	var book bookResponse
	if err := json.Unmarshal(respBody, &book); err != nil {
		return domain.Quote{}, fmt.Errorf("o1: decode orderbook: %w", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return domain.Quote{}, fmt.Errorf("o1: empty book for %s: %w", c.market, domain.ErrUnavailable)
	}

	bid, err := decimal.NewFromString(book.Bids[0][0])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("o1: parse bid %q: %w", book.Bids[0][0], err)
	}
	ask, err := decimal.NewFromString(book.Asks[0][0])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("o1: parse ask %q: %w", book.Asks[0][0], err)
	}

	return domain.Quote{Bid: bid, Ask: ask, At: time.Now()}, nil
}

type placeRequest struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Quantity   string `json:"quantity"`
	PostOnly   bool   `json:"post_only"`
	IOC        bool   `json:"ioc"`
	ReduceOnly bool   `json:"reduce_only,omitempty"`
}

type placeResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"` // "open", "filled", "rejected"
	Reason  string `json:"reason,omitempty"`
}

// PlaceOrder submits an order. Post-only orders that would cross fail with
// ErrMakerRejected.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	body := placeRequest{
		Symbol:     c.market,
		Side:       string(req.Side),
		Price:      req.Price.String(),
		Quantity:   req.Quantity.String(),
		PostOnly:   req.Kind == domain.OrderKindMaker,
		IOC:        req.Kind == domain.OrderKindTaker,
		ReduceOnly: req.ReduceOnly,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/v1/order", body)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("o1: place order: %w", err)
	}

	var result placeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.OrderAck{}, fmt.Errorf("o1: decode order response: %w", err)
	}
	if result.Status == "rejected" {
		if body.PostOnly {
			return domain.OrderAck{}, fmt.Errorf("o1: %s: %w", result.Reason, domain.ErrMakerRejected)
		}
		return domain.OrderAck{}, fmt.Errorf("o1: order rejected: %s", result.Reason)
	}

	return domain.OrderAck{
		OrderID: result.OrderID,
		Price:   req.Price,
		At:      time.Now(),
	}, nil
}

// CancelOrder cancels one order. A 404 maps to ErrOrderNotFound, which the
// fill-detection protocol reads as "the order filled before the cancel".
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v1/order/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("o1: cancel order %s: %w", orderID, err)
	}
	return nil
}

// CancelAllOrders cancels every open order for the configured market.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/api/v1/orders?symbol="+c.market, nil)
	if err != nil {
		return fmt.Errorf("o1: cancel all orders: %w", err)
	}
	return nil
}

type balanceResponse struct {
	Available string `json:"available"`
}

// GetBalance returns available USDC collateral.
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/balance", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("o1: get balance: %w", err)
	}

	var result balanceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return decimal.Zero, fmt.Errorf("o1: decode balance: %w", err)
	}
	bal, err := decimal.NewFromString(result.Available)
	if err != nil {
		return decimal.Zero, fmt.Errorf("o1: parse balance %q: %w", result.Available, err)
	}
	return bal, nil
}

type positionResponse struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"` // signed, positive long
}

// GetPosition returns the signed net position for the configured market.
func (c *Client) GetPosition(ctx context.Context) (decimal.Decimal, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/v1/position?symbol="+c.market, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("o1: get position: %w", err)
	}

	var result positionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return decimal.Zero, fmt.Errorf("o1: decode position: %w", err)
	}
	if result.Quantity == "" {
		return decimal.Zero, nil
	}
	qty, err := decimal.NewFromString(result.Quantity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("o1: parse position %q: %w", result.Quantity, err)
	}
	return qty, nil
}

// ClosePosition submits a reduce-only IOC order flattening signedQty. The
// price crosses the book by a fixed margin so the order executes immediately.
func (c *Client) ClosePosition(ctx context.Context, signedQty decimal.Decimal) error {
	if signedQty.IsZero() {
		return nil
	}

	q, err := c.GetQuote(ctx)
	if err != nil {
		return fmt.Errorf("o1: close position: %w", err)
	}

	// Long position closes with a sell through the bid, short with a buy
	// through the ask.
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
		return fmt.Errorf("o1: close position: %w", err)
	}
	return nil
}

// doRequest builds, signs, sends, and reads a request. It returns the raw
// response body.
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
	for k, v := range c.signer.Headers(method, path, bodyStr) {
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

// checkHTTPStatus maps non-2xx status codes to domain errors.
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
