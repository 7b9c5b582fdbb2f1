package lighter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/crypto"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "BTC", 3, &crypto.HMACAuth{Key: "k", Secret: "s"})
}

func TestPlaceOrderIOC(t *testing.T) {
	var got placeRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "k" || r.Header.Get("X-Signature") == "" {
			t.Error("request not HMAC signed")
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(placeResponse{OrderID: "L-1", Status: "filled"})
	}))

	ack, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Side:     domain.OrderSideSell,
		Price:    decimal.NewFromInt(99900),
		Quantity: decimal.RequireFromString("0.001"),
		Kind:     domain.OrderKindTaker,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if ack.OrderID != "L-1" {
		t.Fatalf("order id = %q", ack.OrderID)
	}
	if got.TimeInForce != "ioc" || got.PostOnly {
		t.Fatalf("taker order sent as %+v", got)
	}
	if got.AccountIndex != 3 || got.Market != "BTC" {
		t.Fatalf("account/market = %d/%s", got.AccountIndex, got.Market)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unknown order"}`, http.StatusNotFound)
	}))

	err := c.CancelOrder(context.Background(), "L-1")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestGetPositionFiltersMarket(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"positions": []map[string]string{
				{"market": "ETH", "size": "1.5"},
				{"market": "BTC", "size": "-0.002"},
			},
		})
	}))

	qty, err := c.GetPosition(context.Background())
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !qty.Equal(decimal.RequireFromString("-0.002")) {
		t.Fatalf("position = %s, want -0.002", qty)
	}
}

func TestGetPositionAbsentMarket(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"positions": []map[string]string{}})
	}))

	qty, err := c.GetPosition(context.Background())
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if !qty.IsZero() {
		t.Fatalf("position = %s, want 0", qty)
	}
}

func TestGetBalance(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(balanceResponse{Available: "250.5"})
	}))

	bal, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("balance = %s", bal)
	}
}

func TestClosePositionBuysBackShort(t *testing.T) {
	var placed placeRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/orderBookOrders":
			json.NewEncoder(w).Encode(bookResponse{
				Bids: []priceLevel{{Price: "100000", Size: "1"}},
				Asks: []priceLevel{{Price: "100010", Size: "1"}},
			})
		case "/api/v1/order":
			json.NewDecoder(r.Body).Decode(&placed)
			json.NewEncoder(w).Encode(placeResponse{OrderID: "L-2", Status: "filled"})
		}
	}))

	if err := c.ClosePosition(context.Background(), decimal.RequireFromString("-0.002")); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if placed.Side != "buy" || !placed.ReduceOnly || placed.TimeInForce != "ioc" {
		t.Fatalf("close order = %+v", placed)
	}
}
