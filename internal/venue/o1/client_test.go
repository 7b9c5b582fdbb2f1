package o1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/crypto"
	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	signer, err := crypto.NewEd25519Signer(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatal(err)
	}
	return New(srv.URL, "BTC", signer), srv
}

func TestGetQuote(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/orderbook" || r.URL.Query().Get("symbol") != "BTC" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		if r.Header.Get("X-Signature") == "" || r.Header.Get("X-Public-Key") == "" {
			t.Error("request not signed")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"bids": [][2]string{{"99990", "1.5"}},
			"asks": [][2]string{{"100000", "2"}},
		})
	}))

	q, err := c.GetQuote(context.Background())
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if !q.Bid.Equal(decimal.NewFromInt(99990)) || !q.Ask.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("quote = %s/%s", q.Bid, q.Ask)
	}
}

func TestGetQuoteEmptyBook(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"bids": [][2]string{}, "asks": [][2]string{}})
	}))

	_, err := c.GetQuote(context.Background())
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestPlaceOrderPostOnlyRejected(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req placeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.PostOnly || req.IOC {
			t.Errorf("maker order flags = post_only:%v ioc:%v", req.PostOnly, req.IOC)
		}
		json.NewEncoder(w).Encode(placeResponse{Status: "rejected", Reason: "post only would cross"})
	}))

	_, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Side:     domain.OrderSideBuy,
		Price:    decimal.NewFromInt(100000),
		Quantity: decimal.RequireFromString("0.001"),
		Kind:     domain.OrderKindMaker,
	})
	if !errors.Is(err, domain.ErrMakerRejected) {
		t.Fatalf("err = %v, want ErrMakerRejected", err)
	}
}

func TestPlaceOrderAccepted(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(placeResponse{OrderID: "42", Status: "open"})
	}))

	ack, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Side:     domain.OrderSideSell,
		Price:    decimal.NewFromInt(100010),
		Quantity: decimal.RequireFromString("0.001"),
		Kind:     domain.OrderKindMaker,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if ack.OrderID != "42" {
		t.Fatalf("order id = %q", ack.OrderID)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		http.Error(w, `{"error":"order not found"}`, http.StatusNotFound)
	}))

	err := c.CancelOrder(context.Background(), "42")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCancelOrderOK(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.CancelOrder(context.Background(), "42"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
}

func TestGetBalance(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(balanceResponse{Available: "123.45"})
	}))

	bal, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !bal.Equal(decimal.RequireFromString("123.45")) {
		t.Fatalf("balance = %s", bal)
	}
}

func TestClosePositionSellsThroughBid(t *testing.T) {
	var placed placeRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/orderbook":
			json.NewEncoder(w).Encode(map[string]any{
				"bids": [][2]string{{"100000", "1"}},
				"asks": [][2]string{{"100010", "1"}},
			})
		case "/api/v1/order":
			json.NewDecoder(r.Body).Decode(&placed)
			json.NewEncoder(w).Encode(placeResponse{OrderID: "7", Status: "filled"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	if err := c.ClosePosition(context.Background(), decimal.RequireFromString("0.002")); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}
	if placed.Side != "sell" || !placed.ReduceOnly || !placed.IOC {
		t.Fatalf("close order = %+v", placed)
	}
	if placed.Quantity != "0.002" {
		t.Fatalf("close qty = %s", placed.Quantity)
	}
}
