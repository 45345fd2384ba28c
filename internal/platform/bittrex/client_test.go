package bittrex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/crypto"
	"github.com/alanyoungcy/tickerbot/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMarketSymbol(t *testing.T) {
	assert.Equal(t, "ETH-BTC", MarketSymbol("BTC-ETH"))
	assert.Equal(t, "ETHBTC", MarketSymbol("ETHBTC"))
}

func TestPlaceMarketOrder(t *testing.T) {
	var got newOrder
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/orders", r.URL.Path)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"o-1","marketSymbol":"ETH-BTC","direction":"BUY","type":"LIMIT",
			"quantity":"2","limit":"10","fillQuantity":"2","proceeds":"19.8","status":"CLOSED",
			"createdAt":"2024-03-01T10:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v3", &crypto.HMACAuth{Key: "k", Secret: "s"}, time.Second)
	res, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Ticker: "BTC-ETH", Side: domain.OrderSideBuy, Type: domain.OrderTypeMarket,
		Price: d("10"), Amount: d("2"),
	})
	require.NoError(t, err)

	assert.Equal(t, "ETH-BTC", got.MarketSymbol)
	assert.Equal(t, "BUY", got.Direction)
	assert.Equal(t, tifImmediateOrCancel, got.TimeInForce)
	assert.Equal(t, "k", headers.Get(crypto.HeaderAPIKey))
	assert.NotEmpty(t, headers.Get(crypto.HeaderSignature))

	assert.Equal(t, "o-1", res.OrderID)
	assert.True(t, res.Price.Equal(d("9.9")))
	assert.True(t, res.Amount.Equal(d("2")))
	assert.True(t, res.Total.Equal(d("19.8")))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), res.Time.UTC())
}

func TestPlaceLimitOrderResting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body newOrder
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, tifGoodTilCancelled, body.TimeInForce)
		assert.Equal(t, "SELL", body.Direction)
		_, _ = w.Write([]byte(`{"id":"o-2","quantity":"3","limit":"12","fillQuantity":"0","status":"OPEN"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, nil, 0).PlaceOrder(context.Background(), domain.OrderRequest{
		Ticker: "BTC-ETH", Side: domain.OrderSideSell, Type: domain.OrderTypeLimit,
		Price: d("12"), Amount: d("3"),
	})
	require.NoError(t, err)
	assert.True(t, res.Price.Equal(d("12")))
	assert.True(t, res.Total.Equal(d("36")))
}

func TestUnfilledMarketOrderIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"o-3","quantity":"3","limit":"12","fillQuantity":"0","status":"CLOSED"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil, 0).PlaceOrder(context.Background(), domain.OrderRequest{
		Ticker: "BTC-ETH", Side: domain.OrderSideBuy, Type: domain.OrderTypeMarket, Price: d("12"), Amount: d("3"),
	})
	require.ErrorIs(t, err, domain.ErrOrderRejected)
}

func TestHTTPErrorsMapToDomain(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, domain.ErrOrderRejected},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusNotFound, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":"INSUFFICIENT_FUNDS"}`))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, nil, 0).PlaceOrder(context.Background(), domain.OrderRequest{
				Ticker: "BTC-ETH", Side: domain.OrderSideBuy, Type: domain.OrderTypeLimit, Price: d("1"), Amount: d("1"),
			})
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "INSUFFICIENT_FUNDS")
		})
	}
}

func TestCancelOrder(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		_, _ = w.Write([]byte(`{"id":"o-1"}`))
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, nil, 0).CancelOrder(context.Background(), "o-1"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/orders/o-1", path)
}

type countingLimiter struct{ n int }

func (l *countingLimiter) Wait(context.Context, string) error {
	l.n++
	return nil
}

func TestLimiterIsConsulted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"o-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, 0)
	l := &countingLimiter{}
	c.SetLimiter(l)
	require.NoError(t, c.CancelOrder(context.Background(), "o-1"))
	assert.Equal(t, 1, l.n)
}
