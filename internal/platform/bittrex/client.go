// Package bittrex is the REST order gateway for the Bittrex v3 API.
package bittrex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/crypto"
	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/market"
)

// DefaultBaseURL is the v3 API root.
const DefaultBaseURL = "https://api.bittrex.com/v3"

// Limiter throttles requests per key.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Client places orders over REST. It implements market.OrderGateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *crypto.HMACAuth
	limiter    Limiter
}

var _ market.OrderGateway = (*Client)(nil)

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, auth *crypto.HMACAuth, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
	}
}

// SetLimiter makes every request wait on l first.
func (c *Client) SetLimiter(l Limiter) {
	c.limiter = l
}

// PlaceOrder submits req as a limit order. Market orders are sent as
// immediate-or-cancel limits at the requested price so the walk's worst
// price is never exceeded.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.TradingResult, error) {
	body := newOrder{
		MarketSymbol: MarketSymbol(req.Ticker),
		Type:         orderTypeLimit,
		Quantity:     req.Amount.String(),
		Limit:        req.Price.String(),
		TimeInForce:  tifGoodTilCancelled,
	}
	switch req.Side {
	case domain.OrderSideBuy:
		body.Direction = directionBuy
	case domain.OrderSideSell:
		body.Direction = directionSell
	default:
		return nil, fmt.Errorf("bittrex: side %q: %w", req.Side, domain.ErrInvalidOrder)
	}
	if req.Type == domain.OrderTypeMarket {
		body.TimeInForce = tifImmediateOrCancel
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return nil, fmt.Errorf("bittrex: post order: %w", err)
	}
	var order apiOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("bittrex: decode order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("bittrex: order without id: %w", domain.ErrOrderRejected)
	}
	if req.Type == domain.OrderTypeMarket && !order.FillQuantity.IsPositive() {
		return nil, fmt.Errorf("bittrex: order %s not filled: %w", order.ID, domain.ErrOrderRejected)
	}
	res := order.toResult(req.Side)
	return &res, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if _, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/orders/"+orderID, nil); err != nil {
		return fmt.Errorf("bittrex: cancel order %s: %w", orderID, err)
	}
	return nil
}

// doAuthenticatedRequest signs, sends and reads a request. It returns the
// raw response body.
func (c *Client) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "bittrex:rest"); err != nil {
			return nil, err
		}
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		for k, v := range c.auth.Headers(method, url, payload) {
			req.Header.Set(k, v)
		}
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
	detail := string(body)
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Code != "" {
		detail = ae.Code
		if ae.Detail != "" {
			detail += ": " + ae.Detail
		}
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	case http.StatusBadRequest, http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrOrderRejected, detail)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, detail)
	}
}
