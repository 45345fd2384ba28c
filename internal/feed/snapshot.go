package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// SnapshotSource fetches the raw full book state of a ticker.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, ticker string) ([]byte, error)
}

// SnapshotClient fetches snapshots over HTTP. The URL template must contain
// "{ticker}", e.g. "https://api.example.com/v1/markets/{ticker}/state".
type SnapshotClient struct {
	urlTemplate string
	httpClient  *http.Client
}

var _ SnapshotSource = (*SnapshotClient)(nil)

// NewSnapshotClient creates a SnapshotClient.
func NewSnapshotClient(urlTemplate string, timeout time.Duration) *SnapshotClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SnapshotClient{
		urlTemplate: urlTemplate,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot performs the GET request and returns the body.
func (c *SnapshotClient) FetchSnapshot(ctx context.Context, ticker string) ([]byte, error) {
	u := strings.ReplaceAll(c.urlTemplate, "{ticker}", url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: snapshot request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: snapshot %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed: snapshot %s: read: %w", ticker, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("feed: snapshot %s: %w", ticker, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("feed: snapshot %s: status %d: %s", ticker, resp.StatusCode, string(body))
	}
	return body, nil
}
