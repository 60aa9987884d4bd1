package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/DPOO-f-boada/go-fulfillment/internal/retry"
	"github.com/shopspring/decimal"
)

// HTTPClient talks to the products service over its JSON API.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

type productDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// The catalog serializes decimals as strings; decimal.Decimal accepts
	// both string and number JSON encodings.
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (c *HTTPClient) GetProductByName(ctx context.Context, name string) (Product, error) {
	u := fmt.Sprintf("%s/api/products/name/%s/", c.BaseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Product{}, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Product{}, retry.Transient(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, name)
	case resp.StatusCode >= 500:
		return Product{}, retry.Transient(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Product{}, fmt.Errorf("catalog returned status %d for %q", resp.StatusCode, name)
	}

	var dto productDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return Product{}, fmt.Errorf("decode catalog response: %w", err)
	}
	return Product{ID: dto.ID, Name: dto.Name, UnitPrice: dto.UnitPrice}, nil
}
