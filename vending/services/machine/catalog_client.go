package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// RestCatalog is a Catalog served by the catalog service, shared by every
// machine. The catalog service serializes stock adjustments with row locks.
type RestCatalog struct {
	client *resty.Client
	logger *zap.Logger
}

type catalogProductResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type catalogAdjustRequest struct {
	Delta     int    `json:"delta"`
	Reference string `json:"reference"`
}

type catalogErrorResponse struct {
	Error string `json:"error"`
}

const (
	catalogRetryCount = 2
	catalogRetryWait  = 50 * time.Millisecond
)

// NewRestCatalog creates a client for the catalog service at baseURL. Failed
// requests are retried; a retried adjustment is sent under the same reference.
func NewRestCatalog(baseURL string, timeout time.Duration, logger *zap.Logger) *RestCatalog {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(catalogRetryCount).
		SetRetryWaitTime(catalogRetryWait).
		SetRetryMaxWaitTime(4 * catalogRetryWait).
		SetHeader("Content-Type", "application/json")

	client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		otel.GetTextMapPropagator().Inject(r.Context(), propagation.HeaderCarrier(r.Header))
		return nil
	})

	return &RestCatalog{client: client, logger: logger}
}

func (c *RestCatalog) Find(ctx context.Context, productID string) (*StockEntry, error) {
	var out catalogProductResponse
	var apiErr catalogErrorResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", productID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/catalog/products/{id}")
	if err != nil {
		return nil, fmt.Errorf("catalog lookup of %s failed: %w", productID, err)
	}
	return c.toEntry(productID, resp, &out, &apiErr)
}

func (c *RestCatalog) AdjustQuantity(ctx context.Context, productID string, delta int, reference string) (*StockEntry, error) {
	var out catalogProductResponse
	var apiErr catalogErrorResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", productID).
		SetBody(catalogAdjustRequest{Delta: delta, Reference: reference}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/catalog/products/{id}/adjust")
	if err != nil {
		return nil, fmt.Errorf("catalog adjust of %s failed: %w", productID, err)
	}

	entry, err := c.toEntry(productID, resp, &out, &apiErr)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("catalog adjusted",
		zap.String("product_id", productID),
		zap.Int("delta", delta),
		zap.String("reference", reference))
	return entry, nil
}

func (c *RestCatalog) toEntry(productID string, resp *resty.Response, out *catalogProductResponse, apiErr *catalogErrorResponse) (*StockEntry, error) {
	switch resp.StatusCode() {
	case http.StatusOK:
		return &StockEntry{
			Product:  Product{ID: out.ID, Name: out.Name, UnitPrice: out.UnitPrice},
			Quantity: out.Quantity,
		}, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	case http.StatusConflict:
		return nil, fmt.Errorf("product %s: %w", productID, ErrInsufficientStock)
	}
	return nil, fmt.Errorf("catalog returned %d for %s: %s", resp.StatusCode(), productID, apiErr.Error)
}
