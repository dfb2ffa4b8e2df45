package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Product é o snapshot retornado pelo serviço de catálogo.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	SellerID      string          `json:"seller_id"`
	SellerName    string          `json:"seller_name"`
	Category      string          `json:"category"`
}

// ProductFetcher abstrai a chamada remota ao serviço de catálogo.
type ProductFetcher interface {
	GetProductByID(ctx context.Context, productID, bearerToken string) (*Product, error)
}

// CatalogClient implementa ProductFetcher via HTTP.
type CatalogClient struct {
	client  *resty.Client
	baseURL string
}

// NewCatalogClient cria uma nova instância de CatalogClient com timeout
// e retry limitado. Uma chamada de catálogo lenta não pode travar o
// placement indefinidamente.
func NewCatalogClient(baseURL string) *CatalogClient {
	client := resty.New().
		SetTimeout(3 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &CatalogClient{
		client:  client,
		baseURL: baseURL,
	}
}

// GetProductByID busca o snapshot de um produto no catálogo, propagando
// a credencial do chamador.
func (cc *CatalogClient) GetProductByID(ctx context.Context, productID, bearerToken string) (*Product, error) {
	var product Product

	resp, err := cc.client.R().
		SetContext(ctx).
		SetAuthToken(bearerToken).
		SetResult(&product).
		Get(cc.baseURL + "/api/products/" + productID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProductLookup, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("%w: product %s", ErrProductNotFound, productID)
	case resp.IsError():
		return nil, fmt.Errorf("%w: catalog returned status %d", ErrProductLookup, resp.StatusCode())
	}

	return &product, nil
}
