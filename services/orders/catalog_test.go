package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalogClient_GetProductByID(t *testing.T) {
	// Arrange: servidor fake do catálogo
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/product-1", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "product-1",
			"name": "Mechanical Keyboard",
			"price": "19.99",
			"stock_quantity": 5,
			"seller_id": "seller-7",
			"seller_name": "Keyboards Inc",
			"category": "electronics"
		}`)
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL)

	// Act
	product, err := client.GetProductByID(context.Background(), "product-1", "token-abc")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "product-1", product.ID)
	assert.Equal(t, "Mechanical Keyboard", product.Name)
	assert.Equal(t, "19.99", product.Price.StringFixed(2))
	assert.Equal(t, 5, product.StockQuantity)
	assert.Equal(t, "seller-7", product.SellerID)
}

func TestCatalogClient_ProductNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"product not found"}`)
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL)

	_, err := client.GetProductByID(context.Background(), "ghost", "tok")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogClient_RemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL)

	_, err := client.GetProductByID(context.Background(), "product-1", "tok")
	assert.ErrorIs(t, err, ErrProductLookup)
	assert.NotErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogClient_RetriesOnTransientFailure(t *testing.T) {
	// Arrange: falha uma vez, responde na segunda tentativa
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"product-1","name":"Keyboard","price":"10.00","stock_quantity":1,"seller_id":"s"}`)
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL)

	// Act
	product, err := client.GetProductByID(context.Background(), "product-1", "tok")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "product-1", product.ID)
	assert.GreaterOrEqual(t, attempts, 2)
}
