package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa um produto aprovado no catálogo
type Product struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	SellerID      string          `json:"seller_id" db:"seller_id"`
	SellerName    string          `json:"seller_name" db:"seller_name"`
	Category      string          `json:"category" db:"category"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
