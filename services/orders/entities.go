package main

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var decimalHundred = decimal.NewFromInt(100)

// OrderStatus representa os possíveis status de fulfillment de um pedido
const (
	OrderStatusPlaced    = "PLACED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// PaymentStatus representa os possíveis status de pagamento de um pedido
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

// Order representa um pedido no sistema. Os campos de snapshot (buyer, seller,
// product, quantity, total) são imutáveis após a criação.
type Order struct {
	ID              string          `json:"id" db:"id"`
	BuyerID         string          `json:"buyer_id" db:"buyer_id"`
	SellerID        string          `json:"seller_id" db:"seller_id"`
	ProductID       string          `json:"product_id" db:"product_id"`
	ProductName     string          `json:"product_name" db:"product_name"`
	Quantity        int             `json:"quantity" db:"quantity"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	OrderStatus     string          `json:"order_status" db:"order_status"`
	PaymentStatus   string          `json:"payment_status" db:"payment_status"`
	StripeSessionID string          `json:"-" db:"stripe_session_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// NewOrder cria uma nova instância de Order com o snapshot do produto.
// O total é calculado aqui, uma única vez: price × quantity em decimal
// de ponto fixo. Nunca é recalculado depois, mesmo que o preço do
// catálogo mude.
func NewOrder(id, buyerID, sellerID, productID, productName string, quantity int, unitPrice decimal.Decimal) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:            id,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ProductID:     productID,
		ProductName:   productName,
		Quantity:      quantity,
		TotalAmount:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		OrderStatus:   OrderStatusPlaced,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// UnitPrice deriva o preço unitário do snapshot: total ÷ quantity,
// arredondado half-up para 2 casas decimais.
func (o *Order) UnitPrice() decimal.Decimal {
	return o.TotalAmount.Div(decimal.NewFromInt(int64(o.Quantity))).Round(2)
}

// orderTransitions é a tabela de transições legais de status de pedido.
// DELIVERED e CANCELLED são terminais.
var orderTransitions = map[string][]string{
	OrderStatusPlaced:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ParseOrderStatus valida um nome de status (case-insensitive) e retorna
// a forma canônica.
func ParseOrderStatus(name string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if _, ok := orderTransitions[s]; !ok {
		return "", false
	}
	return s, true
}

// CanTransitionOrderStatus verifica se a transição de status é legal
// segundo a tabela de transições.
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MarkPaid aplica a transição PENDING → PAID. Idempotente: se o pedido
// já está PAID, não faz nada e reporta que nada mudou.
func (o *Order) MarkPaid() (changed bool) {
	if o.PaymentStatus == PaymentStatusPaid {
		return false
	}
	o.PaymentStatus = PaymentStatusPaid
	o.UpdatedAt = time.Now().UTC()
	return true
}

// OrderView é a projeção pública de um pedido retornada pela API.
// Todos os papéis que passam na autorização veem os mesmos campos.
type OrderView struct {
	ID            string    `json:"id"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Quantity      int       `json:"quantity"`
	TotalAmount   string    `json:"total_amount"`
	OrderStatus   string    `json:"order_status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// View monta a projeção pública do pedido.
func (o *Order) View() OrderView {
	return OrderView{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		ProductID:     o.ProductID,
		ProductName:   o.ProductName,
		Quantity:      o.Quantity,
		TotalAmount:   o.TotalAmount.StringFixed(2),
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
	}
}
