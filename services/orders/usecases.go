package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlaceOrderRequest representa a requisição para criar um pedido
type PlaceOrderRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// OrderUseCase contém a lógica de negócio dos pedidos
type OrderUseCase struct {
	repository Repository
	catalog    ProductFetcher
	tracer     trace.Tracer
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	repository Repository,
	catalog ProductFetcher,
	tracer trace.Tracer,
) *OrderUseCase {
	return &OrderUseCase{
		repository: repository,
		catalog:    catalog,
		tracer:     tracer,
	}
}

// PlaceOrder cria um pedido a partir de um snapshot point-in-time do
// catálogo. Ou o fluxo completa inteiro, ou nenhum pedido é criado —
// falhas do catálogo não deixam estado parcial.
//
// A checagem de estoque é apenas uma leitura: não há reserva nem
// decremento remoto neste fluxo, então dois placements concorrentes do
// mesmo produto podem ambos passar pela checagem.
func (uc *OrderUseCase) PlaceOrder(ctx context.Context, req PlaceOrderRequest, buyerID, bearerToken string) (*OrderView, error) {
	ctx, span := uc.tracer.Start(ctx, "place_order")
	defer span.End()

	log.Printf("➡️ [PLACE ORDER] BuyerID: %s | ProductID: %s | Quantity: %d",
		buyerID, req.ProductID, req.Quantity)

	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	product, err := uc.catalog.GetProductByID(ctx, req.ProductID, bearerToken)
	if err != nil {
		span.RecordError(err)
		log.Printf("❌ PLACE FAILED: catalog lookup | ProductID=%s | Error=%v", req.ProductID, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("product_id", product.ID),
		attribute.Int("stock_quantity", product.StockQuantity),
	)

	if product.StockQuantity < req.Quantity {
		log.Printf("❌ PLACE FAILED: insufficient stock | ProductID=%s | Stock=%d | Requested=%d",
			req.ProductID, product.StockQuantity, req.Quantity)
		return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, product.Name)
	}

	order := NewOrder(uuid.New().String(), buyerID, product.SellerID,
		product.ID, product.Name, req.Quantity, product.Price)

	if err := uc.repository.CreateOrder(ctx, order); err != nil {
		span.RecordError(err)
		log.Printf("❌ PLACE FAILED: persist | OrderID=%s | Error=%v", order.ID, err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Printf("✅ Order placed: %s | Total: %s", order.ID, order.TotalAmount.StringFixed(2))
	view := order.View()
	return &view, nil
}

// GetOrder busca um pedido aplicando a política de autorização. NotFound
// e AccessDenied são erros distintos: um id inexistente nunca vira 403,
// nem um pedido alheio vira 404.
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID, actorID, actorRole string) (*OrderView, error) {
	ctx, span := uc.tracer.Start(ctx, "get_order")
	defer span.End()

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanViewOrder(actorID, actorRole, order) {
		log.Printf("⛔ [GET ORDER] Denied | OrderID=%s | ActorID=%s | Role=%s", orderID, actorID, actorRole)
		return nil, fmt.Errorf("%w: order %s", ErrAccessDenied, orderID)
	}

	view := order.View()
	return &view, nil
}

// ListOrdersForBuyer busca todos os pedidos de um comprador
func (uc *OrderUseCase) ListOrdersForBuyer(ctx context.Context, buyerID string) ([]OrderView, error) {
	ctx, span := uc.tracer.Start(ctx, "list_orders_for_buyer")
	defer span.End()

	orders, err := uc.repository.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, orders[i].View())
	}
	return views, nil
}

// UpdateOrderStatus aplica uma transição administrativa de status de
// fulfillment. A leitura e a escrita acontecem sob lock pessimista para
// não sobrescrever uma atualização concorrente de payment_status.
func (uc *OrderUseCase) UpdateOrderStatus(ctx context.Context, orderID, statusName, actorRole string) (*OrderView, error) {
	ctx, span := uc.tracer.Start(ctx, "update_order_status")
	defer span.End()

	log.Printf("➡️ [UPDATE STATUS] OrderID: %s | Target: %s | Role: %s", orderID, statusName, actorRole)

	if !CanUpdateStatus(actorRole) {
		return nil, fmt.Errorf("%w: role %s cannot update order status", ErrAccessDenied, actorRole)
	}

	if strings.TrimSpace(statusName) == "" {
		return nil, fmt.Errorf("%w: order status cannot be empty", ErrValidation)
	}
	status, ok := ParseOrderStatus(statusName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, statusName)
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransitionOrderStatus(order.OrderStatus, status) {
		log.Printf("❌ [UPDATE STATUS] Illegal transition | OrderID=%s | %s → %s",
			orderID, order.OrderStatus, status)
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrValidation, order.OrderStatus, status)
	}

	if err := uc.repository.UpdateOrderStatus(ctx, tx, orderID, status); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	log.Printf("✅ Order status updated: %s | %s → %s", orderID, order.OrderStatus, status)
	order.OrderStatus = status
	view := order.View()
	return &view, nil
}
