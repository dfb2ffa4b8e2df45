package main

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderServiceInterface define a interface do use case de pedidos
type OrderServiceInterface interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest, buyerID, bearerToken string) (*OrderView, error)
	GetOrder(ctx context.Context, orderID, actorID, actorRole string) (*OrderView, error)
	ListOrdersForBuyer(ctx context.Context, buyerID string) ([]OrderView, error)
	UpdateOrderStatus(ctx context.Context, orderID, statusName, actorRole string) (*OrderView, error)
}

// PaymentServiceInterface define a interface do use case de pagamentos
type PaymentServiceInterface interface {
	InitiatePayment(ctx context.Context, orderID, actorID string) (*PaymentResponse, error)
}

// WebhookServiceInterface define a interface do reconciliador de webhooks
type WebhookServiceInterface interface {
	HandleEvent(ctx context.Context, payload []byte, sigHeader string) error
}

// UpdateStatusRequest representa a requisição de mudança de status
type UpdateStatusRequest struct {
	OrderStatus string `json:"order_status"`
}

// OrderHandler contém os handlers HTTP
type OrderHandler struct {
	orders   OrderServiceInterface
	payments PaymentServiceInterface
	webhooks WebhookServiceInterface
	tracer   trace.Tracer
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(
	orders OrderServiceInterface,
	payments PaymentServiceInterface,
	webhooks WebhookServiceInterface,
	tracer trace.Tracer,
) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		payments: payments,
		webhooks: webhooks,
		tracer:   tracer,
	}
}

// respondError mapeia a taxonomia de erros de negócio para status HTTP
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrProductLookup), errors.Is(err, ErrPaymentProvider):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// PlaceOrder cria um pedido para o comprador autenticado
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.place_order")
	defer span.End()

	actorID, actorRole, rawToken := actorFromContext(c)
	if actorRole != RoleBuyer {
		c.JSON(http.StatusForbidden, gin.H{"error": "only buyers can place orders"})
		return
	}

	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("buyer_id", actorID),
		attribute.String("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	view, err := h.orders.PlaceOrder(ctx, req, actorID, rawToken)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetOrder busca um pedido pelo ID, aplicando a política de autorização
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.get_order")
	defer span.End()

	actorID, actorRole, _ := actorFromContext(c)
	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	view, err := h.orders.GetOrder(ctx, orderID, actorID, actorRole)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListMyOrders lista os pedidos do comprador autenticado
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.list_my_orders")
	defer span.End()

	actorID, _, _ := actorFromContext(c)

	views, err := h.orders.ListOrdersForBuyer(ctx, actorID)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// UpdateOrderStatus aplica uma transição administrativa de status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.update_order_status")
	defer span.End()

	_, actorRole, _ := actorFromContext(c)
	orderID := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("target_status", req.OrderStatus),
	)

	view, err := h.orders.UpdateOrderStatus(ctx, orderID, req.OrderStatus, actorRole)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// InitiatePayment cria uma sessão de checkout para o pedido
func (h *OrderHandler) InitiatePayment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.initiate_payment")
	defer span.End()

	actorID, _, _ := actorFromContext(c)
	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order_id", orderID))

	resp, err := h.payments.InitiatePayment(ctx, orderID, actorID)
	if err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StripeWebhook recebe eventos assinados do provedor de pagamento. O
// único mecanismo de autenticação é a assinatura do corpo cru.
func (h *OrderHandler) StripeWebhook(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "http.stripe_webhook")
	defer span.End()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := h.webhooks.HandleEvent(ctx, payload, c.GetHeader("Stripe-Signature")); err != nil {
		span.RecordError(err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HealthCheck verifica a saúde do serviço
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "orders-service",
	})
}
