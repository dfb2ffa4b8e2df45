package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutSession representa uma sessão de checkout hospedada no provedor
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutSessionParams descreve o único line item da sessão
type CheckoutSessionParams struct {
	OrderID         string
	ProductName     string
	UnitAmountCents int64
	Quantity        int
}

// CheckoutProvider abstrai a criação de sessões de checkout no provedor
// de pagamento
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

// StripeClient implementa CheckoutProvider via API HTTP do Stripe
type StripeClient struct {
	client     *resty.Client
	successURL string
	cancelURL  string
}

// NewStripeClient cria uma nova instância de StripeClient
func NewStripeClient(baseURL, secretKey, successURL, cancelURL string) *StripeClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetBasicAuth(secretKey, "")

	return &StripeClient{
		client:     client,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckoutSession cria uma sessão de checkout com um único line
// item. O order id viaja em client_reference_id e volta no webhook.
func (sc *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	var session CheckoutSession

	resp, err := sc.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"mode":                "payment",
			"success_url":         sc.successURL,
			"cancel_url":          sc.cancelURL,
			"client_reference_id": params.OrderID,
			"line_items[0][price_data][currency]":           "usd",
			"line_items[0][price_data][unit_amount]":        strconv.FormatInt(params.UnitAmountCents, 10),
			"line_items[0][price_data][product_data][name]": params.ProductName,
			"line_items[0][quantity]":                       strconv.Itoa(params.Quantity),
		}).
		SetResult(&session).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrPaymentProvider, resp.StatusCode())
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("%w: provider returned incomplete session", ErrPaymentProvider)
	}

	return &session, nil
}

// PaymentResponse é a resposta da iniciação de pagamento
type PaymentResponse struct {
	PaymentURL    string `json:"payment_url"`
	PaymentStatus string `json:"payment_status"`
}

// PaymentUseCase contém a lógica de negócio de pagamentos
type PaymentUseCase struct {
	repository            Repository
	provider              CheckoutProvider
	tracer                trace.Tracer
	sessionCreatedCounter metric.Int64Counter
	sessionFailedCounter  metric.Int64Counter
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(
	repository Repository,
	provider CheckoutProvider,
	tracer trace.Tracer,
	meter metric.Meter,
) *PaymentUseCase {
	sessionCreated, _ := meter.Int64Counter("payment.sessions.created")
	sessionFailed, _ := meter.Int64Counter("payment.sessions.failed")

	return &PaymentUseCase{
		repository:            repository,
		provider:              provider,
		tracer:                tracer,
		sessionCreatedCounter: sessionCreated,
		sessionFailedCounter:  sessionFailed,
	}
}

// InitiatePayment cria uma sessão de checkout para um pedido existente.
// Só o comprador do próprio pedido pode iniciar o pagamento, e só
// enquanto o payment_status é PENDING. Chamadas repetidas sobre um
// pedido PENDING criam sessões novas — não há chave de idempotência
// nesta camada. Se o provedor falhar, o pedido não é mutado.
func (uc *PaymentUseCase) InitiatePayment(ctx context.Context, orderID, actorID string) (*PaymentResponse, error) {
	ctx, span := uc.tracer.Start(ctx, "initiate_payment")
	defer span.End()

	log.Printf("➡️ [INITIATE PAYMENT] OrderID: %s | ActorID: %s", orderID, actorID)

	order, err := uc.repository.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanPay(actorID, order) {
		log.Printf("⛔ [INITIATE PAYMENT] Denied | OrderID=%s | ActorID=%s", orderID, actorID)
		return nil, fmt.Errorf("%w: only the order's buyer may pay", ErrAccessDenied)
	}

	// PENDING é o único estado de pagamento pagável: PAID e FAILED são
	// terminais e nunca regridem.
	if order.PaymentStatus != PaymentStatusPending {
		log.Printf("❌ [INITIATE PAYMENT] Order not payable | OrderID=%s | PaymentStatus=%s",
			orderID, order.PaymentStatus)
		return nil, fmt.Errorf("%w: order payment status is %s", ErrValidation, order.PaymentStatus)
	}

	// Preço unitário: total ÷ quantity half-up 2 casas, depois ×100
	// truncado para a unidade mínima do provedor.
	unitPrice := order.UnitPrice()
	unitAmountCents := unitPrice.Mul(decimalHundred).IntPart()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.Int64("unit_amount_cents", unitAmountCents),
		attribute.Int("quantity", order.Quantity),
	)

	session, err := uc.provider.CreateCheckoutSession(ctx, CheckoutSessionParams{
		OrderID:         order.ID,
		ProductName:     order.ProductName,
		UnitAmountCents: unitAmountCents,
		Quantity:        order.Quantity,
	})
	if err != nil {
		uc.sessionFailedCounter.Add(ctx, 1)
		span.RecordError(err)
		log.Printf("❌ PAYMENT FAILED: session creation | OrderID=%s | Error=%v", orderID, err)
		return nil, err
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Rechecagem sob lock: um webhook pode ter marcado o pedido como
	// PAID entre a leitura inicial e a criação da sessão.
	locked, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if locked.PaymentStatus != PaymentStatusPending {
		log.Printf("❌ [INITIATE PAYMENT] Payment settled concurrently | OrderID=%s | PaymentStatus=%s",
			orderID, locked.PaymentStatus)
		return nil, fmt.Errorf("%w: order payment status is %s", ErrValidation, locked.PaymentStatus)
	}
	if err := uc.repository.SetPaymentSession(ctx, tx, orderID, session.ID, PaymentStatusPending); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment session: %w", err)
	}

	uc.sessionCreatedCounter.Add(ctx, 1)
	log.Printf("✅ Checkout session created: %s | OrderID: %s", session.ID, orderID)

	return &PaymentResponse{
		PaymentURL:    session.URL,
		PaymentStatus: PaymentStatusPending,
	}, nil
}
