package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// signatureTolerance é a janela máxima aceita entre o timestamp assinado
// e o relógio local.
const signatureTolerance = 5 * time.Minute

// checkoutSessionCompleted é o único tipo de evento com efeito colateral.
const checkoutSessionCompleted = "checkout.session.completed"

// webhookEvent é o envelope de evento do provedor
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			ClientReferenceID string `json:"client_reference_id"`
		} `json:"object"`
	} `json:"data"`
}

// verifyWebhookSignature valida o header de assinatura do provedor contra
// o payload cru: HMAC-SHA256 do "<timestamp>.<payload>" com o segredo
// compartilhado, formato "t=<unix>,v1=<hex>". Roda ANTES de qualquer
// parse do payload.
func verifyWebhookSignature(payload []byte, sigHeader, secret string, now time.Time) error {
	var timestamp int64
	var signatures [][]byte

	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(kv[1])
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew > signatureTolerance || skew < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
}

// WebhookUseCase reconcilia eventos assinados do provedor de pagamento
// contra o estado persistido dos pedidos
type WebhookUseCase struct {
	repository     Repository
	signingSecret  string
	tracer         trace.Tracer
	paidCounter    metric.Int64Counter
	orphanCounter  metric.Int64Counter
	replayCounter  metric.Int64Counter
	ignoredCounter metric.Int64Counter
}

// NewWebhookUseCase cria uma nova instância de WebhookUseCase
func NewWebhookUseCase(
	repository Repository,
	signingSecret string,
	tracer trace.Tracer,
	meter metric.Meter,
) *WebhookUseCase {
	paid, _ := meter.Int64Counter("webhook.orders.paid")
	orphan, _ := meter.Int64Counter("webhook.orders.orphaned")
	replay, _ := meter.Int64Counter("webhook.events.replayed")
	ignored, _ := meter.Int64Counter("webhook.events.ignored")

	return &WebhookUseCase{
		repository:     repository,
		signingSecret:  signingSecret,
		tracer:         tracer,
		paidCounter:    paid,
		orphanCounter:  orphan,
		replayCounter:  replay,
		ignoredCounter: ignored,
	}
}

// HandleEvent verifica a assinatura e aplica a transição de pagamento de
// forma idempotente. Depois que a assinatura passa, o contrato com o
// provedor manda acknowledge: evento desconhecido, pedido inexistente e
// reentrega são todos ack — só falha de infraestrutura retorna erro
// (a reentrega subsequente é inofensiva).
func (uc *WebhookUseCase) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := uc.tracer.Start(ctx, "handle_webhook")
	defer span.End()

	if err := verifyWebhookSignature(payload, sigHeader, uc.signingSecret, time.Now()); err != nil {
		span.RecordError(err)
		log.Printf("⛔ [WEBHOOK] Invalid signature: %v", err)
		return err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Assinatura válida mas corpo que não parseia: ack para não
		// gerar tempestade de reentrega, mas registra.
		span.RecordError(err)
		log.Printf("⚠️ [WEBHOOK] Unparseable payload after valid signature: %v", err)
		return nil
	}

	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("event_type", event.Type),
	)

	if event.Type != checkoutSessionCompleted {
		uc.ignoredCounter.Add(ctx, 1)
		log.Printf("ℹ️ [WEBHOOK] Ignoring event type %s | EventID=%s", event.Type, event.ID)
		return nil
	}

	orderID := event.Data.Object.ClientReferenceID
	sessionID := event.Data.Object.ID
	log.Printf("➡️ [WEBHOOK] checkout.session.completed | EventID=%s | SessionID=%s | OrderID=%s",
		event.ID, sessionID, orderID)

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	processed, err := uc.repository.WebhookEventProcessed(ctx, tx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check event ledger: %w", err)
	}
	if processed {
		uc.replayCounter.Add(ctx, 1)
		log.Printf("ℹ️ [IDEMPOTENCY] Event already processed | EventID=%s", event.ID)
		return nil
	}

	order, err := uc.repository.GetOrderForUpdate(ctx, tx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		// Pedido desconhecido: reentregas nunca vão encontrar esse
		// pedido, então ack e sinaliza para follow-up operacional.
		uc.orphanCounter.Add(ctx, 1)
		span.AddEvent("webhook for unknown order",
			trace.WithAttributes(attribute.String("order_id", orderID)))
		log.Printf("⚠️ [WEBHOOK] No matching order | EventID=%s | OrderID=%s", event.ID, orderID)
		return nil
	}
	if err != nil {
		return err
	}

	paid := order.MarkPaid()
	if paid {
		if err := uc.repository.SetPaymentStatus(ctx, tx, orderID, PaymentStatusPaid); err != nil {
			span.RecordError(err)
			return err
		}
	} else {
		uc.replayCounter.Add(ctx, 1)
		log.Printf("ℹ️ [IDEMPOTENCY] Order already PAID | OrderID=%s", orderID)
	}

	if err := uc.repository.RecordWebhookEvent(ctx, tx, event.ID, orderID, event.Type); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit webhook reconciliation: %w", err)
	}

	if paid {
		uc.paidCounter.Add(ctx, 1)
	}
	log.Printf("✅ Payment reconciled: OrderID=%s | EventID=%s", orderID, event.ID)
	return nil
}
