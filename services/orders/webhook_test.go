package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.opentelemetry.io/otel"
)

const testSigningSecret = "whsec_test_secret"

// signPayload monta um header de assinatura válido para o payload
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func completedEventPayload(eventID, sessionID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":%q,"client_reference_id":%q}}}`,
		eventID, sessionID, orderID))
}

func newWebhookUseCase(repo Repository) *WebhookUseCase {
	return NewWebhookUseCase(repo, testSigningSecret, otel.Tracer("test"), otel.Meter("test"))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	// Assinatura correta passa
	err := verifyWebhookSignature(payload, signPayload(payload, testSigningSecret, now), testSigningSecret, now)
	assert.NoError(t, err)

	// Segredo errado falha
	err = verifyWebhookSignature(payload, signPayload(payload, "whsec_other", now), testSigningSecret, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Payload adulterado falha
	err = verifyWebhookSignature([]byte(`{"id":"evt_2"}`), signPayload(payload, testSigningSecret, now), testSigningSecret, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Timestamp fora da tolerância falha, para os dois lados do relógio
	old := now.Add(-10 * time.Minute)
	err = verifyWebhookSignature(payload, signPayload(payload, testSigningSecret, old), testSigningSecret, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	future := now.Add(10 * time.Minute)
	err = verifyWebhookSignature(payload, signPayload(payload, testSigningSecret, future), testSigningSecret, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Header sem forma reconhecível falha
	for _, header := range []string{"", "garbage", "t=abc,v1=00", "v1=00"} {
		err = verifyWebhookSignature(payload, header, testSigningSecret, now)
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", header)
	}
}

func TestHandleWebhook_InvalidSignatureRejectedBeforeParsing(t *testing.T) {
	// Arrange: payload nem é JSON — se a verificação rodar antes do
	// parse, o erro tem que ser de assinatura
	mockRepo := new(MockRepository)
	uc := newWebhookUseCase(mockRepo)

	// Act
	err := uc.HandleEvent(context.Background(), []byte("not-json"), "t=1,v1=deadbeef")

	// Assert
	assert.ErrorIs(t, err, ErrInvalidSignature)
	mockRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestHandleWebhook_MarksOrderPaid(t *testing.T) {
	// Arrange
	mockRepo := new(MockRepository)
	tx := newMockTx()
	order := NewOrder("order-1", "buyer-1", "s", "p", "Keyboard", 1, decimal.RequireFromString("10.00"))

	mockRepo.On("BeginTx", mock.Anything).Return(tx, nil)
	mockRepo.On("WebhookEventProcessed", mock.Anything, tx, "evt_1").Return(false, nil)
	mockRepo.On("GetOrderForUpdate", mock.Anything, tx, "order-1").Return(order, nil)
	mockRepo.On("SetPaymentStatus", mock.Anything, tx, "order-1", PaymentStatusPaid).Return(nil)
	mockRepo.On("RecordWebhookEvent", mock.Anything, tx, "evt_1", "order-1", checkoutSessionCompleted).Return(nil)

	uc := newWebhookUseCase(mockRepo)
	payload := completedEventPayload("evt_1", "cs_1", "order-1")

	// Act
	err := uc.HandleEvent(context.Background(), payload, signPayload(payload, testSigningSecret, time.Now()))

	// Assert
	assert.NoError(t, err)
	tx.AssertCalled(t, "Commit", mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestHandleWebhook_RedeliveryIsNoOp(t *testing.T) {
	// Arrange: pedido já PAID — a reentrega confirma sucesso sem nova escrita
	mockRepo := new(MockRepository)
	tx := newMockTx()
	order := NewOrder("order-1", "buyer-1", "s", "p", "Keyboard", 1, decimal.RequireFromString("10.00"))
	order.MarkPaid()

	mockRepo.On("BeginTx", mock.Anything).Return(tx, nil)
	mockRepo.On("WebhookEventProcessed", mock.Anything, tx, "evt_2").Return(false, nil)
	mockRepo.On("GetOrderForUpdate", mock.Anything, tx, "order-1").Return(order, nil)
	mockRepo.On("RecordWebhookEvent", mock.Anything, tx, "evt_2", "order-1", checkoutSessionCompleted).Return(nil)

	uc := newWebhookUseCase(mockRepo)
	payload := completedEventPayload("evt_2", "cs_1", "order-1")

	// Act
	err := uc.HandleEvent(context.Background(), payload, signPayload(payload, testSigningSecret, time.Now()))

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, order.PaymentStatus)
	mockRepo.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_EventLedgerShortCircuits(t *testing.T) {
	// Arrange: mesmo event id já registrado no ledger
	mockRepo := new(MockRepository)
	tx := newMockTx()

	mockRepo.On("BeginTx", mock.Anything).Return(tx, nil)
	mockRepo.On("WebhookEventProcessed", mock.Anything, tx, "evt_3").Return(true, nil)

	uc := newWebhookUseCase(mockRepo)
	payload := completedEventPayload("evt_3", "cs_1", "order-1")

	// Act
	err := uc.HandleEvent(context.Background(), payload, signPayload(payload, testSigningSecret, time.Now()))

	// Assert: ack sem tocar no pedido
	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "GetOrderForUpdate", mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_UnknownOrderIsAcknowledged(t *testing.T) {
	// Arrange: order id que não existe — reentregas nunca vão achar esse
	// pedido, então o contrato com o provedor manda ack
	mockRepo := new(MockRepository)
	tx := newMockTx()

	mockRepo.On("BeginTx", mock.Anything).Return(tx, nil)
	mockRepo.On("WebhookEventProcessed", mock.Anything, tx, "evt_4").Return(false, nil)
	mockRepo.On("GetOrderForUpdate", mock.Anything, tx, "ghost-order").
		Return(nil, fmt.Errorf("%w: ghost-order", ErrOrderNotFound))

	uc := newWebhookUseCase(mockRepo)
	payload := completedEventPayload("evt_4", "cs_1", "ghost-order")

	// Act
	err := uc.HandleEvent(context.Background(), payload, signPayload(payload, testSigningSecret, time.Now()))

	// Assert
	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "SetPaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tx.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestHandleWebhook_IgnoresOtherEventTypes(t *testing.T) {
	// Arrange
	mockRepo := new(MockRepository)
	uc := newWebhookUseCase(mockRepo)
	payload := []byte(`{"id":"evt_5","type":"invoice.created","data":{"object":{"id":"in_1"}}}`)

	// Act
	err := uc.HandleEvent(context.Background(), payload, signPayload(payload, testSigningSecret, time.Now()))

	// Assert: ack sem efeito
	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}

func TestHandleWebhook_ValidSignatureUnparseableBodyIsAcknowledged(t *testing.T) {
	mockRepo := new(MockRepository)
	uc := newWebhookUseCase(mockRepo)
	payload := []byte(`{"broken`)

	err := uc.HandleEvent(context.Background(), payload, signPayload(payload, testSigningSecret, time.Now()))

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "BeginTx", mock.Anything)
}
