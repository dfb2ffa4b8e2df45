package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository define a interface para operações de banco de dados de pedidos
type Repository interface {
	// CreateOrder persiste um novo pedido
	CreateOrder(ctx context.Context, order *Order) error

	// GetOrder busca um pedido pelo ID
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// ListOrdersByBuyer busca todos os pedidos de um comprador, em ordem de inserção
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]Order, error)

	// GetOrderForUpdate busca um pedido com lock pessimista dentro da transação
	GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error)

	// UpdateOrderStatus atualiza o status de fulfillment dentro da transação
	UpdateOrderStatus(ctx context.Context, tx Tx, orderID string, status string) error

	// SetPaymentSession registra a sessão de checkout e o status de pagamento dentro da transação
	SetPaymentSession(ctx context.Context, tx Tx, orderID, sessionID, paymentStatus string) error

	// SetPaymentStatus atualiza o status de pagamento dentro da transação
	SetPaymentStatus(ctx context.Context, tx Tx, orderID string, status string) error

	// WebhookEventProcessed verifica se um evento do provedor já foi processado (para idempotência)
	WebhookEventProcessed(ctx context.Context, tx Tx, eventID string) (bool, error)

	// RecordWebhookEvent registra um evento processado no ledger
	RecordWebhookEvent(ctx context.Context, tx Tx, eventID, orderID, eventType string) error

	// BeginTx inicia uma nova transação
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx interface para transações
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *PostgresTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// OrderRepository implementa Repository usando PostgreSQL
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *pgxpool.Pool) Repository {
	return &OrderRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *OrderRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

const orderColumns = `id, buyer_id, seller_id, product_id, product_name, quantity,
	total_amount, order_status, payment_status, COALESCE(stripe_session_id, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var order Order
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.SellerID,
		&order.ProductID,
		&order.ProductName,
		&order.Quantity,
		&order.TotalAmount,
		&order.OrderStatus,
		&order.PaymentStatus,
		&order.StripeSessionID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder persiste um novo pedido
func (r *OrderRepository) CreateOrder(ctx context.Context, order *Order) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, product_id, product_name, quantity,
			total_amount, order_status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, order.ID, order.BuyerID, order.SellerID, order.ProductID, order.ProductName,
		order.Quantity, order.TotalAmount, order.OrderStatus, order.PaymentStatus,
		order.CreatedAt, order.UpdatedAt)
	return err
}

// GetOrder busca um pedido pelo ID
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1
	`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByBuyer busca todos os pedidos de um comprador, em ordem de inserção
func (r *OrderRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE buyer_id = $1
		ORDER BY created_at
	`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// GetOrderForUpdate obtém o pedido com lock pessimista (FOR UPDATE). Todas
// as mutações de um mesmo pedido são serializadas por esse lock para evitar
// lost updates entre campos independentes.
func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, tx Tx, orderID string) (*Order, error) {
	pgTx := tx.(*PostgresTx).tx

	order, err := scanOrder(pgTx.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1
		FOR UPDATE
	`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order with lock: %w", err)
	}
	return order, nil
}

// UpdateOrderStatus atualiza o status de fulfillment dentro da transação
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, tx Tx, orderID string, status string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET order_status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

// SetPaymentSession registra a sessão de checkout criada no provedor
func (r *OrderRepository) SetPaymentSession(ctx context.Context, tx Tx, orderID, sessionID, paymentStatus string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET stripe_session_id = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3
	`, sessionID, paymentStatus, orderID)
	if err != nil {
		return fmt.Errorf("failed to set payment session: %w", err)
	}
	return nil
}

// SetPaymentStatus atualiza o status de pagamento dentro da transação
func (r *OrderRepository) SetPaymentStatus(ctx context.Context, tx Tx, orderID string, status string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		UPDATE orders
		SET payment_status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to set payment status: %w", err)
	}
	return nil
}

// WebhookEventProcessed verifica se um evento do provedor já foi processado
func (r *OrderRepository) WebhookEventProcessed(ctx context.Context, tx Tx, eventID string) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	var exists bool
	err := pgTx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM webhook_events
			WHERE event_id = $1
		)
	`, eventID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// RecordWebhookEvent registra um evento processado no ledger. A constraint
// única em event_id faz entregas concorrentes do mesmo evento colidirem
// aqui, dentro da mesma transação que muta o pedido.
func (r *OrderRepository) RecordWebhookEvent(ctx context.Context, tx Tx, eventID, orderID, eventType string) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO webhook_events (id, event_id, order_id, event_type)
		VALUES ($1, $2, $3, $4)
	`, uuid.New().String(), eventID, orderID, eventType)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("webhook event already recorded: %s", eventID)
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}
