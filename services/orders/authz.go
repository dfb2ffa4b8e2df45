package main

// Papéis reconhecidos pelo serviço de pedidos.
const (
	RoleAdmin  = "ADMIN"
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
)

// CanViewOrder decide se o ator pode visualizar o pedido.
// ADMIN vê qualquer pedido; BUYER e SELLER só veem os próprios.
func CanViewOrder(actorID, actorRole string, order *Order) bool {
	switch actorRole {
	case RoleAdmin:
		return true
	case RoleBuyer:
		return order.BuyerID == actorID
	case RoleSeller:
		return order.SellerID == actorID
	default:
		return false
	}
}

// CanUpdateStatus decide se o papel pode mutar o status de um pedido.
// Apenas ADMIN.
func CanUpdateStatus(actorRole string) bool {
	return actorRole == RoleAdmin
}

// CanPay decide se o ator pode iniciar o pagamento do pedido. Apenas o
// comprador do próprio pedido — qualquer outro ator é negado, inclusive
// ADMIN.
func CanPay(actorID string, order *Order) bool {
	return order.BuyerID == actorID
}
