package main

import "fmt"

// Erros de negócio do serviço de pedidos. Os handlers mapeiam cada
// sentinela para um status HTTP via errors.Is.
var (
	ErrOrderNotFound     = fmt.Errorf("order not found")
	ErrProductNotFound   = fmt.Errorf("product not found")
	ErrAccessDenied      = fmt.Errorf("access denied")
	ErrValidation        = fmt.Errorf("validation error")
	ErrInsufficientStock = fmt.Errorf("insufficient stock")
	ErrProductLookup     = fmt.Errorf("product lookup failed")
	ErrPaymentProvider   = fmt.Errorf("payment provider error")
	ErrInvalidSignature  = fmt.Errorf("invalid webhook signature")
)
