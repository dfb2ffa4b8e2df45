package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProductHandler contém os handlers HTTP do catálogo
type ProductHandler struct {
	repository ProductRepository
	tracer     trace.Tracer
}

// NewProductHandler cria uma nova instância de ProductHandler
func NewProductHandler(repository ProductRepository, tracer trace.Tracer) *ProductHandler {
	return &ProductHandler{
		repository: repository,
		tracer:     tracer,
	}
}

// RequireBearer exige uma credencial bearer na requisição. A validação
// completa do token pertence ao emissor; aqui só a presença é exigida.
func RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		c.Next()
	}
}

// GetProduct retorna o snapshot de um produto pelo ID
func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "get_product")
	defer span.End()

	productID := c.Param("id")
	span.SetAttributes(attribute.String("product_id", productID))

	product, err := h.repository.GetProduct(ctx, productID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, product)
}

// HealthCheck verifica a saúde do serviço
func (h *ProductHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "catalog-service",
	})
}
