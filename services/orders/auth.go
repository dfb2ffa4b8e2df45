package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Chaves do contexto gin preenchidas pelo middleware de autenticação.
const (
	ctxUserID   = "auth.user_id"
	ctxUserRole = "auth.user_role"
	ctxRawToken = "auth.raw_token"
)

// AuthMiddleware extrai e verifica o bearer token, colocando a identidade
// do ator (id + papel) explicitamente no contexto da requisição. O token
// cru também fica disponível para ser propagado ao serviço de catálogo.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}
		userID, _ := claims["user_id"].(string)
		role, _ := claims["role"].(string)
		if userID == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "incomplete claims"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, strings.ToUpper(role))
		c.Set(ctxRawToken, raw)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (id, role, rawToken string) {
	id = c.GetString(ctxUserID)
	role = c.GetString(ctxUserRole)
	rawToken = c.GetString(ctxRawToken)
	return id, role, rawToken
}
