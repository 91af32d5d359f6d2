package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"user-api/internal/service"
)

const authClaimsKey = "auth_claims"

const unauthorizedMessage = "You are not authorized."

// JWTAuthMiddleware valida el bearer token y guarda sus claims en el contexto.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthorizedMessage})
			return
		}

		claims, ok := jwtSvc.Decode(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": unauthorizedMessage})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// requireClaims devuelve los claims de la petición o responde 401 con body.
func requireClaims(c *gin.Context, body gin.H) (service.Claims, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		if body == nil {
			body = gin.H{}
		}
		body["error"] = unauthorizedMessage
		c.AbortWithStatusJSON(http.StatusUnauthorized, body)
	}
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
