package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"user-api/internal/service"
)

// statusFor traduce la clase de error a código HTTP. Los errores de negocio viajan con 200.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// errorMessage devuelve el texto visible para el cliente.
func errorMessage(err error) string {
	if e, ok := service.AsError(err); ok {
		return e.Message
	}
	return "Something went wrong on our side."
}

// respondError escribe body con "error" relleno y el status que corresponda.
func respondError(c *gin.Context, err error, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["error"] = errorMessage(err)
	if e, ok := service.AsError(err); ok {
		if e.Field != "" {
			body["field"] = e.Field
		}
		if e.Kind == service.KindRateLimited && e.RetryAfter > 0 {
			c.Header("Retry-After", retryAfterSeconds(e.RetryAfter))
		}
	}
	c.JSON(statusFor(service.KindOf(err)), body)
}

// retryAfterSeconds redondea hacia arriba: Retry-After solo admite segundos enteros.
func retryAfterSeconds(d time.Duration) string {
	return strconv.FormatInt(int64((d+time.Second-1)/time.Second), 10)
}

func badRequest(c *gin.Context, message string, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["error"] = message
	c.JSON(http.StatusBadRequest, body)
}
