package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"user-api/internal/service"
)

const requestIDHeader = "X-Request-ID"

// RouterConfig agrupa los parámetros de montaje del router.
type RouterConfig struct {
	APIPrefix string
	// StorageDir se sirve en /storage cuando no está vacío (backend local).
	StorageDir string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	cfg RouterConfig,
	jwtSvc *service.JWTService,
	authH *AuthHandler,
	userH *UserHandler,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.MaxMultipartMemory = MaxAvatarBytes

	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), gin.Recovery())

	if cfg.StorageDir != "" {
		r.Static("/storage", cfg.StorageDir)
	}

	r.GET("/", userH.Index)

	api := r.Group(normalizePrefix(cfg.APIPrefix))
	requireAuth := JWTAuthMiddleware(jwtSvc)

	auth := api.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.GET("/verify/:otp", requireAuth, authH.Verify)
	auth.POST("/logout", requireAuth, authH.Logout)

	user := api.Group("/user")
	user.GET("/me", requireAuth, userH.Me)
	user.PATCH("/update-profile", requireAuth, userH.UpdateAvatar)
	user.GET("/", userH.List)
	user.GET("/:id", userH.Get)
	user.PUT("/:id", userH.Update)
	user.DELETE("/:id", userH.Delete)

	return r
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// requestIDMiddleware propaga X-Request-ID o genera uno nuevo.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
