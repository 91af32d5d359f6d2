package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-api/internal/service"
)

// AuthHandler expone registro, login, verificación y logout.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger, auth: auth}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		badRequest(c, "invalid request", gin.H{"jwt": nil})
		return
	}

	token, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	h.respondToken(c, token, err)
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Password        string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		badRequest(c, "invalid request", gin.H{"jwt": nil})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	h.respondToken(c, token, err)
}

// Verify maneja GET /auth/verify/:otp.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, ok := requireClaims(c, gin.H{"jwt": nil})
	if !ok {
		return
	}
	token, err := h.auth.Verify(c.Request.Context(), claims, c.Param("otp"))
	h.respondToken(c, token, err)
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := requireClaims(c, gin.H{"jwt": nil})
	if !ok {
		return
	}
	err := h.auth.Logout(c.Request.Context(), claims)
	h.respondToken(c, "", err)
}

func (h *AuthHandler) respondToken(c *gin.Context, token string, err error) {
	if err != nil {
		respondError(c, err, gin.H{"jwt": nil})
		return
	}
	var jwt any
	if token != "" {
		jwt = token
	}
	c.JSON(http.StatusOK, gin.H{"jwt": jwt, "error": nil})
}
