package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-api/internal/domain"
	"user-api/internal/service"
)

// MaxAvatarBytes limita el tamaño de la imagen subida en PATCH /user/update-profile.
const MaxAvatarBytes = 5 << 20

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger *zap.Logger
	users  *service.UserService
}

func NewUserHandler(logger *zap.Logger, users *service.UserService) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{logger: logger, users: users}
}

// Index maneja GET / con el total de cuentas.
func (h *UserHandler) Index(c *gin.Context) {
	n, err := h.users.Count(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "This is a users API", "totalUsers": n})
}

// Me maneja GET /user/me.
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := requireClaims(c, gin.H{"me": nil})
	if !ok {
		return
	}
	me, err := h.users.Me(c.Request.Context(), claims)
	if err != nil {
		respondError(c, err, gin.H{"me": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me})
}

type listQuery struct {
	FirstName string `form:"firstName"`
	LastName  string `form:"lastName"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PerPage   int    `form:"per_page" binding:"omitempty,min=1"`
	Order     string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// List maneja GET /user/. Con page y per_page devuelve el sobre paginado; si no, un array.
func (h *UserHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.logger.Warn("invalid list query", zap.Error(err))
		badRequest(c, "invalid query", nil)
		return
	}

	filter := domain.UserFilter{
		FirstName: q.FirstName,
		LastName:  q.LastName,
		Page:      q.Page,
		PerPage:   q.PerPage,
		Order:     domain.SortOrder(q.Order),
	}
	ctx := c.Request.Context()

	if filter.Paginated() {
		page, err := h.users.ListPage(ctx, filter)
		if err != nil {
			respondError(c, err, nil)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	users, err := h.users.List(ctx, filter)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get maneja GET /user/:id.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update maneja PUT /user/:id con actualización parcial.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req service.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update request", zap.Error(err))
		badRequest(c, "invalid request", nil)
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete maneja DELETE /user/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	msg, err := h.users.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// UpdateAvatar maneja PATCH /user/update-profile (multipart, campo "avatar").
func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	claims, ok := requireClaims(c, gin.H{"success": false, "url": nil})
	if !ok {
		return
	}
	file, err := c.FormFile("avatar")
	if err != nil {
		badRequest(c, "avatar file is required", gin.H{"success": false, "url": nil})
		return
	}
	if file.Size > MaxAvatarBytes {
		badRequest(c, "avatar file is too large", gin.H{"success": false, "url": nil})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("open avatar upload failed", zap.Error(err))
		badRequest(c, "could not read avatar file", gin.H{"success": false, "url": nil})
		return
	}
	defer src.Close()

	url, err := h.users.UpdateAvatar(
		c.Request.Context(),
		claims,
		file.Filename,
		src,
		file.Size,
		file.Header.Get("Content-Type"),
	)
	if err != nil {
		respondError(c, err, gin.H{"success": false, "url": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": url})
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid user id", nil)
		return 0, false
	}
	return id, true
}
