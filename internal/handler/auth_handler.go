package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "focusbot/internal/errors"
	"focusbot/internal/middleware"
	"focusbot/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

type authRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authRequest
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), req.Name, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authRequest
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), req.Name, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	member := middleware.CurrentMember(c)
	if member == nil {
		writeError(c, apperrors.Unauthorized(""))
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}
