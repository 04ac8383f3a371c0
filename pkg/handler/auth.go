package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tg_auth_back/models"
	"tg_auth_back/pkg/middleware"
)

func (h *Handler) Login(c *gin.Context) {
	var input models.LoginInput

	if err := c.ShouldBindJSON(&input); err != nil || input.InitData == "" {
		newErrorResponse(c, http.StatusBadRequest, "initData required")
		return
	}

	identity, pair, err := h.service.Authorization.Login(c.Request.Context(), input.InitData)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{User: identity, TokenPair: pair})
}

func (h *Handler) Refresh(c *gin.Context) {
	var input models.RefreshInput

	if err := c.ShouldBindJSON(&input); err != nil || input.RefreshToken == "" {
		newErrorResponse(c, http.StatusBadRequest, "refresh_token required")
		return
	}

	identity, pair, err := h.service.Authorization.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{User: identity, TokenPair: pair})
}

func (h *Handler) Logout(c *gin.Context) {
	telegramID, ok := middleware.TelegramID(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "authentication failed")
		return
	}

	var input models.RefreshInput

	if err := c.ShouldBindJSON(&input); err != nil || input.RefreshToken == "" {
		newErrorResponse(c, http.StatusBadRequest, "refresh_token required")
		return
	}

	if err := h.service.Authorization.Logout(c.Request.Context(), telegramID, input.RefreshToken); err != nil {
		serviceErrorResponse(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"message": "logged out",
	})
}

func (h *Handler) GetMe(c *gin.Context) {
	telegramID, ok := middleware.TelegramID(c)
	if !ok {
		newErrorResponse(c, http.StatusUnauthorized, "authentication failed")
		return
	}

	user, err := h.service.Authorization.CurrentUser(c.Request.Context(), telegramID)
	if err != nil {
		serviceErrorResponse(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"user": user,
	})
}
