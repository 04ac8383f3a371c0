package handler

import (
	"net/http"

	"tg_auth_back/pkg/middleware"
	"tg_auth_back/pkg/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service      *service.Service
	allowOrigins []string
}

func NewHandler(service *service.Service, allowOrigins []string) *Handler {
	return &Handler{
		service:      service,
		allowOrigins: allowOrigins,
	}
}

func (h *Handler) InitRoute() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger())

	router.Use(cors.New(h.corsConfig()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		private := auth.Group("", middleware.AuthMiddleware(h.service.Authorization))
		{
			private.POST("/logout", h.Logout)
			private.GET("/me", h.GetMe)
		}
	}

	return router
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}

	// Без списка доменов разрешаем всех, но без credentials
	if len(h.allowOrigins) == 0 || (len(h.allowOrigins) == 1 && h.allowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = h.allowOrigins
	cfg.AllowCredentials = true
	return cfg
}
