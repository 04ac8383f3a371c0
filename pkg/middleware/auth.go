package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	TelegramIDKey = "telegram_id"
)

type AccessTokenParser interface {
	ParseAccessToken(accessToken string) (int64, error)
}

// AuthMiddleware accepts only access tokens. Refresh tokens are rejected.
func AuthMiddleware(parser AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authorizationHeader)
		if !strings.HasPrefix(header, bearerPrefix) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "bearer token is required in 'Authorization' header"})
			c.Abort()
			return
		}

		telegramID, err := parser.ParseAccessToken(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "authentication failed"})
			c.Abort()
			return
		}

		logrus.Debugf("AuthMiddleware: telegram_id: %d", telegramID)
		c.Set(TelegramIDKey, telegramID)
		c.Next()
	}
}

func TelegramID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(TelegramIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
