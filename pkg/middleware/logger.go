package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if id, ok := TelegramID(c); ok {
			entry = entry.WithField("telegram_id", id)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request")
		case c.Writer.Status() >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
