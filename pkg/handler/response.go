package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tg_auth_back/pkg/apperror"
)

type Error struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, message string) {
	logrus.Error(message)
	c.AbortWithStatusJSON(statusCode, Error{Message: message})
}

// serviceErrorResponse never exposes the cause of an auth failure.
func serviceErrorResponse(c *gin.Context, err error) {
	if errors.Is(err, apperror.ErrAuthenticationFailed) {
		newErrorResponse(c, http.StatusUnauthorized, apperror.Public(err))
		return
	}
	logrus.WithError(err).Error("internal error")
	newErrorResponse(c, http.StatusInternalServerError, apperror.Public(err))
}

func wrapOkJSON(c *gin.Context, response map[string]interface{}) {
	c.JSON(http.StatusOK, response)
}
