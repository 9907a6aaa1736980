package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kaziflow/backend/internal/logger"
	"github.com/kaziflow/backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно. AppError отдаётся
// клиенту с кодом и статусом, всё остальное маскируется как внутренняя
// ошибка.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Log.WithFields(logrus.Fields{
					"error":  err.Error(),
					"code":   appErr.Code,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("request error")
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}

		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("request error")

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "внутренняя ошибка сервера",
			"code":  apperror.ErrCodeInternal,
		})
	}
}
