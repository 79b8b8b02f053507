package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ai-integration/internal/models"
)

// RespondWithError sends a standardized JSON error response.
func RespondWithError(c *gin.Context, httpStatus int, appErrorCode string, message string, details interface{}) {
	c.AbortWithStatusJSON(httpStatus, models.APIError{
		Code:    appErrorCode,
		Message: message,
		Details: details,
	})
}

// RespondWithSuccess sends a standardized JSON success response.
// For 204 No Content pass nil data.
func RespondWithSuccess(c *gin.Context, httpStatus int, data interface{}) {
	if data != nil {
		c.JSON(httpStatus, data)
	} else {
		c.Status(httpStatus)
	}
}

// respondWithDomainError classifies err and sends the matching response.
// Every failure is logged; the message is what the user sees.
func (a *API) respondWithDomainError(c *gin.Context, err error, details interface{}) {
	status, code, message := classify(err)
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.String("code", code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("Request failed", fields...)
	} else {
		a.logger.Warn("Request rejected", fields...)
	}

	var vErr *models.ValidationError
	if details == nil && errors.As(err, &vErr) && vErr.Field != "" {
		details = gin.H{"field": vErr.Field}
	}
	RespondWithError(c, status, code, message, details)
}

func classify(err error) (int, string, string) {
	var (
		vErr   *models.ValidationError
		pu     *models.ProviderUnavailableError
		cfgErr *models.ConfigurationError
	)
	switch {
	case errors.As(err, &vErr):
		code := vErr.Code
		if code == "" {
			code = models.ErrorCodeValidation
		}
		return http.StatusBadRequest, code, vErr.Message
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, models.ErrorCodeNotFound, err.Error()
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, models.ErrorCodeConflict, err.Error()
	case errors.As(err, &pu):
		return http.StatusBadGateway, models.ErrorCodeServiceUnavailable, pu.Error()
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, models.ErrorCodeConfiguration, cfgErr.Error()
	}
	return http.StatusInternalServerError, models.ErrorCodeInternalServerError, "An unexpected error occurred."
}
