// Package middleware provides HTTP middleware for Realm Steward.
//
// Import Path: kc-steward.io/steward/internal/api/middleware
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "kc-steward.io/steward/internal/pkg/errors"
	"kc-steward.io/steward/internal/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Params      map[string]interface{} `json:"params,omitempty"`
	FieldErrors []apperrors.FieldError `json:"field_errors,omitempty"`
	RequestID   string                 `json:"request_id,omitempty"`
}

// ErrorHandler renders the last error added via c.Error() as an ErrorResponse.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		ctx := c.Request.Context()
		rid := GetRequestID(ctx)
		log := logger.FromContext(ctx, nil)

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status := apperrors.StatusOf(appErr)
			log.Warn("Request error",
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", status),
				zap.Error(appErr.Err),
			)
			c.JSON(status, ErrorResponse{
				Code:        appErr.Code,
				Message:     appErr.Message,
				Params:      appErr.Params,
				FieldErrors: appErr.FieldErrors,
				RequestID:   rid,
			})
			return
		}

		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Request timed out", zap.Error(err))
			c.JSON(http.StatusGatewayTimeout, ErrorResponse{
				Code:      "TIMEOUT",
				Message:   "upstream realm did not answer in time",
				RequestID: rid,
			})
			return
		}

		log.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:      apperrors.CodeInternalError,
			Message:   "An internal error occurred",
			RequestID: rid,
		})
	}
}
