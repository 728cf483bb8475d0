package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "kc-steward.io/steward/internal/pkg/errors"
)

// Field error codes of INVALID_REQUEST responses.
const (
	fieldInvalidType   = "INVALID_TYPE"
	fieldMalformedJSON = "MALFORMED_JSON"
	fieldRequired      = "REQUIRED"
)

// bindJSON decodes the body into dst and reports a failure on c. The caller
// returns when it yields false.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(bindError(err))
		return false
	}
	return true
}

// bindError maps a decoding failure to INVALID_REQUEST, naming the offending
// field when the decoder does.
func bindError(err error) *apperrors.AppError {
	appErr := apperrors.Wrap(err, apperrors.CodeInvalidRequest, "invalid request body", http.StatusBadRequest)

	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
		field     apperrors.FieldError
	)
	switch {
	case errors.As(err, &typeErr):
		field = apperrors.FieldError{
			Field:   typeErr.Field,
			Code:    fieldInvalidType,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
		}
		if field.Field == "" {
			field.Field = "body"
		}
	case errors.As(err, &syntaxErr):
		field = apperrors.FieldError{
			Field:   "body",
			Code:    fieldMalformedJSON,
			Message: fmt.Sprintf("syntax error at offset %d", syntaxErr.Offset),
		}
	case errors.Is(err, io.ErrUnexpectedEOF):
		field = apperrors.FieldError{Field: "body", Code: fieldMalformedJSON, Message: "truncated JSON"}
	case errors.Is(err, io.EOF):
		field = apperrors.FieldError{Field: "body", Code: fieldRequired, Message: "request body is empty"}
	default:
		return appErr
	}
	return appErr.WithFieldErrors([]apperrors.FieldError{field})
}
