package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/api/openapi"
	apperrors "kc-steward.io/steward/internal/pkg/errors"
	"kc-steward.io/steward/internal/pkg/logger"
)

const (
	codeRouteInvalid    = "OPENAPI_ROUTE_INVALID"
	codeResponseInvalid = "OPENAPI_RESPONSE_INVALID"

	responseInvalidMessage = "response does not conform to OpenAPI contract"
)

// Authentication is enforced by JWTAuth and RequirePermission before the
// contract is consulted.
var contractOptions = &openapi3filter.Options{
	AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
}

// MustOpenAPIValidator is NewOpenAPIValidator for router setup, where a
// broken embedded contract is a programming error.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator checks every request under basePath against the
// embedded contract and replaces non-conforming responses with a 500.
// Paths the contract does not describe pass through untouched.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create contract router: %w", err)
	}
	v := &contractValidator{router: router, basePath: normalizeBasePath(basePath)}
	return v.handle, nil
}

type contractValidator struct {
	router   routers.Router
	basePath string
}

func (v *contractValidator) handle(c *gin.Context) {
	input, err := v.requestInput(c.Request)
	switch {
	case err == nil:
	case isPathNotFoundError(err):
		c.Next()
		return
	default:
		abortWithOpenAPIError(c, http.StatusBadRequest, codeRouteInvalid, err.Error())
		return
	}

	if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
		abortWithOpenAPIError(c, http.StatusBadRequest, apperrors.CodeValidationFailed, err.Error())
		return
	}

	original := c.Writer
	buffered := newContractResponseWriter(original)
	c.Writer = buffered
	c.Next()
	c.Writer = original

	// Errors without a body are rendered by ErrorHandler further out.
	if !buffered.Written() && len(c.Errors) > 0 {
		return
	}

	log := logger.FromContext(c.Request.Context(), nil).With(
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)
	if err := v.checkResponse(c.Request.Context(), input, buffered); err != nil {
		log.Error("OpenAPI response validation failed",
			zap.Int("status", buffered.Status()),
			zap.Error(err),
		)
		buffered.replaceJSON(http.StatusInternalServerError, ErrorResponse{
			Code:      codeResponseInvalid,
			Message:   responseInvalidMessage,
			RequestID: GetRequestID(c.Request.Context()),
		})
	}
	if err := buffered.flush(); err != nil {
		log.Warn("failed to flush buffered response", zap.Error(err))
	}
}

// requestInput resolves the contract route for req. The contract's paths are
// relative to basePath, so the lookup runs on a shallow copy with the prefix
// stripped and the caller's URL is never touched.
func (v *contractValidator) requestInput(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	lookup := req.Clone(req.Context())
	lookup.URL.Path = normalizeValidationPath(v.basePath, req.URL.Path)
	if req.URL.RawPath != "" {
		lookup.URL.RawPath = normalizeValidationPath(v.basePath, req.URL.RawPath)
	}

	route, params, err := v.router.FindRoute(lookup)
	if err != nil {
		return nil, err
	}
	return &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options:    contractOptions,
	}, nil
}

func (v *contractValidator) checkResponse(
	ctx context.Context,
	input *openapi3filter.RequestValidationInput,
	w *contractResponseWriter,
) error {
	resp := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 w.Status(),
		Header:                 w.Header().Clone(),
		Options:                contractOptions,
	}
	if w.body.Len() > 0 {
		resp.SetBodyBytes(w.body.Bytes())
	}
	return openapi3filter.ValidateResponse(ctx, resp)
}

func normalizeBasePath(basePath string) string {
	basePath = strings.Trim(strings.TrimSpace(basePath), "/")
	if basePath == "" {
		return ""
	}
	return "/" + basePath
}

// normalizeValidationPath strips basePath from path. Paths outside basePath
// are returned unchanged so the contract router reports them as unknown.
func normalizeValidationPath(basePath, path string) string {
	switch {
	case basePath == "" && path == "":
		return "/"
	case basePath == "":
		return path
	case path == basePath:
		return "/"
	case strings.HasPrefix(path, basePath+"/"):
		return strings.TrimPrefix(path, basePath)
	default:
		return path
	}
}

func isPathNotFoundError(err error) bool {
	if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) {
		return strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error())
	}
	return false
}

func abortWithOpenAPIError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: GetRequestID(c.Request.Context()),
	})
}
