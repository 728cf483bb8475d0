package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/pkg/logger"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID   contextKey = "request_id"
	ctxKeyUserID      contextKey = "user_id"
	ctxKeyUsername    contextKey = "username"
	ctxKeyPermissions contextKey = "permissions"

	anonymousActor = "anonymous"
)

// RequestID propagates the caller's X-Request-ID or assigns a UUIDv7. The ID is
// echoed in the response and attached to every log entry written via
// logger.FromContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)

		ctx := context.WithValue(c.Request.Context(), ctxKeyRequestID, rid)
		ctx = logger.ContextWith(ctx, zap.String("request_id", rid))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SetUserContext stores the authenticated operator in ctx and tags its log
// entries with the actor.
func SetUserContext(ctx context.Context, userID, username string, permissions []string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyUsername, username)
	ctx = context.WithValue(ctx, ctxKeyPermissions, permissions)
	return logger.ContextWith(ctx, zap.String("actor", Actor(ctx)))
}

func contextString(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string { return contextString(ctx, ctxKeyRequestID) }

// GetUserID extracts user ID from context.
func GetUserID(ctx context.Context) string { return contextString(ctx, ctxKeyUserID) }

// GetUsername extracts username from context.
func GetUsername(ctx context.Context) string { return contextString(ctx, ctxKeyUsername) }

// GetPermissions extracts the operator permissions from context.
func GetPermissions(ctx context.Context) []string {
	v, _ := ctx.Value(ctxKeyPermissions).([]string)
	return v
}

// Actor names the operator for audit fields: username, else user ID, else "anonymous".
func Actor(ctx context.Context) string {
	if name := GetUsername(ctx); name != "" {
		return name
	}
	if id := GetUserID(ctx); id != "" {
		return id
	}
	return anonymousActor
}
