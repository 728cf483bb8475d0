package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "kc-steward.io/steward/internal/pkg/errors"
)

// Operator permissions carried in the token.
const (
	// PermRealmRead allows listing clusters, topology, tags and running comparisons.
	PermRealmRead = "realm:read"
	// PermRealmSync allows pushing entities into a destination realm.
	PermRealmSync = "realm:sync"
	// PermTagsWrite allows applying tag plans.
	PermTagsWrite = "tags:write"
	// PermAdmin grants every permission, including the runtime log level.
	PermAdmin = "steward:admin"
)

// RequirePermission returns middleware that checks the authenticated operator
// carries permission (or PermAdmin).
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, exists := c.Get(string(ctxKeyPermissions))
		if !exists {
			abortForbidden(c, "no permissions in context")
			return
		}
		permList, ok := perms.([]string)
		if !ok {
			abortForbidden(c, "invalid permissions type")
			return
		}

		if slices.Contains(permList, PermAdmin) || slices.Contains(permList, permission) {
			c.Next()
			return
		}

		abortForbidden(c, "insufficient permissions")
	}
}

func abortForbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
		Code:      apperrors.CodeForbidden,
		Message:   msg,
		RequestID: GetRequestID(c.Request.Context()),
	})
}
