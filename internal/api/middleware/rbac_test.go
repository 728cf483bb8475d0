package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	run := func(perms interface{}, required string) (int, bool) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if perms != nil {
			c.Set("permissions", perms)
		}
		RequirePermission(required)(c)
		return w.Code, !c.IsAborted()
	}

	tests := []struct {
		name       string
		perms      interface{}
		required   string
		wantStatus int
		wantNext   bool
	}{
		{"admin bypasses required permission", []string{PermAdmin}, PermRealmSync, http.StatusOK, true},
		{"specific permission allowed", []string{PermRealmRead, PermTagsWrite}, PermTagsWrite, http.StatusOK, true},
		{"missing permission forbidden", []string{PermRealmRead}, PermRealmSync, http.StatusForbidden, false},
		{"no permissions in context", nil, PermRealmRead, http.StatusForbidden, false},
		{"wrong type", "realm:read", PermRealmRead, http.StatusForbidden, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, next := run(tc.perms, tc.required)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantNext, next)
		})
	}
}
