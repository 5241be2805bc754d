package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the shared admin key for role-mutation endpoints.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards mutating endpoints with a shared admin key. Only the
// bcrypt hash of the key is held in memory; requests present the raw key.
func RequireAdminKey(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(AdminKeyHeader)
		if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}
