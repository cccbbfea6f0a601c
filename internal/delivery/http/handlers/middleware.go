package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	AdminHeader     = "X-Admin-ID"
	adminContextKey = "admin_id"
)

// RequireAdmin trusts the admin identity set by the gateway; authentication happens upstream.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID := c.GetHeader(AdminHeader)
		if adminID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin identity required"})
			return
		}
		c.Set(adminContextKey, adminID)
		c.Next()
	}
}

func adminID(c *gin.Context) string {
	return c.GetString(adminContextKey)
}

func pagination(c *gin.Context) (int64, int64) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func optionalBool(c *gin.Context, key string) *bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}
