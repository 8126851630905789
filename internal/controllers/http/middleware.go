package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func (h *Handler) requireUser(c *gin.Context) {
	id := c.GetHeader(userIDHeader)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please login to continue"})
		return
	}
	c.Set(userIDKey, id)
	c.Next()
}

func (h *Handler) requireAdmin(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
		return
	}
	c.Next()
}

// maintenance refuses new checkouts while maintenance mode is on. If
// settings cannot be read the request goes through; the orders gate still
// fails closed.
func (h *Handler) maintenance(c *gin.Context) {
	s, err := h.settings.Settings(c.Request.Context())
	if err == nil && s.MaintenanceMode {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "We are under maintenance. Please try again later."})
		return
	}
	c.Next()
}

func (h *Handler) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	h.metrics.ObserveRequest(route, c.Writer.Status(), time.Since(start))
}
