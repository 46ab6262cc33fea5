package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderUser names the request header carrying the caller's username.
//
// This is a development placeholder for real session auth: the header
// is trusted after checking the username is registered. Do not expose
// this service on an untrusted network as-is.
const HeaderUser = "X-Desktop-User"

// ContextUser is the gin context key holding the resolved username.
const ContextUser = "user"

// Registry answers whether a username exists.
type Registry interface {
	Exists(username string) bool
}

// Identity resolves the caller's username from the user header and
// rejects requests from unknown users with 401.
func Identity(users Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader(HeaderUser)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUser + " header"})
			c.Abort()
			return
		}
		if !users.Exists(username) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			c.Abort()
			return
		}
		c.Set(ContextUser, username)
		c.Next()
	}
}

// User returns the username resolved by Identity.
func User(c *gin.Context) string {
	return c.GetString(ContextUser)
}
