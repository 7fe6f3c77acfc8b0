// Package ginmw provides Gin route guards backed by the session manager.
//
// All guards accept an estate.SessionService and decide from its live state
// on every request; decisions are never cached across token or identity
// transitions. While the initial session resolution is still in flight the
// guards suspend the decision (bounded by the request context) instead of
// guessing.
package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"
	estate "github.com/homequest/estate-go"
)

// Context keys for storing session data in gin.Context.
const (
	KeyIdentity = "estate_identity"
	KeyUserType = "estate_user_type"
)

// waitReady blocks until the session finished its initial resolution, or the
// request context ends first. Reports whether a decision may be made.
func waitReady(sess estate.SessionService, c *gin.Context) bool {
	select {
	case <-sess.Ready():
		return true
	case <-c.Request.Context().Done():
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session still resolving"})
		return false
	}
}

// AdminOnly returns a guard that admits admins only. Everyone else is
// redirected to the admin login entry point.
func AdminOnly(sess estate.SessionService, adminLoginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !waitReady(sess, c) {
			return
		}
		if !sess.IsAdmin() {
			c.Redirect(http.StatusFound, adminLoginPath)
			c.Abort()
			return
		}
		stashIdentity(c, sess)
		c.Next()
	}
}

// BackOffice returns a guard for the wider admin back-office: admins and
// agents pass, everyone else is redirected to the admin login entry point.
func BackOffice(sess estate.SessionService, adminLoginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !waitReady(sess, c) {
			return
		}
		if !sess.CanAccessAdmin() {
			c.Redirect(http.StatusFound, adminLoginPath)
			c.Abort()
			return
		}
		stashIdentity(c, sess)
		c.Next()
	}
}

// AnonymousOnly returns a guard for login and registration pages: requests
// with a resolved user are redirected to the authenticated landing page.
func AnonymousOnly(sess estate.SessionService, homePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !waitReady(sess, c) {
			return
		}
		if sess.User() != nil {
			c.Redirect(http.StatusFound, homePath)
			c.Abort()
			return
		}
		c.Next()
	}
}

func stashIdentity(c *gin.Context, sess estate.SessionService) {
	u := sess.User()
	if u == nil {
		return
	}
	c.Set(KeyIdentity, u)
	c.Set(KeyUserType, u.UserType)
	c.Request = c.Request.WithContext(estate.WithIdentity(c.Request.Context(), u))
}

// GetIdentity returns the identity stashed by a guard, or nil.
func GetIdentity(c *gin.Context) *estate.Identity {
	if v, ok := c.Get(KeyIdentity); ok {
		if id, ok := v.(*estate.Identity); ok {
			return id
		}
	}
	return nil
}
