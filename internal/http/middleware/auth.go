// README: Gin middleware resolving bearer credentials through the identity gate.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/auth"
)

const principalKey = "principal"

// Auth rejects requests whose credential does not resolve to a live
// principal. Frozen tenants and superseded sessions map to 403; a bad or
// missing credential maps to 401.
func Auth(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		p, err := gate.Resolve(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			status := http.StatusUnauthorized
			switch err {
			case auth.ErrFrozenTenant, auth.ErrSessionSuperseded:
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Principal returns the authenticated principal set by Auth.
func Principal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}
