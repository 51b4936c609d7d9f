package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-auth/backend/internal/security"
	"portal-auth/backend/internal/server/interceptors"
)

// RequireAuth validates the Authorization bearer token and stores the principal on
// both the gin context and the request context. Expired and tampered tokens get
// the same response.
func RequireAuth(tokens *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := interceptors.BearerToken(c.GetHeader("Authorization"))
		if token == "" || tokens == nil {
			AbortWithError(c, http.StatusUnauthorized, "missing or invalid authorization")
			return
		}
		p, err := tokens.Verify(token)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, "missing or invalid authorization")
			return
		}
		c.Set(PrincipalKey, p)
		c.Request = c.Request.WithContext(interceptors.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// GetPrincipal returns the principal stored by RequireAuth.
func GetPrincipal(c *gin.Context) (*security.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*security.Principal)
	return p, ok && p != nil
}
