package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName is the session cookie set on login.
const CookieName = "auth_token"

const userKey = "auth.userID"

// AdminAuth enforces a valid session token, taken from the Authorization
// bearer header or the session cookie. The authenticated user id is stored
// on the request context; scoped operations receive it explicitly.
func AdminAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			if cookie, err := c.Cookie(CookieName); err == nil {
				tokenStr = cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated admin id set by AdminAuth.
func UserID(c *gin.Context) string {
	id, _ := c.Get(userKey)
	s, _ := id.(string)
	return s
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
