package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/types"
)

const (
	OwnerKey  = "owner"
	UserIDKey = "user_id"
	EmailKey  = "email"
)

// CookieJar reads the guest cookie of a request and builds the Set-Cookie
// headers for it.
type CookieJar interface {
	Read(r *http.Request) string
	Cookie(r *http.Request, value string) *http.Cookie
}

// Identity resolves the owner of every request. A bearer token, when sent,
// must verify; otherwise the request runs as a guest, and a new guest gets
// a cookie. The owner is stored in the context under OwnerKey.
func Identity(verifier service.ICredentialVerifier, resolver service.IIdentityResolver, cookies CookieJar) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := service.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		var claim *types.Claim
		if token != "" {
			claim, err = verifier.Verify(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
		}

		res, err := resolver.Resolve(c.Request.Context(), claim, cookies.Read(c.Request))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrIdentityUnavailable) {
				status = http.StatusServiceUnavailable
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "identity could not be resolved"})
			return
		}

		if res.SetCookie != "" {
			http.SetCookie(c.Writer, cookies.Cookie(c.Request, res.SetCookie))
		}

		c.Set(OwnerKey, res.Owner)
		if res.Owner.IsUser() {
			c.Set(UserIDKey, res.Owner.UserID)
			c.Set(EmailKey, res.Email)
		}
		c.Next()
	}
}

// RequireUser rejects requests that did not authenticate.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := OwnerFrom(c)
		if !ok || !owner.IsUser() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// OwnerFrom returns the owner resolved by Identity.
func OwnerFrom(c *gin.Context) (types.Owner, bool) {
	v, exists := c.Get(OwnerKey)
	if !exists {
		return types.Owner{}, false
	}
	owner, ok := v.(types.Owner)
	return owner, ok
}
