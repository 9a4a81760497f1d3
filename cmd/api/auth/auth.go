package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	app "github.com/mark3748/helpdesk-ans/cmd/api/app"
)

// AuthUser represents the authenticated user.
type AuthUser struct {
	ID          string   `json:"id"`
	ExternalID  string   `json:"external_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
}

// HasRole reports whether the user carries role, treating admin as a superset.
func (u AuthUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role || r == "admin" {
			return true
		}
	}
	return false
}

// Label is the name used for the user on tickets and notifications.
func (u AuthUser) Label() string {
	switch {
	case u.DisplayName != "" && u.Email != "":
		return u.DisplayName + " <" + u.Email + ">"
	case u.DisplayName != "":
		return u.DisplayName
	}
	return u.Email
}

// TestUser is installed by Middleware when TEST_BYPASS_AUTH is set.
var TestUser = AuthUser{
	ID:          "test-user",
	ExternalID:  "test",
	Email:       "test@example.com",
	DisplayName: "Test User",
	Roles:       []string{"agent"},
}

// Middleware performs JWT validation or bypass during tests.
func Middleware(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Cfg.TestBypassAuth {
			c.Set("user", TestUser)
			c.Next()
			return
		}
		if a.Keyf == nil {
			app.AbortError(c, http.StatusInternalServerError, "auth_unavailable", "jwks not configured", nil)
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "missing bearer token", nil)
			return
		}
		var opts []jwt.ParserOption
		if a.Cfg.OIDCIssuer != "" {
			opts = append(opts, jwt.WithIssuer(a.Cfg.OIDCIssuer))
		}
		if a.Cfg.OIDCAudience != "" {
			opts = append(opts, jwt.WithAudience(a.Cfg.OIDCAudience))
		}
		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), a.Keyf, opts...)
		if err != nil || !token.Valid {
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "invalid token", nil)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "invalid token", nil)
			return
		}
		u := AuthUser{
			ID:          getStringClaim(claims, "sub"),
			ExternalID:  getStringClaim(claims, "sub"),
			Email:       getStringClaim(claims, "email"),
			DisplayName: getStringClaim(claims, "name"),
		}
		if u.DisplayName == "" {
			u.DisplayName = getStringClaim(claims, "preferred_username")
		}
		claim := a.Cfg.OIDCGroupClaim
		if claim == "" {
			claim = "groups"
		}
		switch g := claims[claim].(type) {
		case []interface{}:
			for _, v := range g {
				if s, ok := v.(string); ok {
					u.Roles = append(u.Roles, s)
				}
			}
		case []string:
			u.Roles = append(u.Roles, g...)
		case string:
			u.Roles = append(u.Roles, g)
		}
		c.Set("user", u)
		c.Next()
	}
}

func getStringClaim(c jwt.MapClaims, key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// CurrentUser returns the user installed by Middleware.
func CurrentUser(c *gin.Context) (AuthUser, bool) {
	v, ok := c.Get("user")
	if !ok {
		return AuthUser{}, false
	}
	u, ok := v.(AuthUser)
	return u, ok
}

// Me returns the authenticated user.
func Me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "unauthenticated", nil)
		return
	}
	c.JSON(http.StatusOK, u)
}

// RequireRole ensures the user has one of the required roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			app.AbortError(c, http.StatusUnauthorized, "unauthenticated", "unauthenticated", nil)
			return
		}
		for _, want := range roles {
			if u.HasRole(want) {
				c.Next()
				return
			}
		}
		app.AbortError(c, http.StatusForbidden, "forbidden", "forbidden", nil)
	}
}
