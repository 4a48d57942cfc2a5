package middleware

import (
	"net/http"
	"os"
	"strings"

	"backoffice/internal/events"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in the token's "role" claim.
const (
	RoleAdmin   = "admin"
	RoleBilling = "billing"
	RoleViewer  = "viewer"
)

var (
	// WriteRoles may change billing state.
	WriteRoles = []string{RoleAdmin, RoleBilling}
	// ReadRoles may read billing state.
	ReadRoles = []string{RoleAdmin, RoleBilling, RoleViewer}
)

var jwtSecret []byte

// InitAuth sets the HMAC secret used to verify access tokens.
func InitAuth(secret string) {
	jwtSecret = []byte(secret)
}

func GetJWTSecret() []byte {
	if len(jwtSecret) > 0 {
		return jwtSecret
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "dev-secret-change-me"
	}
	return []byte(secret)
}

// RequireRole validates the bearer token and checks that its role is one of
// allowedRoles. The token subject becomes the actor recorded on events.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return GetJWTSecret(), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if userRole == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		userID, _ := claims["sub"].(string)
		c.Set("userID", userID)
		c.Set("userRole", userRole)
		if userID != "" {
			c.Request = c.Request.WithContext(events.WithActor(c.Request.Context(), userID))
		}

		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token cookie set by the dashboard login.
func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return ""
		}
		return parts[1]
	}
	tokenString, err := c.Cookie("access_token")
	if err != nil {
		return ""
	}
	return tokenString
}
