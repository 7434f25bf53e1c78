package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// RoleKey is the context key for the authenticated caller's role.
const RoleKey = "auth_role"

// AuthConfig drives the control-plane authentication middleware.
type AuthConfig struct {
	JWTSecret string
	// APIKeys maps a static key to the role it grants.
	APIKeys map[string]string
	// Skipper exempts paths (health checks) from authentication.
	Skipper func(c echo.Context) bool
}

// Auth accepts either a Bearer JWT (HS256) or an X-API-Key header. With
// neither credential scheme configured every request passes.
func Auth(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if cfg.JWTSecret == "" && len(cfg.APIKeys) == 0 {
				return next(c)
			}

			if key := c.Request().Header.Get("X-API-Key"); key != "" {
				if role, ok := cfg.APIKeys[key]; ok {
					c.Set(RoleKey, role)
					return next(c)
				}
				return unauthorized(c, "invalid API key")
			}

			if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
				raw, ok := strings.CutPrefix(auth, "Bearer ")
				if !ok || cfg.JWTSecret == "" {
					return unauthorized(c, "invalid authorization header")
				}
				role, err := verifyJWT(raw, cfg.JWTSecret)
				if err != nil {
					return unauthorized(c, "invalid token")
				}
				c.Set(RoleKey, role)
				return next(c)
			}

			return unauthorized(c, "authentication required")
		}
	}
}

func verifyJWT(raw, secret string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	role, _ := claims["role"].(string)
	return role, nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{"error": msg})
}

// GetRole returns the authenticated role, empty when auth is disabled.
func GetRole(c echo.Context) string {
	role, _ := c.Get(RoleKey).(string)
	return role
}
