package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	RoleInvestor = "investor"
	RoleNGO      = "ngo"
	RoleAdmin    = "admin"
)

// JWTAuth verifies the bearer token and stores "user_id" and "role" on the
// context. The role claim is the only role authority; nothing the client
// sends in the body or query can change it.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := bearerToken(c.Request())
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": err.Error()})
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid or expired token"})
			}

			userID, _ := claims["user_id"].(string)
			if userID == "" {
				userID, _ = claims["sub"].(string)
			}
			role, _ := claims["role"].(string)
			if userID == "" || role == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token claims"})
			}

			c.Set("user_id", userID)
			c.Set("role", role)
			return next(c)
		}
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", errors.New("invalid Authorization format")
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

// IssueToken signs an HS256 token carrying the claims JWTAuth expects.
func IssueToken(secret, userID, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// UserID returns the authenticated account id set by JWTAuth.
func UserID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}
