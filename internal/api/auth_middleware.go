// internal/api/auth_middleware.go
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// GuestUserID is assigned to requests without valid credentials. Guests can
// generate but their ledger is shared console history.
const GuestUserID = "console_user"

const tokenTTL = 24 * time.Hour

// Claims is the JWT payload: the user id plus the registered set.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for the user id.
func IssueToken(secret, userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a token and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// AuthMiddleware resolves the requesting user. Missing or invalid
// credentials downgrade to the guest user instead of rejecting, so
// generation stays usable without an account.
func AuthMiddleware(secret string) gin.HandlerFunc {
	logger := utils.GetLogger()
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if token == "" || secret == "" {
			c.Set("user_id", GuestUserID)
			c.Set("user_authenticated", false)
			c.Next()
			return
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			logger.Debug("invalid token, downgrading to guest", map[string]interface{}{"error": err.Error()})
			c.Set("user_id", GuestUserID)
			c.Set("user_authenticated", false)
			c.Next()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_authenticated", true)
		c.Next()
	}
}

// currentUserID reads the resolved user from the request context.
func currentUserID(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return id
	}
	return GuestUserID
}
