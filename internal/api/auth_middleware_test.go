// internal/api/auth_middleware_test.go
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

// authProbe mounts the middleware in front of a handler that echoes the
// resolved identity.
func authProbe(secret string) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(secret))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":       c.GetString("user_id"),
			"authenticated": c.GetBool("user_authenticated"),
		})
	})
	return r
}

func whoami(t *testing.T, r *gin.Engine, authHeader string) (string, bool) {
	t.Helper()
	req := httptest.NewRequest("GET", "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		UserID        string `json:"user_id"`
		Authenticated bool   `json:"authenticated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.UserID, body.Authenticated
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken(testSecret, "user-42")
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, "user-42")
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-42")
	require.NoError(t, err)

	userID, authed := whoami(t, authProbe(testSecret), "Bearer "+token)
	assert.Equal(t, "user-42", userID)
	assert.True(t, authed)
}

func TestAuthMiddlewareMissingTokenDowngradesToGuest(t *testing.T) {
	userID, authed := whoami(t, authProbe(testSecret), "")
	assert.Equal(t, GuestUserID, userID)
	assert.False(t, authed)
}

func TestAuthMiddlewareInvalidTokenDowngradesToGuest(t *testing.T) {
	userID, authed := whoami(t, authProbe(testSecret), "Bearer not.a.token")
	assert.Equal(t, GuestUserID, userID)
	assert.False(t, authed)
}

func TestAuthMiddlewareNoSecretDowngradesToGuest(t *testing.T) {
	token, err := IssueToken(testSecret, "user-42")
	require.NoError(t, err)

	userID, authed := whoami(t, authProbe(""), "Bearer "+token)
	assert.Equal(t, GuestUserID, userID)
	assert.False(t, authed)
}
