package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	jwtpkg "github.com/p09nguyen/pntruyen2/internal/pkg/jwt"
)

func tokenContext(t *testing.T, token string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		c.Request.Header.Set("Authorization", "Bearer "+token)
	}
	return c
}

// The limiter runs before the auth middlewares, so the signed-in exemption
// has to hold on the token signature alone.
func TestCarriesValidToken(t *testing.T) {
	token, err := jwtpkg.Sign(1, "sid", time.Hour)
	require.NoError(t, err)

	require.True(t, carriesValidToken(tokenContext(t, token)))
	require.False(t, carriesValidToken(tokenContext(t, "not-a-jwt")))
	require.False(t, carriesValidToken(tokenContext(t, "")))
}

func TestCarriesValidTokenRejectsExpired(t *testing.T) {
	token, err := jwtpkg.Sign(1, "sid", -time.Minute)
	require.NoError(t, err)
	require.False(t, carriesValidToken(tokenContext(t, token)))
}
