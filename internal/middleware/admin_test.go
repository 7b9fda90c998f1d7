package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"khoomi-api-io/taxonomy/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRouter(tokens *auth.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorsMiddleware([]string{"https://admin.khoomi.com"}))
	r.POST("/categories", AdminOnly(tokens), func(c *gin.Context) {
		claim := c.MustGet(ClaimsKey).(auth.JWTClaim)
		c.String(http.StatusCreated, claim.Id)
	})
	return r
}

func TestAdminOnly(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret")
	r := adminRouter(tokens)

	superToken, _, err := tokens.GenerateJWT("u1", "root@khoomi.com", "root", auth.RoleSuper)
	require.NoError(t, err)
	userToken, _, err := tokens.GenerateJWT("u2", "jo@khoomi.com", "jo", auth.RoleUser)
	require.NoError(t, err)
	foreignToken, _, err := auth.NewTokenManager("other-secret").GenerateJWT("u3", "x@khoomi.com", "x", auth.RoleSuper)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreignToken, http.StatusUnauthorized},
		{"not an admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin", "Bearer " + superToken, http.StatusCreated},
		{"admin without scheme", superToken, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/categories", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAdminOnlyWithoutSecret(t *testing.T) {
	tokens := auth.NewTokenManager("")
	assert.False(t, tokens.Configured())

	_, _, err := tokens.GenerateJWT("u1", "root@khoomi.com", "root", auth.RoleSuper)
	assert.ErrorIs(t, err, auth.ErrEmptySecret)

	// anyone can sign with an empty HMAC key
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.JWTClaim{
		Id:   "intruder",
		Role: auth.RoleSuper,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte{})
	require.NoError(t, err)

	_, err = tokens.ValidateToken(forged)
	assert.ErrorIs(t, err, auth.ErrEmptySecret)

	req := httptest.NewRequest(http.MethodPost, "/categories", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	adminRouter(tokens).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCorsMiddleware(t *testing.T) {
	r := adminRouter(auth.NewTokenManager("test-secret"))

	req := httptest.NewRequest(http.MethodOptions, "/categories", nil)
	req.Header.Set("Origin", "https://admin.khoomi.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.khoomi.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/categories", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
