package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pigeon-auction/internal/auth"
	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	resolver := auth.NewJWTResolver("test-secret", "")
	token, err := resolver.Issue(domain.Identity{UserID: "u1", Name: "Jan"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid_bearer", "Bearer " + token, http.StatusOK, "u1"},
		{"garbage_token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			var seen *domain.Identity
			e.GET("/", func(c echo.Context) error {
				seen = IdentityFrom(c)
				return c.NoContent(http.StatusOK)
			}, Authenticate(resolver, logger.NewNop()))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantUser == "" {
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, tc.wantUser, seen.UserID)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ws", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
