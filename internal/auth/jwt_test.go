package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"pigeon-auction/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTResolver_IssueAndResolve(t *testing.T) {
	r := NewJWTResolver("secret", "pigeon-auction")

	token, err := r.Issue(domain.Identity{UserID: "u1", Name: "Jan"}, time.Hour)
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "Jan", id.Name)
}

func TestJWTResolver_Rejects(t *testing.T) {
	r := NewJWTResolver("secret", "pigeon-auction")
	ctx := context.Background()

	expired, err := r.Issue(domain.Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTResolver("other", "pigeon-auction").Issue(domain.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewJWTResolver("secret", "someone-else").Issue(domain.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x", "iss": "pigeon-auction"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong_key":    otherKey,
		"wrong_issuer": otherIssuer,
		"alg_none":     noneAlg,
		"no_subject":   noSubject,
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Resolve(ctx, token)
			require.ErrorIs(t, err, domain.ErrInvalidCredential)
		})
	}

	_, err = r.Resolve(ctx, "  ")
	require.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestJWTResolver_ClaimFallbacks(t *testing.T) {
	r := NewJWTResolver("secret", "")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": float64(42), "username": "loft42"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, "loft42", id.Name)

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u9"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err = r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u9", id.Name)
}

func TestCredentialFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", CredentialFromRequest(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", CredentialFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", CredentialFromRequest(req))
}
