package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pigeon-auction/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver resolves HMAC signed bearer tokens to identities.
type JWTResolver struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (r *JWTResolver) Resolve(_ context.Context, credential string) (*domain.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, domain.ErrMissingCredential
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, domain.ErrInvalidCredential
	}

	userID := firstClaim(claims, "sub", "user_id", "id")
	if userID == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrInvalidCredential)
	}
	name := firstClaim(claims, "name", "username")
	if name == "" {
		name = userID
	}

	return &domain.Identity{UserID: userID, Name: name}, nil
}

// Issue signs a token for identity valid for ttl.
func (r *JWTResolver) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	now := r.now()
	claims := jwt.MapClaims{
		"sub":  identity.UserID,
		"name": identity.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if r.issuer != "" {
		claims["iss"] = r.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// CredentialFromRequest reads a bearer token from the Authorization header,
// falling back to the token query parameter used by browser websockets.
func CredentialFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// IsCredentialError reports whether err means the caller is not authenticated.
func IsCredentialError(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredential) || errors.Is(err, domain.ErrMissingCredential)
}
