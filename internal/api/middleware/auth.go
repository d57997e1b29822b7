package middleware

import (
	"net/http"

	"pigeon-auction/internal/auth"
	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Authenticate resolves the bearer credential, if any, and stores the
// identity on the context. A request without a credential passes through
// anonymously; the operation decides whether that is enough. A credential
// that does not resolve is answered with 401.
func Authenticate(resolver domain.IdentityResolver, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			credential := auth.CredentialFromRequest(c.Request())
			if credential == "" {
				return next(c)
			}

			identity, err := resolver.Resolve(c.Request().Context(), credential)
			if err != nil {
				log.Warn("Rejected credential",
					"path", c.Request().URL.Path,
					"remote_addr", c.RealIP(),
					"error", err)
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid or expired credential",
					"code":  string(domain.ReasonUnauthorized),
				})
			}

			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// IdentityFrom returns the caller resolved by Authenticate, or nil.
func IdentityFrom(c echo.Context) *domain.Identity {
	identity, _ := c.Get(identityKey).(*domain.Identity)
	return identity
}
