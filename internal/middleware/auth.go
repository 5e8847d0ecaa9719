// Package middleware provides authentication, logging, tracing and rate
// limiting middleware for the HTTP server.
package middleware

import (
	"context"

	"indiverse/internal/models"
	"indiverse/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Authenticator resolves an Authorization header value to the acting user.
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*models.Identity, error)
}

const identityLocal = "identity"

// AuthRequired enforces authentication for protected routes. On success the
// identity is stored in c.Locals and the user id in the request context.
func AuthRequired(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := auth.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		setIdentity(c, identity)
		return c.Next()
	}
}

// OptionalAuth resolves the caller when a valid credential is present and
// otherwise lets the request through anonymously.
func OptionalAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		if identity, err := auth.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization)); err == nil {
			setIdentity(c, identity)
		}
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, identity *models.Identity) {
	c.Locals(identityLocal, identity)
	c.Locals("userID", identity.UserID)
	c.SetUserContext(context.WithValue(c.UserContext(), observability.UserIDKey, identity.UserID))
}

// IdentityFrom returns the identity stored by AuthRequired, if any.
func IdentityFrom(c *fiber.Ctx) (*models.Identity, bool) {
	identity, ok := c.Locals(identityLocal).(*models.Identity)
	return identity, ok && identity != nil
}
