package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/vibely-go-api/internal/utils"
	"github.com/noah-isme/vibely-go-api/pkg/auth"
)

const identityLocal = "identity"

// Authenticate verifies the bearer token with the identity provider and binds
// the caller to the request. Websocket upgrades may pass the token as ?token=.
func Authenticate(provider auth.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, err.Error(), nil)
		}

		identity, err := provider.Verify(c.UserContext(), raw)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "invalid token", nil)
		}

		c.Locals(identityLocal, identity)
		c.Locals("user_id", identity.UID)
		c.Locals("user_email", identity.Email)
		c.Locals("user_name", identity.DisplayName)
		c.Locals("user_picture", identity.PhotoURL)
		return c.Next()
	}
}

// IdentityFromLocals returns the identity bound by Authenticate.
func IdentityFromLocals(c *fiber.Ctx) (auth.Identity, bool) {
	identity, ok := c.Locals(identityLocal).(auth.Identity)
	if !ok || identity.UID == "" {
		return auth.Identity{}, false
	}
	return identity, true
}

// UserID returns the authenticated caller's uid or an empty string.
func UserID(c *fiber.Ctx) string {
	if value, ok := c.Locals("user_id").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			return token, nil
		}
		return "", errAuthorizationMissing
	}

	const bearer = "bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), bearer) {
		return "", errAuthorizationInvalid
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", errAuthorizationInvalid
	}
	return token, nil
}
