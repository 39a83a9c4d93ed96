package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/juliensalinas/userhub/internal/account"
	"github.com/juliensalinas/userhub/internal/store"
)

// HeaderAPIKey carries the API token on every /api route.
const HeaderAPIKey = "X-API-KEY"

const userLocalsKey = "api_user"

// Guard holds the composable per-request checks on API routes. Each check
// is an explicit middleware in the route pipeline, auth first since it is
// the cheaper gate and premium presumes an authenticated user.
type Guard struct {
	svc    *account.Service
	logger zerolog.Logger
}

// NewGuard creates the API authorization guard.
func NewGuard(svc *account.Service, logger zerolog.Logger) *Guard {
	return &Guard{
		svc:    svc,
		logger: logger,
	}
}

// TokenRequired authenticates the request from the X-API-KEY header and
// stashes the resolved user in request locals.
func (g *Guard) TokenRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(HeaderAPIKey)
		if token == "" {
			g.logger.Debug().Msg("auth token is missing")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication token is missing.",
			})
		}

		user := g.svc.VerifyAPIToken(c.UserContext(), token)
		if user == nil {
			g.logger.Debug().Msg("user not found for this token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "User not found.",
			})
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// PremiumRequired rejects authenticated users without the premium flag.
func (g *Guard) PremiumRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := UserFromContext(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication token is missing.",
			})
		}

		if !user.IsPremium {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"message": "Restricted to premium users.",
			})
		}

		return c.Next()
	}
}

// UserFromContext returns the user authenticated by TokenRequired, or nil.
func UserFromContext(c *fiber.Ctx) *store.User {
	user, _ := c.Locals(userLocalsKey).(*store.User)
	return user
}
