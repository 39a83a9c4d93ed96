package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/juliensalinas/userhub/internal/auth"
	"github.com/juliensalinas/userhub/internal/store"
)

// CookieName is the session cookie carrying the signed session token.
const CookieName = "userhub_session"

// sessionDuration is the "remember me" lifetime of a session: users stay
// logged in until explicit logout or cookie expiry.
const sessionDuration = 30 * 24 * time.Hour

const userLocalsKey = "current_user"

// SessionManager tracks the current logged-in user across requests via a
// cookie-held signed token.
type SessionManager struct {
	tokens *auth.TokenService
	users  store.Users
	logger zerolog.Logger
}

// NewSessionManager creates a cookie-backed session manager.
func NewSessionManager(tokens *auth.TokenService, users store.Users, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Start begins a session for user by setting the session cookie.
func (m *SessionManager) Start(c *fiber.Ctx, user *store.User) error {
	token, err := m.tokens.SignSessionToken(user.Email, time.Now())
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(sessionDuration),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return nil
}

// Clear ends the session unconditionally. Clearing an absent session is a
// no-op, so logout stays idempotent.
func (m *SessionManager) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * 24 * 365),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// LoadUser resolves the session cookie to a user and stashes it in
// request locals. It never rejects the request; a bad or missing cookie
// just means no current user.
func (m *SessionManager) LoadUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cookie := c.Cookies(CookieName)
		if cookie == "" {
			return c.Next()
		}

		email, err := m.tokens.VerifySessionToken(cookie)
		if err != nil {
			return c.Next()
		}

		user, err := m.users.GetByEmail(c.UserContext(), email)
		if err != nil {
			if !store.IsNotFound(err) {
				m.logger.Error().Err(err).Msg("store error while resolving session")
			}
			return c.Next()
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// RequireUser redirects anonymous requests to the login page.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return c.Redirect("/login", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// CurrentUser returns the user loaded for this request, or nil.
func CurrentUser(c *fiber.Ctx) *store.User {
	user, _ := c.Locals(userLocalsKey).(*store.User)
	return user
}
