package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/rs/zerolog"

	"github.com/juliensalinas/userhub/internal/account"
	"github.com/juliensalinas/userhub/internal/auth"
)

// ControllerViews maps handler outcomes to template names.
type ControllerViews struct {
	Index             string
	Login             string
	Register          string
	RegistrationOK    string
	ActivationTooOld  string
	ActivationInvalid string
	ActivationNoUser  string
	ResetEmail        string
	ResetPassword     string
}

// Controller serves the browser-facing account pages.
type Controller struct {
	Debug    bool
	Logger   zerolog.Logger
	Views    *ControllerViews
	svc      *account.Service
	sessions *SessionManager
}

// NewController builds the account pages controller.
func NewController(svc *account.Service, sessions *SessionManager, logger zerolog.Logger, debug bool) *Controller {
	return &Controller{
		Debug:    debug,
		Logger:   logger,
		svc:      svc,
		sessions: sessions,
		Views: &ControllerViews{
			Index:             "index",
			Login:             "login",
			Register:          "register",
			RegistrationOK:    "tmp_registration_ok",
			ActivationTooOld:  "activation_too_old",
			ActivationInvalid: "activation_invalid",
			ActivationNoUser:  "activation_no_user",
			ResetEmail:        "get_pwd_reset_email",
			ResetPassword:     "reset_pwd",
		},
	}
}

// RegisterRoutes wires every account page onto the app.
func (a *Controller) RegisterRoutes(app *fiber.App) {
	app.Get("/", RequireUser(), a.PlaygroundShow)

	app.Get("/register", a.RegistrationShow)
	app.Post("/register", a.RegistrationCreate)
	app.Get("/tmp-registration-ok", a.RegistrationOK)

	app.Get("/get-registration-confirmation", a.ConfirmRegistration)
	app.Get("/activation-error-too-old", a.ActivationTooOld)
	app.Get("/activation-invalid", a.ActivationInvalid)
	app.Get("/activation-no-user", a.ActivationNoUser)

	app.Get("/login", a.LoginShow)
	app.Post("/login", a.LoginPost)
	app.Get("/logout", a.Logout)

	app.Get("/get-pwd-reset-email", a.ResetEmailShow)
	app.Post("/get-pwd-reset-email", a.ResetEmailPost)
	app.Get("/reset-pwd", a.ResetPasswordForm)
	app.Post("/reset-pwd", a.ResetPasswordExecute)
}

// PlaygroundShow renders the logged-in landing page with the user's API
// token so it can be pasted into API clients.
func (a *Controller) PlaygroundShow(c *fiber.Ctx) error {
	user := CurrentUser(c)

	apiToken, err := a.svc.APITokenFor(user)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to mint api token")
		return fiber.ErrInternalServerError
	}

	return c.Render(a.Views.Index, fiber.Map{
		"email":     user.Email,
		"api_token": apiToken,
	})
}

func (a *Controller) RegistrationShow(c *fiber.Ctx) error {
	return c.Render(a.Views.Register, fiber.Map{
		"errors": map[string]string{},
		"record": RegistrationPayload{},
	})
}

func (a *Controller) RegistrationCreate(c *fiber.Ctx) error {
	payload := new(RegistrationPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error().Err(err).Msg("register user parse payload")
		return c.Status(fiber.StatusBadRequest).Render(a.Views.Register, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Render(a.Views.Register, fiber.Map{
			"errors": FormatValidationErrorToMap(err),
			"record": payload,
		})
	}

	user, err := a.svc.Register(c.UserContext(), account.RegisterInput{
		Email:       payload.Email,
		Password:    payload.Password,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		CompanyName: payload.CompanyName,
		Sector:      payload.Sector,
		Country:     payload.Country,
		Address:     payload.Address,
		Phone:       payload.Phone,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return c.Render(a.Views.Register, fiber.Map{
				"errors": map[string]string{"email": "User already registered"},
				"record": payload,
			})
		}

		a.Logger.Error().Err(err).Msg("register user failed")
		return c.Status(fiber.StatusInternalServerError).Render(a.Views.Register, fiber.Map{
			"errors": map[string]string{"form": "Registration failed, please try again later"},
			"record": payload,
		})
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(user))
	}

	return c.Redirect("/tmp-registration-ok", fiber.StatusSeeOther)
}

func (a *Controller) RegistrationOK(c *fiber.Ctx) error {
	return c.Render(a.Views.RegistrationOK, fiber.Map{})
}

// ConfirmRegistration handles the link sent in the activation email.
// Expired, tampered, and orphaned tokens land on separate pages; a valid
// one activates the account and starts a session right away.
func (a *Controller) ConfirmRegistration(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		a.Logger.Debug().Msg("activation token not retrieved")
		return c.Redirect("/register", fiber.StatusSeeOther)
	}

	user, err := a.svc.ConfirmRegistration(c.UserContext(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return c.Redirect("/activation-error-too-old", fiber.StatusSeeOther)
		case errors.Is(err, auth.ErrTokenInvalid):
			return c.Redirect("/activation-invalid", fiber.StatusSeeOther)
		case errors.Is(err, auth.ErrNoSuchUser):
			return c.Redirect("/activation-no-user", fiber.StatusSeeOther)
		}

		a.Logger.Error().Err(err).Msg("confirmation failed")
		return fiber.ErrInternalServerError
	}

	if err := a.sessions.Start(c, user); err != nil {
		a.Logger.Error().Err(err).Msg("failed to start session after confirmation")
		return fiber.ErrInternalServerError
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func (a *Controller) ActivationTooOld(c *fiber.Ctx) error {
	return c.Render(a.Views.ActivationTooOld, fiber.Map{})
}

func (a *Controller) ActivationInvalid(c *fiber.Ctx) error {
	return c.Render(a.Views.ActivationInvalid, fiber.Map{})
}

func (a *Controller) ActivationNoUser(c *fiber.Ctx) error {
	return c.Render(a.Views.ActivationNoUser, fiber.Map{})
}

func (a *Controller) LoginShow(c *fiber.Ctx) error {
	return c.Render(a.Views.Login, fiber.Map{
		"errors": map[string]string{},
		"record": LoginPayload{},
	})
}

func (a *Controller) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error().Err(err).Msg("login parse payload")
		return c.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Render(a.Views.Login, fiber.Map{
			"errors": FormatValidationErrorToMap(err),
			"record": payload,
		})
	}

	user, err := a.svc.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			a.Logger.Error().Err(err).Msg("login failed")
		}
		// one message for unknown user and wrong password alike
		return c.Render(a.Views.Login, fiber.Map{
			"errors": map[string]string{"authentication": "Invalid username or password"},
			"record": payload,
		})
	}

	if err := a.sessions.Start(c, user); err != nil {
		a.Logger.Error().Err(err).Msg("failed to start session")
		return fiber.ErrInternalServerError
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func (a *Controller) Logout(c *fiber.Ctx) error {
	a.sessions.Clear(c)
	a.Logger.Debug().Msg("user logged out")
	return c.Redirect("/login", fiber.StatusSeeOther)
}

func (a *Controller) ResetEmailShow(c *fiber.Ctx) error {
	return c.Render(a.Views.ResetEmail, fiber.Map{
		"errors": map[string]string{},
		"record": ResetEmailPayload{},
	})
}

func (a *Controller) ResetEmailPost(c *fiber.Ctx) error {
	payload := new(ResetEmailPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error().Err(err).Msg("reset email parse payload")
		return c.Status(fiber.StatusBadRequest).Render(a.Views.ResetEmail, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Render(a.Views.ResetEmail, fiber.Map{
			"errors": FormatValidationErrorToMap(err),
			"record": payload,
		})
	}

	if err := a.svc.RequestPasswordReset(c.UserContext(), payload.Email); err != nil {
		if errors.Is(err, auth.ErrNoSuchUser) {
			return c.Render(a.Views.ResetEmail, fiber.Map{
				"errors": map[string]string{"email": "No user found for this email."},
				"record": payload,
			})
		}

		a.Logger.Error().Err(err).Msg("password reset request failed")
		return c.Status(fiber.StatusInternalServerError).Render(a.Views.ResetEmail, fiber.Map{
			"errors": map[string]string{"form": "Could not send the reset email, please try again later"},
			"record": payload,
		})
	}

	return c.Render(a.Views.ResetEmail, fiber.Map{
		"errors": map[string]string{},
		"record": payload,
		"message": "You are going to receive an email very soon. " +
			"Please click the link inside in order to reset your password.",
	})
}

// ResetPasswordForm shows the new-password form once the link token
// checks out; otherwise it reuses the activation failure pages.
func (a *Controller) ResetPasswordForm(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		a.Logger.Debug().Msg("reset pwd token not retrieved")
		return c.Redirect("/register", fiber.StatusSeeOther)
	}

	if _, err := a.svc.VerifyResetToken(c.UserContext(), token); err != nil {
		return a.redirectResetFailure(c, err)
	}

	return c.Render(a.Views.ResetPassword, fiber.Map{
		"errors": map[string]string{},
		"record": ResetPasswordPayload{},
		"token":  token,
	})
}

func (a *Controller) ResetPasswordExecute(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Redirect("/register", fiber.StatusSeeOther)
	}

	payload := new(ResetPasswordPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error().Err(err).Msg("reset pwd parse payload")
		return c.Status(fiber.StatusBadRequest).Render(a.Views.ResetPassword, fiber.Map{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
			"token":  token,
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Render(a.Views.ResetPassword, fiber.Map{
			"errors": FormatValidationErrorToMap(err),
			"record": payload,
			"token":  token,
		})
	}

	if err := a.svc.CompletePasswordReset(c.UserContext(), token, payload.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired),
			errors.Is(err, auth.ErrTokenInvalid),
			errors.Is(err, auth.ErrNoSuchUser):
			return a.redirectResetFailure(c, err)
		}

		a.Logger.Error().Err(err).Msg("password reset failed")
		return fiber.ErrInternalServerError
	}

	// no auto-login after a reset, unlike confirmation
	return c.Render(a.Views.Login, fiber.Map{
		"errors": map[string]string{},
		"record": LoginPayload{},
		"message": "Your new password has been set. " +
			"Please log in with this new password now.",
	})
}

func (a *Controller) redirectResetFailure(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return c.Redirect("/activation-error-too-old", fiber.StatusSeeOther)
	case errors.Is(err, auth.ErrTokenInvalid):
		return c.Redirect("/activation-invalid", fiber.StatusSeeOther)
	case errors.Is(err, auth.ErrNoSuchUser):
		return c.Redirect("/activation-no-user", fiber.StatusSeeOther)
	}

	a.Logger.Error().Err(err).Msg("reset token verification failed")
	return fiber.ErrInternalServerError
}
