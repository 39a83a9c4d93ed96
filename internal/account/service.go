package account

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/juliensalinas/userhub/internal/auth"
	"github.com/juliensalinas/userhub/internal/mailer"
	"github.com/juliensalinas/userhub/internal/store"
)

// Service orchestrates the account lifecycle: registration, email
// confirmation, login, password reset, and API-token resolution.
// States per user are Unregistered, PendingConfirmation (row exists,
// confirmed false), and Confirmed; the reset flow is orthogonal.
type Service struct {
	repo             store.Manager
	tokens           *auth.TokenService
	mail             mailer.Sender
	logger           zerolog.Logger
	baseURL          string
	userFoldersPath  string
	emailTokenMaxAge time.Duration
}

// Options carries the knobs the service reads from app configuration.
type Options struct {
	BaseURL          string
	UserFoldersPath  string
	EmailTokenMaxAge time.Duration
}

// NewService creates the lifecycle service.
func NewService(repo store.Manager, tokens *auth.TokenService, mail mailer.Sender, logger zerolog.Logger, opts Options) *Service {
	return &Service{
		repo:             repo,
		tokens:           tokens,
		mail:             mail,
		logger:           logger,
		baseURL:          opts.BaseURL,
		userFoldersPath:  opts.UserFoldersPath,
		emailTokenMaxAge: opts.EmailTokenMaxAge,
	}
}

// RegisterInput is the shape-validated registration payload. Length and
// match rules run in the web layer; the service owns uniqueness and
// persistence.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	Sector      string
	Country     string
	Address     string
	Phone       string
}

// Register persists a new unconfirmed user and dispatches the
// confirmation email. A duplicate email fails with auth.ErrEmailTaken and
// leaves the existing row untouched. The user is not logged in here.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &store.User{
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		Sector:      in.Sector,
		Country:     in.Country,
		Address:     in.Address,
		Phone:       in.Phone,
		Confirmed:   false,
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().GetByEmailTx(ctx, tx, in.Email); err == nil {
			return auth.ErrEmailTaken
		} else if !store.IsNotFound(err) {
			return fmt.Errorf("failed to check for existing user: %w", err)
		}

		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash

		if id, err := hashid.NewUUID(in.Email); err == nil {
			user.ID = id
		}

		if user, err = s.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return fmt.Errorf("could not create user: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if err := s.sendConfirmationEmail(user.Email); err != nil {
		// user is committed; the link can still be re-sent manually
		s.logger.Error().Err(err).Str("email", user.Email).Msg("failed to send activation email")
		return nil, err
	}

	s.logger.Debug().Stringer("user", user).Msg("successfully registered")
	return user, nil
}

// ConfirmRegistration validates a confirmation-link token, flags the user
// as confirmed, and creates the user folders. auth.ErrTokenInvalid,
// auth.ErrTokenExpired, and auth.ErrNoSuchUser come back as distinct
// failures; no user row changes on any of them.
func (s *Service) ConfirmRegistration(ctx context.Context, token string) (*store.User, error) {
	email, err := s.tokens.VerifyEmailToken(token, auth.PurposeRegistration, s.emailTokenMaxAge)
	if err != nil {
		s.logger.Debug().Err(err).Msg("activation token rejected")
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			s.logger.Debug().Str("email", email).Msg("could not activate user, not found in db")
			return nil, auth.ErrNoSuchUser
		}
		return nil, err
	}

	if err := s.repo.Users().Confirm(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to confirm user: %w", err)
	}
	user.Confirmed = true

	if err := CreateUserFolders(s.userFoldersPath, user.Email); err != nil {
		return nil, fmt.Errorf("failed to create user folders: %w", err)
	}

	s.logger.Debug().Stringer("user", user).Msg("user activated, folders created")
	return user, nil
}

// Login checks credentials. A missing user and a wrong password both
// yield auth.ErrInvalidCredentials so callers cannot probe for accounts.
// Confirmation status is deliberately not checked here.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to retrieve user during login: %w", err)
	}

	if err := auth.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	s.logger.Debug().Stringer("user", user).Msg("logged in")
	return user, nil
}

// RequestPasswordReset dispatches a reset link. An unknown email surfaces
// auth.ErrNoSuchUser to the caller, mirroring the existing product
// behavior even though it reveals account existence.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if _, err := s.repo.Users().GetByEmail(ctx, email); err != nil {
		if store.IsNotFound(err) {
			s.logger.Debug().Str("email", email).Msg("user not found for this email")
			return auth.ErrNoSuchUser
		}
		return fmt.Errorf("failed to retrieve user for password reset: %w", err)
	}

	if err := s.sendResetEmail(email); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("failed to send reset email")
		return err
	}

	s.logger.Debug().Str("email", email).Msg("password reset link sent")
	return nil
}

// VerifyResetToken checks a reset-link token without consuming it, so the
// web layer can decide whether to show the new-password form.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (*store.User, error) {
	email, err := s.tokens.VerifyEmailToken(token, auth.PurposeReset, s.emailTokenMaxAge)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, auth.ErrNoSuchUser
		}
		return nil, err
	}

	return user, nil
}

// CompletePasswordReset validates a reset-link token and persists a new
// password hash. The user is not logged in afterward; they must sign in
// with the new password.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	email, err := s.tokens.VerifyEmailToken(token, auth.PurposeReset, s.emailTokenMaxAge)
	if err != nil {
		s.logger.Debug().Err(err).Msg("reset token rejected")
		return err
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			return auth.ErrNoSuchUser
		}
		return fmt.Errorf("failed to retrieve user for password reset: %w", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash)
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Debug().Stringer("user", user).Msg("successfully set a new password")
	return nil
}

// VerifyAPIToken resolves an API token to its user. It is total over
// arbitrary input: any verification or lookup failure yields nil, never
// an error or a panic. API tokens carry no expiry by design.
func (s *Service) VerifyAPIToken(ctx context.Context, token string) *store.User {
	email, err := s.tokens.VerifyAPIToken(token)
	if err != nil {
		return nil
	}

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if !store.IsNotFound(err) {
			s.logger.Error().Err(err).Msg("store error during api token resolution")
		}
		return nil
	}

	return user
}

// APITokenFor mints the long-lived API key shown on the playground page.
func (s *Service) APITokenFor(user *store.User) (string, error) {
	return s.tokens.SignAPIToken(user.Email)
}

func (s *Service) sendConfirmationEmail(email string) error {
	token, err := s.tokens.SignEmailToken(email, auth.PurposeRegistration, time.Time{})
	if err != nil {
		return err
	}

	confirmURL := fmt.Sprintf("%s/get-registration-confirmation?token=%s", s.baseURL, url.QueryEscape(token))
	html := fmt.Sprintf(`<p>Welcome! Please click the link below to activate your account.</p>
<p><a href=%q>Activate my account</a></p>`, confirmURL)

	return s.mail.SendHTML([]string{email}, "Activation email", html)
}

func (s *Service) sendResetEmail(email string) error {
	token, err := s.tokens.SignEmailToken(email, auth.PurposeReset, time.Time{})
	if err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-pwd?token=%s", s.baseURL, url.QueryEscape(token))
	html := fmt.Sprintf(`<p>Click the link below to set a new password.</p>
<p><a href=%q>Reset my password</a></p>`, resetURL)

	return s.mail.SendHTML([]string{email}, "Reset your password", html)
}
