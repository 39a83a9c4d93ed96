package web_test

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/juliensalinas/userhub/internal/account"
	"github.com/juliensalinas/userhub/internal/auth"
	"github.com/juliensalinas/userhub/internal/store"
	"github.com/juliensalinas/userhub/internal/web"
)

type fakeUsers struct {
	store.Users

	mu      sync.Mutex
	byEmail map[string]*store.User
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return f.GetByEmailTx(ctx, nil, email)
}

func (f *fakeUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUsers) Confirm(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.byEmail {
		if user.ID == id {
			user.Confirmed = true
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

func (f *fakeUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.byEmail {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

func (f *fakeUsers) get(email string) *store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byEmail[email]
}

type fakeManager struct {
	users *fakeUsers
}

func (f *fakeManager) Users() store.Users { return f.users }
func (f *fakeManager) Validate() error    { return nil }
func (f *fakeManager) MustValidate()      {}
func (f *fakeManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return fn(ctx, bun.Tx{})
}

type silentMailer struct{}

func (silentMailer) SendHTML(to []string, subject, htmlBody string) error { return nil }

type webFixture struct {
	app    *fiber.App
	users  *fakeUsers
	tokens *auth.TokenService
}

func newWebFixture(t *testing.T, seeded ...*store.User) *webFixture {
	t.Helper()

	byEmail := map[string]*store.User{}
	for _, u := range seeded {
		byEmail[u.Email] = u
	}

	users := &fakeUsers{byEmail: byEmail}
	repo := &fakeManager{users: users}
	tokens := auth.NewTokenService([]byte("web-test-secret"), "userhub")

	svc := account.NewService(repo, tokens, silentMailer{}, zerolog.Nop(), account.Options{
		BaseURL:          "http://localhost:9099",
		UserFoldersPath:  t.TempDir(),
		EmailTokenMaxAge: 48 * time.Hour,
	})

	sessions := web.NewSessionManager(tokens, users, zerolog.Nop())
	controller := web.NewController(svc, sessions, zerolog.Nop(), false)

	engine := django.New("../../views", ".html")
	app := fiber.New(fiber.Config{Views: engine})
	app.Use(sessions.LoadUser())
	controller.RegisterRoutes(app)

	return &webFixture{app: app, users: users, tokens: tokens}
}

func seedUser(t *testing.T, email, password string, confirmed bool) *store.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	return &store.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Confirmed:    confirmed,
	}
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == web.CookieName {
			return cookie
		}
	}
	return nil
}

func TestPlaygroundRedirectsAnonymousToLogin(t *testing.T) {
	fixture := newWebFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := fixture.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLoginStartsSession(t *testing.T) {
	fixture := newWebFixture(t, seedUser(t, "ada@example.com", "secret-pass-123", true))

	resp := postForm(t, fixture.app, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"secret-pass-123"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// the cookie now authenticates the playground page
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)

	page, err := fixture.app.Test(req)
	require.NoError(t, err)
	defer page.Body.Close()

	require.Equal(t, http.StatusOK, page.StatusCode)
	body := readBody(t, page)
	assert.Contains(t, body, "ada@example.com")
}

func TestLoginFailureShowsOneMessage(t *testing.T) {
	fixture := newWebFixture(t, seedUser(t, "ada@example.com", "secret-pass-123", true))

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ada@example.com", "wrong-password"},
		{"unknown user", "nobody@example.com", "secret-pass-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postForm(t, fixture.app, "/login", url.Values{
				"email":    {tt.email},
				"password": {tt.password},
			})
			defer resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, readBody(t, resp), "Invalid username or password")
			assert.Nil(t, sessionCookie(resp))
		})
	}
}

func TestTamperedSessionCookieMeansAnonymous(t *testing.T) {
	fixture := newWebFixture(t, seedUser(t, "ada@example.com", "secret-pass-123", true))

	forger := auth.NewTokenService([]byte("another-secret"), "userhub")
	forged, err := forger.SignSessionToken("ada@example.com", time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: web.CookieName, Value: forged})

	resp, err := fixture.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLogoutClearsSessionAndIsIdempotent(t *testing.T) {
	fixture := newWebFixture(t, seedUser(t, "ada@example.com", "secret-pass-123", true))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		resp, err := fixture.app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))

		cookie := sessionCookie(resp)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.Expires.Before(time.Now()))
	}
}

func TestConfirmRegistrationRedirects(t *testing.T) {
	user := seedUser(t, "ada@example.com", "secret-pass-123", false)
	fixture := newWebFixture(t, user)

	forger := auth.NewTokenService([]byte("another-secret"), "userhub")

	valid, err := fixture.tokens.SignEmailToken("ada@example.com", auth.PurposeRegistration, time.Time{})
	require.NoError(t, err)
	stale, err := fixture.tokens.SignEmailToken("ada@example.com", auth.PurposeRegistration, time.Now().Add(-49*time.Hour))
	require.NoError(t, err)
	forged, err := forger.SignEmailToken("ada@example.com", auth.PurposeRegistration, time.Time{})
	require.NoError(t, err)
	orphan, err := fixture.tokens.SignEmailToken("ghost@example.com", auth.PurposeRegistration, time.Time{})
	require.NoError(t, err)

	tests := []struct {
		name         string
		target       string
		wantLocation string
	}{
		{"no token goes back to register", "/get-registration-confirmation", "/register"},
		{"stale token", "/get-registration-confirmation?token=" + url.QueryEscape(stale), "/activation-error-too-old"},
		{"forged token", "/get-registration-confirmation?token=" + url.QueryEscape(forged), "/activation-invalid"},
		{"unknown user", "/get-registration-confirmation?token=" + url.QueryEscape(orphan), "/activation-no-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			resp, err := fixture.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
			assert.Equal(t, tt.wantLocation, resp.Header.Get("Location"))
			assert.False(t, fixture.users.get("ada@example.com").Confirmed)
		})
	}

	t.Run("valid token activates and logs in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/get-registration-confirmation?token="+url.QueryEscape(valid), nil)
		resp, err := fixture.app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.True(t, fixture.users.get("ada@example.com").Confirmed)
		assert.NotNil(t, sessionCookie(resp), "confirmation logs the user in")
	})
}

func TestResetEmailPostUnknownEmail(t *testing.T) {
	fixture := newWebFixture(t)

	resp := postForm(t, fixture.app, "/get-pwd-reset-email", url.Values{
		"email": {"nobody@example.com"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "No user found for this email.")
}

func TestResetEmailPostKnownEmail(t *testing.T) {
	fixture := newWebFixture(t, seedUser(t, "ada@example.com", "secret-pass-123", true))

	resp := postForm(t, fixture.app, "/get-pwd-reset-email", url.Values{
		"email": {"ada@example.com"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "You are going to receive an email very soon.")
}

func TestResetPasswordFormGatesOnToken(t *testing.T) {
	fixture := newWebFixture(t, seedUser(t, "ada@example.com", "secret-pass-123", true))

	t.Run("valid token shows the form", func(t *testing.T) {
		token, err := fixture.tokens.SignEmailToken("ada@example.com", auth.PurposeReset, time.Time{})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/reset-pwd?token="+url.QueryEscape(token), nil)
		resp, err := fixture.app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), `name="confirm"`)
	})

	t.Run("bad token redirects", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reset-pwd?token=garbage", nil)
		resp, err := fixture.app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/activation-invalid", resp.Header.Get("Location"))
	})
}

func TestResetPasswordExecute(t *testing.T) {
	user := seedUser(t, "ada@example.com", "secret-pass-123", true)
	originalHash := user.PasswordHash
	fixture := newWebFixture(t, user)

	token, err := fixture.tokens.SignEmailToken("ada@example.com", auth.PurposeReset, time.Time{})
	require.NoError(t, err)

	resp := postForm(t, fixture.app, "/reset-pwd?token="+url.QueryEscape(token), url.Values{
		"password": {"brand-new-pass"},
		"confirm":  {"brand-new-pass"},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Your new password has been set.")
	assert.Nil(t, sessionCookie(resp), "a reset does not log the user in")

	stored := fixture.users.get("ada@example.com")
	assert.NotEqual(t, originalHash, stored.PasswordHash)
	assert.NoError(t, auth.ComparePasswordAndHash("brand-new-pass", stored.PasswordHash))
}
