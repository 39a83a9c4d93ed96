package account_test

import (
	"context"
	"database/sql"
	"sync"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/juliensalinas/userhub/internal/store"
)

// memUsers implements the store.Users methods the account service touches.
// The embedded interface covers the rest; anything unexpected panics,
// which is exactly what we want in a test.
type memUsers struct {
	store.Users

	mu      sync.Mutex
	byEmail map[string]*store.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]*store.User{}}
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return m.GetByEmailTx(ctx, nil, email)
}

func (m *memUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byEmail[email]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}

	copied := *user
	return &copied, nil
}

func (m *memUsers) Register(ctx context.Context, user *store.User) (*store.User, error) {
	return m.RegisterTx(ctx, nil, user)
}

func (m *memUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *store.User) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *user
	m.byEmail[user.Email] = &copied
	return user, nil
}

func (m *memUsers) Confirm(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.byEmail {
		if user.ID == id {
			user.Confirmed = true
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

func (m *memUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.byEmail {
		if user.ID == id {
			user.PasswordHash = passwordHash
			return nil
		}
	}
	return repository.NewRecordNotFound()
}

func (m *memUsers) get(email string) *store.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEmail[email]
}

type memManager struct {
	users *memUsers
}

func newMemManager() *memManager {
	return &memManager{users: newMemUsers()}
}

func (m *memManager) Users() store.Users { return m.users }

func (m *memManager) Validate() error { return nil }

func (m *memManager) MustValidate() {}

func (m *memManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// mailRecorder captures outgoing mail instead of dialing SMTP.
type mailRecorder struct {
	mu   sync.Mutex
	sent []recordedEmail
}

type recordedEmail struct {
	To      []string
	Subject string
	HTML    string
}

func (m *mailRecorder) SendHTML(to []string, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, recordedEmail{To: to, Subject: subject, HTML: htmlBody})
	return nil
}

func (m *mailRecorder) last() *recordedEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return nil
	}
	return &m.sent[len(m.sent)-1]
}
