package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes. The purpose is baked into the token as its audience, so
// a token minted for one flow cannot be replayed in another even though
// every token is signed with the same server secret.
const (
	// PurposeAPI marks the long-lived tokens used on /api routes
	PurposeAPI = "api"
	// PurposeSession marks the tokens carried by the session cookie
	PurposeSession = "session"
	// PurposeRegistration marks email-confirmation link tokens
	PurposeRegistration = "registration"
	// PurposeReset marks password-reset link tokens
	PurposeReset = "reset"
)

// TokenService mints and verifies the signed tokens used across the app.
// All tokens are HS256 over a single server secret; they carry an email
// claim and a purpose audience, nothing else.
type TokenService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string) *TokenService {
	return &TokenService{
		signingKey: signingKey,
		issuer:     issuer,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used to pin issuance in tests.
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// SignAPIToken mints the long-lived API key for a user. It carries no
// expiry metadata: API tokens stay valid until the secret rotates.
func (ts *TokenService) SignAPIToken(email string) (string, error) {
	return ts.sign(&jwt.RegisteredClaims{
		Issuer:   ts.issuer,
		Subject:  email,
		Audience: jwt.ClaimStrings{PurposeAPI},
		ID:       uuid.NewString(),
	})
}

// SignEmailToken mints a time-limited token for a confirmation or reset
// link. The issuance time is embedded so verification can enforce a
// caller-supplied max age.
func (ts *TokenService) SignEmailToken(email, purpose string, issuedAt time.Time) (string, error) {
	if issuedAt.IsZero() {
		issuedAt = ts.now()
	}

	return ts.sign(&jwt.RegisteredClaims{
		Issuer:   ts.issuer,
		Subject:  email,
		Audience: jwt.ClaimStrings{purpose},
		IssuedAt: jwt.NewNumericDate(issuedAt),
		ID:       uuid.NewString(),
	})
}

// SignSessionToken mints the token stored in the session cookie.
func (ts *TokenService) SignSessionToken(email string, issuedAt time.Time) (string, error) {
	return ts.SignEmailToken(email, PurposeSession, issuedAt)
}

func (ts *TokenService) sign(claims *jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.signingKey)
}

// VerifyAPIToken checks signature and purpose only; there is no expiry
// check by design. Returns the embedded email.
func (ts *TokenService) VerifyAPIToken(tokenString string) (string, error) {
	claims, err := ts.verify(tokenString, PurposeAPI)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifySessionToken resolves the email carried by a session cookie token.
func (ts *TokenService) VerifySessionToken(tokenString string) (string, error) {
	claims, err := ts.verify(tokenString, PurposeSession)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// VerifyEmailToken checks signature and purpose, then rejects tokens whose
// issuance time is further back than maxAge. A bad signature is
// ErrTokenInvalid, an old one ErrTokenExpired; the two never collapse.
func (ts *TokenService) VerifyEmailToken(tokenString, purpose string, maxAge time.Duration) (string, error) {
	claims, err := ts.verify(tokenString, purpose)
	if err != nil {
		return "", err
	}

	if claims.IssuedAt == nil {
		return "", ErrTokenInvalid
	}

	if ts.now().Sub(claims.IssuedAt.Time) > maxAge {
		return "", ErrTokenExpired
	}

	return claims.Subject, nil
}

// verify is total over arbitrary input: any parse, signature, audience, or
// shape problem comes back as ErrTokenInvalid.
func (ts *TokenService) verify(tokenString, purpose string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, jwt.WithAudience(purpose), jwt.WithIssuer(ts.issuer))

	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
