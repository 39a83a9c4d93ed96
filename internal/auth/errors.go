package auth

import "errors"

// ErrNoEmptyString is returned when a password to hash is empty
var ErrNoEmptyString = errors.New("string cannot be empty")

// ErrMismatchedHashAndPassword is the error for a failed credential check
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrTokenInvalid covers any token whose signature, shape, or audience
// does not verify. Tampered and truncated tokens land here uniformly.
var ErrTokenInvalid = errors.New("token is invalid")

// ErrTokenExpired is returned when a time-limited token is older than the
// caller-supplied max age. Kept distinct from ErrTokenInvalid because the
// two outcomes route to different user-facing pages.
var ErrTokenExpired = errors.New("token is expired")

// ErrEmailTaken is returned when registering an email that already exists
var ErrEmailTaken = errors.New("email already registered")

// ErrInvalidCredentials is the undifferentiated login failure. Callers
// must not be able to tell "no such user" from "wrong password".
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrNoSuchUser is returned when a valid token references a missing user
var ErrNoSuchUser = errors.New("no user found")
