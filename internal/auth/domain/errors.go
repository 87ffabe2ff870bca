package domain

import (
	"errors"
	"fmt"
)

// AuthReason classifies why a protected call was rejected.
type AuthReason string

const (
	ReasonMissingCredential AuthReason = "missing_credential"
	ReasonExpiredNoRefresh  AuthReason = "expired_no_refresh"
	ReasonRefreshFailed     AuthReason = "refresh_failed"
	ReasonMalformed         AuthReason = "malformed"
)

type AuthError struct {
	Reason AuthReason
	Detail string
}

func NewAuthError(reason AuthReason, detail string) *AuthError {
	return &AuthError{Reason: reason, Detail: detail}
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Is matches on reason only, so errors.Is(err, ErrRefreshFailed) ignores detail.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Reason == e.Reason
}

var (
	ErrMissingCredential = &AuthError{Reason: ReasonMissingCredential}
	ErrExpiredNoRefresh  = &AuthError{Reason: ReasonExpiredNoRefresh}
	ErrRefreshFailed     = &AuthError{Reason: ReasonRefreshFailed}
	ErrMalformed         = &AuthError{Reason: ReasonMalformed}
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUseGoogleSignIn     = errors.New("please use Google Sign-In for this account")
	ErrGoogleTokenRejected = errors.New("google token rejected")
)
