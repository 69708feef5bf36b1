package auth

import "errors"

// The taxonomy below is internal: handlers collapse every one of these into
// a uniform "authentication failed" response so callers cannot distinguish
// an unknown agent from a wrong key, while the audit log keeps the precise
// kind.
var (
	ErrNotFound          = errors.New("auth: agent not found")
	ErrRevoked           = errors.New("auth: agent revoked")
	ErrInactive          = errors.New("auth: agent not active")
	ErrInvalidCredential = errors.New("auth: invalid credential")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrTokenExpired      = errors.New("auth: token expired")
	ErrWrongTokenType    = errors.New("auth: wrong token type")
	ErrNoCredentials     = errors.New("auth: no credentials presented")
)
