package agent

import "errors"

var (
	ErrNotFound      = errors.New("agent: not found")
	ErrAlreadyExists = errors.New("agent: already exists")
	ErrInvalidInput  = errors.New("agent: invalid input")
	ErrRevoked       = errors.New("agent: revoked")
)
