package auth

import (
	"context"
	"strings"
)

// Credentials carries whatever the inbound request presented. Empty fields
// mean the corresponding scheme was not attempted by the caller.
type Credentials struct {
	BearerToken string
	AgentID     string
	APIKey      string
}

// schemeResult tags the outcome of probing one credential scheme: the
// credential was absent, present but invalid, or resolved to an identity.
type schemeResult struct {
	present  bool
	identity Identity
	err      error
}

// AuthenticateFlexible resolves a request to an identity by trying exactly
// one credential scheme, in priority order: bearer token first, then API
// key. A scheme whose credential is present but invalid terminates the
// request with that scheme's error; falling through to the next scheme on
// an invalid credential would let an attacker downgrade a bad token into an
// API-key probe. Only a wholly absent credential moves to the next scheme.
func (s *Service) AuthenticateFlexible(ctx context.Context, creds Credentials) (Identity, error) {
	schemes := []func(context.Context, Credentials) schemeResult{
		s.bearerScheme,
		s.apiKeyScheme,
	}
	for _, scheme := range schemes {
		res := scheme(ctx, creds)
		if !res.present {
			continue
		}
		if res.err != nil {
			return Identity{}, res.err
		}
		return res.identity, nil
	}
	return Identity{}, ErrNoCredentials
}

func (s *Service) bearerScheme(_ context.Context, creds Credentials) schemeResult {
	token := strings.TrimSpace(creds.BearerToken)
	if token == "" {
		return schemeResult{}
	}
	identity, err := s.VerifyToken(token, TokenAccess)
	return schemeResult{present: true, identity: identity, err: err}
}

func (s *Service) apiKeyScheme(ctx context.Context, creds Credentials) schemeResult {
	key := strings.TrimSpace(creds.APIKey)
	agentID := strings.TrimSpace(creds.AgentID)
	if key == "" && agentID == "" {
		return schemeResult{}
	}
	// A half-presented pair counts as present-but-invalid.
	if key == "" || agentID == "" {
		return schemeResult{present: true, err: ErrInvalidCredential}
	}
	identity, err := s.VerifyAPIKey(ctx, agentID, key)
	return schemeResult{present: true, identity: identity, err: err}
}
