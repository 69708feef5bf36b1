package auth

import (
	"context"
	"errors"
	"testing"

	"agentauth.org/internal/agent"
)

func TestAuthenticateFlexibleBearerFirst(t *testing.T) {
	store := newStubStore()
	a, plaintext := seedAgent(t, store, agent.StatusActive)
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, err := svc.VerifyAPIKey(ctx, a.ID, plaintext)
	if err != nil {
		t.Fatalf("VerifyAPIKey: %v", err)
	}
	pair, err := svc.IssueTokenPair(identity)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	got, err := svc.AuthenticateFlexible(ctx, Credentials{
		BearerToken: pair.AccessToken,
		// Deliberately wrong API key: the bearer scheme must win and the
		// key must never be consulted.
		AgentID: a.ID,
		APIKey:  "ak_wrong",
	})
	if err != nil {
		t.Fatalf("AuthenticateFlexible: %v", err)
	}
	if got.AgentID != a.ID {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestAuthenticateFlexibleInvalidBearerDoesNotFallThrough(t *testing.T) {
	store := newStubStore()
	a, plaintext := seedAgent(t, store, agent.StatusActive)
	svc := newTestService(t, store)

	// Valid API key alongside a broken bearer token: the request must fail
	// as an invalid token, not silently degrade to the API-key scheme.
	_, err := svc.AuthenticateFlexible(context.Background(), Credentials{
		BearerToken: "not-a-jwt",
		AgentID:     a.ID,
		APIKey:      plaintext,
	})
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateFlexibleAPIKeyFallback(t *testing.T) {
	store := newStubStore()
	a, plaintext := seedAgent(t, store, agent.StatusActive)
	svc := newTestService(t, store)

	got, err := svc.AuthenticateFlexible(context.Background(), Credentials{
		AgentID: a.ID,
		APIKey:  plaintext,
	})
	if err != nil {
		t.Fatalf("AuthenticateFlexible: %v", err)
	}
	if got.AgentID != a.ID {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestAuthenticateFlexibleRefreshTokenRejected(t *testing.T) {
	store := newStubStore()
	a, plaintext := seedAgent(t, store, agent.StatusActive)
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, err := svc.VerifyAPIKey(ctx, a.ID, plaintext)
	if err != nil {
		t.Fatalf("VerifyAPIKey: %v", err)
	}
	pair, err := svc.IssueTokenPair(identity)
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	// A refresh token must never authorize a data-plane request.
	_, err = svc.AuthenticateFlexible(ctx, Credentials{BearerToken: pair.RefreshToken})
	if !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestAuthenticateFlexibleHalfPresentedAPIKey(t *testing.T) {
	svc := newTestService(t, newStubStore())

	for _, creds := range []Credentials{
		{AgentID: "agt_x"},
		{APIKey: "ak_something"},
	} {
		if _, err := svc.AuthenticateFlexible(context.Background(), creds); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("half-presented pair %+v: %v", creds, err)
		}
	}
}

func TestAuthenticateFlexibleNoCredentials(t *testing.T) {
	svc := newTestService(t, newStubStore())
	if _, err := svc.AuthenticateFlexible(context.Background(), Credentials{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}
