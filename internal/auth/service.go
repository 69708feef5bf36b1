package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"agentauth.org/internal/agent"
)

const (
	issuer = "agentauth"

	// MinSecretBytes is the minimum master secret length: 256 bits of
	// entropy, supplied via configuration and never logged.
	MinSecretBytes = 32

	minAccessTTL = time.Minute
	maxAccessTTL = 24 * time.Hour

	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenType discriminates access from refresh tokens. A refresh token must
// never be accepted where an access token is required, and vice versa.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var defaultAccessTTLs = map[agent.Tier]time.Duration{
	agent.TierFree:       time.Hour,
	agent.TierPro:        4 * time.Hour,
	agent.TierEnterprise: 12 * time.Hour,
}

// Claims are the signed assertions carried by both token types.
type Claims struct {
	Tier        string   `json:"tier"`
	TokenType   string   `json:"token_type"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of credential verification or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Service is the credential verification engine: it validates presented
// secrets and bearer tokens against stored agent records and issues signed
// token pairs. Token verification is pure once the signing key is derived;
// API-key verification costs exactly one store read.
type Service struct {
	store      agent.Store
	signingKey []byte
	now        func() time.Time
	accessTTL  map[agent.Tier]time.Duration
	refreshTTL time.Duration
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithAccessTTL sets the access token lifetime for a tier. Values are
// clamped to the supported range rather than rejected, so a misconfigured
// tier still boots with a safe lifetime.
func WithAccessTTL(tier agent.Tier, ttl time.Duration) Option {
	return func(s *Service) {
		if ttl < minAccessTTL {
			ttl = minAccessTTL
		}
		if ttl > maxAccessTTL {
			ttl = maxAccessTTL
		}
		s.accessTTL[tier] = ttl
	}
}

// WithRefreshTTL sets the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// NewService constructs the engine. The master secret must carry at least
// 256 bits; the HS256 signing key is derived from it with HKDF so the raw
// configured value never signs anything directly.
func NewService(store agent.Store, masterSecret []byte, opts ...Option) (*Service, error) {
	if len(masterSecret) < MinSecretBytes {
		return nil, fmt.Errorf("auth: master secret must be at least %d bytes", MinSecretBytes)
	}
	signingKey, err := deriveKey(masterSecret, "token-signing")
	if err != nil {
		return nil, fmt.Errorf("auth: derive signing key: %w", err)
	}
	s := &Service{
		store:      store,
		signingKey: signingKey,
		now:        time.Now,
		accessTTL:  make(map[agent.Tier]time.Duration, len(defaultAccessTTLs)),
		refreshTTL: defaultRefreshTTL,
	}
	for tier, ttl := range defaultAccessTTLs {
		s.accessTTL[tier] = ttl
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// VerifyAPIKey checks the presented plaintext key against the stored agent
// record. The key is hashed and compared in constant time; the work done
// does not depend on whether the key is correct.
func (s *Service) VerifyAPIKey(ctx context.Context, agentID, plaintextKey string) (Identity, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" || plaintextKey == "" {
		return Identity{}, ErrInvalidCredential
	}
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			// Burn the same hash work as the success path.
			agent.HashAPIKey(plaintextKey)
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	if err := usable(a); err != nil {
		return Identity{}, err
	}
	if !agent.VerifyAPIKeyHash(a.SecretHash, plaintextKey) {
		return Identity{}, ErrInvalidCredential
	}
	return identityFromAgent(a), nil
}

// IssueTokenPair signs an access/refresh pair for a verified identity. The
// access lifetime depends on the identity's tier.
func (s *Service) IssueTokenPair(identity Identity) (TokenPair, error) {
	now := s.now().UTC()

	accessTTL, ok := s.accessTTL[identity.Tier]
	if !ok {
		accessTTL = time.Hour
	}
	access, accessExp, err := s.sign(identity, TokenAccess, now, accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sign(identity, TokenRefresh, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(accessTTL.Seconds()),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *Service) sign(identity Identity, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Tier:      string(identity.Tier),
		TokenType: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.AgentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	// Access tokens carry the grant set so route policy checks stay pure;
	// refresh tokens do not grant anything and stay minimal.
	if typ == TokenAccess {
		claims.Permissions = identity.Permissions
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyToken validates signature, expiry and token type, in that severity
// order, and materializes the identity from the claims. The type check is a
// dedicated error path: a refresh token presented where an access token is
// required fails with ErrWrongTokenType, never with a generic error.
func (s *Service) VerifyToken(tokenString string, expectedType TokenType) (Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	if claims.TokenType != string(expectedType) {
		return Identity{}, ErrWrongTokenType
	}
	return Identity{
		AgentID:     claims.Subject,
		Tier:        agent.Tier(claims.Tier),
		Permissions: claims.Permissions,
	}, nil
}

// RefreshTokenPair exchanges a valid refresh token for a fresh pair. The
// agent record is re-read so revocation and permission changes take effect
// at refresh time.
func (s *Service) RefreshTokenPair(ctx context.Context, refreshToken string) (TokenPair, Identity, error) {
	claims, err := s.VerifyToken(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	a, err := s.store.GetAgent(ctx, claims.AgentID)
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			return TokenPair{}, Identity{}, ErrNotFound
		}
		return TokenPair{}, Identity{}, err
	}
	if err := usable(a); err != nil {
		return TokenPair{}, Identity{}, err
	}
	identity := identityFromAgent(a)
	pair, err := s.IssueTokenPair(identity)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

func usable(a *agent.Agent) error {
	switch a.Status {
	case agent.StatusActive:
		return nil
	case agent.StatusRevoked:
		return ErrRevoked
	default:
		return ErrInactive
	}
}
